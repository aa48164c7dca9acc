package storetest

import (
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareStoreTests(tc *TestContext) {
	ginkgo.Describe("type Store (interface)", func() {
		ginkgo.Describe("func Close()", func() {
			ginkgo.It("returns an error if the store is already closed", func() {
				err := tc.Store.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = tc.Store.Close()
				gomega.Expect(err).To(gomega.Equal(persistence.ErrStoreClosed))
			})

			ginkgo.It("prevents transactions from being started", func() {
				err := tc.Store.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				_, err = tc.Store.Begin(tc.Context)
				gomega.Expect(err).To(gomega.Equal(persistence.ErrStoreClosed))
			})
		})
	})

	ginkgo.Describe("type Transaction (interface)", func() {
		ginkgo.It("does not apply operations that are rolled back", func() {
			tx, err := tc.Store.Begin(tc.Context)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			err = tx.Persist(
				tc.Context,
				persistence.Batch{
					persistence.Insert{Entity: &persistence.Execution{ID: "<root>", ProcessInstanceID: "<root>"}},
				},
			)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			err = tx.Rollback()
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			_, ok := load(tc.Context, tc.Store, persistence.ExecutionType, "<root>")
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("returns an error when used after commit", func() {
			tx, err := tc.Store.Begin(tc.Context)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			err = tx.Commit(tc.Context)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

			err = tx.Commit(tc.Context)
			gomega.Expect(err).To(gomega.Equal(persistence.ErrTransactionClosed))

			err = tx.Rollback()
			gomega.Expect(err).To(gomega.Equal(persistence.ErrTransactionClosed))
		})
	})
}
