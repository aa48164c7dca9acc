package storetest

import (
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareConflictTests(tc *TestContext) {
	ginkgo.Describe("optimistic concurrency control", func() {
		var root *persistence.Execution

		ginkgo.BeforeEach(func() {
			root = &persistence.Execution{
				ID:                "<root>",
				ProcessInstanceID: "<root>",
				IsScope:           true,
			}

			mustPersist(tc.Context, tc.Store, persistence.Insert{Entity: root})
			root.Revision = 1
		})

		ginkgo.It("rejects an update with a stale revision", func() {
			stale := root.Clone()
			stale.Revision = 0

			err := persist(tc.Context, tc.Store, persistence.Update{Entity: stale})
			gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())
		})

		ginkgo.It("rejects an update of a missing entity", func() {
			err := persist(
				tc.Context,
				tc.Store,
				persistence.Update{Entity: &persistence.Job{ID: "<job>", ExecutionID: "<root>", Revision: 1}},
			)
			gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())
		})

		ginkgo.It("rejects a delete with a stale revision", func() {
			stale := root.Clone()
			stale.Revision = 7

			err := persist(tc.Context, tc.Store, persistence.Delete{Entity: stale})
			gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())
		})

		ginkgo.It("rejects a duplicate insert", func() {
			err := persist(tc.Context, tc.Store, persistence.Insert{Entity: root.Clone()})
			gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())
		})

		ginkgo.It("rejects the entire batch when one operation conflicts", func() {
			stale := root.Clone()
			stale.Revision = 0

			err := persist(
				tc.Context,
				tc.Store,
				persistence.Insert{Entity: &persistence.Job{ID: "<job>", ExecutionID: "<root>", ProcessInstanceID: "<root>", Retries: 1}},
				persistence.Update{Entity: stale},
			)
			gomega.Expect(persistence.IsConflict(err)).To(gomega.BeTrue())

			_, ok := load(tc.Context, tc.Store, persistence.JobType, "<job>")
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("allows exactly one of two competing updates to commit", func() {
			a, err := tc.Store.Begin(tc.Context)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer a.Rollback()

			b, err := tc.Store.Begin(tc.Context)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			defer b.Rollback()

			x := root.Clone()
			x.ActivityID = "<a>"
			errA := a.Persist(tc.Context, persistence.Batch{persistence.Update{Entity: x}})
			if errA == nil {
				errA = a.Commit(tc.Context)
			}

			y := root.Clone()
			y.ActivityID = "<b>"
			errB := b.Persist(tc.Context, persistence.Batch{persistence.Update{Entity: y}})
			if errB == nil {
				errB = b.Commit(tc.Context)
			}

			gomega.Expect(errA).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(persistence.IsConflict(errB)).To(gomega.BeTrue())

			e, _ := load(tc.Context, tc.Store, persistence.ExecutionType, "<root>")
			gomega.Expect(e.(*persistence.Execution).ActivityID).To(gomega.Equal("<a>"))
		})
	})
}
