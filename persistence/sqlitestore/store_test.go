package sqlitestore_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dogmatiq/flowstate/persistence/internal/storetest"
	. "github.com/dogmatiq/flowstate/persistence/sqlitestore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Store", func() {
	var (
		dir   string
		store *Store
	)

	storetest.Declare(
		func(ctx context.Context) storetest.Out {
			var err error
			dir, err = os.MkdirTemp("", "flowstate-sqlite-")
			Expect(err).ShouldNot(HaveOccurred())

			store, err = Open(ctx, filepath.Join(dir, "store.db"))
			Expect(err).ShouldNot(HaveOccurred())

			return storetest.Out{
				Store: store,
			}
		},
		func() {
			store.Close()
			os.RemoveAll(dir)
		},
	)

	Describe("func Open()", func() {
		It("returns an error if the path is empty", func() {
			_, err := Open(context.Background(), " ")
			Expect(err).To(MatchError("storage path is required"))
		})

		It("returns an error if the database cannot be opened", func() {
			dir, err := os.MkdirTemp("", "flowstate-sqlite-")
			Expect(err).ShouldNot(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)

			_, err = Open(
				context.Background(),
				filepath.Join(dir, "<missing>", "store.db"),
			)
			Expect(err).To(MatchError(ContainSubstring("ping sqlite db")))
		})

		It("can re-open an existing database", func() {
			dir, err := os.MkdirTemp("", "flowstate-sqlite-")
			Expect(err).ShouldNot(HaveOccurred())
			DeferCleanup(os.RemoveAll, dir)

			path := filepath.Join(dir, "store.db")

			s, err := Open(context.Background(), path)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			s, err = Open(context.Background(), path)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.Close()).To(Succeed())
		})
	})
})
