package cache_test

import (
	"context"
	"time"

	. "github.com/dogmatiq/flowstate/cache"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/persistence/memorystore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Cache", func() {
	var (
		ctx   context.Context
		store *memorystore.Store
		tx    persistence.Transaction
		cache *Cache
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		DeferCleanup(cancel)

		store = &memorystore.Store{}

		err := persistence.Persist(ctx, store, persistence.Batch{
			persistence.Insert{Entity: &persistence.Execution{ID: "<root>", ProcessInstanceID: "<root>"}},
			persistence.Insert{Entity: &persistence.Execution{ID: "<child>", ParentID: "<root>", ProcessInstanceID: "<root>"}},
			persistence.Insert{Entity: &persistence.Job{ID: "<job>", ExecutionID: "<child>", ProcessInstanceID: "<root>", Retries: 3}},
		})
		Expect(err).ShouldNot(HaveOccurred())

		tx, err = store.Begin(ctx)
		Expect(err).ShouldNot(HaveOccurred())
		DeferCleanup(func() {
			tx.Rollback()
		})

		cache = &Cache{Reader: tx}
	})

	Describe("func Get()", func() {
		It("returns the same instance on each call", func() {
			a, ok, err := cache.Execution(ctx, "<root>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			b, ok, err := cache.Execution(ctx, "<root>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())

			Expect(a).To(BeIdenticalTo(b))
		})

		It("returns false if the entity does not exist", func() {
			_, ok, err := cache.Job(ctx, "<missing>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns false if the entity has been deleted", func() {
			j, _, err := cache.Job(ctx, "<job>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cache.Delete(j)).To(Succeed())

			_, ok, err := cache.Job(ctx, "<job>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("returns inserted entities without consulting the reader", func() {
			t := &persistence.Task{ID: "<task>", ExecutionID: "<child>"}
			Expect(cache.Insert(t)).To(Succeed())

			x, ok, err := cache.Task(ctx, "<task>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(x).To(BeIdenticalTo(t))
		})
	})

	Describe("func Insert()", func() {
		It("returns an error if the entity is already cached", func() {
			_, _, err := cache.Execution(ctx, "<root>")
			Expect(err).ShouldNot(HaveOccurred())

			err = cache.Insert(&persistence.Execution{ID: "<root>"})
			Expect(err).To(MatchError("can not insert execution:<root>, it is already cached"))
		})
	})

	Describe("func Update()", func() {
		It("returns ErrDeleted if the entity has been deleted", func() {
			j, _, err := cache.Job(ctx, "<job>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cache.Delete(j)).To(Succeed())

			err = cache.Update(j)
			Expect(err).To(MatchError(ErrDeleted))
		})

		It("returns an error if the entity is not managed by the cache", func() {
			err := cache.Update(&persistence.Job{ID: "<job>"})
			Expect(err).To(MatchError("job:<job> is not managed by this cache"))
		})

		It("returns an error if the entity is not the cached instance", func() {
			_, _, err := cache.Job(ctx, "<job>")
			Expect(err).ShouldNot(HaveOccurred())

			err = cache.Update(&persistence.Job{ID: "<job>"})
			Expect(err).To(MatchError("job:<job> is not the cached instance"))
		})
	})

	Describe("func Delete()", func() {
		It("is idempotent", func() {
			j, _, err := cache.Job(ctx, "<job>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(cache.Delete(j)).To(Succeed())
			Expect(cache.Delete(j)).To(Succeed())
			Expect(cache.IsDeleted(j)).To(BeTrue())
		})

		It("does not persist entities that were inserted in the same command", func() {
			t := &persistence.Task{ID: "<task>", ExecutionID: "<child>"}
			Expect(cache.Insert(t)).To(Succeed())
			Expect(cache.Delete(t)).To(Succeed())
			Expect(cache.IsDeleted(t)).To(BeTrue())

			batch, err := cache.Flush(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(batch).To(BeEmpty())
		})
	})

	Describe("func FindExecutions()", func() {
		It("includes inserted executions and excludes deleted executions", func() {
			child, _, err := cache.Execution(ctx, "<child>")
			Expect(err).ShouldNot(HaveOccurred())

			j, _, err := cache.Job(ctx, "<job>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(cache.Delete(j)).To(Succeed())
			Expect(cache.Delete(child)).To(Succeed())

			sibling := &persistence.Execution{ID: "<sibling>", ParentID: "<root>"}
			Expect(cache.Insert(sibling)).To(Succeed())

			result, err := cache.FindExecutions(ctx, persistence.ExecutionQuery{ParentID: "<root>"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(result).To(ConsistOf(BeIdenticalTo(sibling)))
		})

		It("returns cached instances in place of persisted versions", func() {
			child, _, err := cache.Execution(ctx, "<child>")
			Expect(err).ShouldNot(HaveOccurred())

			child.ActivityID = "<modified>"

			result, err := cache.FindExecutions(ctx, persistence.ExecutionQuery{ProcessInstanceID: "<root>"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(result).To(HaveLen(2))
			Expect(result[0]).To(BeIdenticalTo(child))
		})
	})

	Describe("func FindJobs()", func() {
		It("applies the limit after merging cached changes", func() {
			Expect(cache.Insert(&persistence.Job{
				ID:          "<a-job>",
				ExecutionID: "<child>",
				Retries:     3,
			})).To(Succeed())

			result, err := cache.FindJobs(ctx, persistence.JobQuery{ExecutionID: "<child>", Limit: 1})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(result).To(HaveLen(1))
			Expect(result[0].ID).To(Equal("<a-job>"))
		})
	})

	Describe("func Flush()", func() {
		It("orders inserts parent-first and deletes child-first", func() {
			root, _, err := cache.Execution(ctx, "<root>")
			Expect(err).ShouldNot(HaveOccurred())
			child, _, err := cache.Execution(ctx, "<child>")
			Expect(err).ShouldNot(HaveOccurred())
			job, _, err := cache.Job(ctx, "<job>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(cache.Delete(job)).To(Succeed())
			Expect(cache.Delete(root)).To(Succeed())
			Expect(cache.Delete(child)).To(Succeed())

			grandchild := &persistence.Execution{ID: "<b-new>", ParentID: "<a-new>"}
			parent := &persistence.Execution{ID: "<a-new>"}
			task := &persistence.Task{ID: "<task>", ExecutionID: "<b-new>"}

			Expect(cache.Insert(task)).To(Succeed())
			Expect(cache.Insert(grandchild)).To(Succeed())
			Expect(cache.Insert(parent)).To(Succeed())

			batch, err := cache.Flush(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(batch).To(Equal(persistence.Batch{
				persistence.Insert{Entity: parent},
				persistence.Insert{Entity: grandchild},
				persistence.Insert{Entity: task},
				persistence.Delete{Entity: job},
				persistence.Delete{Entity: child},
				persistence.Delete{Entity: root},
			}))

			Expect(tx.Persist(ctx, batch)).To(Succeed())
			Expect(tx.Commit(ctx)).To(Succeed())
		})

		It("includes updates for entities marked as modified", func() {
			root, _, err := cache.Execution(ctx, "<root>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(cache.Update(root)).To(Succeed())
			Expect(cache.Update(root)).To(Succeed())

			batch, err := cache.Flush(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(batch).To(Equal(persistence.Batch{
				persistence.Update{Entity: root},
			}))
		})

		It("returns an OrphanError if a dependent entity is not deleted", func() {
			child, _, err := cache.Execution(ctx, "<child>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cache.Delete(child)).To(Succeed())

			_, err = cache.Flush(ctx)
			Expect(err).To(Equal(OrphanError{
				Parent: persistence.Ref{Type: persistence.ExecutionType, ID: "<child>"},
				Child:  persistence.Ref{Type: persistence.JobType, ID: "<job>"},
			}))
		})

		It("returns an empty batch if nothing has changed", func() {
			_, _, err := cache.Execution(ctx, "<root>")
			Expect(err).ShouldNot(HaveOccurred())

			batch, err := cache.Flush(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(batch).To(BeEmpty())
		})
	})
})
