package storetest

import (
	"time"

	"github.com/dogmatiq/flowstate/persistence"
	"github.com/google/go-cmp/cmp"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareEntityTests(tc *TestContext) {
	ginkgo.Describe("entity persistence", func() {
		var (
			root *persistence.Execution
			now  time.Time
		)

		ginkgo.BeforeEach(func() {
			now = time.Now().Truncate(time.Millisecond).UTC()

			root = &persistence.Execution{
				ID:                  "<root>",
				ProcessInstanceID:   "<root>",
				ProcessDefinitionID: "<definition>",
				ActivityID:          "<activity>",
				BusinessKey:         "<business-key>",
				IsActive:            true,
				IsScope:             true,
				Variables: map[string]any{
					"name":   "<value>",
					"amount": 42.5,
					"ok":     true,
					"nested": map[string]any{"list": []any{"a", "b"}},
				},
			}

			mustPersist(tc.Context, tc.Store, persistence.Insert{Entity: root})
		})

		ginkgo.It("stores a new execution at revision 1", func() {
			e, ok := load(tc.Context, tc.Store, persistence.ExecutionType, "<root>")
			gomega.Expect(ok).To(gomega.BeTrue())

			expect := root.Clone()
			expect.Revision = 1
			gomega.Expect(e).To(gomega.Equal(expect))
		})

		ginkgo.It("increments the revision on each update", func() {
			x := root.Clone()
			x.Revision = 1
			x.IsActive = false
			x.ActivityID = "<next>"
			mustPersist(tc.Context, tc.Store, persistence.Update{Entity: x})

			e, _ := load(tc.Context, tc.Store, persistence.ExecutionType, "<root>")
			gomega.Expect(e.EntityRevision()).To(gomega.BeEquivalentTo(2))
			gomega.Expect(e.(*persistence.Execution).ActivityID).To(gomega.Equal("<next>"))
			gomega.Expect(e.(*persistence.Execution).IsActive).To(gomega.BeFalse())
		})

		ginkgo.It("round-trips jobs", func() {
			j := &persistence.Job{
				ID:                   "<job>",
				Kind:                 persistence.TimerJob,
				DueDate:              now,
				ExecutionID:          "<root>",
				ProcessInstanceID:    "<root>",
				HandlerType:          "<handler>",
				HandlerConfiguration: "<config>",
				Retries:              3,
				Failures:             2,
				LockOwner:            "<owner>",
				LockExpirationTime:   now.Add(time.Minute),
				ExceptionMessage:     "<message>",
				ExceptionStack:       "<stack>",
				IsSuspended:          true,
			}
			mustPersist(tc.Context, tc.Store, persistence.Insert{Entity: j})

			e, ok := load(tc.Context, tc.Store, persistence.JobType, "<job>")
			gomega.Expect(ok).To(gomega.BeTrue())

			expect := j.Clone()
			expect.Revision = 1
			gomega.Expect(cmp.Diff(expect, e)).To(gomega.BeEmpty())
		})

		ginkgo.It("round-trips tasks", func() {
			t := &persistence.Task{
				ID:                  "<task>",
				Name:                "<name>",
				ExecutionID:         "<root>",
				ProcessInstanceID:   "<root>",
				ProcessDefinitionID: "<definition>",
				ActivityID:          "<activity>",
				CreatedAt:           now,
			}
			mustPersist(tc.Context, tc.Store, persistence.Insert{Entity: t})

			e, ok := load(tc.Context, tc.Store, persistence.TaskType, "<task>")
			gomega.Expect(ok).To(gomega.BeTrue())

			expect := *t
			expect.Revision = 1
			gomega.Expect(cmp.Diff(&expect, e)).To(gomega.BeEmpty())
		})

		ginkgo.It("removes deleted entities", func() {
			x := root.Clone()
			x.Revision = 1
			mustPersist(tc.Context, tc.Store, persistence.Delete{Entity: x})

			_, ok := load(tc.Context, tc.Store, persistence.ExecutionType, "<root>")
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("reports missing entities as not found", func() {
			_, ok := load(tc.Context, tc.Store, persistence.JobType, "<unknown>")
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("persists a parent and child inserted in the same batch", func() {
			child := &persistence.Execution{
				ID:                "<child>",
				ProcessInstanceID: "<root>",
				ParentID:          "<sub>",
			}
			sub := &persistence.Execution{
				ID:                "<sub>",
				ProcessInstanceID: "<root>",
				ParentID:          "<root>",
				IsScope:           true,
			}
			mustPersist(
				tc.Context,
				tc.Store,
				persistence.Insert{Entity: sub},
				persistence.Insert{Entity: child},
			)

			_, ok := load(tc.Context, tc.Store, persistence.ExecutionType, "<child>")
			gomega.Expect(ok).To(gomega.BeTrue())
		})
	})
}
