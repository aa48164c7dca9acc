package interpreter_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/flowstate/event"
	. "github.com/dogmatiq/flowstate/interpreter"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Interpreter", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()

		h.interpreter.Delegates["record"] = func(_ context.Context, s *DelegateScope) error {
			s.Set("recorded", s.BusinessKey)
			return nil
		}
	})

	Describe("func StartProcessInstance()", func() {
		It("runs automatic activities until the instance waits", func() {
			id := h.start("linear", map[string]any{"amount": 21})

			root := h.execution(id)
			Expect(root).NotTo(BeNil())
			Expect(root.IsProcessInstance()).To(BeTrue())
			Expect(root.IsScope).To(BeTrue())
			Expect(root.IsActive).To(BeFalse())
			Expect(root.ActivityID).To(Equal("review"))
			Expect(root.BusinessKey).To(Equal("<business-key>"))
			Expect(root.Variables).To(Equal(map[string]any{
				"amount":   21,
				"recorded": "<business-key>",
				"total":    42.0,
			}))

			t := h.task(id, "review")
			Expect(t.Name).To(Equal("Review"))
			Expect(t.ExecutionID).To(Equal(id))
			Expect(t.CreatedAt).To(Equal(h.clock.Now()))
		})

		It("emits lifecycle events in order", func() {
			h.start("linear", map[string]any{"amount": 1})

			Expect(h.events.Kinds()).To(Equal([]event.Kind{
				event.ProcessStarted,
				event.ActivityStarted, event.ActivityCompleted, // start
				event.ActivityStarted, event.ActivityCompleted, // record
				event.ActivityStarted, event.ActivityCompleted, // double
				event.ActivityStarted, event.TaskCreated, // review
			}))
		})

		It("returns a violation if the definition is not deployed", func() {
			_, err := h.tryStart("<unknown>", nil)
			Expect(pipeline.IsViolation(err)).To(BeTrue())
			Expect(err).To(MatchError("business rule violation: process definition <unknown> is not deployed"))
		})

		It("returns a continuation failure if a delegate fails", func() {
			h.interpreter.Delegates["record"] = func(context.Context, *DelegateScope) error {
				return errors.New("<error>")
			}

			_, err := h.tryStart("linear", map[string]any{"amount": 1})

			var f *pipeline.ContinuationFailure
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(err).To(MatchError("continuation failure: delegate record failed: <error>"))
			Expect(h.executions("")).To(BeEmpty())
		})

		It("returns a continuation failure if a delegate is not registered", func() {
			delete(h.interpreter.Delegates, "record")

			_, err := h.tryStart("linear", map[string]any{"amount": 1})

			var f *pipeline.ContinuationFailure
			Expect(errors.As(err, &f)).To(BeTrue())
		})

		It("returns a violation if a script fails", func() {
			_, err := h.tryStart("linear", nil)
			Expect(pipeline.IsViolation(err)).To(BeTrue())
			Expect(h.executions("")).To(BeEmpty())
		})
	})

	Describe("func CompleteTask()", func() {
		It("resumes the execution and completes the instance", func() {
			id := h.start("linear", map[string]any{"amount": 1})
			t := h.task(id, "review")

			h.events.Reset()
			err := h.complete(t.ID, map[string]any{"approved": true})
			Expect(err).ShouldNot(HaveOccurred())

			Expect(h.executions(id)).To(BeEmpty())
			Expect(h.tasks(id)).To(BeEmpty())
			Expect(h.events.Kinds()).To(Equal([]event.Kind{
				event.TaskCompleted,
				event.ActivityCompleted, // review
				event.ActivityStarted,   // end
				event.ActivityCompleted, // end
				event.ProcessCompleted,
			}))
		})

		It("returns a violation if the task does not exist", func() {
			err := h.complete("<unknown>", nil)
			Expect(pipeline.IsViolation(err)).To(BeTrue())
			Expect(errors.Is(err, ErrTaskNotFound)).To(BeTrue())
		})

		It("returns a violation if the instance is suspended", func() {
			id := h.start("linear", map[string]any{"amount": 1})
			t := h.task(id, "review")

			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				return h.interpreter.SuspendProcessInstance(ctx, sc, id)
			})
			Expect(err).ShouldNot(HaveOccurred())

			err = h.complete(t.ID, nil)
			Expect(err).To(MatchError("business rule violation: process instance " + id + " is suspended"))
		})
	})

	Describe("func Signal()", func() {
		It("resumes an execution waiting at a receive task", func() {
			id := h.start("signal", nil)

			err := h.signal(id, "go")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(h.executions(id)).To(BeEmpty())
		})

		It("returns a violation if the event name does not match", func() {
			id := h.start("signal", nil)

			err := h.signal(id, "stop")
			Expect(err).To(MatchError(`business rule violation: execution ` + id + ` is waiting for the "go" event, not "stop"`))
		})

		It("returns a violation if the execution is not at a receive task", func() {
			id := h.start("linear", map[string]any{"amount": 1})

			err := h.signal(id, "go")
			Expect(err).To(MatchError("business rule violation: execution " + id + " is waiting at review, which can not be signaled"))
		})

		It("returns a violation if the execution is waiting for its children", func() {
			id := h.start("fork-join", nil)

			err := h.signal(id, "go")
			Expect(err).To(MatchError("business rule violation: execution " + id + " is not waiting"))
		})

		It("returns a violation if the execution does not exist", func() {
			err := h.signal("<unknown>", "go")
			Expect(errors.Is(err, ErrExecutionNotFound)).To(BeTrue())
		})
	})

	Describe("func SuspendProcessInstance()", func() {
		It("suspends every execution and job", func() {
			id := h.start("timer-catch", nil)

			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				return h.interpreter.SuspendProcessInstance(ctx, sc, id)
			})
			Expect(err).ShouldNot(HaveOccurred())

			for _, x := range h.executions(id) {
				Expect(x.IsSuspended).To(BeTrue())
				Expect(x.State()).To(Equal(persistence.ExecutionSuspended))
			}

			jobs := h.jobs(id)
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].IsSuspended).To(BeTrue())
			Expect(jobs[0].IsAcquirable(h.clock.Now().Add(time.Hour))).To(BeFalse())

			Expect(h.events.Kinds()).To(ContainElement(event.ProcessSuspended))
		})

		It("returns a violation if the instance is already suspended", func() {
			id := h.start("timer-catch", nil)

			suspend := func(ctx context.Context, sc *pipeline.Scope) error {
				return h.interpreter.SuspendProcessInstance(ctx, sc, id)
			}

			Expect(h.execute(suspend)).To(Succeed())
			Expect(pipeline.IsViolation(h.execute(suspend))).To(BeTrue())
		})
	})

	Describe("func ActivateProcessInstance()", func() {
		It("reverses a suspension", func() {
			id := h.start("timer-catch", nil)

			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				if err := h.interpreter.SuspendProcessInstance(ctx, sc, id); err != nil {
					return err
				}
				return h.interpreter.ActivateProcessInstance(ctx, sc, id)
			})
			Expect(err).ShouldNot(HaveOccurred())

			for _, x := range h.executions(id) {
				Expect(x.IsSuspended).To(BeFalse())
			}

			for _, j := range h.jobs(id) {
				Expect(j.IsSuspended).To(BeFalse())
			}
		})

		It("returns a violation if the instance is not suspended", func() {
			id := h.start("timer-catch", nil)

			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				return h.interpreter.ActivateProcessInstance(ctx, sc, id)
			})
			Expect(err).To(MatchError("business rule violation: process instance " + id + " is not suspended"))
		})
	})

	Describe("func ScheduleSuspension()", func() {
		It("creates a job that suspends the instance when it is executed", func() {
			id := h.start("linear", map[string]any{"amount": 1})
			at := h.clock.Now().Add(time.Hour)

			var job *persistence.Job
			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				var err error
				job, err = h.interpreter.ScheduleSuspension(ctx, sc, id, at, true)
				return err
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(job.Kind).To(Equal(persistence.ScheduleJob))
			Expect(job.HandlerType).To(Equal(HandlerSuspend))
			Expect(job.DueDate).To(Equal(at))

			err = h.executeJob(job.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(h.execution(id).IsSuspended).To(BeTrue())
			Expect(h.jobs(id)).To(BeEmpty())
		})
	})

	Describe("func DeleteProcessInstance()", func() {
		It("deletes every execution, task and job of the instance", func() {
			id := h.start("fork-join", nil)
			h.events.Reset()

			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				return h.interpreter.DeleteProcessInstance(ctx, sc, id, "<reason>")
			})
			Expect(err).ShouldNot(HaveOccurred())

			Expect(h.executions(id)).To(BeEmpty())
			Expect(h.tasks(id)).To(BeEmpty())
			Expect(h.activities(event.ActivityCancelled)).To(ConsistOf("t1", "t2", "t3"))

			kinds := h.events.Kinds()
			Expect(kinds[len(kinds)-1]).To(Equal(event.ProcessCancelled))

			for _, ev := range h.events.Events() {
				if ev.Kind == event.ProcessCancelled {
					Expect(ev.Message).To(Equal("<reason>"))
					Expect(ev.ProcessInstanceID).To(Equal(id))
				}
			}
		})

		It("returns a violation if the execution is not a process instance", func() {
			id := h.start("fork-join", nil)
			child := h.at(id, "t1")[0]

			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				return h.interpreter.DeleteProcessInstance(ctx, sc, child.ID, "<reason>")
			})
			Expect(err).To(MatchError("business rule violation: execution " + child.ID + " is not a process instance"))
		})
	})

	Describe("func SetVariables()", func() {
		It("assigns variables that are visible to the execution", func() {
			id := h.start("linear", map[string]any{"amount": 1})

			err := h.execute(func(ctx context.Context, sc *pipeline.Scope) error {
				return h.interpreter.SetVariables(ctx, sc, id, map[string]any{"note": "<note>"})
			})
			Expect(err).ShouldNot(HaveOccurred())

			Expect(h.variables(id)).To(HaveKeyWithValue("note", "<note>"))
		})
	})
})
