package pipeline_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/persistence/memorystore"
	. "github.com/dogmatiq/flowstate/pipeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var _ = Describe("type Executor", func() {
	var (
		ctx        context.Context
		store      *memorystore.Store
		dispatcher *event.Dispatcher
		dispatched []event.Event
		executor   *Executor
		now        time.Time
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		DeferCleanup(cancel)

		now = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

		store = &memorystore.Store{}

		err := persistence.Persist(ctx, store, persistence.Batch{
			persistence.Insert{
				Entity: &persistence.Execution{
					ID:                "<instance>",
					ProcessInstanceID: "<instance>",
					ActivityID:        "<start>",
					IsActive:          true,
					IsScope:           true,
				},
			},
		})
		Expect(err).ShouldNot(HaveOccurred())

		dispatched = nil
		dispatcher = &event.Dispatcher{}
		dispatcher.Register(
			event.ObserverFunc(func(_ context.Context, ev event.Event) error {
				dispatched = append(dispatched, ev)
				return nil
			}),
		)

		executor = &Executor{
			Store:                 store,
			Dispatcher:            dispatcher,
			Logger:                logging.DiscardLogger{},
			OptimisticLockRetries: 3,
			Clock:                 func() time.Time { return now },
		}
	})

	load := func(id string) (*persistence.Execution, bool) {
		var (
			x  *persistence.Execution
			ok bool
		)

		err := persistence.WithTransaction(ctx, store, func(tx persistence.Transaction) error {
			e, found, err := tx.Load(ctx, persistence.ExecutionType, id)
			if found {
				x, ok = e.(*persistence.Execution), true
			}
			return err
		})
		Expect(err).ShouldNot(HaveOccurred())

		return x, ok
	}

	// moveTo returns a command that moves the root execution to a new
	// activity.
	moveTo := func(activityID string, retryable bool) Command {
		return Command{
			Name:      "move to " + activityID,
			Retryable: retryable,
			Body: func(ctx context.Context, sc *Scope) error {
				x, _, err := sc.Cache.Execution(ctx, "<instance>")
				if err != nil {
					return err
				}

				x.ActivityID = activityID
				sc.Emit(event.Event{Kind: event.ActivityStarted, ActivityID: activityID})

				return sc.Cache.Update(x)
			},
		}
	}

	Describe("func Execute()", func() {
		It("persists the changes made via the cache", func() {
			err := executor.Execute(ctx, moveTo("<next>", false))
			Expect(err).ShouldNot(HaveOccurred())

			x, _ := load("<instance>")
			Expect(x.ActivityID).To(Equal("<next>"))
			Expect(x.Revision).To(BeEquivalentTo(2))
		})

		It("dispatches events after the changes are committed", func() {
			err := executor.Execute(ctx, moveTo("<next>", false))
			Expect(err).ShouldNot(HaveOccurred())

			Expect(dispatched).To(HaveLen(2))
			Expect(dispatched[0].Kind).To(Equal(event.ActivityStarted))
			Expect(dispatched[0].Time).To(Equal(now))
			Expect(dispatched[1].Kind).To(Equal(event.EntityUpdated))
			Expect(dispatched[1].ExecutionID).To(Equal("<instance>"))
		})

		It("persists nothing if the body fails", func() {
			err := executor.Execute(ctx, Command{
				Name: "<command>",
				Body: func(ctx context.Context, sc *Scope) error {
					if err := sc.Cache.Insert(&persistence.Execution{
						ID:       "<child>",
						ParentID: "<instance>",
					}); err != nil {
						return err
					}

					sc.Emit(event.Event{Kind: event.ActivityStarted})

					return errors.New("<error>")
				},
			})

			var f *ContinuationFailure
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(err).To(MatchError("continuation failure: <error>"))

			_, ok := load("<child>")
			Expect(ok).To(BeFalse())
			Expect(dispatched).To(BeEmpty())
		})

		It("does not wrap errors that are already classified", func() {
			err := executor.Execute(ctx, Command{
				Name: "<command>",
				Body: func(context.Context, *Scope) error {
					return Violationf("<violation>")
				},
			})

			Expect(err).To(MatchError("business rule violation: <violation>"))
		})

		It("returns an InfrastructureFailure if the store is unavailable", func() {
			Expect(store.Close()).To(Succeed())

			err := executor.Execute(ctx, moveTo("<next>", false))

			var f *InfrastructureFailure
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(errors.Is(err, persistence.ErrStoreClosed)).To(BeTrue())
		})

		It("releases the cache when the command returns", func() {
			var sc *Scope

			err := executor.Execute(ctx, Command{
				Name: "<command>",
				Body: func(_ context.Context, s *Scope) error {
					sc = s
					Expect(sc.Cache).NotTo(BeNil())
					Expect(sc.Tx).NotTo(BeNil())
					return errors.New("<error>")
				},
			})
			Expect(err).Should(HaveOccurred())

			Expect(sc.Cache).To(BeNil())
			Expect(sc.Tx).To(BeNil())
		})

		When("the command conflicts with a concurrent command", func() {
			// raceWith returns a command that moves the root execution, but
			// before its changes are flushed, runs competing command to
			// completion the first time it is attempted.
			raceWith := func(competing Command, retryable bool) (Command, *int) {
				attempts := 0

				cmd := moveTo("<mine>", retryable)
				body := cmd.Body

				cmd.Body = func(ctx context.Context, sc *Scope) error {
					attempts++

					if err := body(ctx, sc); err != nil {
						return err
					}

					if attempts == 1 {
						return executor.Execute(ctx, competing)
					}

					return nil
				}

				return cmd, &attempts
			}

			It("retries a retryable command with fresh state", func() {
				cmd, attempts := raceWith(moveTo("<theirs>", false), true)

				err := executor.Execute(ctx, cmd)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(*attempts).To(Equal(2))

				x, _ := load("<instance>")
				Expect(x.ActivityID).To(Equal("<mine>"))
				Expect(x.Revision).To(BeEquivalentTo(3))
			})

			It("does not dispatch the events of the failed attempt", func() {
				cmd, _ := raceWith(moveTo("<theirs>", false), true)

				err := executor.Execute(ctx, cmd)
				Expect(err).ShouldNot(HaveOccurred())

				var activities []string
				for _, ev := range dispatched {
					if ev.Kind == event.ActivityStarted {
						activities = append(activities, ev.ActivityID)
					}
				}

				Expect(activities).To(Equal([]string{"<theirs>", "<mine>"}))
			})

			It("returns an OptimisticLockFailure if the command is not retryable", func() {
				cmd, attempts := raceWith(moveTo("<theirs>", false), false)

				err := executor.Execute(ctx, cmd)
				Expect(IsRetryable(err)).To(BeTrue())
				Expect(*attempts).To(Equal(1))

				x, _ := load("<instance>")
				Expect(x.ActivityID).To(Equal("<theirs>"))
			})

			It("gives up after the configured number of retries", func() {
				executor.OptimisticLockRetries = 2
				attempts := 0

				err := executor.Execute(ctx, Command{
					Name:      "<command>",
					Retryable: true,
					Body: func(ctx context.Context, sc *Scope) error {
						attempts++
						return sc.Cache.Insert(&persistence.Execution{ID: "<instance>"})
					},
				})

				Expect(IsRetryable(err)).To(BeTrue())
				Expect(attempts).To(Equal(3))
			})
		})
	})

	Describe("func Use()", func() {
		It("inserts stages at the requested positions", func() {
			var order []string

			record := func(name string, check func(*Scope)) Stage {
				return func(ctx context.Context, sc *Scope, next Sink) error {
					order = append(order, name)
					check(sc)
					return next(ctx, sc)
				}
			}

			executor.Use(BeforeHandle, record("handle", func(sc *Scope) {
				Expect(sc.Tx).NotTo(BeNil())
			}))
			executor.Use(BeforeTransaction, record("transaction", func(sc *Scope) {
				Expect(sc.Cache).NotTo(BeNil())
				Expect(sc.Tx).To(BeNil())
			}))
			executor.Use(BeforeUnitOfWork, record("unit-of-work", func(sc *Scope) {
				Expect(sc.Cache).To(BeNil())
			}))
			executor.Use(Outermost, record("outermost", func(sc *Scope) {
				Expect(sc.Attempt).To(BeZero())
			}))

			err := executor.Execute(ctx, moveTo("<next>", false))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(order).To(Equal([]string{
				"outermost",
				"unit-of-work",
				"transaction",
				"handle",
			}))
		})

		It("panics if the position is invalid", func() {
			Expect(func() {
				executor.Use(Position(100), nil)
			}).To(Panic())
		})
	})

	When("a tracer is configured", func() {
		It("records a span for each attempt", func() {
			recorder := tracetest.NewSpanRecorder()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			executor.Tracer = provider.Tracer("<tracer>")

			err := executor.Execute(ctx, Command{
				Name: "<command>",
				Body: func(context.Context, *Scope) error {
					return Violationf("<violation>")
				},
			})
			Expect(err).Should(HaveOccurred())

			spans := recorder.Ended()
			Expect(spans).To(HaveLen(1))
			Expect(spans[0].Name()).To(Equal("<command>"))
			Expect(spans[0].Status().Code).To(Equal(codes.Error))
		})
	})
})
