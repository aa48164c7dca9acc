package flowstate

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/expression"
	"github.com/dogmatiq/flowstate/fixtures"
	"github.com/dogmatiq/flowstate/interpreter"
	"github.com/dogmatiq/flowstate/persistence/memorystore"
	"github.com/dogmatiq/flowstate/pipeline"
	"github.com/dogmatiq/linger/backoff"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func resolveEngineOptions()", func() {
	It("uses defaults for every omitted option", func() {
		opts := resolveEngineOptions()

		Expect(opts.Store).To(BeAssignableToTypeOf(&memorystore.Store{}))
		Expect(opts.Delegates).To(BeEmpty())
		Expect(opts.ConcurrencyLimit).To(Equal(DefaultConcurrencyLimit))
		Expect(opts.PollInterval).To(Equal(DefaultPollInterval))
		Expect(opts.LockDuration).To(Equal(DefaultLockDuration))
		Expect(opts.LockOwner).NotTo(BeEmpty())
		Expect(opts.JobRetries).To(Equal(DefaultJobRetries))
		Expect(opts.JobBackoff).NotTo(BeNil())
		Expect(*opts.OptimisticLockRetries).To(Equal(DefaultOptimisticLockRetries))
		Expect(opts.OptimisticLockBackoff).NotTo(BeNil())
		Expect(opts.Evaluator).To(Equal(DefaultEvaluator))
		Expect(opts.Clock).NotTo(BeNil())
		Expect(opts.Logger).To(BeIdenticalTo(DefaultLogger))
		Expect(opts.Network).To(BeNil())
	})

	It("creates a separate in-memory store for each engine", func() {
		a := resolveEngineOptions()
		b := resolveEngineOptions()

		Expect(a.Store).NotTo(BeIdenticalTo(b.Store))
	})
})

var _ = Describe("func WithStore()", func() {
	It("sets the store", func() {
		s := &memorystore.Store{}

		opts := resolveEngineOptions(
			WithStore(s),
		)

		Expect(opts.Store).To(BeIdenticalTo(s))
	})
})

var _ = Describe("func WithDefinitions()", func() {
	It("accumulates definitions", func() {
		a := fixtures.MustParse(fixtures.Linear)
		b := fixtures.MustParse(fixtures.Signal)

		opts := resolveEngineOptions(
			WithDefinitions(a),
			WithDefinitions(b),
		)

		Expect(opts.Definitions).To(Equal([]*definition.Process{a, b}))
	})
})

var _ = Describe("func WithDelegate()", func() {
	It("registers the delegate by name", func() {
		opts := resolveEngineOptions(
			WithDelegate("<name>", func(context.Context, *interpreter.DelegateScope) error {
				return nil
			}),
		)

		Expect(opts.Delegates).To(HaveKey("<name>"))
	})

	It("panics if the name is empty", func() {
		Expect(func() {
			WithDelegate("", func(context.Context, *interpreter.DelegateScope) error {
				return nil
			})
		}).To(PanicWith("delegate name must not be empty"))
	})

	It("panics if the delegate is nil", func() {
		Expect(func() {
			WithDelegate("<name>", nil)
		}).To(PanicWith("delegate must not be nil"))
	})
})

var _ = Describe("func WithConcurrencyLimit()", func() {
	It("sets the concurrency limit", func() {
		opts := resolveEngineOptions(
			WithConcurrencyLimit(10),
		)

		Expect(opts.ConcurrencyLimit).To(BeEquivalentTo(10))
	})

	It("uses the default if the limit is zero", func() {
		opts := resolveEngineOptions(
			WithConcurrencyLimit(0),
		)

		Expect(opts.ConcurrencyLimit).To(Equal(DefaultConcurrencyLimit))
	})
})

var _ = DescribeTable(
	"duration options",
	func(
		option func(time.Duration) EngineOption,
		field func(*engineOptions) time.Duration,
		def time.Duration,
	) {
		opts := resolveEngineOptions(option(10 * time.Minute))
		Expect(field(opts)).To(Equal(10 * time.Minute))

		opts = resolveEngineOptions(option(0))
		Expect(field(opts)).To(Equal(def))

		Expect(func() {
			option(-1)
		}).To(PanicWith("duration must not be negative"))
	},
	Entry(
		"func WithPollInterval()",
		WithPollInterval,
		func(opts *engineOptions) time.Duration { return opts.PollInterval },
		DefaultPollInterval,
	),
	Entry(
		"func WithLockDuration()",
		WithLockDuration,
		func(opts *engineOptions) time.Duration { return opts.LockDuration },
		DefaultLockDuration,
	),
)

var _ = Describe("func WithLockOwner()", func() {
	It("sets the lock owner", func() {
		opts := resolveEngineOptions(
			WithLockOwner("<owner>"),
		)

		Expect(opts.LockOwner).To(Equal("<owner>"))
	})
})

var _ = Describe("func WithJobRetries()", func() {
	It("sets the number of retries", func() {
		opts := resolveEngineOptions(
			WithJobRetries(7),
		)

		Expect(opts.JobRetries).To(BeEquivalentTo(7))
	})

	It("uses the default if the number is zero", func() {
		opts := resolveEngineOptions(
			WithJobRetries(0),
		)

		Expect(opts.JobRetries).To(Equal(DefaultJobRetries))
	})
})

var _ = Describe("func WithJobBackoff()", func() {
	It("sets the backoff strategy", func() {
		opts := resolveEngineOptions(
			WithJobBackoff(backoff.Constant(10 * time.Second)),
		)

		Expect(opts.JobBackoff(nil, 1)).To(Equal(10 * time.Second))
	})
})

var _ = Describe("func WithOptimisticLockRetries()", func() {
	It("sets the number of retries", func() {
		opts := resolveEngineOptions(
			WithOptimisticLockRetries(5),
		)

		Expect(*opts.OptimisticLockRetries).To(BeEquivalentTo(5))
	})

	It("allows retries to be disabled", func() {
		opts := resolveEngineOptions(
			WithOptimisticLockRetries(0),
		)

		Expect(*opts.OptimisticLockRetries).To(BeZero())
	})
})

var _ = Describe("func WithInterceptor()", func() {
	It("adds the stage at the given position", func() {
		opts := resolveEngineOptions(
			WithInterceptor(
				pipeline.BeforeHandle,
				func(ctx context.Context, sc *pipeline.Scope, next pipeline.Sink) error {
					return next(ctx, sc)
				},
			),
		)

		Expect(opts.Interceptors).To(HaveLen(1))
		Expect(opts.Interceptors[0].Position).To(Equal(pipeline.BeforeHandle))
	})

	It("panics if the stage is nil", func() {
		Expect(func() {
			WithInterceptor(pipeline.Outermost, nil)
		}).To(PanicWith("interceptor must not be nil"))
	})
})

var _ = Describe("func WithObserver()", func() {
	It("adds the observers", func() {
		o := &fixtures.EventRecorder{}

		opts := resolveEngineOptions(
			WithObserver(o),
		)

		Expect(opts.Observers).To(Equal([]event.Observer{o}))
	})
})

var _ = Describe("func WithEvaluator()", func() {
	It("sets the evaluator", func() {
		opts := resolveEngineOptions(
			WithEvaluator(expression.Lua{}),
		)

		Expect(opts.Evaluator).To(Equal(expression.Lua{}))
	})
})

var _ = Describe("func WithClock()", func() {
	It("sets the clock", func() {
		c := &fixtures.Clock{}

		opts := resolveEngineOptions(
			WithClock(c.Now),
		)

		Expect(opts.Clock()).To(Equal(fixtures.Epoch))
	})
})

var _ = Describe("func WithLogger()", func() {
	It("sets the logger", func() {
		opts := resolveEngineOptions(
			WithLogger(logging.DebugLogger),
		)

		Expect(opts.Logger).To(BeIdenticalTo(logging.DebugLogger))
	})

	It("uses the default if the logger is nil", func() {
		opts := resolveEngineOptions(
			WithLogger(nil),
		)

		Expect(opts.Logger).To(BeIdenticalTo(DefaultLogger))
	})
})

var _ = Describe("func WithNetworking()", func() {
	It("enables networking with the default listen address", func() {
		opts := resolveEngineOptions(
			WithNetworking(),
		)

		Expect(opts.Network).NotTo(BeNil())
		Expect(opts.Network.ListenAddress).To(Equal(DefaultListenAddress))
	})

	It("sets the listen address", func() {
		opts := resolveEngineOptions(
			WithNetworking(
				WithListenAddress("localhost:1234"),
			),
		)

		Expect(opts.Network.ListenAddress).To(Equal("localhost:1234"))
	})

	It("panics if the listen address is invalid", func() {
		Expect(func() {
			WithListenAddress("<invalid>")
		}).To(Panic())
	})
})
