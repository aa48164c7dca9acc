package flowstate

import (
	"runtime"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/expression"
	"github.com/dogmatiq/flowstate/interpreter"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/persistence/memorystore"
	"github.com/dogmatiq/flowstate/pipeline"
	"github.com/dogmatiq/flowstate/scheduler"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

var (
	// DefaultConcurrencyLimit is the default number of jobs to execute
	// concurrently.
	//
	// It is overridden by the WithConcurrencyLimit() option.
	DefaultConcurrencyLimit = uint(runtime.GOMAXPROCS(0) * 2)

	// DefaultPollInterval is the default interval at which the engine queries
	// the store for due jobs.
	//
	// It is overridden by the WithPollInterval() option.
	DefaultPollInterval = scheduler.DefaultPollInterval

	// DefaultLockDuration is the default time for which a job is locked to the
	// engine that claimed it.
	//
	// It is overridden by the WithLockDuration() option.
	DefaultLockDuration = scheduler.DefaultLockDuration

	// DefaultJobRetries is the default number of attempts given to each new
	// job.
	//
	// It is overridden by the WithJobRetries() option.
	DefaultJobRetries uint = interpreter.DefaultJobRetries

	// DefaultJobBackoff is the default backoff strategy used to delay the next
	// attempt of a failed job.
	//
	// It is overridden by the WithJobBackoff() option.
	DefaultJobBackoff backoff.Strategy = scheduler.DefaultBackoffStrategy

	// DefaultOptimisticLockRetries is the default number of times a retryable
	// command is re-attempted after an optimistic lock failure.
	//
	// It is overridden by the WithOptimisticLockRetries() option.
	DefaultOptimisticLockRetries uint = 3

	// DefaultOptimisticLockBackoff is the default backoff strategy used to
	// delay the re-attempt of a command after an optimistic lock failure.
	//
	// It is overridden by the WithOptimisticLockBackoff() option.
	DefaultOptimisticLockBackoff backoff.Strategy = backoff.WithTransforms(
		backoff.Exponential(10*time.Millisecond),
		linger.FullJitter,
		linger.Limiter(0, 1*time.Second),
	)

	// DefaultEvaluator is the default evaluator for conditions, cardinality
	// expressions and scripts.
	//
	// It is overridden by the WithEvaluator() option.
	DefaultEvaluator expression.Evaluator = expression.Lua{}

	// DefaultLogger is the default target for log messages produced by the
	// engine.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// EngineOption configures the behavior of an engine.
type EngineOption func(*engineOptions)

// WithStore returns an engine option that sets the store used to persist
// engine state.
//
// If this option is omitted or s is nil, a new in-memory store is used.
func WithStore(s persistence.Store) EngineOption {
	return func(opts *engineOptions) {
		opts.Store = s
	}
}

// WithDefinitions returns an engine option that deploys process definitions
// to the engine.
//
// Further definitions may be deployed after the engine is created by calling
// Engine.Deploy().
func WithDefinitions(processes ...*definition.Process) EngineOption {
	return func(opts *engineOptions) {
		opts.Definitions = append(opts.Definitions, processes...)
	}
}

// WithDelegate returns an engine option that registers the Go function that
// implements the task activities that refer to the given name.
func WithDelegate(name string, d interpreter.Delegate) EngineOption {
	if name == "" {
		panic("delegate name must not be empty")
	}

	if d == nil {
		panic("delegate must not be nil")
	}

	return func(opts *engineOptions) {
		if opts.Delegates == nil {
			opts.Delegates = map[string]interpreter.Delegate{}
		}

		opts.Delegates[name] = d
	}
}

// WithConcurrencyLimit returns an engine option that limits the number of jobs
// that are executed at the same time.
//
// If this option is omitted or n is zero DefaultConcurrencyLimit is used.
func WithConcurrencyLimit(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.ConcurrencyLimit = n
	}
}

// WithPollInterval returns an engine option that sets the interval at which
// the engine queries the store for due jobs.
//
// If this option is omitted or d is zero DefaultPollInterval is used.
func WithPollInterval(d time.Duration) EngineOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *engineOptions) {
		opts.PollInterval = d
	}
}

// WithLockDuration returns an engine option that sets the time for which a job
// is locked to the engine that claimed it.
//
// If the engine stops without releasing the lock, the job may be claimed by
// another engine once the lock expires.
//
// If this option is omitted or d is zero DefaultLockDuration is used.
func WithLockDuration(d time.Duration) EngineOption {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *engineOptions) {
		opts.LockDuration = d
	}
}

// WithLockOwner returns an engine option that sets the name that identifies
// the engine in the locks of the jobs it claims.
//
// If this option is omitted or owner is empty, a random UUID is used.
func WithLockOwner(owner string) EngineOption {
	return func(opts *engineOptions) {
		opts.LockOwner = owner
	}
}

// WithJobRetries returns an engine option that sets the number of attempts
// given to each new job.
//
// If this option is omitted or n is zero DefaultJobRetries is used.
func WithJobRetries(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.JobRetries = n
	}
}

// WithJobBackoff returns an engine option that sets the backoff strategy used
// to delay the next attempt of a failed job.
//
// If this option is omitted or s is nil DefaultJobBackoff is used.
func WithJobBackoff(s backoff.Strategy) EngineOption {
	return func(opts *engineOptions) {
		opts.JobBackoff = s
	}
}

// WithOptimisticLockRetries returns an engine option that sets the number of
// times a retryable command is re-attempted after an optimistic lock failure.
//
// If this option is omitted DefaultOptimisticLockRetries is used.
func WithOptimisticLockRetries(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.OptimisticLockRetries = &n
	}
}

// WithOptimisticLockBackoff returns an engine option that sets the backoff
// strategy used to delay the re-attempt of a command after an optimistic lock
// failure.
//
// If this option is omitted or s is nil DefaultOptimisticLockBackoff is used.
func WithOptimisticLockBackoff(s backoff.Strategy) EngineOption {
	return func(opts *engineOptions) {
		opts.OptimisticLockBackoff = s
	}
}

// WithInterceptor returns an engine option that adds a custom stage to the
// command pipeline at the given position.
func WithInterceptor(p pipeline.Position, s pipeline.Stage) EngineOption {
	if s == nil {
		panic("interceptor must not be nil")
	}

	return func(opts *engineOptions) {
		opts.Interceptors = append(opts.Interceptors, interceptor{p, s})
	}
}

// WithObserver returns an engine option that registers observers to be
// notified of lifecycle events once they are committed.
func WithObserver(observers ...event.Observer) EngineOption {
	return func(opts *engineOptions) {
		opts.Observers = append(opts.Observers, observers...)
	}
}

// WithEvaluator returns an engine option that sets the evaluator used for
// conditions, cardinality expressions and scripts.
//
// If this option is omitted or ev is nil DefaultEvaluator is used.
func WithEvaluator(ev expression.Evaluator) EngineOption {
	return func(opts *engineOptions) {
		opts.Evaluator = ev
	}
}

// WithClock returns an engine option that sets the function used to obtain
// the current time.
//
// If this option is omitted or now is nil, time.Now() is used.
func WithClock(now func() time.Time) EngineOption {
	return func(opts *engineOptions) {
		opts.Clock = now
	}
}

// WithTracer returns an engine option that records a span for each attempt to
// execute a command.
func WithTracer(t trace.Tracer) EngineOption {
	return func(opts *engineOptions) {
		opts.Tracer = t
	}
}

// WithLogger returns an engine option that sets the target for log messages
// produced by the engine.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) EngineOption {
	return func(opts *engineOptions) {
		opts.Logger = l
	}
}

type interceptor struct {
	Position pipeline.Position
	Stage    pipeline.Stage
}

// engineOptions is a container for a fully-resolved set of engine options.
type engineOptions struct {
	Store                 persistence.Store
	Definitions           []*definition.Process
	Delegates             map[string]interpreter.Delegate
	ConcurrencyLimit      uint
	PollInterval          time.Duration
	LockDuration          time.Duration
	LockOwner             string
	JobRetries            uint
	JobBackoff            backoff.Strategy
	OptimisticLockRetries *uint
	OptimisticLockBackoff backoff.Strategy
	Interceptors          []interceptor
	Observers             []event.Observer
	Evaluator             expression.Evaluator
	Clock                 func() time.Time
	Tracer                trace.Tracer
	Logger                logging.Logger
	Network               *networkOptions
}

// resolveEngineOptions returns a fully-populated set of engine options built
// from the given set of option functions.
func resolveEngineOptions(options ...EngineOption) *engineOptions {
	opts := &engineOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.Store == nil {
		opts.Store = &memorystore.Store{}
	}

	if opts.Delegates == nil {
		opts.Delegates = map[string]interpreter.Delegate{}
	}

	if opts.ConcurrencyLimit == 0 {
		opts.ConcurrencyLimit = DefaultConcurrencyLimit
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.LockDuration == 0 {
		opts.LockDuration = DefaultLockDuration
	}

	if opts.LockOwner == "" {
		opts.LockOwner = uuid.NewString()
	}

	if opts.JobRetries == 0 {
		opts.JobRetries = DefaultJobRetries
	}

	if opts.JobBackoff == nil {
		opts.JobBackoff = DefaultJobBackoff
	}

	if opts.OptimisticLockRetries == nil {
		n := DefaultOptimisticLockRetries
		opts.OptimisticLockRetries = &n
	}

	if opts.OptimisticLockBackoff == nil {
		opts.OptimisticLockBackoff = DefaultOptimisticLockBackoff
	}

	if opts.Evaluator == nil {
		opts.Evaluator = DefaultEvaluator
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}
