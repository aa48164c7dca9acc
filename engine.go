package flowstate

import (
	"context"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/definition"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/internal/x/loggingx"
	"github.com/dogmatiq/flowstate/interpreter"
	"github.com/dogmatiq/flowstate/persistence"
	"github.com/dogmatiq/flowstate/pipeline"
	"github.com/dogmatiq/flowstate/scheduler"
	"github.com/dogmatiq/flowstate/semaphore"
	"golang.org/x/sync/errgroup"
)

// Engine executes business processes.
//
// Each of its methods other than Run() executes a single command, which is
// applied atomically or not at all. The jobs created by commands, such as
// timers and asynchronous continuations, are only executed while Run() is
// running.
type Engine struct {
	opts        *engineOptions
	definitions *definition.Repository
	dispatcher  *event.Dispatcher
	executor    *pipeline.Executor
	interpreter *interpreter.Interpreter
	scheduler   *scheduler.Scheduler
}

// New returns a new engine.
func New(options ...EngineOption) *Engine {
	opts := resolveEngineOptions(options...)

	e := &Engine{
		opts:        opts,
		definitions: &definition.Repository{},
		dispatcher: &event.Dispatcher{
			Logger: opts.Logger,
		},
	}

	e.definitions.Add(opts.Definitions...)

	e.executor = &pipeline.Executor{
		Store:                 opts.Store,
		Dispatcher:            e.dispatcher,
		Logger:                loggingx.WithPrefix(opts.Logger, "[pipeline] "),
		OptimisticLockRetries: *opts.OptimisticLockRetries,
		RetryBackoff:          opts.OptimisticLockBackoff,
		Clock:                 opts.Clock,
		Tracer:                opts.Tracer,
	}

	for _, i := range opts.Interceptors {
		e.executor.Use(i.Position, i.Stage)
	}

	e.interpreter = &interpreter.Interpreter{
		Definitions: e.definitions,
		Evaluator:   opts.Evaluator,
		Delegates:   opts.Delegates,
		JobRetries:  int(opts.JobRetries),
	}

	e.scheduler = &scheduler.Scheduler{
		Executor:        e.executor,
		Handler:         e.interpreter,
		Semaphore:       semaphore.New(int(opts.ConcurrencyLimit)),
		LockOwner:       opts.LockOwner,
		LockDuration:    opts.LockDuration,
		PollInterval:    opts.PollInterval,
		BackoffStrategy: opts.JobBackoff,
		Logger:          loggingx.WithPrefix(opts.Logger, "[scheduler] "),
	}

	e.dispatcher.Register(e.scheduler)
	e.dispatcher.Register(opts.Observers...)

	return e
}

// Run executes jobs as they fall due until ctx is canceled or an error
// occurs.
func (e *Engine) Run(ctx context.Context) error {
	parent := ctx
	g, ctx := errgroup.WithContext(ctx)

	if e.opts.Network != nil {
		g.Go(func() error {
			return e.serve(ctx)
		})
	}

	g.Go(func() error {
		return e.scheduler.Run(ctx)
	})

	err := g.Wait()

	if parent.Err() != nil {
		return parent.Err()
	}

	return err
}

// Deploy makes process definitions available to the engine, replacing any
// existing definitions with the same IDs.
//
// Definitions are not versioned. Running instances of a replaced definition
// use the new definition from their next command onwards.
func (e *Engine) Deploy(processes ...*definition.Process) {
	e.definitions.Add(processes...)

	for _, p := range processes {
		logging.Debug(
			e.opts.Logger,
			"deployed process definition %s",
			p.ID,
		)
	}
}

// Observe registers observers to be notified of lifecycle events once they
// are committed.
func (e *Engine) Observe(observers ...event.Observer) {
	e.dispatcher.Register(observers...)
}

// StartProcessInstance starts a new instance of the process definition with
// the given ID.
//
// It returns the ID of the new instance, which is also the ID of its root
// execution. Activities that do not wait are executed before it returns.
func (e *Engine) StartProcessInstance(
	ctx context.Context,
	definitionID string,
	businessKey string,
	vars map[string]any,
) (string, error) {
	var id string

	err := e.execute(
		ctx,
		"start process instance of "+definitionID,
		false,
		func(ctx context.Context, sc *pipeline.Scope) error {
			x, err := e.interpreter.StartProcessInstance(ctx, sc, definitionID, businessKey, vars)
			if err != nil {
				return err
			}

			id = x.ID
			return nil
		},
	)

	return id, err
}

// Signal resumes an execution that is waiting at a receive task for the named
// event.
func (e *Engine) Signal(
	ctx context.Context,
	executionID, eventName string,
	vars map[string]any,
) error {
	return e.execute(
		ctx,
		"signal execution "+executionID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			return e.interpreter.Signal(ctx, sc, executionID, eventName, vars)
		},
	)
}

// CompleteTask completes a user task, assigning vars to the task's execution
// and resuming it.
func (e *Engine) CompleteTask(
	ctx context.Context,
	taskID string,
	vars map[string]any,
) error {
	return e.execute(
		ctx,
		"complete task "+taskID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			return e.interpreter.CompleteTask(ctx, sc, taskID, vars)
		},
	)
}

// ExecuteJob executes a job immediately, regardless of its due date or lock.
//
// Unlike jobs executed by Run(), a failure is returned to the caller and does
// not consume one of the job's retries.
func (e *Engine) ExecuteJob(ctx context.Context, jobID string) error {
	return e.execute(
		ctx,
		"execute job "+jobID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			return e.interpreter.ExecuteJob(ctx, sc, jobID)
		},
	)
}

// SetJobRetries sets the number of retries remaining for a job. Setting the
// retries of a dead job makes it acquirable again.
func (e *Engine) SetJobRetries(ctx context.Context, jobID string, n int) error {
	return e.scheduler.SetRetries(ctx, jobID, n)
}

// DeadJobs returns the jobs that have exhausted their retries.
func (e *Engine) DeadJobs(ctx context.Context) ([]*persistence.Job, error) {
	return e.scheduler.DeadJobs(ctx)
}

// SuspendProcessInstance suspends a process instance.
//
// A suspended instance can not be signaled, its tasks can not be completed
// and its jobs are not executed until it is activated.
func (e *Engine) SuspendProcessInstance(ctx context.Context, instanceID string) error {
	return e.execute(
		ctx,
		"suspend process instance "+instanceID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			return e.interpreter.SuspendProcessInstance(ctx, sc, instanceID)
		},
	)
}

// ActivateProcessInstance activates a suspended process instance.
func (e *Engine) ActivateProcessInstance(ctx context.Context, instanceID string) error {
	return e.execute(
		ctx,
		"activate process instance "+instanceID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			return e.interpreter.ActivateProcessInstance(ctx, sc, instanceID)
		},
	)
}

// SuspendProcessInstanceAt schedules the suspension of a process instance.
//
// It returns the ID of the job that suspends the instance.
func (e *Engine) SuspendProcessInstanceAt(
	ctx context.Context,
	instanceID string,
	at time.Time,
) (string, error) {
	return e.schedule(ctx, "suspension", instanceID, at, true)
}

// ActivateProcessInstanceAt schedules the activation of a process instance.
//
// It returns the ID of the job that activates the instance.
func (e *Engine) ActivateProcessInstanceAt(
	ctx context.Context,
	instanceID string,
	at time.Time,
) (string, error) {
	return e.schedule(ctx, "activation", instanceID, at, false)
}

func (e *Engine) schedule(
	ctx context.Context,
	what, instanceID string,
	at time.Time,
	suspend bool,
) (string, error) {
	var id string

	err := e.execute(
		ctx,
		"schedule "+what+" of process instance "+instanceID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			j, err := e.interpreter.ScheduleSuspension(ctx, sc, instanceID, at, suspend)
			if err != nil {
				return err
			}

			id = j.ID
			return nil
		},
	)

	return id, err
}

// DeleteProcessInstance deletes a process instance along with its tasks and
// jobs.
func (e *Engine) DeleteProcessInstance(
	ctx context.Context,
	instanceID string,
	reason string,
) error {
	return e.execute(
		ctx,
		"delete process instance "+instanceID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			return e.interpreter.DeleteProcessInstance(ctx, sc, instanceID, reason)
		},
	)
}

// Variables returns the variables visible to an execution.
func (e *Engine) Variables(ctx context.Context, executionID string) (map[string]any, error) {
	var vars map[string]any

	err := e.execute(
		ctx,
		"read variables of execution "+executionID,
		false,
		func(ctx context.Context, sc *pipeline.Scope) error {
			var err error
			vars, err = e.interpreter.Variables(ctx, sc, executionID)
			return err
		},
	)

	return vars, err
}

// Variable returns the value of a single variable visible to an execution.
func (e *Engine) Variable(ctx context.Context, executionID, name string) (any, bool, error) {
	vars, err := e.Variables(ctx, executionID)
	if err != nil {
		return nil, false, err
	}

	v, ok := vars[name]
	return v, ok, nil
}

// SetVariables assigns variables within the scope of an execution.
func (e *Engine) SetVariables(
	ctx context.Context,
	executionID string,
	vars map[string]any,
) error {
	return e.execute(
		ctx,
		"set variables of execution "+executionID,
		true,
		func(ctx context.Context, sc *pipeline.Scope) error {
			return e.interpreter.SetVariables(ctx, sc, executionID, vars)
		},
	)
}

// Executions returns the executions that match q.
func (e *Engine) Executions(
	ctx context.Context,
	q persistence.ExecutionQuery,
) ([]*persistence.Execution, error) {
	var result []*persistence.Execution

	err := e.execute(
		ctx,
		"find executions",
		false,
		func(ctx context.Context, sc *pipeline.Scope) error {
			var err error
			result, err = sc.Cache.FindExecutions(ctx, q)
			return err
		},
	)

	return result, err
}

// Tasks returns the user tasks that match q.
func (e *Engine) Tasks(
	ctx context.Context,
	q persistence.TaskQuery,
) ([]*persistence.Task, error) {
	var result []*persistence.Task

	err := e.execute(
		ctx,
		"find tasks",
		false,
		func(ctx context.Context, sc *pipeline.Scope) error {
			var err error
			result, err = sc.Cache.FindTasks(ctx, q)
			return err
		},
	)

	return result, err
}

// Jobs returns the jobs that match q.
func (e *Engine) Jobs(
	ctx context.Context,
	q persistence.JobQuery,
) ([]*persistence.Job, error) {
	var result []*persistence.Job

	err := e.execute(
		ctx,
		"find jobs",
		false,
		func(ctx context.Context, sc *pipeline.Scope) error {
			var err error
			result, err = sc.Cache.FindJobs(ctx, q)
			return err
		},
	)

	return result, err
}

// execute executes a command via the engine's pipeline.
func (e *Engine) execute(
	ctx context.Context,
	name string,
	retryable bool,
	body func(context.Context, *pipeline.Scope) error,
) error {
	return e.executor.Execute(ctx, pipeline.Command{
		Name:      name,
		Retryable: retryable,
		Body:      body,
	})
}
