package fixtures

import (
	"github.com/dogmatiq/flowstate/definition"
)

// Linear is a process that runs a delegate and a script before waiting at a
// user task.
const Linear = `
id: linear
name: Linear
activities:
  - {id: start, type: startEvent}
  - {id: record, type: task, delegate: record}
  - id: double
    type: scriptTask
    script: "return { total = amount * 2 }"
  - {id: review, type: userTask, name: Review}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: record}
  - {id: f2, from: record, to: double}
  - {id: f3, from: double, to: review}
  - {id: f4, from: review, to: end}
`

// ForkJoin is a process that forks into three user tasks and joins them
// again.
const ForkJoin = `
id: fork-join
activities:
  - {id: start, type: startEvent}
  - {id: fork, type: parallelGateway}
  - {id: t1, type: userTask}
  - {id: t2, type: userTask}
  - {id: t3, type: userTask}
  - {id: join, type: parallelGateway}
  - {id: after, type: userTask}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: fork}
  - {id: f2, from: fork, to: t1}
  - {id: f3, from: fork, to: t2}
  - {id: f4, from: fork, to: t3}
  - {id: f5, from: t1, to: join}
  - {id: f6, from: t2, to: join}
  - {id: f7, from: t3, to: join}
  - {id: f8, from: join, to: after}
  - {id: f9, from: after, to: end}
`

// ForkEnd is a process that forks into two user tasks, each of which leads to
// its own end event.
const ForkEnd = `
id: fork-end
activities:
  - {id: start, type: startEvent}
  - {id: fork, type: parallelGateway}
  - {id: a, type: userTask}
  - {id: b, type: userTask}
  - {id: end-a, type: endEvent}
  - {id: end-b, type: endEvent}
flows:
  - {id: f1, from: start, to: fork}
  - {id: f2, from: fork, to: a}
  - {id: f3, from: fork, to: b}
  - {id: f4, from: a, to: end-a}
  - {id: f5, from: b, to: end-b}
`

// Exclusive is a process that chooses a path based on a variable.
const Exclusive = `
id: exclusive
activities:
  - {id: start, type: startEvent}
  - {id: decide, type: exclusiveGateway, default: to-low}
  - {id: high, type: userTask}
  - {id: low, type: userTask}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: decide}
  - {id: to-high, from: decide, to: high, condition: "amount > 100"}
  - {id: to-low, from: decide, to: low}
  - {id: f2, from: high, to: end}
  - {id: f3, from: low, to: end}
`

// SubProcess is a process that waits at a user task within a sub-process.
const SubProcess = `
id: sub-process
activities:
  - {id: start, type: startEvent}
  - id: sub
    type: subProcess
    activities:
      - {id: sub-start, type: startEvent}
      - {id: inner, type: userTask}
      - {id: sub-end, type: endEvent}
    flows:
      - {id: s1, from: sub-start, to: inner}
      - {id: s2, from: inner, to: sub-end}
  - {id: after, type: userTask}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: sub}
  - {id: f2, from: sub, to: after}
  - {id: f3, from: after, to: end}
`

// Terminate is a process with a sub-process whose body forks into three
// branches, one of which ends the sub-process with a terminate end event
// when it is signaled.
const Terminate = `
id: terminate
activities:
  - {id: start, type: startEvent}
  - id: sub
    type: subProcess
    activities:
      - {id: sub-start, type: startEvent}
      - {id: sub-fork, type: parallelGateway}
      - {id: wait-a, type: userTask}
      - {id: wait-b, type: userTask}
      - {id: trigger, type: receiveTask, event: stop}
      - {id: sub-end, type: endEvent}
      - {id: kill, type: terminateEndEvent}
    flows:
      - {id: s1, from: sub-start, to: sub-fork}
      - {id: s2, from: sub-fork, to: wait-a}
      - {id: s3, from: sub-fork, to: wait-b}
      - {id: s4, from: sub-fork, to: trigger}
      - {id: s5, from: wait-a, to: sub-end}
      - {id: s6, from: wait-b, to: sub-end}
      - {id: s7, from: trigger, to: kill}
  - {id: after, type: userTask}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: sub}
  - {id: f2, from: sub, to: after}
  - {id: f3, from: after, to: end}
`

// TimerBoundary is a process with a user task that is interrupted by a timer
// after one hour.
const TimerBoundary = `
id: timer-boundary
activities:
  - {id: start, type: startEvent}
  - {id: work, type: userTask}
  - id: timeout
    type: boundaryEvent
    attachedTo: work
    timer: {duration: 1h}
  - {id: escalate, type: userTask}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: work}
  - {id: f2, from: work, to: end}
  - {id: f3, from: timeout, to: escalate}
  - {id: f4, from: escalate, to: end}
`

// ErrorBoundary is a process with a sub-process whose delegate may throw a
// business error that is caught by a boundary event on the sub-process.
const ErrorBoundary = `
id: error-boundary
activities:
  - {id: start, type: startEvent}
  - id: sub
    type: subProcess
    activities:
      - {id: sub-start, type: startEvent}
      - {id: charge, type: task, delegate: charge}
      - {id: sub-end, type: endEvent}
    flows:
      - {id: s1, from: sub-start, to: charge}
      - {id: s2, from: charge, to: sub-end}
  - {id: declined, type: boundaryEvent, attachedTo: sub, errorCode: DECLINED}
  - {id: handle, type: userTask}
  - {id: done, type: userTask}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: sub}
  - {id: f2, from: sub, to: done}
  - {id: f3, from: declined, to: handle}
  - {id: f4, from: handle, to: end}
  - {id: f5, from: done, to: end}
`

// MultiInstance is a process with a parallel multi-instance user task that
// completes once two of its instances are complete, followed by a sequential
// multi-instance task.
const MultiInstance = `
id: multi-instance
activities:
  - {id: start, type: startEvent}
  - id: approve
    type: userTask
    multiInstance:
      collection: approvers
      elementVariable: approver
      completionCondition: "nrOfCompletedInstances >= 2"
  - id: count
    type: task
    delegate: count
    multiInstance:
      sequential: true
      cardinality: "3"
  - {id: done, type: userTask}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: approve}
  - {id: f2, from: approve, to: count}
  - {id: f3, from: count, to: done}
  - {id: f4, from: done, to: end}
`

// Async is a process with an asynchronous continuation before a delegate.
const Async = `
id: async
activities:
  - {id: start, type: startEvent}
  - {id: record, type: task, delegate: record, asyncBefore: true}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: record}
  - {id: f2, from: record, to: end}
`

// TimerCatch is a process that waits ten minutes before completing.
const TimerCatch = `
id: timer-catch
activities:
  - {id: start, type: startEvent}
  - id: wait
    type: timerCatchEvent
    timer: {duration: 10m}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: wait}
  - {id: f2, from: wait, to: end}
`

// Signal is a process that waits for a signal.
const Signal = `
id: signal
activities:
  - {id: start, type: startEvent}
  - {id: receive, type: receiveTask, event: go}
  - {id: end, type: endEvent}
flows:
  - {id: f1, from: start, to: receive}
  - {id: f2, from: receive, to: end}
`

// Documents is the set of all process definitions used by tests.
var Documents = []string{
	Linear,
	ForkJoin,
	ForkEnd,
	Exclusive,
	SubProcess,
	Terminate,
	TimerBoundary,
	ErrorBoundary,
	MultiInstance,
	Async,
	TimerCatch,
	Signal,
}

// MustParse compiles a process definition, or panics if it is invalid.
func MustParse(doc string) *definition.Process {
	p, err := definition.Parse([]byte(doc))
	if err != nil {
		panic(err)
	}

	return p
}

// Definitions returns a repository containing each of the process definitions
// in Documents.
func Definitions() *definition.Repository {
	r := &definition.Repository{}

	for _, doc := range Documents {
		r.Add(MustParse(doc))
	}

	return r
}
