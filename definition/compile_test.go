package definition_test

import (
	"time"

	. "github.com/dogmatiq/flowstate/definition"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const orderProcess = `
id: order
name: Order fulfilment
activities:
  - id: start
    type: startEvent
  - id: review
    type: userTask
    name: Review order
  - id: reminder
    type: boundaryEvent
    attachedTo: review
    timer:
      duration: 24h
  - id: decide
    type: exclusiveGateway
    default: reject
  - id: ship
    type: subProcess
    multiInstance:
      collection: items
      elementVariable: item
    activities:
      - id: ship-start
        type: startEvent
      - id: pack
        type: task
        delegate: pack
      - id: ship-end
        type: endEvent
    flows:
      - {id: s1, from: ship-start, to: pack}
      - {id: s2, from: pack, to: ship-end}
  - id: end
    type: endEvent
  - id: rejected
    type: terminateEndEvent
flows:
  - {id: f1, from: start, to: review}
  - {id: f2, from: review, to: decide}
  - {id: approve, from: decide, to: ship, condition: "approved"}
  - {id: reject, from: decide, to: rejected}
  - {id: f3, from: ship, to: end}
  - {id: f4, from: reminder, to: rejected}
`

var _ = Describe("func Parse()", func() {
	It("links the process graph", func() {
		p, err := Parse([]byte(orderProcess))
		Expect(err).ShouldNot(HaveOccurred())

		Expect(p.ID).To(Equal("order"))
		Expect(p.Name).To(Equal("Order fulfilment"))
		Expect(p.Initial.ID).To(Equal("start"))
		Expect(p.Activities).To(HaveLen(7))

		review, ok := p.Activity("review")
		Expect(ok).To(BeTrue())
		Expect(review.Kind).To(Equal(UserTask))
		Expect(review.Incoming).To(HaveLen(1))
		Expect(review.Outgoing[0].Destination.ID).To(Equal("decide"))

		decide, _ := p.Activity("decide")
		Expect(decide.Default.ID).To(Equal("reject"))
		Expect(decide.Outgoing[0].Condition).To(Equal("approved"))
	})

	It("attaches boundary events to their host", func() {
		p, err := Parse([]byte(orderProcess))
		Expect(err).ShouldNot(HaveOccurred())

		review, _ := p.Activity("review")
		reminder, _ := p.Activity("reminder")

		Expect(review.Boundaries).To(ConsistOf(reminder))
		Expect(reminder.AttachedTo).To(BeIdenticalTo(review))
		Expect(reminder.IsTimerBoundary()).To(BeTrue())
		Expect(reminder.Timer.Duration).To(Equal(24 * time.Hour))
	})

	It("compiles sub-process bodies", func() {
		p, err := Parse([]byte(orderProcess))
		Expect(err).ShouldNot(HaveOccurred())

		ship, _ := p.Activity("ship")
		Expect(ship.IsScope()).To(BeTrue())
		Expect(ship.Initial.ID).To(Equal("ship-start"))
		Expect(ship.Children).To(HaveLen(3))
		Expect(ship.MultiInstance.Collection).To(Equal("items"))

		pack, ok := p.Activity("pack")
		Expect(ok).To(BeTrue())
		Expect(pack.Parent).To(BeIdenticalTo(ship))
		Expect(pack.Delegate).To(Equal("pack"))
	})

	It("returns an error if the document is empty", func() {
		_, err := Parse([]byte("  \n"))
		Expect(err).To(MatchError("definition: document is empty"))
	})

	It("returns an error if the document is not valid YAML", func() {
		_, err := Parse([]byte("id: [unterminated"))
		Expect(err).To(MatchError(ContainSubstring("definition: decode document")))
	})
})

var _ = Describe("func Compile()", func() {
	minimal := func() Document {
		return Document{
			ID: "<process>",
			Activities: []ActivitySpec{
				{ID: "start", Type: StartEvent},
				{ID: "end", Type: EndEvent},
			},
			Flows: []FlowSpec{
				{ID: "f1", From: "start", To: "end"},
			},
		}
	}

	It("compiles a minimal process", func() {
		p, err := Compile(minimal())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(p.Initial.Outgoing[0].Destination.Kind).To(Equal(EndEvent))
	})

	DescribeTable(
		"it returns an error if the document is invalid",
		func(mutate func(*Document), expect string) {
			doc := minimal()
			mutate(&doc)

			_, err := Compile(doc)
			Expect(err).To(MatchError(expect))
		},
		Entry(
			"missing process id",
			func(d *Document) { d.ID = "" },
			"definition: id is required",
		),
		Entry(
			"no start event",
			func(d *Document) {
				d.Activities = d.Activities[1:]
				d.Flows = nil
			},
			"definition <process>: process has no start event",
		),
		Entry(
			"multiple start events",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{ID: "start2", Type: StartEvent})
			},
			"definition <process>: process has multiple start events",
		),
		Entry(
			"duplicate activity id",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{ID: "end", Type: EndEvent})
			},
			"definition <process>: activity end: duplicate id",
		),
		Entry(
			"unknown activity type",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{ID: "x", Type: "bogus"})
			},
			`definition <process>: activity x: unknown type "bogus"`,
		),
		Entry(
			"flow to unknown activity",
			func(d *Document) {
				d.Flows = append(d.Flows, FlowSpec{ID: "f2", From: "start", To: "missing"})
			},
			"definition <process>: f2 refers to unknown activity missing",
		),
		Entry(
			"flow out of an end event",
			func(d *Document) {
				d.Flows = append(d.Flows, FlowSpec{ID: "f2", From: "end", To: "start"})
			},
			"definition <process>: flow f2: end is an end event and can not have outgoing flows",
		),
		Entry(
			"duplicate flow id",
			func(d *Document) {
				d.Flows = append(d.Flows, FlowSpec{ID: "f1", From: "start", To: "end"})
			},
			"definition <process>: flow f1: duplicate id",
		),
		Entry(
			"default flow that is not outgoing",
			func(d *Document) {
				d.Activities[0].Default = "f9"
			},
			"definition <process>: activity start: default flow f9 is not an outgoing flow",
		),
		Entry(
			"script task without a script",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{ID: "s", Type: ScriptTask})
			},
			"definition <process>: activity s: script tasks require a script",
		),
		Entry(
			"timer with both duration and date",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{
					ID:    "t",
					Type:  TimerCatchEvent,
					Timer: &TimerSpec{Duration: "1h", Date: "2020-01-01T00:00:00Z"},
				})
			},
			"definition <process>: activity t: timer must specify either a duration or a date, not both",
		),
		Entry(
			"unattached boundary event",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{ID: "b", Type: BoundaryEvent})
			},
			"definition <process>: activity b: boundary events must be attached to an activity",
		),
		Entry(
			"boundary event attached to an event",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{
					ID:         "b",
					Type:       BoundaryEvent,
					AttachedTo: "end",
					Timer:      &TimerSpec{Duration: "1h"},
				})
			},
			"definition <process>: activity b: can not attach a boundary event to end",
		),
		Entry(
			"multi-instance gateway",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{
					ID:            "g",
					Type:          ExclusiveGateway,
					MultiInstance: &MultiInstanceSpec{Cardinality: "3"},
				})
			},
			"definition <process>: activity g: exclusiveGateway activities can not be multi-instance",
		),
		Entry(
			"multi-instance without cardinality or collection",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{
					ID:            "t",
					Type:          Task,
					MultiInstance: &MultiInstanceSpec{},
				})
			},
			"definition <process>: activity t: multi-instance requires exactly one of cardinality or collection",
		),
		Entry(
			"flow across scopes",
			func(d *Document) {
				d.Activities = append(d.Activities, ActivitySpec{
					ID:   "sub",
					Type: SubProcess,
					Activities: []ActivitySpec{
						{ID: "sub-start", Type: StartEvent},
					},
					Flows: []FlowSpec{
						{ID: "f2", From: "sub-start", To: "end"},
					},
				})
			},
			"definition <process>: f2 refers to end, which is in a different scope",
		),
	)
})

var _ = Describe("type Timer", func() {
	Describe("func DueDate()", func() {
		now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

		It("adds the duration to the current time", func() {
			t := &Timer{Duration: time.Hour}
			Expect(t.DueDate(now)).To(Equal(now.Add(time.Hour)))
		})

		It("returns the fixed date if one is set", func() {
			date := now.Add(48 * time.Hour)
			t := &Timer{Date: date}
			Expect(t.DueDate(now)).To(Equal(date))
		})
	})
})
