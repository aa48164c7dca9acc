package event_test

import (
	"time"

	. "github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func ForEntity()", func() {
	now := time.Now()

	It("describes an inserted execution", func() {
		x := &persistence.Execution{
			ID:                  "<execution>",
			ProcessInstanceID:   "<instance>",
			ProcessDefinitionID: "<definition>",
			ActivityID:          "<activity>",
		}

		ev := ForEntity(persistence.Insert{Entity: x}, now)

		Expect(ev.Kind).To(Equal(EntityCreated))
		Expect(ev.Time).To(Equal(now))
		Expect(ev.ProcessInstanceID).To(Equal("<instance>"))
		Expect(ev.ProcessDefinitionID).To(Equal("<definition>"))
		Expect(ev.ExecutionID).To(Equal("<execution>"))
		Expect(ev.ActivityID).To(Equal("<activity>"))
		Expect(ev.Entity).To(Equal(x))
	})

	It("describes an updated job", func() {
		j := &persistence.Job{
			ID:                "<job>",
			ExecutionID:       "<execution>",
			ProcessInstanceID: "<instance>",
		}

		ev := ForEntity(persistence.Update{Entity: j}, now)

		Expect(ev.Kind).To(Equal(EntityUpdated))
		Expect(ev.JobID).To(Equal("<job>"))
		Expect(ev.ExecutionID).To(Equal("<execution>"))
	})

	It("describes a deleted task", func() {
		t := &persistence.Task{
			ID:          "<task>",
			ExecutionID: "<execution>",
			ActivityID:  "<activity>",
		}

		ev := ForEntity(persistence.Delete{Entity: t}, now)

		Expect(ev.Kind).To(Equal(EntityDeleted))
		Expect(ev.TaskID).To(Equal("<task>"))
		Expect(ev.ActivityID).To(Equal("<activity>"))
	})

	It("captures a snapshot of the entity", func() {
		x := &persistence.Execution{ID: "<execution>", ActivityID: "<before>"}

		ev := ForEntity(persistence.Update{Entity: x}, now)
		x.ActivityID = "<after>"

		Expect(ev.Entity.(*persistence.Execution).ActivityID).To(Equal("<before>"))
	})
})
