package persistence_test

import (
	"time"

	. "github.com/dogmatiq/flowstate/persistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Job", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Now()
	})

	Describe("func IsAcquirable()", func() {
		It("returns true for a due, unlocked job with retries remaining", func() {
			j := &Job{DueDate: now, Retries: 1}
			Expect(j.IsAcquirable(now)).To(BeTrue())
		})

		It("returns false if the job is not yet due", func() {
			j := &Job{DueDate: now.Add(time.Second), Retries: 1}
			Expect(j.IsAcquirable(now)).To(BeFalse())
		})

		It("returns false if the job is dead", func() {
			j := &Job{DueDate: now, Retries: 0}
			Expect(j.IsAcquirable(now)).To(BeFalse())
		})

		It("returns false if the job is suspended", func() {
			j := &Job{DueDate: now, Retries: 1, IsSuspended: true}
			Expect(j.IsAcquirable(now)).To(BeFalse())
		})

		It("returns false while the lock is held", func() {
			j := &Job{
				DueDate:            now,
				Retries:            1,
				LockOwner:          "<owner>",
				LockExpirationTime: now.Add(time.Minute),
			}
			Expect(j.IsAcquirable(now)).To(BeFalse())
		})

		It("returns true once the lock has expired", func() {
			j := &Job{
				DueDate:            now.Add(-time.Hour),
				Retries:            1,
				LockOwner:          "<owner>",
				LockExpirationTime: now.Add(-time.Minute),
			}
			Expect(j.IsAcquirable(now)).To(BeTrue())
		})
	})
})

var _ = Describe("type JobQuery", func() {
	Describe("func Matches()", func() {
		It("matches dead jobs only when requested", func() {
			q := JobQuery{Dead: true}
			Expect(q.Matches(&Job{Retries: 0})).To(BeTrue())
			Expect(q.Matches(&Job{Retries: 2})).To(BeFalse())
		})

		It("matches by execution", func() {
			q := JobQuery{ExecutionID: "<exec>"}
			Expect(q.Matches(&Job{ExecutionID: "<exec>"})).To(BeTrue())
			Expect(q.Matches(&Job{ExecutionID: "<other>"})).To(BeFalse())
		})
	})

	Describe("func LimitJobs()", func() {
		It("truncates the result", func() {
			q := JobQuery{Limit: 1}
			Expect(q.LimitJobs([]*Job{{ID: "1"}, {ID: "2"}})).To(HaveLen(1))
		})
	})
})
