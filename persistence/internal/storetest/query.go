package storetest

import (
	"time"

	"github.com/dogmatiq/flowstate/persistence"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareQueryTests(tc *TestContext) {
	ginkgo.Describe("queries", func() {
		var now time.Time

		ginkgo.BeforeEach(func() {
			now = time.Now().Truncate(time.Millisecond).UTC()

			mustPersist(
				tc.Context,
				tc.Store,
				persistence.Insert{Entity: &persistence.Execution{ID: "<root-1>", ProcessInstanceID: "<root-1>", IsScope: true}},
				persistence.Insert{Entity: &persistence.Execution{ID: "<root-2>", ProcessInstanceID: "<root-2>", IsScope: true}},
				persistence.Insert{Entity: &persistence.Execution{ID: "<child-b>", ProcessInstanceID: "<root-1>", ParentID: "<root-1>", IsConcurrent: true}},
				persistence.Insert{Entity: &persistence.Execution{ID: "<child-a>", ProcessInstanceID: "<root-1>", ParentID: "<root-1>", IsConcurrent: true}},
				persistence.Insert{Entity: &persistence.Job{ID: "<job-late>", ExecutionID: "<child-a>", ProcessInstanceID: "<root-1>", DueDate: now.Add(-time.Second), Retries: 3}},
				persistence.Insert{Entity: &persistence.Job{ID: "<job-early>", ExecutionID: "<child-b>", ProcessInstanceID: "<root-1>", DueDate: now.Add(-time.Minute), Retries: 3}},
				persistence.Insert{Entity: &persistence.Job{ID: "<job-future>", ExecutionID: "<root-2>", ProcessInstanceID: "<root-2>", DueDate: now.Add(time.Hour), Retries: 3}},
				persistence.Insert{Entity: &persistence.Job{ID: "<job-dead>", ExecutionID: "<root-2>", ProcessInstanceID: "<root-2>", DueDate: now.Add(-time.Hour), Retries: 0}},
				persistence.Insert{Entity: &persistence.Job{ID: "<job-locked>", ExecutionID: "<root-2>", ProcessInstanceID: "<root-2>", DueDate: now.Add(-time.Hour), Retries: 1, LockOwner: "<owner>", LockExpirationTime: now.Add(time.Minute)}},
				persistence.Insert{Entity: &persistence.Task{ID: "<task>", ExecutionID: "<child-a>", ProcessInstanceID: "<root-1>"}},
			)
		})

		ginkgo.It("finds child executions by parent", func() {
			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindExecutions(tc.Context, persistence.ExecutionQuery{ParentID: "<root-1>"})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ids(result)).To(gomega.Equal([]string{"<child-a>", "<child-b>"}))
			})
		})

		ginkgo.It("finds executions by process instance", func() {
			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindExecutions(tc.Context, persistence.ExecutionQuery{ProcessInstanceID: "<root-1>"})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(result).To(gomega.HaveLen(3))
			})
		})

		ginkgo.It("finds acquirable jobs in due-date order", func() {
			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindJobs(tc.Context, persistence.JobQuery{AcquirableAt: now})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobIDs(result)).To(gomega.Equal([]string{"<job-early>", "<job-late>"}))
			})
		})

		ginkgo.It("limits the number of acquirable jobs", func() {
			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindJobs(tc.Context, persistence.JobQuery{AcquirableAt: now, Limit: 1})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobIDs(result)).To(gomega.Equal([]string{"<job-early>"}))
			})
		})

		ginkgo.It("finds dead jobs", func() {
			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindJobs(tc.Context, persistence.JobQuery{Dead: true})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobIDs(result)).To(gomega.Equal([]string{"<job-dead>"}))
			})
		})

		ginkgo.It("finds jobs by execution", func() {
			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindJobs(tc.Context, persistence.JobQuery{ExecutionID: "<root-2>"})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(result).To(gomega.HaveLen(3))
			})
		})

		ginkgo.It("finds tasks by execution", func() {
			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindTasks(tc.Context, persistence.TaskQuery{ExecutionID: "<child-a>"})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(result).To(gomega.HaveLen(1))
				gomega.Expect(result[0].ID).To(gomega.Equal("<task>"))
			})
		})

		ginkgo.It("stops returning jobs once they are locked", func() {
			e, _ := load(tc.Context, tc.Store, persistence.JobType, "<job-early>")
			j := e.(*persistence.Job)
			j.LockOwner = "<owner>"
			j.LockExpirationTime = now.Add(time.Minute)
			mustPersist(tc.Context, tc.Store, persistence.Update{Entity: j})

			read(tc.Context, tc.Store, func(tx persistence.Transaction) {
				result, err := tx.FindJobs(tc.Context, persistence.JobQuery{AcquirableAt: now})
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobIDs(result)).To(gomega.Equal([]string{"<job-late>"}))
			})
		})
	})
}

func ids(s []*persistence.Execution) []string {
	var r []string
	for _, x := range s {
		r = append(r, x.ID)
	}
	return r
}

func jobIDs(s []*persistence.Job) []string {
	var r []string
	for _, j := range s {
		r = append(r, j.ID)
	}
	return r
}
