package tracing_test

import (
	"context"

	. "github.com/dogmatiq/flowstate/internal/tracing"
	"github.com/dogmatiq/flowstate/persistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func CommandAttributes()", func() {
	It("returns one-based attempt numbers", func() {
		Expect(CommandAttributes("<command>", 0, true)).To(ConsistOf(
			CommandNameKey.String("<command>"),
			CommandAttemptKey.Int(1),
			CommandRetryableKey.Bool(true),
		))
	})
})

var _ = Describe("func JobAttributes()", func() {
	It("describes the job", func() {
		attrs := JobAttributes(&persistence.Job{
			ID:                "<job>",
			Kind:              persistence.TimerJob,
			HandlerType:       "<handler>",
			Retries:           3,
			ExecutionID:       "<execution>",
			ProcessInstanceID: "<instance>",
		})

		Expect(attrs).To(ContainElements(
			JobIDKey.String("<job>"),
			JobKindKey.String("timer"),
			JobRetriesKey.Int(3),
			ExecutionIDKey.String("<execution>"),
		))
	})
})

var _ = Describe("func Setup()", func() {
	It("returns a no-op shutdown function when no endpoint is configured", func() {
		shutdown, err := Setup(context.Background(), "<service>", "")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(shutdown(context.Background())).To(Succeed())
	})
})
