package mlog_test

import (
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/event"
	. "github.com/dogmatiq/flowstate/internal/mlog"
	"github.com/dogmatiq/flowstate/persistence"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func LogJobStart()", func() {
	It("logs in the correct format", func() {
		logger := &logging.BufferedLogger{CaptureDebug: true}

		LogJobStart(
			logger,
			&persistence.Job{
				ID:                "<job>",
				ExecutionID:       "<execution>",
				ProcessInstanceID: "<instance>",
				Kind:              persistence.AsyncContinuationJob,
				HandlerType:       "<handler>",
			},
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "∵ <job>  = <execution>  ⋲ <instance>  ▼    async-continuation ● <handler>",
				IsDebug: true,
			},
		))
	})

	It("shows a retry icon if the job has failed before", func() {
		logger := &logging.BufferedLogger{CaptureDebug: true}

		LogJobStart(
			logger,
			&persistence.Job{
				ID:                "<job>",
				ExecutionID:       "<execution>",
				ProcessInstanceID: "<instance>",
				Kind:              persistence.TimerJob,
				HandlerType:       "<handler>",
				ExceptionMessage:  "<error>",
			},
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "∵ <job>  = <execution>  ⋲ <instance>  ▼ ↻  timer ● <handler>",
				IsDebug: true,
			},
		))
	})

	It("does not log if debug logging is disabled", func() {
		logger := &logging.BufferedLogger{}

		LogJobStart(logger, &persistence.Job{ID: "<job>"})

		Expect(logger.Messages()).To(BeEmpty())
	})
})

var _ = Describe("func LogJobFailure()", func() {
	It("logs in the correct format", func() {
		logger := &logging.BufferedLogger{}

		LogJobFailure(
			logger,
			&persistence.Job{
				ID:                "<job>",
				ExecutionID:       "<execution>",
				ProcessInstanceID: "<instance>",
				HandlerType:       "<handler>",
				Retries:           2,
			},
			errors.New("<error>"),
			10*time.Second,
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "∵ <job>  = <execution>  ⋲ <instance>  ▽ ✖  <handler> ● <error> ● 2 retries remaining, next retry in 10s",
			},
		))
	})
})

var _ = Describe("func LogJobDead()", func() {
	It("logs in the correct format", func() {
		logger := &logging.BufferedLogger{}

		LogJobDead(
			logger,
			&persistence.Job{
				ID:                "<job>",
				ExecutionID:       "<execution>",
				ProcessInstanceID: "<instance>",
				HandlerType:       "<handler>",
			},
			errors.New("<error>"),
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "∵ <job>  = <execution>  ⋲ <instance>  ▽ ✖  <handler> ● <error> ● no retries remaining",
			},
		))
	})
})

var _ = Describe("func LogCommandResult()", func() {
	It("logs a successful attempt", func() {
		logger := &logging.BufferedLogger{CaptureDebug: true}

		var err error
		LogCommandResult(logger, "<command>", 0, &err)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "⨀ 1       <command> ● command executed successfully",
				IsDebug: true,
			},
		))
	})

	It("logs a failed retry attempt", func() {
		logger := &logging.BufferedLogger{CaptureDebug: true}

		err := errors.New("<error>")
		LogCommandResult(logger, "<command>", 1, &err)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "⨀ 2  ↻ ✖  <command> ● <error>",
				IsDebug: true,
			},
		))
	})
})

var _ = Describe("func LogEvent()", func() {
	It("logs in the correct format", func() {
		logger := &logging.BufferedLogger{CaptureDebug: true}

		LogEvent(
			logger,
			event.Event{
				Kind:              event.ActivityStarted,
				ProcessInstanceID: "<instance>",
				ExecutionID:       "<execution>",
				ActivityID:        "<activity>",
			},
		)

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{
				Message: "⋲ <instance>  = <execution>  ▲ ≡  activity-started ● <activity>",
				IsDebug: true,
			},
		))
	})
})
