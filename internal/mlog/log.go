package mlog

import (
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/event"
	"github.com/dogmatiq/flowstate/persistence"
)

// LogJobStart logs a debug message indicating that a job is being executed.
func LogJobStart(
	log logging.Logger,
	j *persistence.Job,
) {
	if !logging.IsDebug(log) {
		return
	}

	logging.DebugString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				ConsumeIcon,
				retryIcon(j),
			},
			string(j.Kind),
			j.HandlerType,
		),
	)
}

// LogJobFailure logs a message indicating that a job failed and has been
// rescheduled.
func LogJobFailure(
	log logging.Logger,
	j *persistence.Job,
	cause error,
	delay time.Duration,
) {
	logging.LogString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				ConsumeErrorIcon,
				ErrorIcon,
			},
			j.HandlerType,
			cause.Error(),
			fmt.Sprintf("%d retries remaining, next retry in %s", j.Retries, delay),
		),
	)
}

// LogJobDead logs a message indicating that a job failed and has exhausted its
// retries.
func LogJobDead(
	log logging.Logger,
	j *persistence.Job,
	cause error,
) {
	logging.LogString(
		log,
		String(
			jobIDs(j),
			[]Icon{
				ConsumeErrorIcon,
				ErrorIcon,
			},
			j.HandlerType,
			cause.Error(),
			"no retries remaining",
		),
	)
}

// LogCommandResult logs a debug message describing the result of a single
// attempt of a command.
//
// It is designed to be used with defer.
func LogCommandResult(
	log logging.Logger,
	name string,
	attempt uint,
	err *error,
) {
	if !logging.IsDebug(log) {
		return
	}

	if p := recover(); p != nil {
		// We don't want to log anything if there was a panic.
		panic(p)
	}

	messages := []string{name}

	if *err != nil {
		messages = append(messages, (*err).Error())
	} else {
		messages = append(messages, "command executed successfully")
	}

	logging.DebugString(
		log,
		String(
			[]IconWithLabel{
				CommandIcon.WithLabel("%d", attempt+1),
			},
			[]Icon{
				attemptIcon(attempt),
				errorIcon(*err),
			},
			messages...,
		),
	)
}

// LogEvent logs a debug message indicating that a lifecycle event is being
// published.
func LogEvent(
	log logging.Logger,
	ev event.Event,
) {
	if !logging.IsDebug(log) {
		return
	}

	logging.DebugString(
		log,
		String(
			[]IconWithLabel{
				InstanceIDIcon.WithID(ev.ProcessInstanceID),
				ExecutionIDIcon.WithID(ev.ExecutionID),
			},
			[]Icon{
				ProduceIcon,
				ProcessIcon,
			},
			string(ev.Kind),
			ev.ActivityID,
			ev.Message,
		),
	)
}

func jobIDs(j *persistence.Job) []IconWithLabel {
	return []IconWithLabel{
		JobIDIcon.WithID(j.ID),
		ExecutionIDIcon.WithID(j.ExecutionID),
		InstanceIDIcon.WithID(j.ProcessInstanceID),
	}
}

func errorIcon(err error) Icon {
	if err == nil {
		return ""
	}

	return ErrorIcon
}

func attemptIcon(n uint) Icon {
	if n == 0 {
		return ""
	}

	return RetryIcon
}

func retryIcon(j *persistence.Job) Icon {
	if j.Kind == persistence.TimerJob && j.ExceptionMessage == "" {
		return TimerIcon
	}

	if j.ExceptionMessage == "" {
		return ""
	}

	return RetryIcon
}
