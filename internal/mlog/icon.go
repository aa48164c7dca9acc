package mlog

import (
	"fmt"
	"io"

	"github.com/dogmatiq/iago/must"
)

const (
	// InstanceIDIcon is the icon shown directly before a process instance ID.
	// It is the mathematical "member of set" symbol, indicating that the
	// subject of the log message belongs to the displayed process instance.
	InstanceIDIcon Icon = "⋲"

	// ExecutionIDIcon is the icon shown directly before an execution ID. It is
	// an "equals sign", indicating that the subject "is exactly" the displayed
	// execution.
	ExecutionIDIcon Icon = "="

	// JobIDIcon is the icon shown directly before a job ID. It is the
	// mathematical "because" symbol, indicating that the work is happening
	// "because of" the displayed job.
	JobIDIcon Icon = "∵"

	// CommandIcon is the icon shown directly before the name of a command. It
	// is a circle with a dot in the center, intended to be reminiscent of an
	// electron circling a nucleus, indicating "atomicity".
	CommandIcon Icon = "⨀"

	// ConsumeIcon is the icon shown to indicate that a job is being executed.
	// It is a downward pointing arrow, as the job is "pulled" from the store.
	ConsumeIcon Icon = "▼"

	// ConsumeErrorIcon is a variant of ConsumeIcon used when there is an error
	// condition. It is an hollow version of the regular consume icon,
	// indicating that the requirement remains "unfulfilled".
	ConsumeErrorIcon Icon = "▽"

	// ProduceIcon is the icon shown to indicate that an event is being
	// published. It is an upward pointing arrow, as events are "pushed" to
	// observers.
	ProduceIcon Icon = "▲"

	// RetryIcon is an icon used when a job or command is being re-attempted.
	// It is an open-circle with an arrow, indicating that the work has "come
	// around again".
	RetryIcon Icon = "↻"

	// ErrorIcon is the icon shown when logging information about an error.
	// It is a heavy cross, indicating a failure.
	ErrorIcon Icon = "✖"

	// ProcessIcon is the icon shown when a log message relates to a process
	// instance. It is three horizontal lines, representing the steps in a
	// process.
	ProcessIcon Icon = "≡"

	// TimerIcon is the icon shown when a log message relates to a timer job.
	// It is the "clockwise open circle arrow", representing the passing of
	// time.
	TimerIcon Icon = "⟳"

	// SystemIcon is an icon shown when a log message relates to the internals
	// of the engine. It is a sprocket, representing the inner workings of the
	// machine.
	SystemIcon Icon = "⚙"

	// SeparatorIcon is an icon used to separate strings of unrelated text
	// inside a log message. It is a large bullet, intended to have a large
	// visual impact.
	SeparatorIcon Icon = "●"
)

// Icon is a unicode symbol used as an icon in log messages.
type Icon string

func (i Icon) String() string {
	return string(i)
}

// WriteTo writes a string representation of the icon to w.
// If i is the zero-value, a single space is rendered.
func (i Icon) WriteTo(w io.Writer) (int64, error) {
	s := i.String()
	if i == "" {
		s = " "
	}

	n, err := io.WriteString(w, s)
	return int64(n), err
}

// WithLabel return an IconWithLabel containing this icon and the given label.
func (i Icon) WithLabel(f string, v ...interface{}) IconWithLabel {
	return IconWithLabel{
		i,
		formatLabel(fmt.Sprintf(f, v...)),
	}
}

// WithID return an IconWithLabel containing this icon and an ID as its label.
//
// The id is formatted using FormatID().
func (i Icon) WithID(id string) IconWithLabel {
	return i.WithLabel("%s", FormatID(id))
}

// IconWithLabel is a container for an icon and its associated text label.
type IconWithLabel struct {
	Icon  Icon
	Label string
}

func (i IconWithLabel) String() string {
	return i.Icon.String() + " " + i.Label
}

// WriteTo writes a string representation of the icon and its label to w.
func (i IconWithLabel) WriteTo(w io.Writer) (_ int64, err error) {
	defer must.Recover(&err)

	n := must.WriteTo(w, i.Icon)
	n += must.Write(w, space1)
	n += must.WriteString(w, i.Label)

	return int64(n), err
}

// formatLabel formats a label for display.
func formatLabel(label string) string {
	if label == "" {
		return "-"
	}

	return label
}
