package mlog_test

import (
	"strings"

	. "github.com/dogmatiq/flowstate/internal/mlog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var entries = []TableEntry{
	Entry(
		"renders a standard log message",
		"∵ 123  = 456  ⋲ 789  ▼ ↻  <foo> ● <bar>",
		[]IconWithLabel{
			JobIDIcon.WithLabel("123"),
			ExecutionIDIcon.WithLabel("456"),
			InstanceIDIcon.WithLabel("789"),
		},
		[]Icon{
			ConsumeIcon,
			RetryIcon,
		},
		[]string{
			"<foo>",
			"<bar>",
		},
	),
	Entry(
		"renders a hyphen in place of empty labels",
		"∵ 123  = 456  ⋲ -  ▼    <foo> ● <bar>",
		[]IconWithLabel{
			JobIDIcon.WithLabel("123"),
			ExecutionIDIcon.WithLabel("456"),
			InstanceIDIcon.WithLabel(""),
		},
		[]Icon{
			ConsumeIcon,
			"",
		},
		[]string{
			"<foo>",
			"<bar>",
		},
	),
	Entry(
		"skips empty text",
		"∵ 123  = 456  ⋲ 789  ▼    <foo> ● <bar>",
		[]IconWithLabel{
			JobIDIcon.WithLabel("123"),
			ExecutionIDIcon.WithLabel("456"),
			InstanceIDIcon.WithLabel("789"),
		},
		[]Icon{
			ConsumeIcon,
			"",
		},
		[]string{
			"<foo>",
			"",
			"<bar>",
		},
	),
}

var _ = DescribeTable(
	"func String()",
	func(expected string, ids []IconWithLabel, icons []Icon, text []string) {
		Expect(String(ids, icons, text...)).To(Equal(expected))
	},
	entries,
)

var _ = DescribeTable(
	"func Write()",
	func(expected string, ids []IconWithLabel, icons []Icon, text []string) {
		w := &strings.Builder{}
		n, err := Write(w, ids, icons, text...)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(w.String()).To(Equal(expected))
		Expect(n).To(Equal(len(expected)))
	},
	entries,
)
