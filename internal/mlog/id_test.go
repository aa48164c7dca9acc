package mlog_test

import (
	. "github.com/dogmatiq/flowstate/internal/mlog"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func FormatID()", func() {
	It("shows the first 8 characters of a UUID", func() {
		Expect(FormatID("47d10297-8192-40c4-aa77-ad63e7d4a8cb")).To(Equal("47d10297"))
	})

	It("shows other IDs in full", func() {
		Expect(FormatID("<id>")).To(Equal("<id>"))
	})
})
