package expression_test

import (
	"context"

	. "github.com/dogmatiq/flowstate/expression"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Lua", func() {
	var (
		ctx       context.Context
		evaluator Lua
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("func Condition()", func() {
		DescribeTable(
			"it evaluates the expression against the variables",
			func(expr string, vars map[string]any, expect bool) {
				result, err := evaluator.Condition(ctx, expr, vars)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(result).To(Equal(expect))
			},
			Entry("numeric comparison", "amount > 100", map[string]any{"amount": 150.0}, true),
			Entry("integer variable", "count == 3", map[string]any{"count": 3}, true),
			Entry("string equality", `status == "approved"`, map[string]any{"status": "rejected"}, false),
			Entry("boolean variable", "approved", map[string]any{"approved": true}, true),
			Entry("undefined variable", "approved", nil, false),
			Entry("nested table", "order.total >= 10", map[string]any{"order": map[string]any{"total": 10.0}}, true),
			Entry("list length", "#items == 2", map[string]any{"items": []any{"a", "b"}}, true),
			Entry("typed list", "tags[2] == \"b\"", map[string]any{"tags": []string{"a", "b"}}, true),
		)

		It("returns an *Error if the expression is invalid", func() {
			_, err := evaluator.Condition(ctx, "amount >", nil)

			Expect(IsError(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring(`unable to evaluate "amount >"`)))
		})

		It("returns an *Error if the expression fails at runtime", func() {
			_, err := evaluator.Condition(ctx, "missing.field", nil)
			Expect(IsError(err)).To(BeTrue())
		})

		It("returns an error if the context is canceled", func() {
			ctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := evaluator.Condition(ctx, "true", nil)
			Expect(err).To(Equal(context.Canceled))
		})
	})

	Describe("func Number()", func() {
		It("returns the numeric result", func() {
			n, err := evaluator.Number(ctx, "#items * 2", map[string]any{"items": []any{1.0, 2.0, 3.0}})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(n).To(Equal(6.0))
		})

		It("returns an *Error if the result is not a number", func() {
			_, err := evaluator.Number(ctx, `"three"`, nil)
			Expect(err).To(MatchError(`unable to evaluate "\"three\"": expected a number, got string`))
		})
	})

	Describe("func Script()", func() {
		It("returns the variables assigned by the script", func() {
			vars, err := evaluator.Script(
				ctx,
				`
				local total = 0
				for _, item in ipairs(items) do
					total = total + item.price
				end
				return { total = total, approved = total < 100, tags = {"a", "b"} }
				`,
				map[string]any{
					"items": []any{
						map[string]any{"price": 20.0},
						map[string]any{"price": 30.5},
					},
				},
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(vars).To(Equal(map[string]any{
				"total":    50.5,
				"approved": true,
				"tags":     []any{"a", "b"},
			}))
		})

		It("returns no variables if the script returns nothing", func() {
			vars, err := evaluator.Script(ctx, "local x = 1", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(vars).To(BeEmpty())
		})

		It("returns an *Error if the script returns a non-table value", func() {
			_, err := evaluator.Script(ctx, "return 1", nil)
			Expect(err).To(MatchError(`unable to evaluate "return 1": expected the script to return a table, got number`))
		})

		It("does not expose the os library", func() {
			_, err := evaluator.Script(ctx, `os.exit(1)`, nil)
			Expect(IsError(err)).To(BeTrue())
		})

		It("returns an *Error if a variable has an unsupported type", func() {
			_, err := evaluator.Script(ctx, "return {}", map[string]any{"ch": make(chan int)})
			Expect(err).To(MatchError(ContainSubstring("variable ch: unsupported type chan int")))
		})
	})
})
