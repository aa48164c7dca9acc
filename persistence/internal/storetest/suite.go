package storetest

import (
	"context"
	"time"

	"github.com/dogmatiq/flowstate/persistence"
	"github.com/onsi/ginkgo/v2"
)

// Out is a container for values that are provided by the store-specific
// "before" function.
type Out struct {
	// Store is the store under test.
	Store persistence.Store

	// TestTimeout is the maximum duration allowed for each test.
	TestTimeout time.Duration
}

// DefaultTestTimeout is the default test timeout.
const DefaultTestTimeout = 3 * time.Second

// TestContext encapsulates the shared test context passed to the tests.
type TestContext struct {
	Context context.Context
	Store   persistence.Store
}

// Declare declares generic behavioral tests for a specific store
// implementation.
func Declare(
	before func(context.Context) Out,
	after func(),
) {
	tc := &TestContext{}

	ginkgo.Context("standard store test suite", func() {
		ginkgo.BeforeEach(func() {
			setupCtx, cancelSetup := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelSetup()

			out := before(setupCtx)

			if out.TestTimeout <= 0 {
				out.TestTimeout = DefaultTestTimeout
			}

			ctx, cancel := context.WithTimeout(context.Background(), out.TestTimeout)
			ginkgo.DeferCleanup(cancel)

			tc.Context = ctx
			tc.Store = out.Store
		})

		ginkgo.AfterEach(func() {
			if after != nil {
				after()
			}
		})

		declareStoreTests(tc)
		declareEntityTests(tc)
		declareConflictTests(tc)
		declareQueryTests(tc)
	})
}
