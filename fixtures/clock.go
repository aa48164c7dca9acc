package fixtures

import (
	"sync"
	"time"
)

// Epoch is the time at which each Clock starts.
var Epoch = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

// Clock is a manually advanced clock.
type Clock struct {
	m   sync.Mutex
	now time.Time
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.m.Lock()
	defer c.m.Unlock()

	if c.now.IsZero() {
		c.now = Epoch
	}

	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.now.IsZero() {
		c.now = Epoch
	}

	c.now = c.now.Add(d)
}
