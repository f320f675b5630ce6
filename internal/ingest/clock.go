// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"sync"
	"time"
)

// monotonicClock never returns a time earlier than one it already returned,
// even if the wall clock steps backwards.
type monotonicClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Now() time.Time {
	t := c.now().UTC()

	c.mu.Lock()
	defer c.mu.Unlock()

	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
