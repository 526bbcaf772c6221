package calendar

import (
	"sync"
	"time"
)

// CalendarCache holds the primary calendar lookup for a short while so a
// multi-day run does not hit the provider once per day.
type CalendarCache struct {
	mu        sync.RWMutex
	calendar  *Calendar
	fetchedAt time.Time
	ttl       time.Duration
}

func NewCalendarCache(ttl time.Duration) *CalendarCache {
	return &CalendarCache{ttl: ttl}
}

func (c *CalendarCache) Get() (Calendar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.calendar == nil || time.Since(c.fetchedAt) > c.ttl {
		return Calendar{}, false
	}
	return *c.calendar, true
}

func (c *CalendarCache) Set(cal Calendar) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calendar = &cal
	c.fetchedAt = time.Now()
}
