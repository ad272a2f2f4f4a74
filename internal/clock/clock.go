package clock

import (
	"sync"
	"time"
)

// Clock is the only source of "now" for the scheduling core. Every value it
// returns is expressed in the clinic's configured zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type zoneClock struct {
	loc *time.Location
}

// New returns a wall clock bound to loc.
func New(loc *time.Location) Clock {
	return zoneClock{loc: loc}
}

func (c zoneClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c zoneClock) Location() *time.Location { return c.loc }

// Fixed is a settable clock used by tests and simulations.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now, loc: now.Location()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fixed) Location() *time.Location { return f.loc }

func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.In(f.loc)
	f.mu.Unlock()
}

func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
