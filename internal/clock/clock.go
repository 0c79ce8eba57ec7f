// Package clock supplies the server-authoritative date and time. Callers must
// never derive "today" from client-supplied data.
package clock

import (
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date (YYYY-MM-DD) in the clock's timezone.
type Date string

func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) String() string { return string(d) }

type Clock interface {
	// Now returns the current timestamp in the clock's timezone.
	Now() time.Time
	// Today returns the current calendar date in the clock's timezone.
	Today() Date
}

// System reads the host clock and converts it to a fixed timezone.
type System struct {
	loc *time.Location
}

func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

func (s *System) Now() time.Time { return time.Now().In(s.loc) }

func (s *System) Today() Date { return DateOf(s.Now()) }

func (s *System) Location() *time.Location { return s.loc }

// Manual is a settable clock for tests and replays.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Today() Date { return DateOf(m.Now()) }

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
