// Package clock abstracts time for the domain services so date-relative
// behaviour (due today, streaks, this week) can be tested.
package clock

import "time"

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in the local zone.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// StartOfDay returns midnight at the start of t's calendar day, in t's zone.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date, each read
// in its own zone.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
