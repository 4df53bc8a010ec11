package exam

import "time"

// Deadline returns the authoritative cutoff for an attempt: whichever of
// startedAt+timeLimit and the test due date comes first. Nil means the
// attempt never expires on time alone. The server clock is the only
// clock consulted; client countdowns are advisory.
func Deadline(t Test, a Attempt) *time.Time {
	var d *time.Time
	if t.TimeLimitSec > 0 {
		v := a.StartedAt.Add(time.Duration(t.TimeLimitSec) * time.Second)
		d = &v
	}
	if t.DueDate != nil && (d == nil || t.DueDate.Before(*d)) {
		d = t.DueDate
	}
	return d
}

// Expired reports whether the attempt may no longer accept writes at
// now. Recording requires now to be strictly before the deadline, so
// the deadline instant itself is already expired.
func Expired(t Test, a Attempt, now time.Time) bool {
	d := Deadline(t, a)
	return d != nil && !now.Before(*d)
}
