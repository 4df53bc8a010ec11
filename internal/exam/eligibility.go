package exam

import "time"

// CanStart decides whether user may begin an attempt on t at the given
// server time. It is a pure decision function over the supplied state:
// no store access, no clock reads, no side effects. Rules are evaluated
// in order and the first failing rule wins.
//
// The fourth gate of the start flow, returning an already-existing
// attempt instead of creating a duplicate, needs store state and lives
// in Service.Start.
func CanStart(t Test, user User, now time.Time) error {
	if t.Status != TestPublished {
		return &NotEligibleError{Reason: DenyNotPublished}
	}
	if !t.ClassAllowed(user.Class) {
		return &NotEligibleError{Reason: DenyClassNotAllowed}
	}
	if t.DueDate != nil && now.After(*t.DueDate) {
		return &NotEligibleError{Reason: DenyPastDue}
	}
	return nil
}
