package exam

import "errors"

var (
	ErrTestNotFound      = errors.New("test not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrQuestionNotInTest = errors.New("question not in test")

	// ErrAttemptClosed rejects mutation of a submitted or graded attempt.
	ErrAttemptClosed = errors.New("attempt closed")
	// ErrAttemptExpired reports a deadline miss; the attempt is
	// auto-submitted as a side effect before this is returned.
	ErrAttemptExpired = errors.New("attempt expired")
	// ErrAttemptNotGraded rejects a results read before grading.
	ErrAttemptNotGraded = errors.New("attempt not graded")

	// ErrVersionConflict means a concurrent writer updated the attempt
	// first; callers re-read and decide (e.g. duplicate submit).
	ErrVersionConflict = errors.New("attempt version conflict")

	// ErrTestNotEditable rejects structural edits outside draft status.
	ErrTestNotEditable = errors.New("test not editable")
	// ErrBadTransition rejects non-monotonic test status changes.
	ErrBadTransition = errors.New("invalid test status transition")
	// ErrNotOwner rejects teacher operations on tests owned by someone else.
	ErrNotOwner = errors.New("not the test owner")

	// ErrNotEligible is the umbrella for start denials; the concrete
	// reason travels in NotEligibleError.
	ErrNotEligible = errors.New("not eligible")
)

// Denial enumerates the reasons a start request can be refused.
type Denial string

const (
	DenyNotPublished    Denial = "not_published"
	DenyClassNotAllowed Denial = "class_not_allowed"
	DenyPastDue         Denial = "past_due"
)

// NotEligibleError carries the first gating rule that failed.
type NotEligibleError struct {
	Reason Denial
}

func (e *NotEligibleError) Error() string { return "not eligible: " + string(e.Reason) }

// Is makes errors.Is(err, ErrNotEligible) match any denial.
func (e *NotEligibleError) Is(target error) bool { return target == ErrNotEligible }
