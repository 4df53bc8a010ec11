package exam

import (
	"time"

	"github.com/schoolmark/schoolmark/internal/grading"
)

// Test lifecycle. Transitions are monotonic: draft -> published -> completed.
const (
	TestDraft     = "draft"
	TestPublished = "published"
	TestCompleted = "completed"
)

// Attempt lifecycle. "Not started" is the absence of a record.
const (
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
	AttemptGraded     = "graded"
)

// Class identifies a school class, e.g. 9 "B".
type Class struct {
	Number int    `json:"class_number"`
	Letter string `json:"class_letter"`
}

type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type Question struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"` // grading.TypeSingleChoice | TypeMultiChoice | TypeFreeText
	Text    string   `json:"text"`
	Options []Option `json:"options,omitempty"`
	// Expected holds accepted free-text answers; unused for choice types.
	Expected []string `json:"expected,omitempty"`
}

// CorrectIDs returns the option ids flagged correct, in option order.
func (q Question) CorrectIDs() []string {
	var ids []string
	for _, o := range q.Options {
		if o.Correct {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// GradingView projects the question into the scoring engine's input shape.
func (q Question) GradingView() grading.Q {
	return grading.Q{Type: q.Type, CorrectIDs: q.CorrectIDs(), Expected: q.Expected}
}

type Test struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	TimeLimitSec   int        `json:"time_limit_sec,omitempty"` // 0 = no time limit
	Status         string     `json:"status"`
	CreatorID      string     `json:"creator_id"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	AllowedClasses []Class    `json:"allowed_classes,omitempty"` // empty = unrestricted
	Questions      []Question `json:"questions"`
	CreatedAt      int64      `json:"created_at,omitempty"`
}

// ClassAllowed reports whether c may take this test. An empty allow-list
// means unrestricted.
func (t Test) ClassAllowed(c Class) bool {
	if len(t.AllowedClasses) == 0 {
		return true
	}
	for _, a := range t.AllowedClasses {
		if a == c {
			return true
		}
	}
	return false
}

// Question returns the question with the given id, if it belongs to the test.
func (t Test) Question(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// StudentView returns a copy with correct-option flags and expected
// answers stripped, safe to serve to test takers.
func (t Test) StudentView() Test {
	out := t
	out.Questions = make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		sq := q
		sq.Expected = nil
		sq.Options = make([]Option, len(q.Options))
		for j, o := range q.Options {
			sq.Options[j] = Option{ID: o.ID, Text: o.Text}
		}
		out.Questions[i] = sq
	}
	return out
}

type Attempt struct {
	ID          string     `json:"id"`
	TestID      string     `json:"test_id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	// Percentage is set iff Status == AttemptGraded; range [0,100].
	Percentage *float64 `json:"percentage,omitempty"`
	// Version guards concurrent writes to the same attempt record.
	Version int64 `json:"-"`
}

// Answer is the recorded response of one attempt to one question,
// unique per (attempt, question). Score fields are written only by the
// scoring engine, never taken from the client.
type Answer struct {
	AttemptID         string   `json:"attempt_id"`
	QuestionID        string   `json:"question_id"`
	SelectedOptionIDs []string `json:"selected_option_ids,omitempty"`
	SelectedText      string   `json:"selected_text,omitempty"`
	IsCorrect         bool     `json:"is_correct"`
	PartialCredit     float64  `json:"partial_credit"`
	// Anomaly carries a scoring failure localized to this question
	// (e.g. malformed answer key), surfaced so the teacher can see it.
	Anomaly string `json:"anomaly,omitempty"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	PassHash string `json:"-"`
	Role     string `json:"role"` // student | teacher | admin
	Class    Class  `json:"class"`
	// Criteria is the teacher's grading configuration, consulted when
	// scoring attempts of tests they created. Nil means defaults.
	Criteria *grading.Criteria `json:"criteria,omitempty"`
}
