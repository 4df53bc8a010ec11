package exam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/schoolmark/schoolmark/internal/grading"
)

type fixture struct {
	svc   *Service
	store Store
	now   time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: NewInMemoryStore(),
		now:   time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.store, grading.NewEngine(), WithClock(func() time.Time { return f.now }))

	ctx := context.Background()
	users := []User{
		{ID: "teacher-1", Username: "ivanova", Role: "teacher"},
		{ID: "student-1", Username: "petrov", Role: "student", Class: Class{Number: 9, Letter: "B"}},
		{ID: "student-2", Username: "sidorova", Role: "student", Class: Class{Number: 9, Letter: "B"}},
		{ID: "student-3", Username: "orlov", Role: "student", Class: Class{Number: 9, Letter: "B"}},
	}
	for _, u := range users {
		if err := f.store.PutUser(ctx, u); err != nil {
			t.Fatalf("PutUser: %v", err)
		}
	}
	return f
}

// seedTest stores a published three-question test: single choice (q1,
// correct o2), multi choice (q2, correct o1+o3), free text (q3).
func (f *fixture) seedTest(t *testing.T, mutate func(*Test)) Test {
	t.Helper()
	test := Test{
		ID:           "test-1",
		Title:        "Biology basics",
		Status:       TestPublished,
		CreatorID:    "teacher-1",
		TimeLimitSec: 600,
		Questions: []Question{
			{ID: "q1", Type: grading.TypeSingleChoice, Text: "Pick one", Options: []Option{
				{ID: "o1", Text: "wrong"},
				{ID: "o2", Text: "right", Correct: true},
			}},
			{ID: "q2", Type: grading.TypeMultiChoice, Text: "Pick all", Options: []Option{
				{ID: "o1", Text: "a", Correct: true},
				{ID: "o2", Text: "b"},
				{ID: "o3", Text: "c", Correct: true},
			}},
			{ID: "q3", Type: grading.TypeFreeText, Text: "Name it", Expected: []string{"mitochondria"}},
		},
	}
	if mutate != nil {
		mutate(&test)
	}
	if err := f.store.PutTest(context.Background(), test); err != nil {
		t.Fatalf("PutTest: %v", err)
	}
	return test
}

func TestStartDenials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedTest(t, func(tt *Test) { tt.Status = TestDraft })
	_, err := f.svc.Start(ctx, "test-1", "student-1")
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("draft test: want not-eligible, got %v", err)
	}

	f.seedTest(t, func(tt *Test) { tt.AllowedClasses = []Class{{10, "A"}} })
	_, err = f.svc.Start(ctx, "test-1", "student-1")
	var denial *NotEligibleError
	if !errors.As(err, &denial) || denial.Reason != DenyClassNotAllowed {
		t.Fatalf("wrong class: got %v", err)
	}

	past := f.now.Add(-time.Minute)
	f.seedTest(t, func(tt *Test) { tt.DueDate = &past })
	_, err = f.svc.Start(ctx, "test-1", "student-1")
	if !errors.As(err, &denial) || denial.Reason != DenyPastDue {
		t.Fatalf("past due: got %v", err)
	}
}

func TestStartIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedTest(t, nil)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, "test-1", "student-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := f.svc.Start(ctx, "test-1", "student-1")
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("second start created a new attempt: %s vs %s", first.ID, second.ID)
	}

	// A second student gets their own attempt.
	other, err := f.svc.Start(ctx, "test-1", "student-2")
	if err != nil {
		t.Fatalf("Start other student: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different students must not share an attempt")
	}
}

func TestStartGatesBeforeIdempotentReturn(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(time.Hour)
	f.seedTest(t, func(tt *Test) { tt.DueDate = &due })
	ctx := context.Background()

	a, err := f.svc.Start(ctx, "test-1", "student-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(ctx, a.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Once the due date has passed, a repeat start is denied rather
	// than handing back the finished attempt.
	f.advance(2 * time.Hour)
	var denial *NotEligibleError
	if _, err := f.svc.Start(ctx, "test-1", "student-1"); !errors.As(err, &denial) || denial.Reason != DenyPastDue {
		t.Errorf("start past due with existing attempt: got %v, want past-due denial", err)
	}

	// Same for a test its teacher closed in the meantime.
	f2 := newFixture(t)
	f2.seedTest(t, nil)
	b, _ := f2.svc.Start(ctx, "test-1", "student-1")
	if _, err := f2.svc.Submit(ctx, b.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := f2.svc.CompleteTest(ctx, "teacher-1", "test-1"); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	if _, err := f2.svc.Start(ctx, "test-1", "student-1"); !errors.As(err, &denial) || denial.Reason != DenyNotPublished {
		t.Errorf("start on completed test with existing attempt: got %v, want not-published denial", err)
	}
}

func TestSubmitFlow(t *testing.T) {
	f := newFixture(t)
	f.seedTest(t, nil)
	ctx := context.Background()

	a, err := f.svc.Start(ctx, "test-1", "student-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	record := func(q string, in AnswerInput) {
		t.Helper()
		if err := f.svc.RecordAnswer(ctx, a.ID, q, in); err != nil {
			t.Fatalf("RecordAnswer %s: %v", q, err)
		}
	}
	record("q1", AnswerInput{OptionIDs: []string{"o1"}})
	// Replacing an answer upserts, never duplicates.
	record("q1", AnswerInput{OptionIDs: []string{"o2"}})
	record("q2", AnswerInput{OptionIDs: []string{"o1", "o2"}})
	record("q3", AnswerInput{Text: " Mitochondria "})

	res, err := f.svc.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// q1 correct, q2 wrong (exact-set default), q3 correct: 2/3.
	if res.Percentage != 66.67 {
		t.Errorf("percentage = %v, want 66.67", res.Percentage)
	}
	if len(res.PerQuestion) != 3 {
		t.Fatalf("per-question entries = %d, want 3", len(res.PerQuestion))
	}
	for _, qr := range res.PerQuestion {
		if qr.PartialCredit < 0 || qr.PartialCredit > 1 {
			t.Errorf("question %s credit out of range: %v", qr.QuestionID, qr.PartialCredit)
		}
	}

	stored, err := f.store.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if stored.Status != AttemptGraded {
		t.Errorf("status = %s, want graded", stored.Status)
	}
	if stored.Percentage == nil || *stored.Percentage != 66.67 {
		t.Errorf("stored percentage = %v", stored.Percentage)
	}
	if stored.SubmittedAt == nil {
		t.Error("submitted_at not set")
	}

	// Mutating a graded attempt is rejected, never silently accepted.
	if err := f.svc.RecordAnswer(ctx, a.ID, "q1", AnswerInput{OptionIDs: []string{"o1"}}); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("record after grade: got %v, want ErrAttemptClosed", err)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedTest(t, nil)
	ctx := context.Background()

	a, _ := f.svc.Start(ctx, "test-1", "student-1")
	_ = f.svc.RecordAnswer(ctx, a.ID, "q1", AnswerInput{OptionIDs: []string{"o2"}})

	first, err := f.svc.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := f.svc.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("duplicate Submit: %v", err)
	}
	if first.Percentage != second.Percentage {
		t.Errorf("duplicate submit changed percentage: %v vs %v", first.Percentage, second.Percentage)
	}
	answers, _ := f.store.ListAnswers(ctx, a.ID)
	if len(answers) != 1 {
		t.Errorf("answer set grew on duplicate submit: %d rows", len(answers))
	}
}

func TestUnansweredScoreZeroNotNull(t *testing.T) {
	f := newFixture(t)
	f.seedTest(t, nil)
	ctx := context.Background()

	a, _ := f.svc.Start(ctx, "test-1", "student-1")
	res, err := f.svc.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("Submit with no answers: %v", err)
	}
	if res.Percentage != 0 {
		t.Errorf("percentage = %v, want 0", res.Percentage)
	}
	if len(res.PerQuestion) != 3 {
		t.Fatalf("aggregation must cover all questions, got %d", len(res.PerQuestion))
	}
	for _, qr := range res.PerQuestion {
		if qr.IsCorrect || qr.PartialCredit != 0 {
			t.Errorf("unanswered %s scored %+v", qr.QuestionID, qr)
		}
	}
}

func TestExpiryAutoSubmit(t *testing.T) {
	f := newFixture(t)
	f.seedTest(t, nil) // 600s limit
	ctx := context.Background()

	a, _ := f.svc.Start(ctx, "test-1", "student-1")
	f.advance(300 * time.Second)
	if err := f.svc.RecordAnswer(ctx, a.ID, "q1", AnswerInput{OptionIDs: []string{"o2"}}); err != nil {
		t.Fatalf("record within limit: %v", err)
	}

	f.advance(301 * time.Second) // t0 + 601s
	err := f.svc.RecordAnswer(ctx, a.ID, "q2", AnswerInput{OptionIDs: []string{"o1", "o3"}})
	if !errors.Is(err, ErrAttemptExpired) {
		t.Fatalf("record past deadline: got %v, want ErrAttemptExpired", err)
	}

	// Auto-submit used only the answers present before the deadline.
	stored, _ := f.store.GetAttempt(ctx, a.ID)
	if stored.Status != AttemptGraded {
		t.Fatalf("status = %s, want graded after auto-submit", stored.Status)
	}
	if stored.Percentage == nil || *stored.Percentage != 33.33 {
		t.Errorf("percentage = %v, want 33.33 (only q1 answered in time)", stored.Percentage)
	}

	// The late answer is gone for good.
	if err := f.svc.RecordAnswer(ctx, a.ID, "q2", AnswerInput{OptionIDs: []string{"o1", "o3"}}); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("record after auto-submit: got %v, want ErrAttemptClosed", err)
	}
	res, err := f.svc.Results(ctx, a.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	for _, qr := range res.PerQuestion {
		if qr.QuestionID == "q2" && qr.PartialCredit != 0 {
			t.Error("answer arriving after expiry must not count")
		}
	}
}

func TestResultsBeforeGrading(t *testing.T) {
	f := newFixture(t)
	f.seedTest(t, nil)
	ctx := context.Background()

	a, _ := f.svc.Start(ctx, "test-1", "student-1")
	if _, err := f.svc.Results(ctx, a.ID); !errors.Is(err, ErrAttemptNotGraded) {
		t.Errorf("results on in-progress attempt: got %v", err)
	}
}

func TestCriteriaComeFromTestOwner(t *testing.T) {
	f := newFixture(t)
	f.seedTest(t, nil)
	ctx := context.Background()

	// The owning teacher enables partial credit for multi-choice.
	teacher, _ := f.store.GetUser(ctx, "teacher-1")
	teacher.Criteria = &grading.Criteria{PartialCreditMulti: true, MultiCorrectThreshold: 1}
	if err := f.store.PutUser(ctx, teacher); err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	a, _ := f.svc.Start(ctx, "test-1", "student-1")
	// q2 correct {o1,o3}, selected {o1,o2}: credit 1/3.
	_ = f.svc.RecordAnswer(ctx, a.ID, "q2", AnswerInput{OptionIDs: []string{"o1", "o2"}})
	res, err := f.svc.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// (0 + 1/3 + 0) / 3 = 11.11%
	if res.Percentage != 11.11 {
		t.Errorf("percentage = %v, want 11.11", res.Percentage)
	}
}

func TestScoringAnomalyIsLocalized(t *testing.T) {
	f := newFixture(t)
	// q1 is broken: no option flagged correct.
	f.seedTest(t, func(tt *Test) { tt.Questions[0].Options[1].Correct = false })
	ctx := context.Background()

	a, _ := f.svc.Start(ctx, "test-1", "student-1")
	_ = f.svc.RecordAnswer(ctx, a.ID, "q1", AnswerInput{OptionIDs: []string{"o2"}})
	_ = f.svc.RecordAnswer(ctx, a.ID, "q3", AnswerInput{Text: "mitochondria"})

	res, err := f.svc.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("a malformed question must not abort the scoring pass: %v", err)
	}
	var sawAnomaly bool
	for _, qr := range res.PerQuestion {
		if qr.QuestionID == "q1" {
			if qr.Anomaly == "" {
				t.Error("broken question should surface an anomaly")
			}
			if qr.PartialCredit != 0 {
				t.Error("broken question should score zero")
			}
			sawAnomaly = true
		}
	}
	if !sawAnomaly {
		t.Fatal("q1 missing from per-question results")
	}
	if res.Percentage != 33.33 {
		t.Errorf("percentage = %v, want 33.33 (q3 only)", res.Percentage)
	}
}

func TestPublishTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, err := f.svc.CreateTest(ctx, Test{Title: "Draft quiz"}, "teacher-1")
	if err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	if created.Status != TestDraft {
		t.Fatalf("new test status = %s", created.Status)
	}

	if _, err := f.svc.CompleteTest(ctx, "teacher-1", created.ID); !errors.Is(err, ErrBadTransition) {
		t.Errorf("draft -> completed should be rejected, got %v", err)
	}
	if _, err := f.svc.PublishTest(ctx, "teacher-2", created.ID); !errors.Is(err, ErrNotOwner) {
		t.Errorf("foreign publish: got %v", err)
	}
	if _, err := f.svc.PublishTest(ctx, "teacher-1", created.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := f.svc.PublishTest(ctx, "teacher-1", created.ID); !errors.Is(err, ErrBadTransition) {
		t.Errorf("double publish: got %v", err)
	}
	if _, err := f.svc.CompleteTest(ctx, "teacher-1", created.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestPublishedEditsAreNonStructural(t *testing.T) {
	f := newFixture(t)
	test := f.seedTest(t, nil)
	ctx := context.Background()

	// Flipping correctness is a legitimate post-publish edit.
	edited := test
	edited.Questions = append([]Question(nil), test.Questions...)
	q1 := edited.Questions[0]
	q1.Options = []Option{{ID: "o1", Text: "wrong", Correct: true}, {ID: "o2", Text: "right"}}
	edited.Questions[0] = q1
	if _, err := f.svc.UpdateTest(ctx, "teacher-1", edited); err != nil {
		t.Fatalf("correctness edit on published test: %v", err)
	}

	// Removing a question is structural and rejected.
	truncated := test
	truncated.Questions = test.Questions[:2]
	if _, err := f.svc.UpdateTest(ctx, "teacher-1", truncated); !errors.Is(err, ErrTestNotEditable) {
		t.Errorf("structural edit: got %v, want ErrTestNotEditable", err)
	}
}
