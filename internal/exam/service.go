package exam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/schoolmark/schoolmark/internal/grading"
)

// Event types appended to the audit log.
const (
	EventAttemptSubmitted = "AttemptSubmitted"
	EventTestRecalculated = "TestRecalculated"
)

// Clock supplies the server time; injectable for deadline tests.
type Clock func() time.Time

// Recorder is the audit sink. Appends are best effort: a recorder
// failure never fails the operation that produced the event.
type Recorder interface {
	Append(ctx context.Context, typ, key string, data any) error
}

// Service owns the attempt state machine: start, answer recording,
// submission and expiry, plus teacher-side test management and
// recalculation. All mutations of one attempt funnel through
// Store.FinishAttempt's version check, so two concurrent submits cannot
// both run the scoring side effect.
type Service struct {
	store  Store
	engine *grading.Engine
	events Recorder
	now    Clock
}

type ServiceOption func(*Service)

func WithClock(fn Clock) ServiceOption {
	return func(s *Service) { s.now = fn }
}

func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.events = r }
}

func NewService(store Store, engine *grading.Engine, opts ...ServiceOption) *Service {
	s := &Service{store: store, engine: engine, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AnswerInput is the tagged answer payload; the question's type decides
// which field is meaningful.
type AnswerInput struct {
	OptionIDs []string `json:"selected_option_ids,omitempty"`
	Text      string   `json:"selected_text,omitempty"`
}

type QuestionResult struct {
	QuestionID    string  `json:"question_id"`
	IsCorrect     bool    `json:"is_correct"`
	PartialCredit float64 `json:"partial_credit"`
	Anomaly       string  `json:"anomaly,omitempty"`
}

type AttemptResult struct {
	AttemptID   string           `json:"attempt_id"`
	TestID      string           `json:"test_id"`
	UserID      string           `json:"user_id"`
	Percentage  float64          `json:"percentage"`
	PerQuestion []QuestionResult `json:"per_question"`
}

// Start begins an attempt for user on test. Starting is idempotent: as
// long as the eligibility gates still pass, an existing attempt for
// (test, user) is returned as-is instead of creating a duplicate.
func (s *Service) Start(ctx context.Context, testID, userID string) (Attempt, error) {
	t, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return Attempt{}, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Attempt{}, err
	}
	// Eligibility gates come first: a start request against a test
	// that is no longer open is denied even when an attempt exists.
	if err := CanStart(t, user, s.now()); err != nil {
		return Attempt{}, err
	}
	if existing, err := s.store.FindAttempt(ctx, testID, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrAttemptNotFound) {
		return Attempt{}, err
	}
	a := Attempt{
		ID:        uuid.NewString(),
		TestID:    testID,
		UserID:    userID,
		Status:    AttemptInProgress,
		StartedAt: s.now(),
		Version:   1,
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		// Lost a race against a concurrent start of the same pair:
		// fall back to the winner's attempt.
		if errors.Is(err, ErrVersionConflict) {
			return s.store.FindAttempt(ctx, testID, userID)
		}
		return Attempt{}, err
	}
	return a, nil
}

// RecordAnswer upserts the answer of one question while the attempt is
// in progress and its deadline has not passed. Past the deadline the
// attempt is auto-submitted with the answers present so far, then
// ErrAttemptExpired is reported.
func (s *Service) RecordAnswer(ctx context.Context, attemptID, questionID string, in AnswerInput) error {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.Status != AttemptInProgress {
		return ErrAttemptClosed
	}
	t, err := s.store.GetTest(ctx, a.TestID)
	if err != nil {
		return err
	}
	if _, ok := t.Question(questionID); !ok {
		return ErrQuestionNotInTest
	}
	if Expired(t, a, s.now()) {
		if _, err := s.finalize(ctx, t, a); err != nil {
			return fmt.Errorf("auto-submit on expiry: %w", err)
		}
		return ErrAttemptExpired
	}
	return s.store.UpsertAnswer(ctx, Answer{
		AttemptID:         attemptID,
		QuestionID:        questionID,
		SelectedOptionIDs: in.OptionIDs,
		SelectedText:      in.Text,
	})
}

// Submit grades the attempt and transitions it to graded. Submitting an
// already-finished attempt is idempotent: the stored result is returned
// without re-scoring, which absorbs duplicate network retries.
func (s *Service) Submit(ctx context.Context, attemptID string) (AttemptResult, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptResult{}, err
	}
	if a.Status != AttemptInProgress {
		return s.Results(ctx, attemptID)
	}
	t, err := s.store.GetTest(ctx, a.TestID)
	if err != nil {
		return AttemptResult{}, err
	}
	return s.finalize(ctx, t, a)
}

// Results returns the graded outcome, in the same shape Submit produces.
func (s *Service) Results(ctx context.Context, attemptID string) (AttemptResult, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return AttemptResult{}, err
	}
	if a.Status != AttemptGraded || a.Percentage == nil {
		return AttemptResult{}, ErrAttemptNotGraded
	}
	t, err := s.store.GetTest(ctx, a.TestID)
	if err != nil {
		return AttemptResult{}, err
	}
	answers, err := s.store.ListAnswers(ctx, attemptID)
	if err != nil {
		return AttemptResult{}, err
	}
	byQ := answersByQuestion(answers)
	res := AttemptResult{AttemptID: a.ID, TestID: a.TestID, UserID: a.UserID, Percentage: *a.Percentage}
	for _, q := range t.Questions {
		qr := QuestionResult{QuestionID: q.ID}
		if ans, ok := byQ[q.ID]; ok {
			qr.IsCorrect = ans.IsCorrect
			qr.PartialCredit = ans.PartialCredit
			qr.Anomaly = ans.Anomaly
		}
		res.PerQuestion = append(res.PerQuestion, qr)
	}
	return res, nil
}

// finalize scores the attempt with the answers present right now and
// persists the graded state atomically. On a version conflict it defers
// to the winner: if the attempt came out graded, that result stands.
func (s *Service) finalize(ctx context.Context, t Test, a Attempt) (AttemptResult, error) {
	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return AttemptResult{}, err
	}
	criteria := s.criteriaFor(ctx, t)
	pct, scored, perQuestion := s.scoreAll(t, answers, criteria)

	now := s.now()
	a.Status = AttemptGraded
	a.SubmittedAt = &now
	a.Percentage = &pct
	if err := s.store.FinishAttempt(ctx, a, scored); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return s.Results(ctx, a.ID)
		}
		return AttemptResult{}, err
	}
	s.record(ctx, EventAttemptSubmitted, a.ID, map[string]any{
		"test_id": a.TestID, "user_id": a.UserID, "percentage": pct,
	})
	return AttemptResult{
		AttemptID:   a.ID,
		TestID:      a.TestID,
		UserID:      a.UserID,
		Percentage:  pct,
		PerQuestion: perQuestion,
	}, nil
}

// scoreAll runs the engine over every question of the test at scoring
// time, never just the answered ones. Unanswered questions count as
// zero credit; a scoring failure on one question is localized to it and
// surfaced as an anomaly rather than aborting the pass.
func (s *Service) scoreAll(t Test, answers []Answer, criteria grading.Criteria) (float64, []Answer, []QuestionResult) {
	byQ := answersByQuestion(answers)
	var (
		sum         float64
		scored      []Answer
		perQuestion []QuestionResult
	)
	for _, q := range t.Questions {
		ans, answered := byQ[q.ID]
		resp := grading.Response{Answered: answered, OptionIDs: ans.SelectedOptionIDs, Text: ans.SelectedText}
		res, err := s.engine.Score(q.GradingView(), resp, criteria)
		qr := QuestionResult{QuestionID: q.ID, IsCorrect: res.IsCorrect, PartialCredit: res.PartialCredit}
		if err != nil {
			qr.IsCorrect = false
			qr.PartialCredit = 0
			qr.Anomaly = err.Error()
		}
		sum += qr.PartialCredit
		perQuestion = append(perQuestion, qr)
		if answered {
			ans.IsCorrect = qr.IsCorrect
			ans.PartialCredit = qr.PartialCredit
			ans.Anomaly = qr.Anomaly
			scored = append(scored, ans)
		}
	}
	return grading.Percentage(sum, len(t.Questions)), scored, perQuestion
}

// criteriaFor snapshots the grading configuration of the test's owner
// once per scoring pass.
func (s *Service) criteriaFor(ctx context.Context, t Test) grading.Criteria {
	creator, err := s.store.GetUser(ctx, t.CreatorID)
	if err != nil || creator.Criteria == nil {
		return grading.DefaultCriteria()
	}
	return *creator.Criteria
}

func (s *Service) record(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(ctx, typ, key, data); err != nil {
		log.Printf("audit append %s %s: %v", typ, key, err)
	}
}

func answersByQuestion(answers []Answer) map[string]Answer {
	m := make(map[string]Answer, len(answers))
	for _, a := range answers {
		m[a.QuestionID] = a
	}
	return m
}
