package grading

import (
	"errors"
	"fmt"
	"math"
)

// Question types understood by the engine.
const (
	TypeSingleChoice = "single_choice"
	TypeMultiChoice  = "multi_choice"
	TypeFreeText     = "free_text"
)

var ErrMalformedQuestion = errors.New("malformed question")

// Q is the minimal view of a question needed for scoring.
type Q struct {
	Type       string
	CorrectIDs []string // option ids flagged correct (choice types)
	Expected   []string // accepted answers (free text)
}

// Response is the tagged answer payload; the engine dispatches on
// Q.Type, so only the matching field is consulted.
type Response struct {
	OptionIDs []string
	Text      string
	Answered  bool // false when the question was never answered
}

// Result is the outcome of scoring one question response.
type Result struct {
	IsCorrect     bool
	PartialCredit float64 // 0..1
}

// Strategy scores a single question type.
type Strategy interface {
	Score(q Q, resp Response, c Criteria) (Result, error)
}

// Engine routes by question type to the matching Strategy. Scoring is
// pure: identical (question, response, criteria) inputs always yield
// the identical result, which is what makes recalculation safe.
type Engine struct {
	strategies map[string]Strategy
}

// NewEngine installs the built-in strategies.
func NewEngine() *Engine {
	return &Engine{
		strategies: map[string]Strategy{
			TypeSingleChoice: singleChoiceStrategy{},
			TypeMultiChoice:  multiChoiceStrategy{},
			TypeFreeText:     freeTextStrategy{},
		},
	}
}

// Score grades one response. A never-answered question scores zero
// credit rather than erroring, so aggregation stays total over all
// questions of the test. Errors mean the question or criteria are
// malformed; callers treat that as zero credit and surface the anomaly.
func (e *Engine) Score(q Q, resp Response, c Criteria) (Result, error) {
	if !c.valid() {
		return Result{}, fmt.Errorf("invalid criteria: %+v", c)
	}
	s, ok := e.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown type %q", ErrMalformedQuestion, q.Type)
	}
	if !resp.Answered {
		return Result{}, nil
	}
	return s.Score(q, resp, c)
}

// Percentage aggregates summed per-question credit into the attempt
// percentage: round(100 * sum / questionCount, 2), half-up.
func Percentage(creditSum float64, questionCount int) float64 {
	if questionCount <= 0 {
		return 0
	}
	return Round2(100 * creditSum / float64(questionCount))
}

// Round2 rounds to two decimal places, half-up.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Score(q Q, resp Response, _ Criteria) (Result, error) {
	if len(q.CorrectIDs) != 1 {
		return Result{}, fmt.Errorf("%w: single-choice needs exactly one correct option, have %d", ErrMalformedQuestion, len(q.CorrectIDs))
	}
	if len(resp.OptionIDs) == 1 && resp.OptionIDs[0] == q.CorrectIDs[0] {
		return Result{IsCorrect: true, PartialCredit: 1}, nil
	}
	return Result{}, nil
}

type multiChoiceStrategy struct{}

func (multiChoiceStrategy) Score(q Q, resp Response, c Criteria) (Result, error) {
	if len(q.CorrectIDs) == 0 {
		return Result{}, fmt.Errorf("%w: multi-choice has no correct options", ErrMalformedQuestion)
	}
	correct := toSet(q.CorrectIDs)
	selected := toSet(resp.OptionIDs)

	if setEqual(correct, selected) {
		return Result{IsCorrect: true, PartialCredit: 1}, nil
	}
	if !c.PartialCreditMulti {
		return Result{}, nil
	}
	inter := 0
	for id := range selected {
		if _, ok := correct[id]; ok {
			inter++
		}
	}
	union := len(correct) + len(selected) - inter
	credit := float64(inter) / float64(union)
	return Result{IsCorrect: credit >= c.MultiCorrectThreshold, PartialCredit: credit}, nil
}

type freeTextStrategy struct{}

func (freeTextStrategy) Score(q Q, resp Response, c Criteria) (Result, error) {
	if len(q.Expected) == 0 {
		return Result{}, fmt.Errorf("%w: free-text has no expected answers", ErrMalformedQuestion)
	}
	got := normalize(resp.Text)
	if got == "" {
		return Result{}, nil
	}
	for _, want := range q.Expected {
		nw := normalize(want)
		if nw == got {
			return Result{IsCorrect: true, PartialCredit: 1}, nil
		}
		if c.MaxEditDistance > 0 && levenshtein(nw, got) <= c.MaxEditDistance {
			return Result{IsCorrect: true, PartialCredit: 1}, nil
		}
	}
	return Result{}, nil
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
