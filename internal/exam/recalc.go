package exam

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/schoolmark/schoolmark/internal/grading"
)

type RecalcFailure struct {
	AttemptID string `json:"attempt_id"`
	Reason    string `json:"reason"`
}

type RecalcReport struct {
	Updated []string        `json:"updated"`
	Failed  []RecalcFailure `json:"failed"`
}

// Recalculate re-scores every graded attempt of a test with the current
// criteria and correct-option set. Each attempt is an independent unit
// of work: one failing to score or persist is recorded in Failed and
// blocks nothing else. In-progress attempts are skipped; they will be
// scored normally at their own submit time.
//
// The caller bounds the run through ctx: once it is done no new attempt
// work is started, already-started units finish, and the partial report
// is returned. Re-running with unchanged criteria and answers is a
// no-op on percentages, so retries are safe and cheap.
func (s *Service) Recalculate(ctx context.Context, testID string, workers int) (RecalcReport, error) {
	t, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return RecalcReport{}, err
	}
	attempts, err := s.store.ListAttempts(ctx, AttemptListOpts{TestID: testID, Status: AttemptGraded})
	if err != nil {
		return RecalcReport{}, err
	}
	// One criteria snapshot for the whole batch; a teacher edit landing
	// mid-run waits for the next invocation.
	criteria := s.criteriaFor(ctx, t)

	if workers <= 0 {
		workers = 1
	}
	var (
		mu     sync.Mutex
		report RecalcReport
	)
	g := &errgroup.Group{}
	g.SetLimit(workers)

	for _, a := range attempts {
		if ctx.Err() != nil {
			break // time budget spent; the rest stay eligible for retry
		}
		a := a
		g.Go(func() error {
			err := s.rescore(ctx, t, a, criteria)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, RecalcFailure{AttemptID: a.ID, Reason: err.Error()})
			} else {
				report.Updated = append(report.Updated, a.ID)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.record(ctx, EventTestRecalculated, testID, map[string]any{
		"updated": len(report.Updated), "failed": len(report.Failed),
	})
	return report, nil
}

// rescore re-runs the engine over one attempt's stored answers
// (read-only) and writes the new percentage as a single atomic,
// version-checked update.
func (s *Service) rescore(ctx context.Context, t Test, a Attempt, criteria grading.Criteria) error {
	answers, err := s.store.ListAnswers(ctx, a.ID)
	if err != nil {
		return err
	}
	pct, scored, _ := s.scoreAll(t, answers, criteria)
	a.Percentage = &pct
	return s.store.FinishAttempt(ctx, a, scored)
}
