package exam

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateTest stores a new draft owned by creatorID, assigning identities
// to the test and any questions/options that arrived without one.
func (s *Service) CreateTest(ctx context.Context, t Test, creatorID string) (Test, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = TestDraft
	t.CreatorID = creatorID
	t.CreatedAt = s.now().Unix()
	for i := range t.Questions {
		if t.Questions[i].ID == "" {
			t.Questions[i].ID = uuid.NewString()
		}
		for j := range t.Questions[i].Options {
			if t.Questions[i].Options[j].ID == "" {
				t.Questions[i].Options[j].ID = uuid.NewString()
			}
		}
	}
	if err := s.store.PutTest(ctx, t); err != nil {
		return Test{}, err
	}
	return t, nil
}

// UpdateTest applies a teacher edit. Drafts may change freely. Once
// published, only non-structural edits pass re-validation: the
// question/option identity sets and question types must be unchanged,
// so existing attempts keep referring to real records. Flipping which
// options are correct or rewording text is allowed; the teacher then
// runs recalculation to propagate it. Completed tests are frozen.
func (s *Service) UpdateTest(ctx context.Context, callerID string, t Test) (Test, error) {
	cur, err := s.store.GetTest(ctx, t.ID)
	if err != nil {
		return Test{}, err
	}
	if cur.CreatorID != callerID {
		return Test{}, ErrNotOwner
	}
	switch cur.Status {
	case TestDraft:
	case TestPublished:
		if err := structuralParity(cur, t); err != nil {
			return Test{}, err
		}
	default:
		return Test{}, ErrTestNotEditable
	}
	t.Status = cur.Status
	t.CreatorID = cur.CreatorID
	t.CreatedAt = cur.CreatedAt
	if err := s.store.PutTest(ctx, t); err != nil {
		return Test{}, err
	}
	return t, nil
}

// PublishTest moves a draft to published, opening it to attempts.
func (s *Service) PublishTest(ctx context.Context, callerID, testID string) (Test, error) {
	return s.transition(ctx, callerID, testID, TestDraft, TestPublished)
}

// CompleteTest closes a published test for good.
func (s *Service) CompleteTest(ctx context.Context, callerID, testID string) (Test, error) {
	return s.transition(ctx, callerID, testID, TestPublished, TestCompleted)
}

func (s *Service) transition(ctx context.Context, callerID, testID, from, to string) (Test, error) {
	t, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return Test{}, err
	}
	if t.CreatorID != callerID {
		return Test{}, ErrNotOwner
	}
	if t.Status != from {
		return Test{}, fmt.Errorf("%w: %s -> %s", ErrBadTransition, t.Status, to)
	}
	t.Status = to
	if err := s.store.PutTest(ctx, t); err != nil {
		return Test{}, err
	}
	return t, nil
}

// structuralParity verifies that an edit to a published test keeps the
// question set, question types and option identity sets intact.
func structuralParity(cur, next Test) error {
	if len(next.Questions) != len(cur.Questions) {
		return fmt.Errorf("%w: question set changed", ErrTestNotEditable)
	}
	for _, oldQ := range cur.Questions {
		newQ, ok := next.Question(oldQ.ID)
		if !ok {
			return fmt.Errorf("%w: question %s removed", ErrTestNotEditable, oldQ.ID)
		}
		if newQ.Type != oldQ.Type {
			return fmt.Errorf("%w: question %s changed type", ErrTestNotEditable, oldQ.ID)
		}
		if len(newQ.Options) != len(oldQ.Options) {
			return fmt.Errorf("%w: options of question %s changed", ErrTestNotEditable, oldQ.ID)
		}
		for _, oldO := range oldQ.Options {
			if !hasOption(newQ, oldO.ID) {
				return fmt.Errorf("%w: option %s removed", ErrTestNotEditable, oldO.ID)
			}
		}
	}
	return nil
}

func hasOption(q Question, id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}
