package exam

import "context"

type AttemptListOpts struct {
	TestID string
	UserID string
	Status string
	Limit  int // <= 0 means no limit
	Offset int
}

type TestListOpts struct {
	CreatorID string
	Status    string
	Limit     int // <= 0 means no limit
	Offset    int
}

// Store is the persistence boundary of the engine. Implementations must
// make FinishAttempt an atomic, version-checked unit: the attempt row
// and its scored answers commit together or not at all, and a stale
// Version fails with ErrVersionConflict. That single guarantee is what
// serializes concurrent submits and isolates recalculation failures
// per attempt.
type Store interface {
	PutTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (Test, error)
	ListTests(ctx context.Context, opts TestListOpts) ([]Test, error)

	PutUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)

	CreateAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// FindAttempt returns the attempt of (test, user) regardless of
	// status, or ErrAttemptNotFound. At most one exists.
	FindAttempt(ctx context.Context, testID, userID string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)

	// UpsertAnswer replaces the answer for (attempt, question) while the
	// attempt is still in progress; ErrAttemptClosed otherwise.
	UpsertAnswer(ctx context.Context, ans Answer) error
	ListAnswers(ctx context.Context, attemptID string) ([]Answer, error)

	// FinishAttempt persists a graded attempt and its scored answers
	// atomically iff the stored version equals a.Version.
	FinishAttempt(ctx context.Context, a Attempt, answers []Answer) error
}
