package exam

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreListPaging(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	started := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"a1", "a2", "a3"} {
		a := Attempt{ID: id, TestID: "t1", UserID: "u-" + id, Status: AttemptInProgress, StartedAt: started, Version: 1}
		if err := s.CreateAttempt(ctx, a); err != nil {
			t.Fatalf("CreateAttempt %s: %v", id, err)
		}
	}

	// Untrusted query values arrive here as-is; negatives mean "from
	// the start", never a panic.
	list, err := s.ListAttempts(ctx, AttemptListOpts{TestID: "t1", Offset: -1})
	if err != nil || len(list) != 3 {
		t.Fatalf("negative offset: %v, %d rows", err, len(list))
	}
	list, err = s.ListAttempts(ctx, AttemptListOpts{TestID: "t1", Limit: -5, Offset: -5})
	if err != nil || len(list) != 3 {
		t.Fatalf("negative limit and offset: %v, %d rows", err, len(list))
	}

	list, _ = s.ListAttempts(ctx, AttemptListOpts{TestID: "t1", Limit: 2, Offset: 2})
	if len(list) != 1 {
		t.Errorf("limit 2 offset 2: %d rows, want 1", len(list))
	}
	list, _ = s.ListAttempts(ctx, AttemptListOpts{TestID: "t1", Offset: 99})
	if len(list) != 0 {
		t.Errorf("offset past the end: %d rows, want 0", len(list))
	}

	if err := s.PutTest(ctx, Test{ID: "t1", Title: "T", Status: TestPublished, CreatorID: "c"}); err != nil {
		t.Fatal(err)
	}
	tests, err := s.ListTests(ctx, TestListOpts{Offset: -1})
	if err != nil || len(tests) != 1 {
		t.Fatalf("ListTests negative offset: %v, %d rows", err, len(tests))
	}
}
