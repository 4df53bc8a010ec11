package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schoolmark/schoolmark/internal/auth"
	"github.com/schoolmark/schoolmark/internal/exam"
)

// POST /tests/{testID}/recalculate?budget_ms=5000
//
// Re-scores every graded attempt of the test with the teacher's current
// criteria. budget_ms caps how long new attempt work keeps being
// started; attempts not reached stay eligible for the next run.
func RecalculateHandler(svc *exam.Service, store exam.Store, workers int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID := chi.URLParam(r, "testID")
		t, err := store.GetTest(r.Context(), testID)
		if err != nil {
			writeError(w, err)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		if t.CreatorID != caller.UserID && caller.Role != "admin" {
			writeError(w, exam.ErrNotOwner)
			return
		}

		ctx := r.Context()
		if ms := parseIntDefault(r.URL.Query().Get("budget_ms"), 0); ms > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
			defer cancel()
		}

		report, err := svc.Recalculate(ctx, testID, workers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
