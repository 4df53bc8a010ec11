package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/schoolmark/schoolmark/internal/auth"
	"github.com/schoolmark/schoolmark/internal/exam"
)

// POST /attempts  { "test_id": "..." }
func StartAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestID string `json:"test_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.TestID == "" {
			http.Error(w, "test_id required", http.StatusBadRequest)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		a, err := svc.Start(r.Context(), req.TestID, caller.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// PUT /attempts/{attemptID}/answers/{questionID}
func RecordAnswerHandler(svc *exam.Service, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		if a.UserID != caller.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var in exam.AnswerInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := svc.RecordAnswer(r.Context(), attemptID, chi.URLParam(r, "questionID"), in); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(svc *exam.Service, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		if a.UserID != caller.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := svc.Submit(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /attempts/{attemptID}/results
func AttemptResultsHandler(svc *exam.Service, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		a, err := store.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		if !canTouchAttempt(caller, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := svc.Results(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /attempts?test_id=...&user_id=...&status=...&limit=50&offset=0
// Students are always scoped to their own attempts.
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := auth.IdentityFromContext(r.Context())
		opts := exam.AttemptListOpts{
			TestID: strings.TrimSpace(r.URL.Query().Get("test_id")),
			UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		if caller.Role != "teacher" && caller.Role != "admin" {
			opts.UserID = caller.UserID
		}
		list, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
