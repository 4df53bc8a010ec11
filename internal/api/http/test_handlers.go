package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/schoolmark/schoolmark/internal/auth"
	"github.com/schoolmark/schoolmark/internal/exam"
)

// POST /tests
func CreateTestHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t exam.Test
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(t.Title) == "" {
			http.Error(w, "title required", http.StatusBadRequest)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		created, err := svc.CreateTest(r.Context(), t, caller.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// PUT /tests/{testID}
func UpdateTestHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t exam.Test
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t.ID = chi.URLParam(r, "testID")
		caller := auth.IdentityFromContext(r.Context())
		updated, err := svc.UpdateTest(r.Context(), caller.UserID, t)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// POST /tests/{testID}/publish
func PublishTestHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := auth.IdentityFromContext(r.Context())
		t, err := svc.PublishTest(r.Context(), caller.UserID, chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// POST /tests/{testID}/complete
func CompleteTestHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := auth.IdentityFromContext(r.Context())
		t, err := svc.CompleteTest(r.Context(), caller.UserID, chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// GET /tests/{testID}. Students get the sanitized view, with correct
// flags and expected answers stripped.
func GetTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetTest(r.Context(), chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		if caller.Role != "teacher" && caller.Role != "admin" {
			t = t.StudentView()
		}
		writeJSON(w, http.StatusOK, t)
	}
}

// GET /tests?status=...&limit=50&offset=0
func ListTestsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := auth.IdentityFromContext(r.Context())
		opts := exam.TestListOpts{
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		switch caller.Role {
		case "teacher":
			opts.CreatorID = caller.UserID
		case "admin":
		default:
			// Students only see what they could take.
			opts.Status = exam.TestPublished
		}
		list, err := store.ListTests(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if caller.Role != "teacher" && caller.Role != "admin" {
			for i := range list {
				list[i] = list[i].StudentView()
			}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
