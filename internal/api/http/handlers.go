package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/schoolmark/schoolmark/internal/auth"
	"github.com/schoolmark/schoolmark/internal/exam"
)

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP statuses with a stable error
// kind, so a student sees the concrete denial and a teacher sees what
// to retry.
func writeError(w http.ResponseWriter, err error) {
	var denial *exam.NotEligibleError
	switch {
	case errors.As(err, &denial):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "not_eligible", Reason: string(denial.Reason)})
	case errors.Is(err, exam.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, errorBody{Error: "not_owner"})
	case errors.Is(err, exam.ErrTestNotFound),
		errors.Is(err, exam.ErrUserNotFound),
		errors.Is(err, exam.ErrAttemptNotFound),
		errors.Is(err, exam.ErrQuestionNotInTest):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Reason: err.Error()})
	case errors.Is(err, exam.ErrAttemptClosed):
		writeJSON(w, http.StatusConflict, errorBody{Error: "attempt_closed"})
	case errors.Is(err, exam.ErrAttemptExpired):
		writeJSON(w, http.StatusConflict, errorBody{Error: "attempt_expired"})
	case errors.Is(err, exam.ErrAttemptNotGraded):
		writeJSON(w, http.StatusConflict, errorBody{Error: "attempt_not_graded"})
	case errors.Is(err, exam.ErrTestNotEditable),
		errors.Is(err, exam.ErrBadTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: "test_not_editable", Reason: err.Error()})
	case errors.Is(err, exam.ErrVersionConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "conflict"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// canTouchAttempt allows the attempt's owner and any caller whose role
// may view all attempts.
func canTouchAttempt(id auth.Identity, a exam.Attempt) bool {
	return a.UserID == id.UserID || id.Role == "teacher" || id.Role == "admin"
}
