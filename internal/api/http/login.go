package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/schoolmark/schoolmark/internal/auth"
	"github.com/schoolmark/schoolmark/internal/exam"
)

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(store exam.Store, authSvc *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := store.GetUserByUsername(r.Context(), req.Username)
		if err != nil {
			if errors.Is(err, exam.ErrUserNotFound) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			writeError(w, err)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PassHash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := authSvc.IssueJWT(u)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": tok})
	}
}
