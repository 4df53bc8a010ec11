package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/schoolmark/schoolmark/internal/exam"
	"github.com/schoolmark/schoolmark/internal/rbac"
)

type AuthService struct{ hmac []byte }

func NewAuthService(secret string) *AuthService { return &AuthService{hmac: []byte(secret)} }

// Claims carries everything the identity boundary yields: who the
// caller is, their role, and their class membership.
type Claims struct {
	Sub         string `json:"sub"`
	Role        string `json:"role"` // student | teacher | admin
	ClassNumber int    `json:"class_number,omitempty"`
	ClassLetter string `json:"class_letter,omitempty"`
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(u exam.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:         u.ID,
		Role:        u.Role,
		ClassNumber: u.Class.Number,
		ClassLetter: u.Class.Letter,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "schoolmark",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(8 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}

// JWTMiddleware authenticates the bearer token and attaches the
// caller's identity and role to the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{
				UserID: c.Sub,
				Role:   c.Role,
				Class:  exam.Class{Number: c.ClassNumber, Letter: c.ClassLetter},
			})
			ctx = rbac.WithRole(ctx, c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
