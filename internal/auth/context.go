package auth

import (
	"context"

	"github.com/schoolmark/schoolmark/internal/exam"
)

// Identity is the authenticated caller as seen by handlers.
type Identity struct {
	UserID string
	Role   string
	Class  exam.Class
}

type ctxKey struct{}

var ctxKeyIdentity = ctxKey{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) Identity {
	if v := ctx.Value(ctxKeyIdentity); v != nil {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}
