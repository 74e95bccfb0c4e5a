package auth

import (
	"context"
	"strings"
)

// Identity captures the verified principal extracted from a Firebase ID token.
// Only the verified email claim is trusted; the role is always resolved from
// the user registry by the services layer.
type Identity struct {
	UID   string
	Email string
}

// IsSelf reports whether the identity matches the provided email.
func (i *Identity) IsSelf(email string) bool {
	if i == nil {
		return false
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(i.Email), email)
}

type contextKey string

const identityContextKey contextKey = "github.com/decoriva/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
