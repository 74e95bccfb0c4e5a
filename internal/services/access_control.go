package services

import (
	"context"
	"errors"
	"strings"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/repositories"
)

// AccessControl resolves the caller's role from the user registry. Token
// claims only establish who is calling; what they may do always comes from
// the stored record.
type AccessControl struct {
	users repositories.UserRepository
}

// NewAccessControl wires the authorisation gate over the user registry.
func NewAccessControl(users repositories.UserRepository) (*AccessControl, error) {
	if users == nil {
		return nil, errors.New("access control requires user repository")
	}
	return &AccessControl{users: users}, nil
}

// Caller returns the registry entry for the authenticated principal. An
// authenticated address without a registry entry acts with the base user role
// until its first profile sync lands; role-gated operations go through
// Require, which insists on a stored record.
func (a *AccessControl) Caller(ctx context.Context) (domain.User, error) {
	caller, _, err := a.lookup(ctx)
	return caller, err
}

// Require resolves the caller and checks that their stored role is one of the
// allowed roles. A caller without a registry record is refused regardless of
// the roles asked for.
func (a *AccessControl) Require(ctx context.Context, roles ...string) (domain.User, error) {
	caller, found, err := a.lookup(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, ErrForbidden
	}
	for _, role := range roles {
		if caller.Role == role {
			return caller, nil
		}
	}
	return domain.User{}, ErrForbidden
}

// AuthorizeOwnerOrRole grants access when the caller owns the resource or
// holds one of the listed roles. It takes an already resolved caller so the
// registry is read once per request.
func (a *AccessControl) AuthorizeOwnerOrRole(caller domain.User, ownerEmail string, roles ...string) error {
	if strings.EqualFold(caller.Email, strings.TrimSpace(ownerEmail)) {
		return nil
	}
	for _, role := range roles {
		if caller.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

func (a *AccessControl) lookup(ctx context.Context) (domain.User, bool, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.Email) == "" {
		return domain.User{}, false, ErrUnauthenticated
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	user, err := a.users.Find(ctx, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.User{Email: email, Role: domain.RoleUser}, false, nil
		}
		return domain.User{}, false, err
	}
	return user, true, nil
}
