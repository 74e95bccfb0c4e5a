package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/repositories"
)

// UserServiceDeps bundles dependencies required to construct a UserService.
type UserServiceDeps struct {
	Users    repositories.UserRepository
	Services repositories.ServiceRepository
	Bookings repositories.BookingRepository
	Requests repositories.DecoratorRequestRepository
	Access   *AccessControl
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

type userService struct {
	users    repositories.UserRepository
	services repositories.ServiceRepository
	bookings repositories.BookingRepository
	requests repositories.DecoratorRequestRepository
	access   *AccessControl
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewUserService wires a UserService backed by the provided repositories.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service requires user repository")
	}
	if deps.Services == nil {
		return nil, errors.New("user service requires service repository")
	}
	if deps.Bookings == nil {
		return nil, errors.New("user service requires booking repository")
	}
	if deps.Requests == nil {
		return nil, errors.New("user service requires decorator request repository")
	}
	if deps.Access == nil {
		return nil, errors.New("user service requires access control")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users:    deps.Users,
		services: deps.Services,
		bookings: deps.Bookings,
		requests: deps.Requests,
		access:   deps.Access,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

func (s *userService) EnsureUser(ctx context.Context, cmd EnsureUserCommand) (domain.User, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.Email) == "" {
		return domain.User{}, ErrUnauthenticated
	}

	user, err := s.users.Ensure(ctx, domain.User{
		Email:    identity.Email,
		Name:     strings.TrimSpace(cmd.Name),
		PhotoURL: strings.TrimSpace(cmd.PhotoURL),
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger(ctx, "users.ensured", map[string]any{
		"role": user.Role,
	})
	return user, nil
}

func (s *userService) RoleOf(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrUserInvalidInput
	}

	caller, err := s.access.Caller(ctx)
	if err != nil {
		return "", err
	}
	if err := s.access.AuthorizeOwnerOrRole(caller, email, domain.RoleAdmin); err != nil {
		return "", err
	}

	user, err := s.users.Find(ctx, email)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// Accounts without a synced registry entry act with the base role.
			return domain.RoleUser, nil
		}
		return "", err
	}
	return user.Role, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

func (s *userService) ChangeRole(ctx context.Context, email string, role string) (domain.User, error) {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return domain.User{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, ErrUserInvalidInput
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !domain.ValidRole(role) {
		return domain.User{}, ErrUserInvalidInput
	}

	if err := s.users.UpdateRole(ctx, email, role); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}

	s.logger(ctx, "users.role_changed", map[string]any{
		"role": role,
	})
	return s.users.Find(ctx, email)
}

func (s *userService) Stats(ctx context.Context) (domain.Stats, error) {
	if _, err := s.access.Require(ctx, domain.RoleAdmin); err != nil {
		return domain.Stats{}, err
	}

	users, err := s.users.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	services, err := s.services.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	bookings, err := s.bookings.Count(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	pending, err := s.requests.CountByStatus(ctx, domain.RequestStatusPending)
	if err != nil {
		return domain.Stats{}, err
	}
	revenue, err := s.bookings.SumSettledRevenue(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	return domain.Stats{
		Users:             users,
		Services:          services,
		Bookings:          bookings,
		PendingDecorators: pending,
		Revenue:           revenue,
	}, nil
}
