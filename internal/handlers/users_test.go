package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/services"
)

type stubUserService struct {
	ensureFn     func(context.Context, services.EnsureUserCommand) (domain.User, error)
	roleOfFn     func(context.Context, string) (string, error)
	listFn       func(context.Context) ([]domain.User, error)
	changeRoleFn func(context.Context, string, string) (domain.User, error)
	statsFn      func(context.Context) (domain.Stats, error)
}

func (s *stubUserService) EnsureUser(ctx context.Context, cmd services.EnsureUserCommand) (domain.User, error) {
	if s.ensureFn == nil {
		return domain.User{}, nil
	}
	return s.ensureFn(ctx, cmd)
}

func (s *stubUserService) RoleOf(ctx context.Context, email string) (string, error) {
	if s.roleOfFn == nil {
		return domain.RoleUser, nil
	}
	return s.roleOfFn(ctx, email)
}

func (s *stubUserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s *stubUserService) ChangeRole(ctx context.Context, email, role string) (domain.User, error) {
	if s.changeRoleFn == nil {
		return domain.User{}, nil
	}
	return s.changeRoleFn(ctx, email, role)
}

func (s *stubUserService) Stats(ctx context.Context) (domain.Stats, error) {
	if s.statsFn == nil {
		return domain.Stats{}, nil
	}
	return s.statsFn(ctx)
}

var _ services.UserService = (*stubUserService)(nil)

func newUserRouter(svc services.UserService) chi.Router {
	r := chi.NewRouter()
	NewUserHandlers(nil, svc).Routes(r)
	return r
}

func TestUserHandlersSyncUser(t *testing.T) {
	var captured services.EnsureUserCommand
	svc := &stubUserService{
		ensureFn: func(_ context.Context, cmd services.EnsureUserCommand) (domain.User, error) {
			captured = cmd
			return domain.User{
				Email:     "alice@example.com",
				Name:      cmd.Name,
				Role:      domain.RoleUser,
				CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	body := strings.NewReader(`{"name":"  Alice  ","photoUrl":"https://example.com/a.png"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/user", body)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Name != "Alice" {
		t.Fatalf("expected trimmed name, got %q", captured.Name)
	}
	if captured.PhotoURL != "https://example.com/a.png" {
		t.Fatalf("unexpected photo url %q", captured.PhotoURL)
	}

	var resp struct {
		User struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.User.Email != "alice@example.com" || resp.User.Role != domain.RoleUser {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}
}

func TestUserHandlersSyncUserAcceptsEmptyBody(t *testing.T) {
	svc := &stubUserService{
		ensureFn: func(context.Context, services.EnsureUserCommand) (domain.User, error) {
			return domain.User{Email: "alice@example.com", Role: domain.RoleUser}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/user", nil)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUserHandlersLookupRole(t *testing.T) {
	svc := &stubUserService{
		roleOfFn: func(_ context.Context, email string) (string, error) {
			if email != "Bob@Example.com" {
				t.Fatalf("expected path email forwarded, got %q", email)
			}
			return domain.RoleDecorator, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users/role/Bob@Example.com", nil)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp rolePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Email != "bob@example.com" || resp.Role != domain.RoleDecorator {
		t.Fatalf("unexpected role payload: %+v", resp)
	}
}

func TestUserHandlersLookupRoleForbidden(t *testing.T) {
	svc := &stubUserService{
		roleOfFn: func(context.Context, string) (string, error) {
			return "", services.ErrForbidden
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users/role/other@example.com", nil)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "forbidden" {
		t.Fatalf("expected forbidden error, got %v", body["error"])
	}
}

func TestUserHandlersListUsers(t *testing.T) {
	svc := &stubUserService{
		listFn: func(context.Context) ([]domain.User, error) {
			return []domain.User{
				{Email: "a@example.com", Role: domain.RoleAdmin},
				{Email: "b@example.com", Role: domain.RoleUser},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp usersResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(resp.Users))
	}
}

func TestUserHandlersChangeRole(t *testing.T) {
	svc := &stubUserService{
		changeRoleFn: func(_ context.Context, email, role string) (domain.User, error) {
			if email != "bob@example.com" || role != domain.RoleDecorator {
				t.Fatalf("unexpected change role args %q %q", email, role)
			}
			return domain.User{Email: email, Role: role}, nil
		},
	}

	body := strings.NewReader(`{"role":"decorator"}`)
	req := httptest.NewRequest(http.MethodPatch, "/users/bob@example.com", body)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUserHandlersChangeRoleInvalid(t *testing.T) {
	svc := &stubUserService{
		changeRoleFn: func(context.Context, string, string) (domain.User, error) {
			return domain.User{}, services.ErrUserInvalidInput
		},
	}

	body := strings.NewReader(`{"role":"emperor"}`)
	req := httptest.NewRequest(http.MethodPatch, "/users/bob@example.com", body)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestUserHandlersStats(t *testing.T) {
	svc := &stubUserService{
		statsFn: func(context.Context) (domain.Stats, error) {
			return domain.Stats{
				Users:             42,
				Services:          7,
				Bookings:          19,
				PendingDecorators: 3,
				Revenue:           125000,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp statsPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Users != 42 || resp.Revenue != 125000 || resp.PendingDecorators != 3 {
		t.Fatalf("unexpected stats payload: %+v", resp)
	}
}

func TestUserHandlersUnauthenticated(t *testing.T) {
	svc := &stubUserService{
		statsFn: func(context.Context) (domain.Stats, error) {
			return domain.Stats{}, services.ErrUnauthenticated
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rr := httptest.NewRecorder()

	newUserRouter(svc).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
