package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/platform/httpx"
	"github.com/decoriva/api/internal/repositories"
	"github.com/decoriva/api/internal/services"
)

const maxRequestBodySize = 64 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// UserHandlers exposes the account registry, role lookup, and admin stats endpoints.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewUserHandlers constructs handlers enforcing Firebase authentication before
// invoking the user service.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService) *UserHandlers {
	return &UserHandlers{
		authn: authn,
		users: users,
	}
}

// Routes wires the account endpoints onto the provided router. The endpoints
// span several top-level paths so they attach directly rather than under a
// single mount point.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireAuth())
		}
		g.Post("/auth/user", h.syncUser)
		g.Get("/users/role/{email}", h.lookupRole)
		g.Get("/users", h.listUsers)
		g.Patch("/users/{email}", h.changeRole)
		g.Get("/stats", h.stats)
	})
}

func (h *UserHandlers) syncUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	var req syncUserRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return
		}
	}

	user, err := h.users.EnsureUser(ctx, services.EnsureUserCommand{
		Name:     strings.TrimSpace(req.Name),
		PhotoURL: strings.TrimSpace(req.PhotoURL),
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserPayload(user)})
}

func (h *UserHandlers) lookupRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	email := strings.TrimSpace(chi.URLParam(r, "email"))
	role, err := h.users.RoleOf(ctx, email)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, rolePayload{
		Email: strings.ToLower(email),
		Role:  role,
	})
}

func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	users, err := h.users.ListUsers(ctx)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	payload := usersResponse{Users: make([]userPayload, 0, len(users))}
	for _, user := range users {
		payload.Users = append(payload.Users, buildUserPayload(user))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *UserHandlers) changeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req changeRoleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	email := strings.TrimSpace(chi.URLParam(r, "email"))
	user, err := h.users.ChangeRole(ctx, email, strings.TrimSpace(req.Role))
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserPayload(user)})
}

func (h *UserHandlers) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	stats, err := h.users.Stats(ctx)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, statsPayload{
		Users:             stats.Users,
		Services:          stats.Services,
		Bookings:          stats.Bookings,
		PendingDecorators: stats.PendingDecorators,
		Revenue:           stats.Revenue,
	})
}

type syncUserRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type userResponse struct {
	User userPayload `json:"user"`
}

type usersResponse struct {
	Users []userPayload `json:"users"`
}

type userPayload struct {
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type rolePayload struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type statsPayload struct {
	Users             int64 `json:"users"`
	Services          int64 `json:"services"`
	Bookings          int64 `json:"bookings"`
	PendingDecorators int64 `json:"pendingDecorators"`
	Revenue           int64 `json:"revenue"`
}

func buildUserPayload(user domain.User) userPayload {
	return userPayload{
		Email:     user.Email,
		Name:      user.Name,
		PhotoURL:  user.PhotoURL,
		Role:      user.Role,
		CreatedAt: formatTime(user.CreatedAt),
	}
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to process user request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
