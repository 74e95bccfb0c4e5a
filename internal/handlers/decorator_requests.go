package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/platform/httpx"
	"github.com/decoriva/api/internal/repositories"
	"github.com/decoriva/api/internal/services"
)

// DecoratorRequestHandlers exposes the decorator promotion workflow.
type DecoratorRequestHandlers struct {
	authn    *auth.Authenticator
	requests services.DecoratorRequestService
}

// NewDecoratorRequestHandlers constructs a new DecoratorRequestHandlers instance.
func NewDecoratorRequestHandlers(authn *auth.Authenticator, requests services.DecoratorRequestService) *DecoratorRequestHandlers {
	return &DecoratorRequestHandlers{
		authn:    authn,
		requests: requests,
	}
}

// Routes registers the /decorator-requests endpoints.
func (h *DecoratorRequestHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.submitRequest)
	r.Get("/", h.listRequests)
	r.Patch("/{requestId}", h.decideRequest)
}

func (h *DecoratorRequestHandlers) submitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("request_service_unavailable", "decorator request service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req submitRequestPayload
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	request, err := h.requests.Submit(ctx, services.SubmitDecoratorRequestCommand{
		Name:       strings.TrimSpace(req.Name),
		Speciality: strings.TrimSpace(req.Speciality),
		Experience: strings.TrimSpace(req.Experience),
	})
	if err != nil {
		writeDecoratorRequestError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, decoratorRequestResponse{Request: buildDecoratorRequestPayload(request)})
}

func (h *DecoratorRequestHandlers) listRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("request_service_unavailable", "decorator request service is unavailable", http.StatusServiceUnavailable))
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	requests, err := h.requests.ListRequests(ctx, status)
	if err != nil {
		writeDecoratorRequestError(ctx, w, err)
		return
	}

	payload := decoratorRequestsResponse{Requests: make([]decoratorRequestPayload, 0, len(requests))}
	for _, request := range requests {
		payload.Requests = append(payload.Requests, buildDecoratorRequestPayload(request))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *DecoratorRequestHandlers) decideRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.requests == nil {
		httpx.WriteError(ctx, w, httpx.NewError("request_service_unavailable", "decorator request service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req decideRequestPayload
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	var approve bool
	switch strings.ToLower(strings.TrimSpace(req.Status)) {
	case domain.RequestStatusApproved:
		approve = true
	case domain.RequestStatusRejected:
		approve = false
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be approved or rejected", http.StatusBadRequest))
		return
	}

	request, err := h.requests.Decide(ctx, chi.URLParam(r, "requestId"), approve)
	if err != nil {
		writeDecoratorRequestError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, decoratorRequestResponse{Request: buildDecoratorRequestPayload(request)})
}

type submitRequestPayload struct {
	Name       string `json:"name"`
	Speciality string `json:"speciality"`
	Experience string `json:"experience"`
}

type decideRequestPayload struct {
	Status string `json:"status"`
}

type decoratorRequestResponse struct {
	Request decoratorRequestPayload `json:"request"`
}

type decoratorRequestsResponse struct {
	Requests []decoratorRequestPayload `json:"requests"`
}

type decoratorRequestPayload struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	Speciality string `json:"speciality,omitempty"`
	Experience string `json:"experience,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

func buildDecoratorRequestPayload(request domain.DecoratorRequest) decoratorRequestPayload {
	return decoratorRequestPayload{
		ID:         request.ID,
		Email:      request.Email,
		Name:       request.Name,
		Speciality: request.Speciality,
		Experience: request.Experience,
		Status:     request.Status,
		CreatedAt:  formatTime(request.CreatedAt),
	}
}

func writeDecoratorRequestError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrRequestInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrRequestNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("request_not_found", "decorator request not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPromotionPartiallyApplied):
		// The request was marked approved but the role grant failed; callers
		// must reconcile rather than blindly retry.
		httpx.WriteError(ctx, w, httpx.NewError("promotion_partially_applied", "request approved but role grant failed", http.StatusInternalServerError))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("request_service_unavailable", "decorator request repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("request_error", "failed to process decorator request", http.StatusInternalServerError))
	}
}
