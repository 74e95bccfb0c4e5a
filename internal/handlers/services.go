package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/platform/httpx"
	"github.com/decoriva/api/internal/repositories"
	"github.com/decoriva/api/internal/services"
)

// CatalogHandlers exposes the service catalogue. Listing and lookup are
// public; mutations require an authenticated administrator.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{
		authn:   authn,
		catalog: catalog,
	}
}

// Routes registers the /services endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listServices)
	r.Get("/locations", h.listLocations)
	r.Get("/{serviceId}", h.getService)

	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireAuth())
		}
		g.Post("/", h.createService)
		g.Patch("/{serviceId}", h.updateService)
		g.Delete("/{serviceId}", h.deleteService)
	})
}

func (h *CatalogHandlers) listServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	query, err := parseServiceQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListServices(ctx, query)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := servicesResponse{
		Services: make([]servicePayload, 0, len(page.Services)),
		Total:    page.Total,
		Page:     page.Page,
		Limit:    page.Limit,
	}
	for _, service := range page.Services {
		payload.Services = append(payload.Services, buildServicePayload(service))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CatalogHandlers) listLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	locations, err := h.catalog.Locations(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	if locations == nil {
		locations = []string{}
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"locations": locations})
}

func (h *CatalogHandlers) getService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	service, err := h.catalog.GetService(ctx, chi.URLParam(r, "serviceId"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, serviceResponse{Service: buildServicePayload(service)})
}

func (h *CatalogHandlers) createService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req serviceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	service, err := h.catalog.CreateService(ctx, req.toCommand())
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, serviceResponse{Service: buildServicePayload(service)})
}

func (h *CatalogHandlers) updateService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	serviceID := chi.URLParam(r, "serviceId")
	existing, err := h.catalog.GetService(ctx, serviceID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	cmd, err := overlayServiceCommand(existing, body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	service, err := h.catalog.UpdateService(ctx, serviceID, cmd)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, serviceResponse{Service: buildServicePayload(service)})
}

func (h *CatalogHandlers) deleteService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteService(ctx, chi.URLParam(r, "serviceId")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type serviceRequest struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
	Cost        int64   `json:"cost"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Rating      float64 `json:"rating"`
}

func (r serviceRequest) toCommand() services.ServiceCommand {
	return services.ServiceCommand{
		Name:        r.Name,
		Category:    r.Category,
		Location:    r.Location,
		Cost:        r.Cost,
		Description: r.Description,
		Image:       r.Image,
		Rating:      r.Rating,
	}
}

type serviceResponse struct {
	Service servicePayload `json:"service"`
}

type servicesResponse struct {
	Services []servicePayload `json:"services"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

type servicePayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Location    string  `json:"location"`
	Cost        int64   `json:"cost"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
	Rating      float64 `json:"rating"`
	CreatedAt   string  `json:"createdAt,omitempty"`
	UpdatedAt   string  `json:"updatedAt,omitempty"`
}

func buildServicePayload(service domain.Service) servicePayload {
	return servicePayload{
		ID:          service.ID,
		Name:        service.Name,
		Category:    service.Category,
		Location:    service.Location,
		Cost:        service.Cost,
		Description: service.Description,
		Image:       service.Image,
		Rating:      service.Rating,
		CreatedAt:   formatTime(service.CreatedAt),
		UpdatedAt:   formatTime(service.UpdatedAt),
	}
}

func parseServiceQuery(r *http.Request) (services.ServiceQuery, error) {
	values := r.URL.Query()
	query := services.ServiceQuery{
		Search:   strings.TrimSpace(values.Get("search")),
		Category: strings.TrimSpace(values.Get("category")),
		Location: strings.TrimSpace(values.Get("location")),
	}

	var err error
	if query.MinCost, err = parseQueryInt64(values.Get("minPrice")); err != nil {
		return services.ServiceQuery{}, errors.New("minPrice must be a non-negative integer")
	}
	if query.MaxCost, err = parseQueryInt64(values.Get("maxPrice")); err != nil {
		return services.ServiceQuery{}, errors.New("maxPrice must be a non-negative integer")
	}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return services.ServiceQuery{}, errors.New("page must be a positive integer")
		}
		query.Page = page
	}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return services.ServiceQuery{}, errors.New("limit must be a positive integer")
		}
		query.Limit = limit
	}

	return query, nil
}

func parseQueryInt64(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, errors.New("invalid integer")
	}
	return value, nil
}

func overlayServiceCommand(existing domain.Service, body []byte) (services.ServiceCommand, error) {
	cmd := services.ServiceCommand{
		Name:        existing.Name,
		Category:    existing.Category,
		Location:    existing.Location,
		Cost:        existing.Cost,
		Description: existing.Description,
		Image:       existing.Image,
		Rating:      existing.Rating,
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return cmd, errors.New("invalid JSON payload")
	}
	if len(raw) == 0 {
		return cmd, errors.New("no editable fields provided")
	}

	for key, value := range raw {
		switch key {
		case "name":
			if err := json.Unmarshal(value, &cmd.Name); err != nil {
				return cmd, errors.New("name must be a string")
			}
		case "category":
			if err := json.Unmarshal(value, &cmd.Category); err != nil {
				return cmd, errors.New("category must be a string")
			}
		case "location":
			if err := json.Unmarshal(value, &cmd.Location); err != nil {
				return cmd, errors.New("location must be a string")
			}
		case "cost":
			if err := json.Unmarshal(value, &cmd.Cost); err != nil {
				return cmd, errors.New("cost must be an integer")
			}
		case "description":
			if err := json.Unmarshal(value, &cmd.Description); err != nil {
				return cmd, errors.New("description must be a string")
			}
		case "image":
			if err := json.Unmarshal(value, &cmd.Image); err != nil {
				return cmd, errors.New("image must be a string")
			}
		case "rating":
			if err := json.Unmarshal(value, &cmd.Rating); err != nil {
				return cmd, errors.New("rating must be a number")
			}
		default:
			return cmd, fmt.Errorf("field %q is not editable", key)
		}
	}

	return cmd, nil
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrServiceInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrServiceNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("service_not_found", "service not found", http.StatusNotFound))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			switch {
			case repoErr.IsConflict():
				httpx.WriteError(ctx, w, httpx.NewError("service_conflict", err.Error(), http.StatusConflict))
				return
			case repoErr.IsUnavailable():
				httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog repository unavailable", http.StatusServiceUnavailable))
				return
			}
		}
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to process catalogue request", http.StatusInternalServerError))
	}
}
