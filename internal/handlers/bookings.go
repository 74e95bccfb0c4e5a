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

// BookingHandlers exposes the booking lifecycle endpoints. Every route
// requires an authenticated caller; the service layer scopes visibility by
// the stored role.
type BookingHandlers struct {
	authn    *auth.Authenticator
	bookings services.BookingService
}

// NewBookingHandlers constructs a new BookingHandlers instance.
func NewBookingHandlers(authn *auth.Authenticator, bookings services.BookingService) *BookingHandlers {
	return &BookingHandlers{
		authn:    authn,
		bookings: bookings,
	}
}

// Routes registers the /bookings endpoints.
func (h *BookingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.createBooking)
	r.Get("/", h.listBookings)
	r.Patch("/{bookingId}", h.updateBooking)
	r.Delete("/{bookingId}", h.cancelBooking)
}

func (h *BookingHandlers) createBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req createBookingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	cmd := services.CreateBookingCommand{
		ServiceID:      strings.TrimSpace(req.ServiceID),
		DecoratorEmail: strings.TrimSpace(req.DecoratorEmail),
		BookingDate:    strings.TrimSpace(req.BookingDate),
		Coupon:         strings.TrimSpace(req.Coupon),
	}
	for _, addon := range req.Addons {
		cmd.Addons = append(cmd.Addons, domain.BookingAddon{
			Name:  strings.TrimSpace(addon.Name),
			Price: addon.Price,
		})
	}

	booking, err := h.bookings.CreateBooking(ctx, cmd)
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) listBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service is unavailable", http.StatusServiceUnavailable))
		return
	}

	bookings, err := h.bookings.ListBookings(ctx)
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	payload := bookingsResponse{Bookings: make([]bookingPayload, 0, len(bookings))}
	for _, booking := range bookings {
		payload.Bookings = append(payload.Bookings, buildBookingPayload(booking))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *BookingHandlers) updateBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var patch map[string]any
	if err := json.Unmarshal(body, &patch); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if len(patch) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "no fields provided", http.StatusBadRequest))
		return
	}

	booking, err := h.bookings.UpdateBooking(ctx, chi.URLParam(r, "bookingId"), patch)
	if err != nil {
		writeBookingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

func (h *BookingHandlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.bookings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.bookings.CancelBooking(ctx, chi.URLParam(r, "bookingId")); err != nil {
		writeBookingError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBookingRequest struct {
	ServiceID      string                `json:"serviceId"`
	DecoratorEmail string                `json:"decoratorEmail"`
	BookingDate    string                `json:"bookingDate"`
	Addons         []bookingAddonPayload `json:"addons"`
	Coupon         string                `json:"coupon"`
}

type bookingResponse struct {
	Booking bookingPayload `json:"booking"`
}

type bookingsResponse struct {
	Bookings []bookingPayload `json:"bookings"`
}

type bookingPayload struct {
	ID             string                `json:"id"`
	ServiceID      string                `json:"serviceId"`
	ServiceName    string                `json:"serviceName"`
	Price          int64                 `json:"price"`
	UserEmail      string                `json:"userEmail"`
	DecoratorEmail string                `json:"decoratorEmail,omitempty"`
	Status         string                `json:"status"`
	BookingDate    string                `json:"bookingDate,omitempty"`
	Addons         []bookingAddonPayload `json:"addons,omitempty"`
	Coupon         string                `json:"coupon,omitempty"`
	TransactionID  string                `json:"transactionId,omitempty"`
	AmountPaid     int64                 `json:"amountPaid,omitempty"`
	CreatedAt      string                `json:"createdAt,omitempty"`
}

type bookingAddonPayload struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

func buildBookingPayload(booking domain.Booking) bookingPayload {
	payload := bookingPayload{
		ID:             booking.ID,
		ServiceID:      booking.ServiceID,
		ServiceName:    booking.ServiceName,
		Price:          booking.Price,
		UserEmail:      booking.UserEmail,
		DecoratorEmail: booking.DecoratorEmail,
		Status:         booking.Status,
		BookingDate:    booking.BookingDate,
		Coupon:         booking.Coupon,
		TransactionID:  booking.TransactionID,
		AmountPaid:     booking.AmountPaid,
		CreatedAt:      formatTime(booking.CreatedAt),
	}
	for _, addon := range booking.Addons {
		payload.Addons = append(payload.Addons, bookingAddonPayload{
			Name:  addon.Name,
			Price: addon.Price,
		})
	}
	return payload
}

func writeBookingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
	case errors.Is(err, services.ErrForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrBookingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrServiceNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("service_not_found", "service not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBookingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_found", "booking not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBookingNotPending):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_pending", "booking is no longer pending", http.StatusConflict))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("booking_service_unavailable", "booking repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("booking_error", "failed to process booking request", http.StatusInternalServerError))
	}
}
