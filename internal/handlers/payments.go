package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/decoriva/api/internal/platform/auth"
	"github.com/decoriva/api/internal/platform/httpx"
	"github.com/decoriva/api/internal/repositories"
	"github.com/decoriva/api/internal/services"
)

// PaymentHandlers exposes checkout session creation and settlement verification.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{
		authn:    authn,
		payments: payments,
	}
}

// Routes wires the checkout endpoints onto the provided router. The paths span
// two top-level routes so the registrar attaches directly.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(g chi.Router) {
		if h.authn != nil {
			g.Use(h.authn.RequireAuth())
		}
		g.Post("/create-checkout-session", h.createCheckoutSession)
		g.Post("/payments/verify", h.verifyPayment)
	})
}

func (h *PaymentHandlers) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	result, err := h.payments.CreateCheckoutSession(ctx, services.CheckoutCommand{
		BookingID:  strings.TrimSpace(req.BookingID),
		SuccessURL: strings.TrimSpace(req.SuccessURL),
		CancelURL:  strings.TrimSpace(req.CancelURL),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutResponse{
		SessionID:   result.SessionID,
		RedirectURL: result.RedirectURL,
		Amount:      result.Amount,
		Currency:    result.Currency,
		ExpiresAt:   formatTime(result.ExpiresAt),
	})
}

func (h *PaymentHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req verifyPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sessionId is required", http.StatusBadRequest))
		return
	}

	booking, err := h.payments.VerifyAndSettle(ctx, services.VerifyPaymentCommand{
		SessionID: strings.TrimSpace(req.SessionID),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, bookingResponse{Booking: buildBookingPayload(booking)})
}

type checkoutRequest struct {
	BookingID  string `json:"bookingId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type checkoutResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

type verifyPaymentRequest struct {
	SessionID string `json:"sessionId"`
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
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
	case errors.Is(err, services.ErrBookingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("booking_not_found", "booking not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentNotPaid):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_completed", "payment has not completed", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentProviderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_unavailable", "payment provider is unreachable", http.StatusBadGateway))
	case errors.Is(err, services.ErrPaymentProvider):
		// The provider rejected the request; its reason goes back to the client.
		httpx.WriteError(ctx, w, httpx.NewError("payment_provider_error", err.Error(), http.StatusBadRequest))
	default:
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
			httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "booking repository unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusInternalServerError))
	}
}
