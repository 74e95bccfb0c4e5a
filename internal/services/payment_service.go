package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/payments"
	"github.com/decoriva/api/internal/repositories"
)

// PaymentServiceDeps bundles dependencies required to construct a PaymentService.
type PaymentServiceDeps struct {
	Bookings  repositories.BookingRepository
	Provider  payments.Provider
	Pricing   *PricingCalculator
	Access    *AccessControl
	Publisher BookingEventPublisher
	Currency  string
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

type paymentService struct {
	bookings  repositories.BookingRepository
	provider  payments.Provider
	pricing   *PricingCalculator
	access    *AccessControl
	publisher BookingEventPublisher
	currency  string
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewPaymentService wires a PaymentService over the booking store and the
// payment provider.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("payment service requires booking repository")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment service requires payment provider")
	}
	if deps.Pricing == nil {
		return nil, errors.New("payment service requires pricing calculator")
	}
	if deps.Access == nil {
		return nil, errors.New("payment service requires access control")
	}

	currency := strings.ToLower(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "usd"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		bookings:  deps.Bookings,
		provider:  deps.Provider,
		pricing:   deps.Pricing,
		access:    deps.Access,
		publisher: deps.Publisher,
		currency:  currency,
		clock:     func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

func (s *paymentService) CreateCheckoutSession(ctx context.Context, cmd CheckoutCommand) (CheckoutSessionResult, error) {
	caller, err := s.access.Caller(ctx)
	if err != nil {
		return CheckoutSessionResult{}, err
	}

	bookingID := strings.TrimSpace(cmd.BookingID)
	if bookingID == "" {
		return CheckoutSessionResult{}, ErrBookingInvalidInput
	}

	// Any authenticated identity may open a checkout session; ownership is
	// established when the payment is verified, not when it is initiated.
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return CheckoutSessionResult{}, translateBookingError(err)
	}

	quote, err := s.pricing.Quote(booking.Price, booking.Addons, booking.Coupon)
	if err != nil {
		return CheckoutSessionResult{}, err
	}

	coupon := booking.Coupon
	if coupon == "" {
		coupon = "none"
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Amount:        quote.FinalAmount * 100,
		Currency:      s.currency,
		CustomerEmail: caller.Email,
		SuccessURL:    strings.TrimSpace(cmd.SuccessURL),
		CancelURL:     strings.TrimSpace(cmd.CancelURL),
		Metadata: map[string]string{
			"bookingId": booking.ID,
			"email":     caller.Email,
			"coupon":    coupon,
		},
		IdempotencyKey: booking.ID + "-checkout",
		Items: []payments.CheckoutLineItem{
			{
				Name:        booking.ServiceName,
				Description: checkoutDescription(booking, quote),
				Quantity:    1,
				Amount:      quote.FinalAmount * 100,
			},
		},
	})
	if err != nil {
		s.logger(ctx, "payments.session_failed", map[string]any{
			"bookingId": booking.ID,
		})
		return CheckoutSessionResult{}, translateProviderError(err)
	}

	s.logger(ctx, "payments.session_created", map[string]any{
		"bookingId": booking.ID,
		"sessionId": session.ID,
		"amount":    quote.FinalAmount,
	})
	return CheckoutSessionResult{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		Amount:      quote.FinalAmount,
		Currency:    s.currency,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

func (s *paymentService) VerifyAndSettle(ctx context.Context, cmd VerifyPaymentCommand) (domain.Booking, error) {
	if _, err := s.access.Caller(ctx); err != nil {
		return domain.Booking{}, err
	}

	sessionID := strings.TrimSpace(cmd.SessionID)
	if sessionID == "" {
		return domain.Booking{}, ErrBookingInvalidInput
	}

	details, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return domain.Booking{}, translateProviderError(err)
	}

	bookingID := strings.TrimSpace(details.Metadata["bookingId"])
	if bookingID == "" {
		return domain.Booking{}, fmt.Errorf("%w: session %s carries no booking reference", ErrPaymentProvider, sessionID)
	}

	if !details.Settled() {
		return domain.Booking{}, ErrPaymentNotPaid
	}

	// The settle write is idempotent: verifying the same session twice lands
	// the same status, transaction id, and charged amount.
	if err := s.bookings.Settle(ctx, bookingID, details.IntentID, details.AmountTotal/100); err != nil {
		return domain.Booking{}, translateBookingError(err)
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, translateBookingError(err)
	}

	s.logger(ctx, "payments.settled", map[string]any{
		"bookingId": booking.ID,
		"sessionId": sessionID,
	})

	if s.publisher != nil {
		message := BookingEventMessage{
			Event:         "booking.settled",
			BookingID:     booking.ID,
			ServiceID:     booking.ServiceID,
			UserEmail:     booking.UserEmail,
			Amount:        booking.AmountPaid,
			TransactionID: booking.TransactionID,
			OccurredAt:    s.clock(),
		}
		if _, err := s.publisher.PublishBookingEvent(ctx, message); err != nil {
			// Settlement already landed; the event is advisory.
			s.logger(ctx, "payments.event_publish_failed", map[string]any{
				"bookingId": booking.ID,
			})
		}
	}
	return booking, nil
}

func translateProviderError(err error) error {
	if errors.Is(err, payments.ErrUnavailable) {
		return fmt.Errorf("%w: %v", ErrPaymentProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrPaymentProvider, err)
}

func checkoutDescription(booking domain.Booking, quote PriceQuote) string {
	description := fmt.Sprintf("base %d", booking.Price)
	if quote.AddonsTotal > 0 {
		description += fmt.Sprintf(" + addons %d", quote.AddonsTotal)
	}
	if quote.DiscountAmount > 0 {
		description += fmt.Sprintf(" - %s %d", booking.Coupon, quote.DiscountAmount)
	}
	return description
}
