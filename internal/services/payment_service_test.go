package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/payments"
	"github.com/decoriva/api/internal/repositories"
)

func newPaymentService(t *testing.T, bookings repositories.BookingRepository, provider payments.Provider, publisher BookingEventPublisher) PaymentService {
	t.Helper()
	access, err := NewAccessControl(roleRepo(nil))
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	pricing, err := NewPricingCalculator(map[string]float64{"SAVE10": 0.10})
	if err != nil {
		t.Fatalf("NewPricingCalculator: %v", err)
	}
	svc, err := NewPaymentService(PaymentServiceDeps{
		Bookings:  bookings,
		Provider:  provider,
		Pricing:   pricing,
		Access:    access,
		Publisher: publisher,
		Currency:  "usd",
		Clock:     func() time.Time { return time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewPaymentService: %v", err)
	}
	return svc
}

func pendingBooking() domain.Booking {
	return domain.Booking{
		ID:          "bk_1",
		ServiceID:   "svc_1",
		ServiceName: "Wedding Decoration",
		Price:       100,
		UserEmail:   "guest@example.com",
		Status:      domain.BookingStatusPending,
		Addons:      []domain.BookingAddon{{Name: "lighting", Price: 20}},
		Coupon:      "SAVE10",
	}
}

func TestCreateCheckoutSessionConvertsToMinorUnits(t *testing.T) {
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, _ string) (domain.Booking, error) {
			return pendingBooking(), nil
		},
	}
	var captured payments.CheckoutSessionRequest
	provider := &stubPaymentProvider{
		createFn: func(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
			captured = req
			return payments.CheckoutSession{ID: "cs_1", RedirectURL: "https://pay.test/cs_1"}, nil
		},
	}
	svc := newPaymentService(t, bookings, provider, nil)

	result, err := svc.CreateCheckoutSession(identityCtx("guest@example.com"), CheckoutCommand{
		BookingID:  "bk_1",
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}

	// 100 + 20 with SAVE10 gives a 12 discount and 108 due; the provider sees cents.
	if captured.Amount != 10800 {
		t.Fatalf("expected 10800 minor units, got %d", captured.Amount)
	}
	if len(captured.Items) != 1 {
		t.Fatalf("expected one line item, got %d", len(captured.Items))
	}
	if captured.Items[0].Description != "base 100 + addons 20 - SAVE10 12" {
		t.Fatalf("unexpected line item description %q", captured.Items[0].Description)
	}
	if captured.Metadata["bookingId"] != "bk_1" || captured.Metadata["email"] != "guest@example.com" {
		t.Fatalf("unexpected metadata %#v", captured.Metadata)
	}
	if captured.Metadata["coupon"] != "SAVE10" {
		t.Fatalf("expected coupon metadata, got %q", captured.Metadata["coupon"])
	}
	if captured.IdempotencyKey != "bk_1-checkout" {
		t.Fatalf("expected idempotency key, got %q", captured.IdempotencyKey)
	}
	if result.Amount != 108 || result.SessionID != "cs_1" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestCreateCheckoutSessionCouponNonePlaceholder(t *testing.T) {
	booking := pendingBooking()
	booking.Coupon = ""
	booking.Addons = nil
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, _ string) (domain.Booking, error) {
			return booking, nil
		},
	}
	var captured payments.CheckoutSessionRequest
	provider := &stubPaymentProvider{
		createFn: func(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
			captured = req
			return payments.CheckoutSession{ID: "cs_1"}, nil
		},
	}
	svc := newPaymentService(t, bookings, provider, nil)

	if _, err := svc.CreateCheckoutSession(identityCtx("guest@example.com"), CheckoutCommand{BookingID: "bk_1"}); err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if captured.Metadata["coupon"] != "none" {
		t.Fatalf("expected coupon placeholder none, got %q", captured.Metadata["coupon"])
	}
	if captured.Amount != 10000 {
		t.Fatalf("expected undiscounted 10000 minor units, got %d", captured.Amount)
	}
}

func TestCreateCheckoutSessionProviderRejection(t *testing.T) {
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, _ string) (domain.Booking, error) {
			return pendingBooking(), nil
		},
	}
	provider := &stubPaymentProvider{
		createFn: func(context.Context, payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
			return payments.CheckoutSession{}, errors.New("amount too small")
		},
	}
	svc := newPaymentService(t, bookings, provider, nil)

	_, err := svc.CreateCheckoutSession(identityCtx("guest@example.com"), CheckoutCommand{BookingID: "bk_1"})
	if !errors.Is(err, ErrPaymentProvider) {
		t.Fatalf("expected ErrPaymentProvider, got %v", err)
	}
	if errors.Is(err, ErrPaymentProviderUnavailable) {
		t.Fatalf("a rejection must not read as unavailability: %v", err)
	}
}

func TestCreateCheckoutSessionProviderUnavailable(t *testing.T) {
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, _ string) (domain.Booking, error) {
			return pendingBooking(), nil
		},
	}
	provider := &stubPaymentProvider{
		createFn: func(context.Context, payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
			return payments.CheckoutSession{}, fmt.Errorf("%w: dial tcp: connection refused", payments.ErrUnavailable)
		},
	}
	svc := newPaymentService(t, bookings, provider, nil)

	if _, err := svc.CreateCheckoutSession(identityCtx("guest@example.com"), CheckoutCommand{BookingID: "bk_1"}); !errors.Is(err, ErrPaymentProviderUnavailable) {
		t.Fatalf("expected ErrPaymentProviderUnavailable, got %v", err)
	}
}

// Checkout is open to any authenticated identity; ownership is established at
// verification time, not when the session is opened.
func TestCreateCheckoutSessionAllowsNonOwner(t *testing.T) {
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, _ string) (domain.Booking, error) {
			return pendingBooking(), nil
		},
	}
	var captured payments.CheckoutSessionRequest
	provider := &stubPaymentProvider{
		createFn: func(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
			captured = req
			return payments.CheckoutSession{ID: "cs_1"}, nil
		},
	}
	svc := newPaymentService(t, bookings, provider, nil)

	if _, err := svc.CreateCheckoutSession(identityCtx("other@example.com"), CheckoutCommand{BookingID: "bk_1"}); err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	// The session is attributed to whoever is paying, not the booking owner.
	if captured.Metadata["email"] != "other@example.com" {
		t.Fatalf("expected caller email in metadata, got %q", captured.Metadata["email"])
	}
	if captured.CustomerEmail != "other@example.com" {
		t.Fatalf("expected caller email on session, got %q", captured.CustomerEmail)
	}
}

func TestVerifyAndSettleMarksBookingPaid(t *testing.T) {
	settledID, settledTxn, settledAmount := "", "", int64(0)
	bookings := &stubBookingRepo{
		settleFn: func(_ context.Context, bookingID string, transactionID string, amount int64) error {
			settledID, settledTxn, settledAmount = bookingID, transactionID, amount
			return nil
		},
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			booking := pendingBooking()
			booking.ID = bookingID
			booking.Status = domain.BookingStatusPaid
			booking.TransactionID = "pi_123"
			booking.AmountPaid = 108
			return booking, nil
		},
	}
	provider := &stubPaymentProvider{
		retrieveFn: func(_ context.Context, sessionID string) (payments.SessionDetails, error) {
			return payments.SessionDetails{
				ID:            sessionID,
				PaymentStatus: payments.StatusPaid,
				IntentID:      "pi_123",
				AmountTotal:   10800,
				Metadata:      map[string]string{"bookingId": "bk_1"},
			}, nil
		},
	}
	publisher := &stubPublisher{}
	svc := newPaymentService(t, bookings, provider, publisher)

	booking, err := svc.VerifyAndSettle(identityCtx("guest@example.com"), VerifyPaymentCommand{SessionID: "cs_1"})
	if err != nil {
		t.Fatalf("VerifyAndSettle: %v", err)
	}
	if settledID != "bk_1" || settledTxn != "pi_123" {
		t.Fatalf("unexpected settle write %q %q", settledID, settledTxn)
	}
	// The provider reports cents; the booking stores major units.
	if settledAmount != 108 {
		t.Fatalf("expected settled amount 108, got %d", settledAmount)
	}
	if booking.Status != domain.BookingStatusPaid {
		t.Fatalf("expected paid booking, got %q", booking.Status)
	}
	if len(publisher.messages) != 1 || publisher.messages[0].Event != "booking.settled" {
		t.Fatalf("expected settlement event, got %#v", publisher.messages)
	}
	if publisher.messages[0].Amount != 108 {
		t.Fatalf("expected settled amount on event, got %d", publisher.messages[0].Amount)
	}
}

func TestVerifyAndSettleIsRepeatable(t *testing.T) {
	settleCalls := 0
	bookings := &stubBookingRepo{
		settleFn: func(context.Context, string, string, int64) error {
			settleCalls++
			return nil
		},
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			booking := pendingBooking()
			booking.ID = bookingID
			booking.Status = domain.BookingStatusPaid
			return booking, nil
		},
	}
	provider := &stubPaymentProvider{
		retrieveFn: func(_ context.Context, sessionID string) (payments.SessionDetails, error) {
			return payments.SessionDetails{
				ID:            sessionID,
				PaymentStatus: payments.StatusPaid,
				IntentID:      "pi_123",
				AmountTotal:   10800,
				Metadata:      map[string]string{"bookingId": "bk_1"},
			}, nil
		},
	}
	svc := newPaymentService(t, bookings, provider, nil)

	ctx := identityCtx("guest@example.com")
	first, err := svc.VerifyAndSettle(ctx, VerifyPaymentCommand{SessionID: "cs_1"})
	if err != nil {
		t.Fatalf("first VerifyAndSettle: %v", err)
	}
	second, err := svc.VerifyAndSettle(ctx, VerifyPaymentCommand{SessionID: "cs_1"})
	if err != nil {
		t.Fatalf("second VerifyAndSettle: %v", err)
	}
	if first.Status != second.Status || first.ID != second.ID {
		t.Fatalf("expected convergent results, got %#v and %#v", first, second)
	}
	if settleCalls != 2 {
		t.Fatalf("expected both replays to write, got %d", settleCalls)
	}
}

// A stale verification replayed after the decorator finished the job must not
// pull the booking back to paid. The repository leaves completed bookings
// untouched; the service just reports the current state.
func TestVerifyAndSettleLeavesCompletedBookingAlone(t *testing.T) {
	bookings := &stubBookingRepo{
		settleFn: func(context.Context, string, string, int64) error {
			// No-op write, as the repository behaves for completed bookings.
			return nil
		},
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			booking := pendingBooking()
			booking.ID = bookingID
			booking.Status = domain.BookingStatusCompleted
			booking.TransactionID = "pi_123"
			booking.AmountPaid = 108
			return booking, nil
		},
	}
	provider := &stubPaymentProvider{
		retrieveFn: func(_ context.Context, sessionID string) (payments.SessionDetails, error) {
			return payments.SessionDetails{
				ID:            sessionID,
				PaymentStatus: payments.StatusPaid,
				IntentID:      "pi_123",
				AmountTotal:   10800,
				Metadata:      map[string]string{"bookingId": "bk_1"},
			}, nil
		},
	}
	svc := newPaymentService(t, bookings, provider, nil)

	booking, err := svc.VerifyAndSettle(identityCtx("guest@example.com"), VerifyPaymentCommand{SessionID: "cs_1"})
	if err != nil {
		t.Fatalf("VerifyAndSettle: %v", err)
	}
	if booking.Status != domain.BookingStatusCompleted {
		t.Fatalf("expected booking to stay completed, got %q", booking.Status)
	}
}

func TestVerifyAndSettleUnpaidSession(t *testing.T) {
	provider := &stubPaymentProvider{
		retrieveFn: func(_ context.Context, sessionID string) (payments.SessionDetails, error) {
			return payments.SessionDetails{
				ID:            sessionID,
				PaymentStatus: payments.StatusUnpaid,
				Metadata:      map[string]string{"bookingId": "bk_1"},
			}, nil
		},
	}
	svc := newPaymentService(t, &stubBookingRepo{}, provider, nil)

	if _, err := svc.VerifyAndSettle(identityCtx("guest@example.com"), VerifyPaymentCommand{SessionID: "cs_1"}); !errors.Is(err, ErrPaymentNotPaid) {
		t.Fatalf("expected ErrPaymentNotPaid, got %v", err)
	}
}

func TestVerifyAndSettleProviderUnavailable(t *testing.T) {
	provider := &stubPaymentProvider{
		retrieveFn: func(context.Context, string) (payments.SessionDetails, error) {
			return payments.SessionDetails{}, fmt.Errorf("%w: dial tcp: connection refused", payments.ErrUnavailable)
		},
	}
	svc := newPaymentService(t, &stubBookingRepo{}, provider, nil)

	if _, err := svc.VerifyAndSettle(identityCtx("guest@example.com"), VerifyPaymentCommand{SessionID: "cs_1"}); !errors.Is(err, ErrPaymentProviderUnavailable) {
		t.Fatalf("expected ErrPaymentProviderUnavailable, got %v", err)
	}
}

func TestVerifyAndSettlePublishFailureDoesNotFail(t *testing.T) {
	bookings := &stubBookingRepo{
		settleFn: func(context.Context, string, string, int64) error { return nil },
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			booking := pendingBooking()
			booking.ID = bookingID
			booking.Status = domain.BookingStatusPaid
			return booking, nil
		},
	}
	provider := &stubPaymentProvider{
		retrieveFn: func(_ context.Context, sessionID string) (payments.SessionDetails, error) {
			return payments.SessionDetails{
				ID:            sessionID,
				PaymentStatus: payments.StatusPaid,
				AmountTotal:   10800,
				Metadata:      map[string]string{"bookingId": "bk_1"},
			}, nil
		},
	}
	publisher := &stubPublisher{err: errors.New("topic gone")}
	svc := newPaymentService(t, bookings, provider, publisher)

	if _, err := svc.VerifyAndSettle(identityCtx("guest@example.com"), VerifyPaymentCommand{SessionID: "cs_1"}); err != nil {
		t.Fatalf("settlement must survive publish failure: %v", err)
	}
}
