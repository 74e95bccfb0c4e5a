package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/repositories"
)

func newBookingService(t *testing.T, bookings repositories.BookingRepository, services repositories.ServiceRepository, roles map[string]string) BookingService {
	t.Helper()
	access, err := NewAccessControl(roleRepo(roles))
	if err != nil {
		t.Fatalf("NewAccessControl: %v", err)
	}
	svc, err := NewBookingService(BookingServiceDeps{
		Bookings: bookings,
		Services: services,
		Access:   access,
		Clock:    func() time.Time { return time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC) },
		IDs:      func() string { return "bk_test" },
	})
	if err != nil {
		t.Fatalf("NewBookingService: %v", err)
	}
	return svc
}

func TestCreateBookingForcesPendingAndDenormalises(t *testing.T) {
	var inserted domain.Booking
	bookings := &stubBookingRepo{
		insertFn: func(_ context.Context, booking domain.Booking) error {
			inserted = booking
			return nil
		},
	}
	services := &stubServiceRepo{
		findFn: func(_ context.Context, serviceID string) (domain.Service, error) {
			return domain.Service{ID: serviceID, Name: "Wedding Decoration", Cost: 10000}, nil
		},
	}

	svc := newBookingService(t, bookings, services, nil)
	booking, err := svc.CreateBooking(identityCtx("guest@example.com"), CreateBookingCommand{
		ServiceID:      "svc_1",
		DecoratorEmail: "Deco@Example.com",
		BookingDate:    "2025-08-01",
		Addons:         []domain.BookingAddon{{Name: "lighting", Price: 800}},
		Coupon:         "save10",
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if inserted.Status != domain.BookingStatusPending {
		t.Fatalf("expected pending status, got %q", inserted.Status)
	}
	if inserted.ServiceName != "Wedding Decoration" || inserted.Price != 10000 {
		t.Fatalf("expected denormalised service fields, got %#v", inserted)
	}
	if inserted.UserEmail != "guest@example.com" {
		t.Fatalf("expected caller email, got %q", inserted.UserEmail)
	}
	if inserted.DecoratorEmail != "deco@example.com" {
		t.Fatalf("expected normalised decorator email, got %q", inserted.DecoratorEmail)
	}
	if inserted.Coupon != "SAVE10" {
		t.Fatalf("expected upper-cased coupon, got %q", inserted.Coupon)
	}
	if booking.ID != "bk_test" {
		t.Fatalf("expected generated id, got %q", booking.ID)
	}
}

func TestCreateBookingUnknownService(t *testing.T) {
	svc := newBookingService(t, &stubBookingRepo{}, &stubServiceRepo{}, nil)
	if _, err := svc.CreateBooking(identityCtx("guest@example.com"), CreateBookingCommand{ServiceID: "missing"}); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestListBookingsScopesByRole(t *testing.T) {
	var captured repositories.BookingListFilter
	bookings := &stubBookingRepo{
		listFn: func(_ context.Context, filter repositories.BookingListFilter) ([]domain.Booking, error) {
			captured = filter
			return nil, nil
		},
	}
	roles := map[string]string{
		"admin@example.com": domain.RoleAdmin,
		"deco@example.com":  domain.RoleDecorator,
		"guest@example.com": domain.RoleUser,
	}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, roles)

	if _, err := svc.ListBookings(identityCtx("guest@example.com")); err != nil {
		t.Fatalf("ListBookings user: %v", err)
	}
	if captured.UserEmail != "guest@example.com" || captured.DecoratorEmail != "" {
		t.Fatalf("expected user scope, got %#v", captured)
	}

	if _, err := svc.ListBookings(identityCtx("deco@example.com")); err != nil {
		t.Fatalf("ListBookings decorator: %v", err)
	}
	if captured.DecoratorEmail != "deco@example.com" || captured.UserEmail != "" {
		t.Fatalf("expected decorator scope, got %#v", captured)
	}

	if _, err := svc.ListBookings(identityCtx("admin@example.com")); err != nil {
		t.Fatalf("ListBookings admin: %v", err)
	}
	if captured.UserEmail != "" || captured.DecoratorEmail != "" {
		t.Fatalf("expected unscoped admin listing, got %#v", captured)
	}
}

func TestUpdateBookingAdminStripsID(t *testing.T) {
	var fields map[string]any
	bookings := &stubBookingRepo{
		updateFieldsFn: func(_ context.Context, _ string, patch map[string]any) error {
			fields = patch
			return nil
		},
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			return domain.Booking{ID: bookingID, Status: domain.BookingStatusCompleted}, nil
		},
	}
	roles := map[string]string{"admin@example.com": domain.RoleAdmin}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, roles)

	booking, err := svc.UpdateBooking(identityCtx("admin@example.com"), "bk_1", map[string]any{
		"id":     "bk_other",
		"status": "completed",
		"price":  int64(9999),
	})
	if err != nil {
		t.Fatalf("UpdateBooking: %v", err)
	}
	if _, ok := fields["id"]; ok {
		t.Fatal("identifier must not be patchable")
	}
	if fields["status"] != "completed" || fields["price"] != int64(9999) {
		t.Fatalf("expected verbatim patch, got %#v", fields)
	}
	if booking.Status != domain.BookingStatusCompleted {
		t.Fatalf("expected refreshed booking, got %#v", booking)
	}
}

func TestUpdateBookingDecoratorStatusOnly(t *testing.T) {
	var gotEmail, gotStatus string
	bookings := &stubBookingRepo{
		updateOwnedStatusFn: func(_ context.Context, _ string, decoratorEmail string, status string) error {
			gotEmail, gotStatus = decoratorEmail, status
			return nil
		},
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			return domain.Booking{ID: bookingID, Status: domain.BookingStatusCompleted}, nil
		},
	}
	roles := map[string]string{"deco@example.com": domain.RoleDecorator}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, roles)
	ctx := identityCtx("deco@example.com")

	if _, err := svc.UpdateBooking(ctx, "bk_1", map[string]any{"status": "completed"}); err != nil {
		t.Fatalf("UpdateBooking: %v", err)
	}
	if gotEmail != "deco@example.com" || gotStatus != domain.BookingStatusCompleted {
		t.Fatalf("unexpected owned update %q %q", gotEmail, gotStatus)
	}

	if _, err := svc.UpdateBooking(ctx, "bk_1", map[string]any{"price": 1}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-status patch, got %v", err)
	}
	if _, err := svc.UpdateBooking(ctx, "bk_1", map[string]any{"status": "completed", "price": 1}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for mixed patch, got %v", err)
	}
	if _, err := svc.UpdateBooking(ctx, "bk_1", map[string]any{"status": "shipped"}); !errors.Is(err, ErrBookingInvalidInput) {
		t.Fatalf("expected ErrBookingInvalidInput for unknown status, got %v", err)
	}
}

func TestUpdateBookingDecoratorForeignBookingIsNotFound(t *testing.T) {
	bookings := &stubBookingRepo{
		updateOwnedStatusFn: func(context.Context, string, string, string) error {
			return notFoundErr()
		},
	}
	roles := map[string]string{"deco@example.com": domain.RoleDecorator}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, roles)

	if _, err := svc.UpdateBooking(identityCtx("deco@example.com"), "bk_foreign", map[string]any{"status": "completed"}); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestUpdateBookingPlainUserForbidden(t *testing.T) {
	svc := newBookingService(t, &stubBookingRepo{}, &stubServiceRepo{}, nil)
	if _, err := svc.UpdateBooking(identityCtx("guest@example.com"), "bk_1", map[string]any{"status": "paid"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancelBookingDeletesPending(t *testing.T) {
	deleted := false
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			return domain.Booking{ID: bookingID, UserEmail: "guest@example.com", Status: domain.BookingStatusPending}, nil
		},
		deleteIfPendingFn: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, nil)

	if err := svc.CancelBooking(identityCtx("guest@example.com"), "bk_1"); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if !deleted {
		t.Fatal("expected pending booking to be deleted")
	}
}

func TestCancelBookingRejectsNonPending(t *testing.T) {
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			return domain.Booking{ID: bookingID, UserEmail: "guest@example.com", Status: domain.BookingStatusPaid}, nil
		},
	}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, nil)

	if err := svc.CancelBooking(identityCtx("guest@example.com"), "bk_1"); !errors.Is(err, ErrBookingNotPending) {
		t.Fatalf("expected ErrBookingNotPending, got %v", err)
	}
}

func TestCancelBookingRaceReportsNotPending(t *testing.T) {
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			return domain.Booking{ID: bookingID, UserEmail: "guest@example.com", Status: domain.BookingStatusPending}, nil
		},
		deleteIfPendingFn: func(context.Context, string) error {
			// Payment settled between the read and the delete.
			return conflictErr()
		},
	}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, nil)

	if err := svc.CancelBooking(identityCtx("guest@example.com"), "bk_1"); !errors.Is(err, ErrBookingNotPending) {
		t.Fatalf("expected ErrBookingNotPending, got %v", err)
	}
}

func TestCancelBookingHidesForeignBookings(t *testing.T) {
	bookings := &stubBookingRepo{
		findFn: func(_ context.Context, bookingID string) (domain.Booking, error) {
			return domain.Booking{ID: bookingID, UserEmail: "owner@example.com", Status: domain.BookingStatusPending}, nil
		},
	}
	svc := newBookingService(t, bookings, &stubServiceRepo{}, nil)

	if err := svc.CancelBooking(identityCtx("other@example.com"), "bk_1"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}
