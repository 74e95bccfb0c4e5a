package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/decoriva/api/internal/domain"
	"github.com/decoriva/api/internal/repositories"
)

// BookingServiceDeps bundles dependencies required to construct a BookingService.
type BookingServiceDeps struct {
	Bookings repositories.BookingRepository
	Services repositories.ServiceRepository
	Access   *AccessControl
	Clock    func() time.Time
	IDs      func() string
	Logger   func(context.Context, string, map[string]any)
}

type bookingService struct {
	bookings repositories.BookingRepository
	services repositories.ServiceRepository
	access   *AccessControl
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewBookingService wires a BookingService backed by the provided repositories.
func NewBookingService(deps BookingServiceDeps) (BookingService, error) {
	if deps.Bookings == nil {
		return nil, errors.New("booking service requires booking repository")
	}
	if deps.Services == nil {
		return nil, errors.New("booking service requires service repository")
	}
	if deps.Access == nil {
		return nil, errors.New("booking service requires access control")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDs
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &bookingService{
		bookings: deps.Bookings,
		services: deps.Services,
		access:   deps.Access,
		clock:    func() time.Time { return clock().UTC() },
		newID:    newID,
		logger:   logger,
	}, nil
}

func (s *bookingService) CreateBooking(ctx context.Context, cmd CreateBookingCommand) (domain.Booking, error) {
	caller, err := s.access.Caller(ctx)
	if err != nil {
		return domain.Booking{}, err
	}

	serviceID := strings.TrimSpace(cmd.ServiceID)
	if serviceID == "" {
		return domain.Booking{}, ErrBookingInvalidInput
	}
	for _, addon := range cmd.Addons {
		if strings.TrimSpace(addon.Name) == "" || addon.Price < 0 {
			return domain.Booking{}, ErrBookingInvalidInput
		}
	}

	service, err := s.services.FindByID(ctx, serviceID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Booking{}, ErrServiceNotFound
		}
		return domain.Booking{}, err
	}

	// The status is forced to pending; clients cannot place a booking in any
	// other state. Name and price are denormalised from the catalogue so later
	// catalogue edits leave past bookings untouched.
	booking := domain.Booking{
		ID:             s.newID(),
		ServiceID:      service.ID,
		ServiceName:    service.Name,
		Price:          service.Cost,
		UserEmail:      caller.Email,
		DecoratorEmail: strings.ToLower(strings.TrimSpace(cmd.DecoratorEmail)),
		Status:         domain.BookingStatusPending,
		BookingDate:    strings.TrimSpace(cmd.BookingDate),
		Addons:         cmd.Addons,
		Coupon:         strings.ToUpper(strings.TrimSpace(cmd.Coupon)),
		CreatedAt:      s.clock(),
	}

	if err := s.bookings.Insert(ctx, booking); err != nil {
		return domain.Booking{}, err
	}

	s.logger(ctx, "bookings.created", map[string]any{
		"bookingId": booking.ID,
		"serviceId": booking.ServiceID,
	})
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	caller, err := s.access.Caller(ctx)
	if err != nil {
		return nil, err
	}

	filter := repositories.BookingListFilter{}
	switch caller.Role {
	case domain.RoleAdmin:
	case domain.RoleDecorator:
		filter.DecoratorEmail = caller.Email
	default:
		filter.UserEmail = caller.Email
	}
	return s.bookings.List(ctx, filter)
}

func (s *bookingService) UpdateBooking(ctx context.Context, bookingID string, patch map[string]any) (domain.Booking, error) {
	caller, err := s.access.Caller(ctx)
	if err != nil {
		return domain.Booking{}, err
	}

	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" || len(patch) == 0 {
		return domain.Booking{}, ErrBookingInvalidInput
	}

	switch caller.Role {
	case domain.RoleAdmin:
		// Administrators patch fields verbatim; only the identifier is off limits.
		fields := make(map[string]any, len(patch))
		for key, value := range patch {
			if strings.EqualFold(key, "id") {
				continue
			}
			fields[key] = value
		}
		if len(fields) == 0 {
			return domain.Booking{}, ErrBookingInvalidInput
		}
		if err := s.bookings.UpdateFields(ctx, bookingID, fields); err != nil {
			return domain.Booking{}, translateBookingError(err)
		}
	case domain.RoleDecorator:
		status, err := statusOnlyPatch(patch)
		if err != nil {
			return domain.Booking{}, err
		}
		if err := s.bookings.UpdateOwnedStatus(ctx, bookingID, caller.Email, status); err != nil {
			return domain.Booking{}, translateBookingError(err)
		}
	default:
		return domain.Booking{}, ErrForbidden
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, translateBookingError(err)
	}
	s.logger(ctx, "bookings.updated", map[string]any{
		"bookingId": bookingID,
		"status":    booking.Status,
	})
	return booking, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID string) error {
	caller, err := s.access.Caller(ctx)
	if err != nil {
		return err
	}

	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return ErrBookingInvalidInput
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return translateBookingError(err)
	}
	// Non-owners learn nothing about the booking, not even that it exists.
	if err := s.access.AuthorizeOwnerOrRole(caller, booking.UserEmail, domain.RoleAdmin); err != nil {
		return ErrBookingNotFound
	}
	if booking.Status != domain.BookingStatusPending {
		return ErrBookingNotPending
	}

	if err := s.bookings.DeleteIfPending(ctx, bookingID); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			if repoErr.IsNotFound() {
				return ErrBookingNotFound
			}
			if repoErr.IsConflict() {
				return ErrBookingNotPending
			}
		}
		return err
	}

	s.logger(ctx, "bookings.cancelled", map[string]any{
		"bookingId": bookingID,
	})
	return nil
}

// statusOnlyPatch accepts exactly one field, status, with a known value.
func statusOnlyPatch(patch map[string]any) (string, error) {
	if len(patch) != 1 {
		return "", ErrForbidden
	}
	raw, ok := patch["status"]
	if !ok {
		return "", ErrForbidden
	}
	status, ok := raw.(string)
	if !ok {
		return "", ErrBookingInvalidInput
	}
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case domain.BookingStatusPending, domain.BookingStatusPaid,
		domain.BookingStatusCancelled, domain.BookingStatusCompleted:
		return status, nil
	}
	return "", ErrBookingInvalidInput
}

func translateBookingError(err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrBookingNotFound
	}
	return err
}
