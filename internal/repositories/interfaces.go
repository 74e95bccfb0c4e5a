package repositories

import (
	"context"

	domain "github.com/decoriva/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UserRepository persists user profiles keyed by lowercased email address.
type UserRepository interface {
	// Ensure upserts the profile fields for the address while preserving any
	// role already granted to the account.
	Ensure(ctx context.Context, user domain.User) (domain.User, error)
	Find(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateRole(ctx context.Context, email string, role string) error
	Count(ctx context.Context) (int64, error)
}

// ServiceListFilter narrows catalogue queries. Zero values mean "no constraint".
type ServiceListFilter struct {
	Category string
	Location string
	MaxCost  int64
}

// ServiceRepository persists the decoration service catalogue.
type ServiceRepository interface {
	Insert(ctx context.Context, service domain.Service) error
	Update(ctx context.Context, service domain.Service) error
	Delete(ctx context.Context, serviceID string) error
	FindByID(ctx context.Context, serviceID string) (domain.Service, error)
	List(ctx context.Context, filter ServiceListFilter) ([]domain.Service, error)
	DistinctLocations(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// BookingListFilter scopes booking listings to a principal. Zero values list everything.
type BookingListFilter struct {
	UserEmail      string
	DecoratorEmail string
}

// BookingRepository persists bookings and enforces document-level state transitions.
type BookingRepository interface {
	Insert(ctx context.Context, booking domain.Booking) error
	FindByID(ctx context.Context, bookingID string) (domain.Booking, error)
	// List returns bookings matching the filter, newest first.
	List(ctx context.Context, filter BookingListFilter) ([]domain.Booking, error)
	// UpdateFields applies the supplied field map verbatim to the document.
	UpdateFields(ctx context.Context, bookingID string, fields map[string]any) error
	// UpdateOwnedStatus transitions the status of a booking assigned to the
	// decorator. A missing booking and a booking assigned elsewhere are
	// reported identically as not found.
	UpdateOwnedStatus(ctx context.Context, bookingID string, decoratorEmail string, status string) error
	// Settle marks the booking paid, recording the provider transaction and
	// the amount charged. Re-settling writes the same values again; a booking
	// already completed is left untouched.
	Settle(ctx context.Context, bookingID string, transactionID string, amount int64) error
	// DeleteIfPending removes the booking only while it is still pending,
	// reporting a conflict once payment has started.
	DeleteIfPending(ctx context.Context, bookingID string) error
	Count(ctx context.Context) (int64, error)
	// SumSettledRevenue totals the charged amounts of paid and completed bookings.
	SumSettledRevenue(ctx context.Context) (int64, error)
}

// DecoratorRequestRepository persists decorator promotion requests.
type DecoratorRequestRepository interface {
	Insert(ctx context.Context, request domain.DecoratorRequest) error
	FindByID(ctx context.Context, requestID string) (domain.DecoratorRequest, error)
	FindByEmail(ctx context.Context, email string) (domain.DecoratorRequest, error)
	List(ctx context.Context, status string) ([]domain.DecoratorRequest, error)
	UpdateStatus(ctx context.Context, requestID string, status string) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
