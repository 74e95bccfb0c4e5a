package services

import (
	"context"
	"time"

	domain "github.com/decoriva/api/internal/domain"
)

// UserService manages the account registry and role assignments.
type UserService interface {
	// EnsureUser upserts the caller's profile, creating the registry entry with
	// the user role on first authenticated contact.
	EnsureUser(ctx context.Context, cmd EnsureUserCommand) (domain.User, error)
	// RoleOf resolves the stored role for the address. Callers may only ask
	// about themselves unless they are administrators.
	RoleOf(ctx context.Context, email string) (string, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ChangeRole(ctx context.Context, email string, role string) (domain.User, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// EnsureUserCommand carries the profile fields synced on sign-in.
type EnsureUserCommand struct {
	Name     string
	PhotoURL string
}

// CatalogService manages the decoration service catalogue.
type CatalogService interface {
	ListServices(ctx context.Context, query ServiceQuery) (ServicePage, error)
	Locations(ctx context.Context) ([]string, error)
	GetService(ctx context.Context, serviceID string) (domain.Service, error)
	CreateService(ctx context.Context, cmd ServiceCommand) (domain.Service, error)
	UpdateService(ctx context.Context, serviceID string, cmd ServiceCommand) (domain.Service, error)
	DeleteService(ctx context.Context, serviceID string) error
}

// ServiceQuery narrows and pages catalogue listings.
type ServiceQuery struct {
	Category string
	Location string
	MinCost  int64
	MaxCost  int64
	Search   string
	Page     int
	Limit    int
}

// ServicePage is one page of catalogue results plus the unpaged total.
type ServicePage struct {
	Services []domain.Service
	Total    int
	Page     int
	Limit    int
}

// ServiceCommand carries the catalogue fields accepted from administrators.
type ServiceCommand struct {
	Name        string
	Category    string
	Location    string
	Cost        int64
	Description string
	Image       string
	Rating      float64
}

// BookingService drives the booking lifecycle.
type BookingService interface {
	// CreateBooking records a new booking. The status always starts pending
	// regardless of what the caller supplies.
	CreateBooking(ctx context.Context, cmd CreateBookingCommand) (domain.Booking, error)
	// ListBookings returns the bookings visible to the caller: their own for
	// users, assigned ones for decorators, everything for administrators.
	ListBookings(ctx context.Context) ([]domain.Booking, error)
	// UpdateBooking patches the booking. Administrators may change any field
	// except the identifier; decorators may only move the status of bookings
	// assigned to them.
	UpdateBooking(ctx context.Context, bookingID string, patch map[string]any) (domain.Booking, error)
	// CancelBooking removes the booking while it is still pending.
	CancelBooking(ctx context.Context, bookingID string) error
}

// CreateBookingCommand carries the fields accepted when placing a booking.
type CreateBookingCommand struct {
	ServiceID      string
	DecoratorEmail string
	BookingDate    string
	Addons         []domain.BookingAddon
	Coupon         string
}

// PaymentService bridges bookings to the payment provider.
type PaymentService interface {
	CreateCheckoutSession(ctx context.Context, cmd CheckoutCommand) (CheckoutSessionResult, error)
	// VerifyAndSettle reconciles the provider session with the booking.
	// Replaying a settled session converges on the same stored state.
	VerifyAndSettle(ctx context.Context, cmd VerifyPaymentCommand) (domain.Booking, error)
}

// CheckoutCommand identifies the booking to pay for and the redirect targets.
type CheckoutCommand struct {
	BookingID  string
	SuccessURL string
	CancelURL  string
}

// CheckoutSessionResult is returned to the client to start the hosted payment flow.
type CheckoutSessionResult struct {
	SessionID   string
	RedirectURL string
	Amount      int64
	Currency    string
	ExpiresAt   time.Time
}

// VerifyPaymentCommand identifies the provider session to reconcile.
type VerifyPaymentCommand struct {
	SessionID string
}

// DecoratorRequestService runs the decorator promotion workflow.
type DecoratorRequestService interface {
	// Submit records a promotion request. A repeated submission for the same
	// address acknowledges the existing request without creating another.
	Submit(ctx context.Context, cmd SubmitDecoratorRequestCommand) (domain.DecoratorRequest, error)
	ListRequests(ctx context.Context, status string) ([]domain.DecoratorRequest, error)
	// Decide approves or rejects the request. Approval grants the decorator
	// role; when the grant fails after the request was marked approved the
	// partial application is surfaced distinctly.
	Decide(ctx context.Context, requestID string, approve bool) (domain.DecoratorRequest, error)
}

// SubmitDecoratorRequestCommand carries the application fields.
type SubmitDecoratorRequestCommand struct {
	Name       string
	Speciality string
	Experience string
}

// SystemService surfaces operational probes.
type SystemService interface {
	Readiness(ctx context.Context) (domain.SystemHealthReport, error)
}

// BookingEventMessage is the payload published when a booking changes state
// out of band, such as settlement or a promotion grant.
type BookingEventMessage struct {
	Event         string    `json:"event"`
	BookingID     string    `json:"bookingId,omitempty"`
	ServiceID     string    `json:"serviceId,omitempty"`
	UserEmail     string    `json:"userEmail,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// BookingEventPublisher enqueues booking lifecycle events for downstream consumers.
type BookingEventPublisher interface {
	PublishBookingEvent(ctx context.Context, message BookingEventMessage) (string, error)
}
