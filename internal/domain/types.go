package domain

import "time"

// Role values stored on the user record. Every authorisation decision keys off
// the role resolved from the user registry, never off token claims.
const (
	RoleUser      = "user"
	RoleDecorator = "decorator"
	RoleAdmin     = "admin"
)

// ValidRole reports whether the value is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleDecorator, RoleAdmin:
		return true
	}
	return false
}

// User is the registry entry created on first authenticated contact. The email
// is the natural key and doubles as the document identifier.
type User struct {
	Email     string
	Name      string
	PhotoURL  string
	Role      string
	CreatedAt time.Time
}

// Service is a catalog entry maintained by administrators.
type Service struct {
	ID          string
	Name        string
	Category    string
	Location    string
	Cost        int64
	Description string
	Image       string
	Rating      float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Booking status lifecycle:
//
//	pending -> paid | cancelled
//	paid    -> completed
//
// Cancellation while pending removes the record. No transition leaves
// cancelled or completed.
const (
	BookingStatusPending   = "pending"
	BookingStatusPaid      = "paid"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// BookingAddon is a priced extra attached to a booking payment.
type BookingAddon struct {
	Name  string
	Price int64
}

// Booking tracks a client's request to engage a service, denormalising the
// service name and price at creation time.
type Booking struct {
	ID             string
	ServiceID      string
	ServiceName    string
	Price          int64
	UserEmail      string
	DecoratorEmail string
	Status         string
	BookingDate    string
	Addons         []BookingAddon
	Coupon         string
	TransactionID  string
	AmountPaid     int64
	CreatedAt      time.Time
}

// Decorator request status values.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// DecoratorRequest is the promotion application tying an email to a pending,
// approved, or rejected decision. At most one outstanding request exists per
// email.
type DecoratorRequest struct {
	ID         string
	Email      string
	Name       string
	Speciality string
	Experience string
	Status     string
	CreatedAt  time.Time
}

// Stats aggregates the counts surfaced to administrators.
type Stats struct {
	Users             int64
	Services          int64
	Bookings          int64
	PendingDecorators int64
	Revenue           int64
}
