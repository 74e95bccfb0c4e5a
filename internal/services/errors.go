package services

import "errors"

var (
	// ErrUnauthenticated signals that no verified identity accompanies the request.
	ErrUnauthenticated = errors.New("access: unauthenticated")
	// ErrForbidden signals that the resolved role does not cover the operation.
	ErrForbidden = errors.New("access: forbidden")

	// ErrUserNotFound is returned when no registry entry exists for the address.
	ErrUserNotFound = errors.New("users: not found")
	// ErrUserInvalidInput signals bad request data on user operations.
	ErrUserInvalidInput = errors.New("users: invalid input")

	// ErrServiceNotFound is returned when no catalogue entry matches the identifier.
	ErrServiceNotFound = errors.New("catalog: service not found")
	// ErrServiceInvalidInput signals bad request data on catalogue operations.
	ErrServiceInvalidInput = errors.New("catalog: invalid input")

	// ErrBookingNotFound is returned when no booking matches the identifier, or
	// when the caller may not see whether it exists.
	ErrBookingNotFound = errors.New("bookings: not found")
	// ErrBookingInvalidInput signals bad request data on booking operations.
	ErrBookingInvalidInput = errors.New("bookings: invalid input")
	// ErrBookingNotPending is returned when a cancellation reaches a booking
	// that has already entered payment.
	ErrBookingNotPending = errors.New("bookings: not pending")

	// ErrPaymentProvider is returned when the payment provider rejects a
	// request. The wrapped message carries the provider's reason and is safe
	// to surface to the client.
	ErrPaymentProvider = errors.New("payments: provider failure")
	// ErrPaymentProviderUnavailable is returned when the provider cannot be
	// reached. Transient; the caller may retry.
	ErrPaymentProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrPaymentNotPaid is returned when verification finds the session unpaid.
	ErrPaymentNotPaid = errors.New("payments: session not paid")

	// ErrRequestNotFound is returned when no promotion request matches the identifier.
	ErrRequestNotFound = errors.New("decorator requests: not found")
	// ErrRequestInvalidInput signals bad request data on promotion operations.
	ErrRequestInvalidInput = errors.New("decorator requests: invalid input")
	// ErrPromotionPartiallyApplied is returned when the request was approved but
	// the role grant did not land; the account needs operator attention.
	ErrPromotionPartiallyApplied = errors.New("decorator requests: approval partially applied")
)
