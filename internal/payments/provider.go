package payments

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks transport-level provider failures. Callers may retry;
// anything not wrapping it is the provider rejecting the request.
var ErrUnavailable = errors.New("payments: provider unavailable")

// Status enumerates the normalised payment states reported by the PSP.
type Status string

const (
	// StatusUnpaid indicates the customer has not completed payment.
	StatusUnpaid Status = "unpaid"
	// StatusPaid indicates the PSP reports the payment as captured.
	StatusPaid Status = "paid"
	// StatusNoPaymentRequired indicates the session settled without a charge.
	StatusNoPaymentRequired Status = "no_payment_required"
)

// CheckoutLineItem describes a single line item to include in a checkout session.
type CheckoutLineItem struct {
	Name        string
	Description string
	Quantity    int64
	Amount      int64
	Currency    string
}

// CheckoutSessionRequest captures the payload required to create a checkout session.
type CheckoutSessionRequest struct {
	Amount         int64
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession represents the PSP session returned to the client.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
	IntentID    string
	ExpiresAt   time.Time
}

// SessionDetails normalises the PSP session fields used for reconciliation.
type SessionDetails struct {
	ID            string
	Provider      string
	PaymentStatus Status
	IntentID      string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// Settled reports whether the provider considers the session paid.
func (d SessionDetails) Settled() bool {
	return d.PaymentStatus == StatusPaid || d.PaymentStatus == StatusNoPaymentRequired
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionDetails, error)
}
