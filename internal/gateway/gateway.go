// Package gateway is the boundary to the external payment processor.
package gateway

//go:generate mockgen -source=gateway.go -destination=mock_gateway.go -package=gateway

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by every call when no processor credentials exist.
var ErrNotConfigured = errors.New("gateway: payment processor not configured")

// Customer identifies the payer towards the processor.
type Customer struct {
	ID          int64
	DisplayName string
	Email       string
}

// Metadata is attached to every processor transaction so a notification can be
// traced back without trusting client input.
type Metadata struct {
	Kind          string `json:"kind"`
	PayerID       int64  `json:"payer_id"`
	PayeeID       int64  `json:"payee_id"`
	CorrelationID string `json:"correlation_id"`
	TierID        int64  `json:"tier_id,omitempty"`
	PackageID     int64  `json:"package_id,omitempty"`
}

// LineItem is the single product a checkout sells.
type LineItem struct {
	ID          string
	Name        string
	AmountCents int64
}

// CheckoutRequest describes a one-time hosted checkout.
type CheckoutRequest struct {
	Reference   string
	AmountCents int64
	Item        LineItem
	Customer    Customer
	FinishURL   string
	Metadata    Metadata
}

// SubscriptionRequest describes the first payment of a tier subscription. The
// processor keeps the card so later periods can be billed by StartRecurring.
type SubscriptionRequest struct {
	CheckoutRequest
	PriceRef string
}

// RecurringRequest creates the processor-side schedule that bills the periods
// after the first payment, using the card token saved during that payment.
type RecurringRequest struct {
	Reference   string
	Name        string
	AmountCents int64
	CardToken   string
	Customer    Customer
	Metadata    Metadata
	StartAt     time.Time
}

// Recurring is the processor's subscription object.
type Recurring struct {
	ID     string
	Status string
}

// Session is what the processor hands back. Exactly one field is set: a
// redirect to the hosted page, or a secret for an inline confirmation step.
type Session struct {
	RedirectURL        string
	ConfirmationSecret string
}

// TransactionStatus is the processor's view of a transaction.
type TransactionStatus struct {
	Reference     string
	TransactionID string
	Status        string
}

// Processor is implemented by the Midtrans adapter and by test doubles.
type Processor interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Session, error)
	CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Session, error)
	TransactionStatus(ctx context.Context, reference string) (*TransactionStatus, error)
	StartRecurring(ctx context.Context, req RecurringRequest) (*Recurring, error)
}

// Processor transaction states, as reported by Midtrans.
const (
	StateSettlement = "settlement"
	StateCapture    = "capture"
	StatePending    = "pending"
	StateDeny       = "deny"
	StateFailure    = "failure"
	StateCancel     = "cancel"
	StateExpire     = "expire"
)
