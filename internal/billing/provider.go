// Package billing proxies price lookups, checkout, customer portal and
// checkout verification to the payments provider.
package billing

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("billing: invalid input")
	ErrNotFound     = errors.New("billing: not found")
	ErrProvider     = errors.New("billing: provider error")
	ErrNotPaid      = errors.New("billing: checkout not paid")
	ErrForbidden    = errors.New("billing: forbidden")
)

// Checkout modes.
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// Checkout session states reported by the provider.
const (
	StatusComplete = "complete"

	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"

	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// Price is a sellable price resolved by its stable lookup key.
type Price struct {
	ID          string `json:"id"`
	LookupKey   string `json:"lookup_key"`
	ProductID   string `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Currency    string `json:"currency"`
	UnitAmount  int64  `json:"unit_amount"`
	Recurring   bool   `json:"recurring"`
	Interval    string `json:"interval,omitempty"`
}

// SessionParams describes a checkout session to create.
type SessionParams struct {
	PriceID           string
	Mode              string
	Quantity          int64
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	CustomerEmail     string
	CustomerID        string
	Metadata          map[string]string
}

// CheckoutSession is a created session the browser is redirected to.
type CheckoutSession struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Mode string `json:"mode"`
}

// Session is the provider's view of an existing checkout session.
type Session struct {
	ID                string
	Status            string
	PaymentStatus     string
	ClientReferenceID string
	CustomerEmail     string
	CustomerID        string
	LookupKeys        []string

	// Set for subscription-mode sessions. PeriodEnd is the end of the
	// subscription's current billing period.
	SubscriptionID     string
	SubscriptionStatus string
	PeriodEnd          *time.Time
}

// Paid is true for a complete session that was paid or required no payment.
func (s Session) Paid() bool {
	if s.Status != StatusComplete {
		return false
	}
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusNoPaymentRequired
}

// Provider is the payments API.
type Provider interface {
	PriceByLookupKey(ctx context.Context, lookupKey string) (Price, error)
	CreateCheckoutSession(ctx context.Context, p SessionParams) (CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (Session, error)
}
