package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"legacyplanner.org/internal/audit"
	"legacyplanner.org/internal/entitlement"
	"legacyplanner.org/internal/obs"
)

// URLs are the redirect targets handed to the provider.
type URLs struct {
	Success string
	Cancel  string
	Return  string
}

// CheckoutRequest starts a purchase of one product.
type CheckoutRequest struct {
	UserID     string `json:"-"`
	Email      string `json:"email"`
	LookupKey  string `json:"lookup_key"`
	CustomerID string `json:"customer_id,omitempty"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// Verification is the outcome of checking a checkout session.
type Verification struct {
	SessionID     string   `json:"session_id"`
	Paid          bool     `json:"paid"`
	Status        string   `json:"status"`
	PaymentStatus string   `json:"payment_status"`
	LookupKeys    []string `json:"lookup_keys"`
	Roles         []string `json:"roles"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	CustomerID    string   `json:"customer_id,omitempty"`
	UserID        string   `json:"user_id,omitempty"`

	SubscriptionStatus string     `json:"subscription_status,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// Service validates billing requests and translates purchases into entitlements.
type Service struct {
	provider Provider
	catalog  *entitlement.Catalog
	subs     entitlement.Store
	urls     URLs
	log      *zap.Logger
}

func NewService(provider Provider, catalog *entitlement.Catalog, subs entitlement.Store, urls URLs, log *zap.Logger) (*Service, error) {
	if provider == nil {
		return nil, errors.New("billing provider is required")
	}
	if catalog == nil {
		return nil, errors.New("entitlement catalog is required")
	}
	if subs == nil {
		return nil, errors.New("subscription store is required")
	}
	if log == nil {
		log = obs.Logger()
	}
	return &Service{provider: provider, catalog: catalog, subs: subs, urls: urls, log: log}, nil
}

// Price returns the active price for a catalogue product.
func (s *Service) Price(ctx context.Context, lookupKey string) (Price, error) {
	lookupKey = strings.TrimSpace(lookupKey)
	if lookupKey == "" {
		return Price{}, fmt.Errorf("%w: lookup key is required", ErrInvalidInput)
	}
	if !s.catalog.Known(lookupKey) {
		return Price{}, fmt.Errorf("%w: unknown product %q", ErrNotFound, lookupKey)
	}
	return s.provider.PriceByLookupKey(ctx, lookupKey)
}

// Checkout creates a checkout session. Recurring prices use subscription
// mode, one-time prices use payment mode.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	price, err := s.Price(ctx, req.LookupKey)
	if err != nil {
		return CheckoutSession{}, err
	}
	mode := ModePayment
	if price.Recurring {
		mode = ModeSubscription
	}
	params := SessionParams{
		PriceID:           price.ID,
		Mode:              mode,
		Quantity:          1,
		SuccessURL:        firstNonEmpty(req.SuccessURL, s.urls.Success),
		CancelURL:         firstNonEmpty(req.CancelURL, s.urls.Cancel),
		ClientReferenceID: req.UserID,
		CustomerEmail:     strings.TrimSpace(req.Email),
		CustomerID:        strings.TrimSpace(req.CustomerID),
		Metadata: map[string]string{
			"user_id":    req.UserID,
			"lookup_key": price.LookupKey,
		},
	}
	if params.SuccessURL == "" || params.CancelURL == "" {
		return CheckoutSession{}, fmt.Errorf("%w: success and cancel urls are required", ErrInvalidInput)
	}
	sess, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return CheckoutSession{}, err
	}
	if sess.Mode == "" {
		sess.Mode = mode
	}
	obs.CheckoutSessions.WithLabelValues(mode).Inc()
	_ = audit.LogEvent(ctx, "billing.checkout_created", map[string]any{
		"session_id": sess.ID,
		"lookup_key": price.LookupKey,
		"mode":       mode,
	})
	return sess, nil
}

// Portal returns the URL of a billing portal session for one of the user's
// customers. An empty customerID selects the customer of the user's most
// recent subscription.
func (s *Service) Portal(ctx context.Context, userID, customerID, returnURL string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	subs, err := s.subs.Subscriptions(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load subscriptions: %w", err)
	}
	owned := ""
	customerID = strings.TrimSpace(customerID)
	for i := len(subs) - 1; i >= 0; i-- {
		c := subs[i].CustomerID
		if c == "" {
			continue
		}
		if customerID == "" || c == customerID {
			owned = c
			break
		}
	}
	if owned == "" {
		if customerID != "" {
			return "", ErrForbidden
		}
		return "", fmt.Errorf("%w: no billing customer on record", ErrNotFound)
	}
	returnURL = firstNonEmpty(returnURL, s.urls.Return)
	if returnURL == "" {
		return "", fmt.Errorf("%w: return url is required", ErrInvalidInput)
	}
	return s.provider.CreatePortalSession(ctx, owned, returnURL)
}

// Verify reports whether a checkout session was paid and which products it bought.
func (s *Service) Verify(ctx context.Context, sessionID string) (Verification, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Verification{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return Verification{}, err
	}
	v := Verification{
		SessionID:     sess.ID,
		Paid:          sess.Paid(),
		Status:        sess.Status,
		PaymentStatus: sess.PaymentStatus,
		LookupKeys:    append([]string{}, sess.LookupKeys...),
		Roles:         []string{},
		CustomerEmail: sess.CustomerEmail,
		CustomerID:    sess.CustomerID,
		UserID:        sess.ClientReferenceID,

		SubscriptionStatus: sess.SubscriptionStatus,
		ExpiresAt:          sess.PeriodEnd,
	}
	seen := map[string]bool{}
	for _, key := range sess.LookupKeys {
		for _, r := range s.catalog.RolesForLookupKey(key) {
			if !seen[r] {
				seen[r] = true
				v.Roles = append(v.Roles, r)
			}
		}
	}
	return v, nil
}

// VerifyForUser is Verify restricted to sessions started by userID. Sessions
// without a client reference belong to nobody and are ErrForbidden.
func (s *Service) VerifyForUser(ctx context.Context, userID, sessionID string) (Verification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Verification{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	v, err := s.Verify(ctx, sessionID)
	if err != nil {
		return Verification{}, err
	}
	if v.UserID != userID {
		return Verification{}, ErrForbidden
	}
	return v, nil
}

// Fulfill records a subscription for every catalogue product of a verified,
// paid session started by userID. Recurring purchases carry the provider's
// subscription status and period end, so calling it again for the same
// session refreshes a renewed or cancelled subscription.
func (s *Service) Fulfill(ctx context.Context, userID string, v Verification) ([]entitlement.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if !v.Paid {
		return nil, ErrNotPaid
	}
	if v.UserID != userID {
		return nil, ErrForbidden
	}
	status := entitlementStatus(v.SubscriptionStatus)
	var out []entitlement.Subscription
	for _, key := range v.LookupKeys {
		if !s.catalog.Known(key) {
			s.log.Warn("checkout contains unknown product", zap.String("session_id", v.SessionID), zap.String("lookup_key", key))
			continue
		}
		sub, err := s.subs.UpsertSubscription(ctx, entitlement.Subscription{
			UserID:     userID,
			LookupKey:  key,
			Status:     status,
			CustomerID: v.CustomerID,
			ExpiresAt:  v.ExpiresAt,
		})
		if err != nil {
			return out, fmt.Errorf("record subscription %s: %w", key, err)
		}
		out = append(out, sub)
	}
	_ = audit.LogEvent(ctx, "billing.checkout_fulfilled", map[string]any{
		"session_id":  v.SessionID,
		"lookup_keys": v.LookupKeys,
	})
	return out, nil
}

// entitlementStatus maps a provider subscription status to a subscription
// record status. One-time purchases have none and are active.
func entitlementStatus(subscriptionStatus string) string {
	switch subscriptionStatus {
	case "", SubscriptionStatusActive, SubscriptionStatusTrialing:
		return entitlement.StatusActive
	default:
		return subscriptionStatus
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
