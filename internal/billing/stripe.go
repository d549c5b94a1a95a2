package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeProvider implements Provider with the Stripe API.
type StripeProvider struct {
	api *client.API
}

func NewStripeProvider(secretKey string) (*StripeProvider, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	return &StripeProvider{api: client.New(secretKey, nil)}, nil
}

func (p *StripeProvider) PriceByLookupKey(ctx context.Context, lookupKey string) (Price, error) {
	params := &stripe.PriceListParams{
		LookupKeys: stripe.StringSlice([]string{lookupKey}),
		Active:     stripe.Bool(true),
	}
	params.Context = ctx
	params.AddExpand("data.product")

	it := p.api.Prices.List(params)
	for it.Next() {
		if sp := it.Price(); sp != nil && sp.LookupKey == lookupKey {
			return priceFromStripe(sp), nil
		}
	}
	if err := it.Err(); err != nil {
		return Price{}, mapStripeError(err)
	}
	return Price{}, fmt.Errorf("%w: price %q", ErrNotFound, lookupKey)
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, sp SessionParams) (CheckoutSession, error) {
	quantity := sp.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(sp.Mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(sp.PriceID), Quantity: stripe.Int64(quantity)},
		},
		SuccessURL: stripe.String(sp.SuccessURL),
		CancelURL:  stripe.String(sp.CancelURL),
	}
	params.Context = ctx
	if sp.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(sp.ClientReferenceID)
	}
	switch {
	case sp.CustomerID != "":
		params.Customer = stripe.String(sp.CustomerID)
	case sp.CustomerEmail != "":
		params.CustomerEmail = stripe.String(sp.CustomerEmail)
	}
	for k, v := range sp.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, mapStripeError(err)
	}
	return CheckoutSession{ID: s.ID, URL: s.URL, Mode: string(s.Mode)}, nil
}

func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return s.URL, nil
}

func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("subscription")
	s, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return Session{}, mapStripeError(err)
	}
	return sessionFromStripe(s), nil
}

func priceFromStripe(sp *stripe.Price) Price {
	out := Price{
		ID:         sp.ID,
		LookupKey:  sp.LookupKey,
		Currency:   string(sp.Currency),
		UnitAmount: sp.UnitAmount,
		Recurring:  sp.Type == stripe.PriceTypeRecurring,
	}
	if sp.Recurring != nil {
		out.Interval = string(sp.Recurring.Interval)
	}
	if sp.Product != nil {
		out.ProductID = sp.Product.ID
		out.ProductName = sp.Product.Name
	}
	return out
}

func sessionFromStripe(s *stripe.CheckoutSession) Session {
	out := Session{
		ID:                s.ID,
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		ClientReferenceID: s.ClientReferenceID,
		CustomerEmail:     s.CustomerEmail,
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if sub := s.Subscription; sub != nil {
		out.SubscriptionID = sub.ID
		out.SubscriptionStatus = string(sub.Status)
		if sub.CurrentPeriodEnd > 0 {
			end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			out.PeriodEnd = &end
		}
	}
	if s.LineItems != nil {
		for _, li := range s.LineItems.Data {
			if li == nil || li.Price == nil || li.Price.LookupKey == "" {
				continue
			}
			out.LookupKeys = append(out.LookupKeys, li.Price.LookupKey)
		}
	}
	return out
}

func mapStripeError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, serr.Msg)
		}
		return fmt.Errorf("%w: %s", ErrProvider, serr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}
