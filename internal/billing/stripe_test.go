package billing

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func TestPriceFromStripe(t *testing.T) {
	p := priceFromStripe(&stripe.Price{
		ID:         "price_1",
		LookupKey:  "EFAVIPYEAR",
		Currency:   stripe.CurrencyUSD,
		UnitAmount: 19900,
		Type:       stripe.PriceTypeRecurring,
		Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalYear},
		Product:    &stripe.Product{ID: "prod_1", Name: "VIP"},
	})
	assert.Equal(t, Price{
		ID: "price_1", LookupKey: "EFAVIPYEAR", ProductID: "prod_1", ProductName: "VIP",
		Currency: "usd", UnitAmount: 19900, Recurring: true, Interval: "year",
	}, p)

	oneTime := priceFromStripe(&stripe.Price{ID: "price_2", Type: stripe.PriceTypeOneTime})
	assert.False(t, oneTime.Recurring)
}

func TestSessionFromStripe(t *testing.T) {
	s := sessionFromStripe(&stripe.CheckoutSession{
		ID:                "cs_1",
		Status:            stripe.CheckoutSessionStatusComplete,
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusNoPaymentRequired,
		ClientReferenceID: "u1",
		CustomerDetails:   &stripe.CheckoutSessionCustomerDetails{Email: "ada@example.com"},
		Customer:          &stripe.Customer{ID: "cus_1"},
		LineItems: &stripe.LineItemList{Data: []*stripe.LineItem{
			{Price: &stripe.Price{LookupKey: "EFABASIC"}},
			{Price: &stripe.Price{}},
			nil,
		}},
	})
	assert.True(t, s.Paid())
	assert.Equal(t, "ada@example.com", s.CustomerEmail)
	assert.Equal(t, "cus_1", s.CustomerID)
	assert.Equal(t, []string{"EFABASIC"}, s.LookupKeys)
	assert.Equal(t, "u1", s.ClientReferenceID)
	assert.Empty(t, s.SubscriptionStatus)
	assert.Nil(t, s.PeriodEnd)
}

func TestSessionFromStripeSubscription(t *testing.T) {
	s := sessionFromStripe(&stripe.CheckoutSession{
		ID:                "cs_2",
		Status:            stripe.CheckoutSessionStatusComplete,
		PaymentStatus:     stripe.CheckoutSessionPaymentStatusPaid,
		ClientReferenceID: "u1",
		Subscription: &stripe.Subscription{
			ID:               "sub_1",
			Status:           stripe.SubscriptionStatusActive,
			CurrentPeriodEnd: 1793534400,
		},
	})
	assert.Equal(t, "sub_1", s.SubscriptionID)
	assert.Equal(t, "active", s.SubscriptionStatus)
	require.NotNil(t, s.PeriodEnd)
	assert.Equal(t, int64(1793534400), s.PeriodEnd.Unix())
}

func TestMapStripeError(t *testing.T) {
	notFound := mapStripeError(&stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such checkout.session"})
	assert.ErrorIs(t, notFound, ErrNotFound)

	other := mapStripeError(&stripe.Error{HTTPStatusCode: http.StatusBadRequest, Msg: "bad"})
	assert.ErrorIs(t, other, ErrProvider)

	assert.ErrorIs(t, mapStripeError(errors.New("dial tcp")), ErrProvider)
}
