package httpapi

import (
	"net/http"
	"strings"

	"legacyplanner.org/internal/auth"
	"legacyplanner.org/internal/billing"
	"legacyplanner.org/internal/entitlement"
)

type checkoutRequest struct {
	LookupKey  string `json:"lookup_key"`
	Email      string `json:"email,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

type portalRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	ReturnURL  string `json:"return_url,omitempty"`
}

type fulfillResponse struct {
	Verification  billing.Verification       `json:"verification"`
	Subscriptions []entitlement.Subscription `json:"subscriptions"`
	Entitlements  entitlement.Flags          `json:"entitlements"`
}

func (a *API) billingEnabled(w http.ResponseWriter, r *http.Request) bool {
	if a.deps.Billing == nil {
		writeError(w, r, http.StatusServiceUnavailable, "billing is not configured")
		return false
	}
	return true
}

func (a *API) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.billingEnabled(w, r) {
		return
	}
	price, err := a.deps.Billing.Price(r.Context(), r.PathValue("lookup_key"))
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.billingEnabled(w, r) {
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		requireUser(w, r)
		return
	}
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = principal.Email
	}
	sess, err := a.deps.Billing.Checkout(r.Context(), billing.CheckoutRequest{
		UserID:     principal.UserID,
		Email:      email,
		LookupKey:  req.LookupKey,
		CustomerID: req.CustomerID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (a *API) handleVerifyCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.billingEnabled(w, r) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	v, err := a.deps.Billing.VerifyForUser(r.Context(), userID, r.PathValue("session_id"))
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleFulfillCheckout verifies a session the caller started and records
// the purchased subscriptions for them.
func (a *API) handleFulfillCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.billingEnabled(w, r) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	v, err := a.deps.Billing.VerifyForUser(r.Context(), userID, r.PathValue("session_id"))
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	subs, err := a.deps.Billing.Fulfill(r.Context(), userID, v)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	if subs == nil {
		subs = []entitlement.Subscription{}
	}
	writeJSON(w, http.StatusOK, fulfillResponse{
		Verification:  v,
		Subscriptions: subs,
		Entitlements:  a.deps.Access.Resolve(r.Context(), userID).Flags(),
	})
}

func (a *API) handlePortal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.billingEnabled(w, r) {
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req portalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	url, err := a.deps.Billing.Portal(r.Context(), userID, req.CustomerID, req.ReturnURL)
	if err != nil {
		handleBillingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
