package httpapi

import (
	"net/http"
	netmail "net/mail"
	"strings"

	"legacyplanner.org/internal/appointment"
	"legacyplanner.org/internal/auth"
	"legacyplanner.org/internal/mail"
)

type planSummaryRequest struct {
	PlanID  string `json:"plan_id"`
	To      string `json:"to,omitempty"`
	Message string `json:"message,omitempty"`
}

type kbSearchRequest struct {
	Query string `json:"query"`
}

type appointmentResponse struct {
	Appointment appointment.Appointment `json:"appointment"`
	ICS         string                  `json:"ics"`
}

func (a *API) mailEnabled(w http.ResponseWriter, r *http.Request) bool {
	if a.deps.Mail == nil {
		writeError(w, r, http.StatusServiceUnavailable, "email is not configured")
		return false
	}
	return true
}

// handlePlanSummaryEmail mails a progress summary of one of the caller's
// plans to the caller's own address.
func (a *API) handlePlanSummaryEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.mailEnabled(w, r) {
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		requireUser(w, r)
		return
	}
	var req planSummaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, err := a.deps.Plans.OwnedPlan(r.Context(), req.PlanID, principal.UserID)
	if err != nil {
		handlePlanError(w, r, err)
		return
	}
	view, err := a.deps.Plans.Aggregator().FetchPlanData(r.Context(), p.ID)
	if err != nil {
		handlePlanError(w, r, err)
		return
	}
	own := strings.TrimSpace(principal.Email)
	if own == "" {
		writeError(w, r, http.StatusBadRequest, "account has no email address")
		return
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		to = own
	}
	if !sameAddress(to, own) {
		writeError(w, r, http.StatusForbidden, "plan summaries can only be sent to your own address")
		return
	}
	id, err := a.deps.Mail.SendPlanSummary(r.Context(), to, view, req.Message)
	if err != nil {
		handleMailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// sameAddress compares the address parts of two recipients, ignoring case.
func sameAddress(a, b string) bool {
	pa, err := netmail.ParseAddress(a)
	if err != nil {
		return false
	}
	pb, err := netmail.ParseAddress(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(pa.Address, pb.Address)
}

func (a *API) handleSongOrderEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.mailEnabled(w, r) {
		return
	}
	if _, ok := requireUser(w, r); !ok {
		return
	}
	var order mail.SongOrder
	if err := decodeJSON(w, r, &order); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.deps.Mail.SendSongOrder(r.Context(), order)
	if err != nil {
		handleMailError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (a *API) handleAppointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAppointments(w, r)
	case http.MethodPost:
		a.createAppointment(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createAppointment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req appointment.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if planID := strings.TrimSpace(req.PlanID); planID != "" {
		if _, err := a.deps.Plans.OwnedPlan(r.Context(), planID, userID); err != nil {
			handlePlanError(w, r, err)
			return
		}
	}
	appt, ics, err := a.deps.Appointments.Create(r.Context(), userID, req)
	if err != nil {
		handleAppointmentError(w, r, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/calendar") {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(ics))
		return
	}
	writeJSON(w, http.StatusCreated, appointmentResponse{Appointment: appt, ICS: ics})
}

func (a *API) listAppointments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	items, err := a.deps.Appointments.List(r.Context(), userID)
	if err != nil {
		handleAppointmentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleKBSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req kbSearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.deps.KB.Search(r.Context(), req.Query)
	if err != nil {
		handleKBError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
