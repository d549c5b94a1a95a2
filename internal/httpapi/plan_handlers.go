package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"legacyplanner.org/internal/audit"
	"legacyplanner.org/internal/ids"
	"legacyplanner.org/internal/plan"
	"legacyplanner.org/internal/sections"
)

type planResponse struct {
	PlanID  string     `json:"plan_id"`
	OrgID   string     `json:"org_id"`
	Created bool       `json:"created"`
	Plan    *plan.Plan `json:"plan,omitempty"`
}

type sectionsResponse struct {
	Sections []sections.Section `json:"sections"`
	Groups   []sections.Group   `json:"groups"`
}

func (a *API) handleMyPlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	create, err := parseBool(r.URL.Query().Get("create"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "create must be true or false")
		return
	}

	res := a.deps.Resolver.ResolveActivePlan(r.Context(), userID, create)
	if !res.OK() {
		writeResolutionFailure(w, r, res)
		return
	}
	if res.Created {
		_ = audit.LogEvent(r.Context(), "plan.created", map[string]any{
			"plan_id": res.PlanID,
			"org_id":  res.OrgID,
		})
	}
	writeJSON(w, http.StatusOK, planResponse{
		PlanID:  res.PlanID,
		OrgID:   res.OrgID,
		Created: res.Created,
		Plan:    res.Plan,
	})
}

func writeResolutionFailure(w http.ResponseWriter, r *http.Request, res plan.Resolution) {
	code := http.StatusInternalServerError
	switch res.Reason {
	case plan.ReasonNotAuthenticated:
		code = http.StatusUnauthorized
	case plan.ReasonNoOrg, plan.ReasonNoPlan:
		code = http.StatusNotFound
	case plan.ReasonMultipleOwnerOrgs:
		code = http.StatusConflict
	case plan.ReasonCancelled, plan.ReasonError:
		code = http.StatusServiceUnavailable
	}
	payload := map[string]any{
		"error":  "no active plan",
		"reason": res.Reason,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func (a *API) handleMyEntitlements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.deps.Access.Resolve(r.Context(), userID).Flags())
}

func (a *API) handlePlanData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.ownedPlan(w, r)
	if !ok {
		return
	}
	view, err := a.deps.Plans.Aggregator().FetchPlanData(r.Context(), p.ID)
	if err != nil {
		handlePlanError(w, r, err)
		return
	}
	if r.URL.Query().Get("view") == "sections" {
		writeJSON(w, http.StatusOK, map[string]any{
			"plan_id":  view.PlanID,
			"sections": view.Unified(a.deps.Plans.Registry()),
			"errors":   view.Errors,
		})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handlePlanSection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	p, ok := a.ownedPlan(w, r)
	if !ok || !a.requirePlanner(w, r) {
		return
	}
	var fields map[string]any
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := a.deps.Plans.UpdateSection(r.Context(), p.ID, r.PathValue("section"), fields)
	if err != nil {
		handlePlanError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handlePlanProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch && r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPatch, http.MethodPut)
		return
	}
	p, ok := a.ownedPlan(w, r)
	if !ok || !a.requirePlanner(w, r) {
		return
	}
	var data map[string]any
	if err := decodeJSON(w, r, &data); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	prof, err := a.deps.Plans.SaveProfile(r.Context(), p.ID, data)
	if err != nil {
		handlePlanError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (a *API) handlePlanCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.ownedPlan(w, r)
	if !ok || !a.requirePlanner(w, r) {
		return
	}
	var data map[string]any
	if err := decodeJSON(w, r, &data); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.deps.Plans.AddRecord(r.Context(), p.ID, r.PathValue("collection"), data)
	if err != nil {
		handlePlanError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/plans/"+p.ID+"/data")
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleSections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	reg := a.deps.Plans.Registry()
	writeJSON(w, http.StatusOK, sectionsResponse{
		Sections: reg.Sections(),
		Groups:   reg.Groups(),
	})
}

func (a *API) handleNavigation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	route := strings.TrimSpace(r.URL.Query().Get("route"))
	if route == "" {
		writeError(w, r, http.StatusBadRequest, "route query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, a.deps.Plans.Registry().NavigationByRoute(route))
}

// ownedPlan loads the {id} plan and checks the caller owns it.
func (a *API) ownedPlan(w http.ResponseWriter, r *http.Request) (plan.Plan, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return plan.Plan{}, false
	}
	planID := strings.TrimSpace(r.PathValue("id"))
	if !ids.Valid(planID) {
		writeError(w, r, http.StatusNotFound, "plan not found")
		return plan.Plan{}, false
	}
	p, err := a.deps.Plans.OwnedPlan(r.Context(), planID, userID)
	if err != nil {
		handlePlanError(w, r, err)
		return plan.Plan{}, false
	}
	return p, true
}

// requirePlanner rejects callers whose entitlements do not unlock the digital planner.
func (a *API) requirePlanner(w http.ResponseWriter, r *http.Request) bool {
	userID, _ := requireUser(w, r)
	if userID == "" {
		return false
	}
	if !a.deps.Access.Resolve(r.Context(), userID).HasAccess() {
		writeError(w, r, http.StatusForbidden, "planner access requires an active subscription")
		return false
	}
	return true
}

func parseBool(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
