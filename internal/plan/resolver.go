package plan

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"legacyplanner.org/internal/obs"
)

// Resolution reasons. An empty reason means the plan was resolved.
const (
	ReasonNotAuthenticated  = "not_authenticated"
	ReasonNoOrg             = "no_org"
	ReasonNoPlan            = "no_plan"
	ReasonMultipleOwnerOrgs = "multiple_owner_orgs"
	ReasonError             = "error"
	ReasonCancelled         = "cancelled"
)

// Resolution is the outcome of ResolveActivePlan. Identifiers are empty
// whenever Reason is set.
type Resolution struct {
	PlanID  string `json:"plan_id,omitempty"`
	OrgID   string `json:"org_id,omitempty"`
	Plan    *Plan  `json:"plan,omitempty"`
	Created bool   `json:"created"`
	Reason  string `json:"reason,omitempty"`
}

func (r Resolution) OK() bool { return r.Reason == "" && r.PlanID != "" }

type Option func(*options)

type options struct {
	log *zap.Logger
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: obs.Logger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolver finds, and optionally creates, the plan a user owns.
type Resolver struct {
	store Store
	log   *zap.Logger
}

func NewResolver(store Store, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("plan store is required")
	}
	o := buildOptions(opts)
	return &Resolver{store: store, log: o.log}, nil
}

// ResolveActivePlan never returns an error; failures become a Resolution with
// a reason and are logged. Lookups run in order: owner organization, then the
// plan scoped to (org, owner).
func (r *Resolver) ResolveActivePlan(ctx context.Context, userID string, createIfMissing bool) Resolution {
	res := r.resolve(ctx, strings.TrimSpace(userID), createIfMissing)
	if res.Reason == "" && ctx.Err() != nil {
		res = Resolution{Reason: ReasonCancelled}
	}
	outcome := res.Reason
	if outcome == "" {
		outcome = "resolved"
		if res.Created {
			outcome = "created"
		}
	}
	obs.PlanResolutions.WithLabelValues(outcome).Inc()
	return res
}

func (r *Resolver) resolve(ctx context.Context, userID string, create bool) Resolution {
	if userID == "" {
		return Resolution{Reason: ReasonNotAuthenticated}
	}

	orgs, err := r.store.OwnerOrganizations(ctx, userID)
	if err != nil {
		return r.failed(ctx, userID, "owner_organizations", err)
	}
	switch {
	case len(orgs) > 1:
		r.log.Error("user owns more than one organization",
			zap.String("user_id", userID), zap.Int("organizations", len(orgs)))
		return Resolution{Reason: ReasonMultipleOwnerOrgs}
	case len(orgs) == 0:
		if !create {
			return Resolution{Reason: ReasonNoOrg}
		}
		org, p, err := r.store.EnsurePlan(ctx, userID)
		if err != nil {
			return r.failed(ctx, userID, "ensure_plan", err)
		}
		r.log.Info("plan created", zap.String("user_id", userID), zap.String("org_id", org.ID), zap.String("plan_id", p.ID))
		return resolved(p, true)
	}

	org := orgs[0]
	p, err := r.store.FindPlan(ctx, org.ID, userID)
	if err == nil {
		return resolved(p, false)
	}
	if !errors.Is(err, ErrNotFound) {
		return r.failed(ctx, userID, "find_plan", err)
	}
	if !create {
		return Resolution{Reason: ReasonNoPlan}
	}
	p, err = r.store.CreatePlan(ctx, org.ID, userID)
	if err != nil {
		return r.failed(ctx, userID, "create_plan", err)
	}
	r.log.Info("plan created", zap.String("user_id", userID), zap.String("org_id", org.ID), zap.String("plan_id", p.ID))
	return resolved(p, true)
}

func resolved(p Plan, created bool) Resolution {
	return Resolution{PlanID: p.ID, OrgID: p.OrgID, Plan: &p, Created: created}
}

func (r *Resolver) failed(ctx context.Context, userID, step string, err error) Resolution {
	if ctx.Err() != nil {
		return Resolution{Reason: ReasonCancelled}
	}
	if errors.Is(err, ErrMultipleOwnerOrgs) {
		r.log.Error("user owns more than one organization", zap.String("user_id", userID), zap.String("step", step))
		return Resolution{Reason: ReasonMultipleOwnerOrgs}
	}
	r.log.Warn("plan resolution failed", zap.String("user_id", userID), zap.String("step", step), zap.Error(err))
	return Resolution{Reason: ReasonError}
}
