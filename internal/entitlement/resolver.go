package entitlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"legacyplanner.org/internal/obs"
)

// Resolver loads the admin flag and subscriptions for a user and decides access.
type Resolver struct {
	store   Store
	catalog *Catalog
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Resolver)

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the time used to evaluate subscription expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(store Store, catalog *Catalog, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("entitlement store is required")
	}
	if catalog == nil {
		return nil, errors.New("entitlement catalog is required")
	}
	r := &Resolver{store: store, catalog: catalog, log: obs.Logger(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Resolver) Catalog() *Catalog { return r.catalog }

// Resolve never fails: lookup errors and abandoned contexts yield NoAccess.
// The admin check runs first and short-circuits the subscription read.
func (r *Resolver) Resolve(ctx context.Context, userID string) Access {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		obs.EntitlementResolutions.WithLabelValues("not_authenticated").Inc()
		return Access{}
	}

	admin, err := r.store.HasRole(ctx, userID, RoleAdmin)
	if err != nil {
		return r.fail(ctx, userID, "admin_check", err)
	}
	if admin {
		obs.EntitlementResolutions.WithLabelValues("admin").Inc()
		return Decide(true, nil, r.catalog, r.now())
	}

	subs, err := r.store.Subscriptions(ctx, userID)
	if err != nil {
		return r.fail(ctx, userID, "subscriptions", err)
	}
	if ctx.Err() != nil {
		return r.fail(ctx, userID, "subscriptions", ctx.Err())
	}
	access := Decide(false, subs, r.catalog, r.now())
	obs.EntitlementResolutions.WithLabelValues(access.Kind.String()).Inc()
	return access
}

func (r *Resolver) fail(ctx context.Context, userID, step string, err error) Access {
	outcome := "error"
	if ctx.Err() != nil {
		outcome = "cancelled"
	}
	obs.EntitlementResolutions.WithLabelValues(outcome).Inc()
	r.log.Warn("entitlement resolution failed",
		zap.String("user_id", userID),
		zap.String("step", step),
		zap.String("outcome", outcome),
		zap.Error(err),
	)
	return Access{}
}
