package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"legacyplanner.org/internal/obs"
)

// Aggregator fetches a plan root, its profile and every satellite collection
// concurrently and merges them into a View.
type Aggregator struct {
	store Store
	log   *zap.Logger
}

func NewAggregator(store Store, opts ...Option) (*Aggregator, error) {
	if store == nil {
		return nil, errors.New("plan store is required")
	}
	o := buildOptions(opts)
	return &Aggregator{store: store, log: o.log}, nil
}

// FetchPlanData never fails because one branch failed: the failing branch is
// left at its empty default and recorded in View.Errors. It returns an error
// for an empty plan id, a missing plan, or when ctx ends before the fan-out
// completes, in which case partial results are discarded.
func (a *Aggregator) FetchPlanData(ctx context.Context, planID string) (*View, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, fmt.Errorf("%w: plan id is required", ErrInvalidInput)
	}

	view := newView(planID)
	var (
		mu       sync.Mutex
		notFound bool
	)
	record := func(branch string, err error) {
		mu.Lock()
		view.Errors[branch] = err.Error()
		mu.Unlock()
		obs.AggregationFailures.WithLabelValues(branch).Inc()
		a.log.Warn("plan data fetch failed",
			zap.String("plan_id", planID), zap.String("branch", branch), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := a.store.GetPlan(gctx, planID)
		if errors.Is(err, ErrNotFound) {
			mu.Lock()
			notFound = true
			mu.Unlock()
			return nil
		}
		if err != nil {
			record("plan", err)
			return nil
		}
		mu.Lock()
		view.Plan = &p
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		prof, err := a.store.GetProfile(gctx, planID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			record("profile", err)
			return nil
		}
		mu.Lock()
		view.Profile = prof.Data
		mu.Unlock()
		return nil
	})
	for _, c := range collections {
		g.Go(func() error {
			rows, err := a.store.ListRecords(gctx, c, planID)
			if err != nil {
				record(c, err)
				return nil
			}
			if rows == nil {
				return nil
			}
			mu.Lock()
			view.Collections[c] = rows
			mu.Unlock()
			return nil
		})
	}
	// Branches report failures through record and never return an error.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if notFound {
		return nil, fmt.Errorf("%w: plan %s", ErrNotFound, planID)
	}
	return view, nil
}
