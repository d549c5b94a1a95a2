package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"legacyplanner.org/internal/sections"
)

// Service applies writes to plans the caller owns.
type Service struct {
	store    Store
	registry *sections.Registry
	agg      *Aggregator
	log      *zap.Logger
}

func NewService(store Store, registry *sections.Registry, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("plan store is required")
	}
	if registry == nil {
		return nil, errors.New("section registry is required")
	}
	agg, err := NewAggregator(store, opts...)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Service{store: store, registry: registry, agg: agg, log: o.log}, nil
}

func (s *Service) Aggregator() *Aggregator { return s.agg }

func (s *Service) Registry() *sections.Registry { return s.registry }

// OwnedPlan loads planID and checks that userID owns it. Plans owned by other
// users are reported as ErrForbidden.
func (s *Service) OwnedPlan(ctx context.Context, planID, userID string) (Plan, error) {
	p, err := s.store.GetPlan(ctx, strings.TrimSpace(planID))
	if err != nil {
		return Plan{}, err
	}
	if p.OwnerUserID != userID {
		return Plan{}, ErrForbidden
	}
	return p, nil
}

// UpdateSection applies a partial edit of one section. Unless the edit sets
// percent_complete itself, progress is recomputed from the merged plan.
func (s *Service) UpdateSection(ctx context.Context, planID, section string, fields map[string]any) (Plan, error) {
	def, ok := s.registry.ByID(section)
	if !ok {
		return Plan{}, fmt.Errorf("%w: unknown section %q", ErrInvalidInput, section)
	}
	if len(fields) == 0 {
		return Plan{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	upd, err := SplitUpdate(def.PayloadKey, fields)
	if err != nil {
		return Plan{}, err
	}
	p, err := s.store.UpdatePlan(ctx, planID, upd)
	if err != nil {
		return Plan{}, err
	}
	if upd.PercentComplete != nil {
		return p, nil
	}
	return s.refreshProgress(ctx, p), nil
}

// SaveProfile merges data into the plan's personal profile.
func (s *Service) SaveProfile(ctx context.Context, planID string, data map[string]any) (Profile, error) {
	if len(data) == 0 {
		return Profile{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	prof, err := s.store.SaveProfile(ctx, planID, data)
	if err != nil {
		return Profile{}, err
	}
	if p, err := s.store.GetPlan(ctx, planID); err == nil {
		s.refreshProgress(ctx, p)
	}
	return prof, nil
}

// AddRecord appends a row to one satellite collection.
func (s *Service) AddRecord(ctx context.Context, planID, collection string, data map[string]any) (Record, error) {
	if !IsCollection(collection) {
		return Record{}, fmt.Errorf("%w: unknown collection %q", ErrInvalidInput, collection)
	}
	if len(data) == 0 {
		return Record{}, fmt.Errorf("%w: record is empty", ErrInvalidInput)
	}
	rec, err := s.store.AddRecord(ctx, collection, planID, data)
	if err != nil {
		return Record{}, err
	}
	if p, err := s.store.GetPlan(ctx, planID); err == nil {
		s.refreshProgress(ctx, p)
	}
	return rec, nil
}

func (s *Service) refreshProgress(ctx context.Context, p Plan) Plan {
	view, err := s.agg.FetchPlanData(ctx, p.ID)
	if err != nil {
		return p
	}
	if view.Degraded() {
		// A partial view would understate progress.
		return p
	}
	pct := s.registry.Progress(view)
	if pct == p.PercentComplete {
		return p
	}
	if err := s.store.SetPercentComplete(ctx, p.ID, pct); err != nil {
		s.log.Warn("percent complete update failed", zap.String("plan_id", p.ID), zap.Error(err))
		return p
	}
	p.PercentComplete = pct
	return p
}
