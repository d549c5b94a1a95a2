package plan

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"legacyplanner.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu          sync.RWMutex
	orgs        map[string]Organization
	memberships []Membership
	plans       map[string]*Plan
	profiles    map[string]Profile
	records     map[string]map[string][]Record // collection -> plan -> rows
}

func NewInMemory() *InMemory {
	s := &InMemory{
		orgs:     make(map[string]Organization),
		plans:    make(map[string]*Plan),
		profiles: make(map[string]Profile),
		records:  make(map[string]map[string][]Record, len(collections)),
	}
	for _, c := range collections {
		s.records[c] = make(map[string][]Record)
	}
	return s
}

// AddMembership records a membership row directly.
func (s *InMemory) AddMembership(orgID, userID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[orgID]; !ok {
		s.orgs[orgID] = Organization{ID: orgID, CreatedAt: time.Now().UTC()}
	}
	s.memberships = append(s.memberships, Membership{OrgID: orgID, UserID: userID, Role: role, CreatedAt: time.Now().UTC()})
}

func (s *InMemory) OwnerOrganizations(ctx context.Context, userID string) ([]Organization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownerOrgsLocked(userID), nil
}

func (s *InMemory) ownerOrgsLocked(userID string) []Organization {
	var out []Organization
	for _, m := range s.memberships {
		if m.UserID == userID && m.Role == OwnerRole {
			out = append(out, s.orgs[m.OrgID])
		}
	}
	return out
}

func (s *InMemory) FindPlan(ctx context.Context, orgID, ownerUserID string) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.findPlanLocked(orgID, ownerUserID); p != nil {
		return p.clone(), nil
	}
	return Plan{}, ErrNotFound
}

func (s *InMemory) findPlanLocked(orgID, ownerUserID string) *Plan {
	for _, p := range s.plans {
		if p.OrgID == orgID && p.OwnerUserID == ownerUserID {
			return p
		}
	}
	return nil
}

func (s *InMemory) EnsurePlan(ctx context.Context, userID string) (Organization, Plan, error) {
	if err := ctx.Err(); err != nil {
		return Organization{}, Plan{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Organization{}, Plan{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.ownerOrgsLocked(userID)
	var org Organization
	switch len(owned) {
	case 0:
		now := time.Now().UTC()
		org = Organization{ID: ids.New(), CreatedAt: now}
		s.orgs[org.ID] = org
		s.memberships = append(s.memberships, Membership{OrgID: org.ID, UserID: userID, Role: OwnerRole, CreatedAt: now})
	case 1:
		org = owned[0]
	default:
		return Organization{}, Plan{}, ErrMultipleOwnerOrgs
	}
	return org, s.createPlanLocked(org.ID, userID).clone(), nil
}

func (s *InMemory) CreatePlan(ctx context.Context, orgID, ownerUserID string) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	if strings.TrimSpace(orgID) == "" || strings.TrimSpace(ownerUserID) == "" {
		return Plan{}, fmt.Errorf("%w: org id and owner are required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[orgID]; !ok {
		return Plan{}, fmt.Errorf("%w: organization %s", ErrNotFound, orgID)
	}
	return s.createPlanLocked(orgID, ownerUserID).clone(), nil
}

func (s *InMemory) createPlanLocked(orgID, ownerUserID string) *Plan {
	if p := s.findPlanLocked(orgID, ownerUserID); p != nil {
		return p
	}
	now := time.Now().UTC()
	p := &Plan{
		ID:          ids.New(),
		OrgID:       orgID,
		OwnerUserID: ownerUserID,
		Notes:       map[string]string{},
		Payload:     map[string]any{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.plans[p.ID] = p
	return p
}

func (s *InMemory) GetPlan(ctx context.Context, planID string) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[planID]
	if !ok {
		return Plan{}, ErrNotFound
	}
	return p.clone(), nil
}

func (s *InMemory) GetProfile(ctx context.Context, planID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[planID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	p.Data = cloneMap(p.Data)
	return p, nil
}

func (s *InMemory) SaveProfile(ctx context.Context, planID string, data map[string]any) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[planID]; !ok {
		return Profile{}, ErrNotFound
	}
	merged := cloneMap(s.profiles[planID].Data)
	for k, v := range data {
		merged[k] = v
	}
	p := Profile{PlanID: planID, Data: merged, UpdatedAt: time.Now().UTC()}
	s.profiles[planID] = p
	p.Data = cloneMap(merged)
	return p, nil
}

func (s *InMemory) ListRecords(ctx context.Context, collection, planID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byPlan, ok := s.records[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", ErrInvalidInput, collection)
	}
	rows := byPlan[planID]
	out := make([]Record, len(rows))
	for i, r := range rows {
		r.Data = cloneMap(r.Data)
		out[i] = r
	}
	return out, nil
}

func (s *InMemory) AddRecord(ctx context.Context, collection, planID string, data map[string]any) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byPlan, ok := s.records[collection]
	if !ok {
		return Record{}, fmt.Errorf("%w: unknown collection %q", ErrInvalidInput, collection)
	}
	if _, ok := s.plans[planID]; !ok {
		return Record{}, ErrNotFound
	}
	r := Record{ID: ids.New(), PlanID: planID, Data: cloneMap(data), CreatedAt: time.Now().UTC()}
	byPlan[planID] = append(byPlan[planID], r)
	r.Data = cloneMap(r.Data)
	return r, nil
}

func (s *InMemory) UpdatePlan(ctx context.Context, planID string, upd PlanUpdate) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return Plan{}, ErrNotFound
	}
	if upd.PercentComplete != nil {
		p.PercentComplete = *upd.PercentComplete
	}
	if upd.PreparedFor != nil {
		p.PreparedFor = *upd.PreparedFor
	}
	for k, v := range upd.Notes {
		p.Notes[k] = v
	}
	for section, fields := range upd.Payload {
		existing, _ := p.Payload[section].(map[string]any)
		merged := cloneMap(existing)
		for k, v := range fields {
			merged[k] = v
		}
		p.Payload[section] = merged
	}
	p.UpdatedAt = time.Now().UTC()
	return p.clone(), nil
}

func (s *InMemory) SetPercentComplete(ctx context.Context, planID string, pct int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[planID]
	if !ok {
		return ErrNotFound
	}
	p.PercentComplete = pct
	p.UpdatedAt = time.Now().UTC()
	return nil
}
