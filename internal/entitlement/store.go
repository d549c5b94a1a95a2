package entitlement

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"legacyplanner.org/internal/ids"
)

var (
	ErrInvalidInput = errors.New("entitlement: invalid input")
	ErrNotFound     = errors.New("entitlement: not found")
)

// Store reads the privileged role check and subscription records.
type Store interface {
	HasRole(ctx context.Context, userID, role string) (bool, error)
	Subscriptions(ctx context.Context, userID string) ([]Subscription, error)
	// UpsertSubscription inserts or updates the subscription keyed by
	// (user_id, lookup_key).
	UpsertSubscription(ctx context.Context, sub Subscription) (Subscription, error)
}

// InMemory implements Store for tests and local runs without a database.
type InMemory struct {
	mu    sync.RWMutex
	roles map[string]map[string]bool
	subs  map[string]map[string]Subscription // user -> lookup key -> sub
}

func NewInMemory() *InMemory {
	return &InMemory{
		roles: make(map[string]map[string]bool),
		subs:  make(map[string]map[string]Subscription),
	}
}

// GrantRole records a privileged role for userID.
func (s *InMemory) GrantRole(userID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[userID] == nil {
		s.roles[userID] = map[string]bool{}
	}
	s.roles[userID][role] = true
}

func (s *InMemory) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles[userID][role], nil
}

func (s *InMemory) Subscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscription, 0, len(s.subs[userID]))
	for _, sub := range s.subs[userID] {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) UpsertSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	sub.UserID = strings.TrimSpace(sub.UserID)
	sub.LookupKey = strings.TrimSpace(sub.LookupKey)
	if sub.UserID == "" || sub.LookupKey == "" {
		return Subscription{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	byKey := s.subs[sub.UserID]
	if byKey == nil {
		byKey = map[string]Subscription{}
		s.subs[sub.UserID] = byKey
	}
	if prev, ok := byKey[sub.LookupKey]; ok {
		sub.ID = prev.ID
		sub.CreatedAt = prev.CreatedAt
	} else {
		sub.ID = ids.New()
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	byKey[sub.LookupKey] = sub
	return sub, nil
}
