package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubStore struct {
	hasRoleFn       func(ctx context.Context, userID, role string) (bool, error)
	subscriptionsFn func(ctx context.Context, userID string) ([]Subscription, error)
	subsCalls       int
}

func (s *stubStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

func (s *stubStore) Subscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	s.subsCalls++
	if s.subscriptionsFn == nil {
		return nil, nil
	}
	return s.subscriptionsFn(ctx, userID)
}

func (s *stubStore) UpsertSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	return sub, nil
}

func newObservedResolver(t *testing.T, store Store) (*Resolver, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	r, err := NewResolver(store, DefaultCatalog(), WithLogger(zap.New(core)))
	require.NoError(t, err)
	return r, logs
}

func TestResolveAdminShortCircuits(t *testing.T) {
	store := &stubStore{
		hasRoleFn: func(_ context.Context, _ string, role string) (bool, error) {
			return role == RoleAdmin, nil
		},
	}
	r, _ := newObservedResolver(t, store)

	a := r.Resolve(context.Background(), "u1")
	assert.True(t, a.IsAdmin())
	assert.Zero(t, store.subsCalls)
}

func TestResolveSubscriptions(t *testing.T) {
	store := &stubStore{
		subscriptionsFn: func(_ context.Context, userID string) ([]Subscription, error) {
			return []Subscription{{UserID: userID, LookupKey: KeyBasicYear, Status: StatusActive}}, nil
		},
	}
	r, _ := newObservedResolver(t, store)

	a := r.Resolve(context.Background(), "u1")
	assert.Equal(t, ActiveSubscription, a.Kind)
	assert.True(t, a.HasAccess())
	assert.Equal(t, 1, store.subsCalls)
}

func TestResolveEmptyUserDeniesWithoutLookup(t *testing.T) {
	store := &stubStore{}
	r, _ := newObservedResolver(t, store)

	a := r.Resolve(context.Background(), "  ")
	assert.Equal(t, NoAccess, a.Kind)
	assert.Zero(t, store.subsCalls)
}

func TestResolveFailsClosed(t *testing.T) {
	boom := errors.New("connection reset")
	cases := map[string]*stubStore{
		"admin check": {hasRoleFn: func(context.Context, string, string) (bool, error) { return false, boom }},
		"subscriptions": {subscriptionsFn: func(context.Context, string) ([]Subscription, error) {
			return []Subscription{{LookupKey: KeyVIPYear, Status: StatusActive}}, boom
		}},
	}
	for name, store := range cases {
		t.Run(name, func(t *testing.T) {
			r, logs := newObservedResolver(t, store)
			a := r.Resolve(context.Background(), "u1")
			assert.Equal(t, NoAccess, a.Kind)
			assert.False(t, a.HasAccess())
			require.Equal(t, 1, logs.FilterMessage("entitlement resolution failed").Len())
			assert.Equal(t, "error", logs.All()[0].ContextMap()["outcome"])
		})
	}
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &stubStore{
		subscriptionsFn: func(context.Context, string) ([]Subscription, error) {
			cancel()
			return []Subscription{{LookupKey: KeyVIPYear, Status: StatusActive}}, nil
		},
	}
	r, logs := newObservedResolver(t, store)

	a := r.Resolve(ctx, "u1")
	assert.Equal(t, NoAccess, a.Kind)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "cancelled", logs.All()[0].ContextMap()["outcome"])
}

func TestResolveWithInMemoryStore(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	_, err := store.UpsertSubscription(ctx, Subscription{UserID: "u1", LookupKey: KeyPrintable, Status: StatusActive})
	require.NoError(t, err)
	store.GrantRole("root", RoleAdmin)

	r, err := NewResolver(store, DefaultCatalog())
	require.NoError(t, err)

	assert.True(t, r.Resolve(ctx, "u1").IsPrintableOnly())
	assert.True(t, r.Resolve(ctx, "root").IsAdmin())
	assert.Equal(t, NoAccess, r.Resolve(ctx, "nobody").Kind)
}

func TestInMemoryUpsertKeepsIdentity(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	first, err := store.UpsertSubscription(ctx, Subscription{UserID: "u1", LookupKey: KeyBasic, Status: StatusActive})
	require.NoError(t, err)
	second, err := store.UpsertSubscription(ctx, Subscription{UserID: "u1", LookupKey: KeyBasic, Status: "canceled"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	subs, err := store.Subscriptions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "canceled", subs[0].Status)

	_, err = store.UpsertSubscription(ctx, Subscription{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewResolverRequiresDependencies(t *testing.T) {
	_, err := NewResolver(nil, DefaultCatalog())
	assert.Error(t, err)
	_, err = NewResolver(NewInMemory(), nil)
	assert.Error(t, err)
}
