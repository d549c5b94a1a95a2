package plan

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type faultyStore struct {
	*InMemory
	ownerOrgsErr   error
	findPlanErr    error
	planErr        error
	collectionErrs map[string]error
	onList         func(ctx context.Context, collection string)
}

func newFaultyStore() *faultyStore {
	return &faultyStore{InMemory: NewInMemory(), collectionErrs: map[string]error{}}
}

func (f *faultyStore) OwnerOrganizations(ctx context.Context, userID string) ([]Organization, error) {
	if f.ownerOrgsErr != nil {
		return nil, f.ownerOrgsErr
	}
	return f.InMemory.OwnerOrganizations(ctx, userID)
}

func (f *faultyStore) FindPlan(ctx context.Context, orgID, ownerUserID string) (Plan, error) {
	if f.findPlanErr != nil {
		return Plan{}, f.findPlanErr
	}
	return f.InMemory.FindPlan(ctx, orgID, ownerUserID)
}

func (f *faultyStore) GetPlan(ctx context.Context, planID string) (Plan, error) {
	if f.planErr != nil {
		return Plan{}, f.planErr
	}
	return f.InMemory.GetPlan(ctx, planID)
}

func (f *faultyStore) ListRecords(ctx context.Context, collection, planID string) ([]Record, error) {
	if f.onList != nil {
		f.onList(ctx, collection)
	}
	if err := f.collectionErrs[collection]; err != nil {
		return nil, err
	}
	return f.InMemory.ListRecords(ctx, collection, planID)
}

func newTestResolver(t *testing.T, store Store) (*Resolver, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	r, err := NewResolver(store, WithLogger(zap.New(core)))
	require.NoError(t, err)
	return r, logs
}

func TestResolveNoOrgWithoutCreate(t *testing.T) {
	r, _ := newTestResolver(t, NewInMemory())

	res := r.ResolveActivePlan(context.Background(), "u1", false)
	assert.Equal(t, ReasonNoOrg, res.Reason)
	assert.Empty(t, res.PlanID)
	assert.Empty(t, res.OrgID)
	assert.Nil(t, res.Plan)
	assert.False(t, res.OK())
}

func TestResolveCreateIsIdempotent(t *testing.T) {
	r, _ := newTestResolver(t, NewInMemory())
	ctx := context.Background()

	first := r.ResolveActivePlan(ctx, "u1", true)
	require.True(t, first.OK(), first.Reason)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.OrgID)

	second := r.ResolveActivePlan(ctx, "u1", true)
	require.True(t, second.OK())
	assert.False(t, second.Created)
	assert.Equal(t, first.PlanID, second.PlanID)
	assert.Equal(t, first.OrgID, second.OrgID)

	readOnly := r.ResolveActivePlan(ctx, "u1", false)
	assert.Equal(t, first.PlanID, readOnly.PlanID)
}

func TestResolveConcurrentCreateConverges(t *testing.T) {
	store := NewInMemory()
	r, _ := newTestResolver(t, store)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	got := make([]Resolution, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.ResolveActivePlan(ctx, "u1", true)
		}(i)
	}
	wg.Wait()

	for _, res := range got {
		require.True(t, res.OK(), res.Reason)
		assert.Equal(t, got[0].PlanID, res.PlanID)
	}
	orgs, err := store.OwnerOrganizations(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
}

func TestResolveOwnerOrgWithoutPlan(t *testing.T) {
	store := NewInMemory()
	store.AddMembership("org-1", "u1", OwnerRole)
	r, _ := newTestResolver(t, store)
	ctx := context.Background()

	res := r.ResolveActivePlan(ctx, "u1", false)
	assert.Equal(t, ReasonNoPlan, res.Reason)
	assert.Empty(t, res.PlanID)

	res = r.ResolveActivePlan(ctx, "u1", true)
	require.True(t, res.OK())
	assert.Equal(t, "org-1", res.OrgID)
	assert.Equal(t, "u1", res.Plan.OwnerUserID)
}

func TestResolveIgnoresNonOwnerMemberships(t *testing.T) {
	store := NewInMemory()
	store.AddMembership("org-1", "u1", "member")
	r, _ := newTestResolver(t, store)

	res := r.ResolveActivePlan(context.Background(), "u1", false)
	assert.Equal(t, ReasonNoOrg, res.Reason)
}

func TestResolveMultipleOwnerOrgsIsRejected(t *testing.T) {
	store := NewInMemory()
	store.AddMembership("org-1", "u1", OwnerRole)
	store.AddMembership("org-2", "u1", OwnerRole)
	r, logs := newTestResolver(t, store)

	for _, create := range []bool{false, true} {
		res := r.ResolveActivePlan(context.Background(), "u1", create)
		assert.Equal(t, ReasonMultipleOwnerOrgs, res.Reason)
		assert.Empty(t, res.PlanID)
	}
	assert.Equal(t, 2, logs.FilterMessage("user owns more than one organization").Len())
}

func TestResolveNotAuthenticated(t *testing.T) {
	r, _ := newTestResolver(t, NewInMemory())
	res := r.ResolveActivePlan(context.Background(), " ", true)
	assert.Equal(t, ReasonNotAuthenticated, res.Reason)
}

func TestResolveStoreErrorsAreSwallowed(t *testing.T) {
	store := newFaultyStore()
	store.ownerOrgsErr = errors.New("db down")
	r, logs := newTestResolver(t, store)

	res := r.ResolveActivePlan(context.Background(), "u1", true)
	assert.Equal(t, ReasonError, res.Reason)
	assert.Empty(t, res.PlanID)
	assert.Equal(t, 1, logs.FilterMessage("plan resolution failed").Len())

	store.ownerOrgsErr = nil
	store.AddMembership("org-1", "u1", OwnerRole)
	store.findPlanErr = errors.New("timeout")
	res = r.ResolveActivePlan(context.Background(), "u1", true)
	assert.Equal(t, ReasonError, res.Reason)
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := newTestResolver(t, NewInMemory())

	res := r.ResolveActivePlan(ctx, "u1", true)
	assert.Equal(t, ReasonCancelled, res.Reason)
	assert.Empty(t, res.PlanID)
}
