package plan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedPlan(t *testing.T, store Store, userID string) Plan {
	t.Helper()
	_, p, err := store.EnsurePlan(context.Background(), userID)
	require.NoError(t, err)
	return p
}

func TestFetchPlanDataFreshPlanIsEmpty(t *testing.T) {
	store := NewInMemory()
	r, _ := newTestResolver(t, store)
	res := r.ResolveActivePlan(context.Background(), "u1", true)
	require.True(t, res.OK())

	agg, err := NewAggregator(store)
	require.NoError(t, err)
	view, err := agg.FetchPlanData(context.Background(), res.PlanID)
	require.NoError(t, err)

	require.NotNil(t, view.Plan)
	assert.Equal(t, 0, view.Plan.PercentComplete)
	assert.Empty(t, view.Plan.PreparedFor)
	for _, c := range Collections() {
		rows, ok := view.Collections[c]
		require.True(t, ok, c)
		assert.NotNil(t, rows, c)
		assert.Empty(t, rows, c)
	}
	assert.False(t, view.HasAnyData())
	assert.False(t, view.Degraded())
}

func TestFetchPlanDataIsolatesCollectionFailures(t *testing.T) {
	store := newFaultyStore()
	p := seedPlan(t, store, "u1")
	_, err := store.AddRecord(context.Background(), "pets", p.ID, map[string]any{"name": "Rex"})
	require.NoError(t, err)
	store.collectionErrs["debts"] = errors.New("relation does not exist")

	core, logs := observer.New(zap.WarnLevel)
	agg, err := NewAggregator(store, WithLogger(zap.New(core)))
	require.NoError(t, err)

	view, err := agg.FetchPlanData(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, view.Degraded())
	assert.Contains(t, view.Errors, "debts")
	assert.NotNil(t, view.Collections["debts"])
	assert.Len(t, view.Collections["pets"], 1)
	assert.True(t, view.HasAnyData())
	assert.Equal(t, 1, logs.FilterMessage("plan data fetch failed").Len())
}

func TestFetchPlanDataPlanRootFailureDegrades(t *testing.T) {
	store := newFaultyStore()
	p := seedPlan(t, store, "u1")
	store.planErr = errors.New("conn refused")

	agg, err := NewAggregator(store, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	view, err := agg.FetchPlanData(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, view.Plan)
	assert.Contains(t, view.Errors, "plan")
	assert.Equal(t, 0, view.NotesCount())
}

func TestFetchPlanDataMissingPlan(t *testing.T) {
	agg, err := NewAggregator(NewInMemory())
	require.NoError(t, err)

	_, err = agg.FetchPlanData(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = agg.FetchPlanData(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFetchPlanDataDiscardsResultsAfterCancel(t *testing.T) {
	store := newFaultyStore()
	p := seedPlan(t, store, "u1")
	ctx, cancel := context.WithCancel(context.Background())
	store.onList = func(_ context.Context, collection string) {
		if collection == "contacts" {
			cancel()
		}
	}

	agg, err := NewAggregator(store, WithLogger(zap.NewNop()))
	require.NoError(t, err)
	view, err := agg.FetchPlanData(ctx, p.ID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, view)
}
