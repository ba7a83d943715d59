package license

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func TestStore_PlanRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	maxAssess := 5
	require.NoError(t, s.UpsertPlan(ctx, store.Plan{
		OrgID:                  "org-1",
		Name:                   "team",
		MaxAssessmentsPerMonth: &maxAssess,
		Features:               map[string]bool{"api_access": true},
	}))

	plan, err := s.GetPlan(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "team", plan.Name)
	require.NotNil(t, plan.MaxAssessmentsPerMonth)
	assert.Equal(t, 5, *plan.MaxAssessmentsPerMonth)
	assert.Nil(t, plan.MaxSubscriptions)
	assert.True(t, plan.Features["api_access"])
}

func TestStore_PlanNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPlan(context.Background(), "org-unknown")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestStore_PlanUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	limit := 5
	require.NoError(t, s.UpsertPlan(ctx, store.Plan{
		OrgID: "org-1", Name: "team", MaxAssessmentsPerMonth: &limit,
	}))
	// upgrade to unlimited
	require.NoError(t, s.UpsertPlan(ctx, store.Plan{OrgID: "org-1", Name: "enterprise"}))

	plan, err := s.GetPlan(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "enterprise", plan.Name)
	assert.Nil(t, plan.MaxAssessmentsPerMonth)
}

func TestStore_UsageStartsAtZero(t *testing.T) {
	s := newTestStore(t)

	count, err := s.GetUsage(context.Background(), "org-1", "2026-08", "assessments")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_IncrementUsage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementUsage(ctx, "org-1", "2026-08", "assessments"))
	}
	require.NoError(t, s.IncrementUsage(ctx, "org-1", "2026-09", "assessments"))

	count, err := s.GetUsage(ctx, "org-1", "2026-08", "assessments")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = s.GetUsage(ctx, "org-1", "2026-09", "assessments")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_IncrementUsageConcurrent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.IncrementUsage(ctx, "org-1", "2026-08", "assessments")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	count, err := s.GetUsage(ctx, "org-1", "2026-08", "assessments")
	require.NoError(t, err)
	assert.Equal(t, workers, count)
}
