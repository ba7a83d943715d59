package environment

import (
	"context"
	"testing"
	"time"

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

func TestStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// nil client, nil test results: every nullable column starts empty
	require.NoError(t, s.Upsert(ctx, store.Environment{
		ID:              "env-1",
		OrgID:           "org-1",
		Name:            "production",
		TenantID:        "tenant-1",
		SubscriptionIDs: []string{"sub-a", "sub-b"},
	}))

	env, err := s.Get(ctx, "env-1")
	require.NoError(t, err)
	assert.Equal(t, "production", env.Name)
	assert.Equal(t, []string{"sub-a", "sub-b"}, env.SubscriptionIDs)
	assert.Nil(t, env.ClientID)
	assert.Nil(t, env.LastTestAt)
	assert.Nil(t, env.LastTestOK)
}

func TestStore_UpsertWithClient(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	clientID := "client-1"
	require.NoError(t, s.Upsert(ctx, store.Environment{
		ID:              "env-1",
		OrgID:           "org-1",
		ClientID:        &clientID,
		Name:            "staging",
		TenantID:        "tenant-1",
		SubscriptionIDs: []string{"sub-a"},
	}))

	env, err := s.Get(ctx, "env-1")
	require.NoError(t, err)
	require.NotNil(t, env.ClientID)
	assert.Equal(t, "client-1", *env.ClientID)
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordConnectionTest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Upsert(ctx, store.Environment{
		ID: "env-1", OrgID: "org-1", Name: "production", TenantID: "tenant-1",
		SubscriptionIDs: []string{"sub-a"},
	}))

	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordConnectionTest(ctx, "env-1", at, false))

	env, err := s.Get(ctx, "env-1")
	require.NoError(t, err)
	require.NotNil(t, env.LastTestOK)
	assert.False(t, *env.LastTestOK)
	require.NotNil(t, env.LastTestAt)
	assert.WithinDuration(t, at, *env.LastTestAt, time.Second)
}

func TestStore_ListByOrg(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, env := range []store.Environment{
		{ID: "env-b", OrgID: "org-1", Name: "beta", TenantID: "t", SubscriptionIDs: []string{"s"}},
		{ID: "env-a", OrgID: "org-1", Name: "alpha", TenantID: "t", SubscriptionIDs: []string{"s"}},
		{ID: "env-c", OrgID: "org-2", Name: "gamma", TenantID: "t", SubscriptionIDs: []string{"s"}},
	} {
		require.NoError(t, s.Upsert(ctx, env))
	}

	envs, err := s.ListByOrg(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "alpha", envs[0].Name)
	assert.Equal(t, "beta", envs[1].Name)
}
