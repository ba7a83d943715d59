package environment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/estate-atlas/pkg/models/store"
	"github.com/de-tools/estate-atlas/pkg/store/duckdb"
)

// Store reads environment metadata. The engine treats environments as
// read-only input except for connection-test results.
type Store interface {
	Get(ctx context.Context, id string) (*store.Environment, error)
	ListByOrg(ctx context.Context, orgID string) ([]store.Environment, error)
	Upsert(ctx context.Context, env store.Environment) error
	RecordConnectionTest(ctx context.Context, id string, at time.Time, ok bool) error
}

var ErrNotFound = fmt.Errorf("environment not found")

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{db: db}, nil
}

func (s *defaultStore) Get(ctx context.Context, id string) (*store.Environment, error) {
	query := `
		SELECT id, org_id, client_id, name, tenant_id, subscription_ids,
		       last_test_at, last_test_ok
		FROM environments WHERE id = ?`

	env, err := scanEnvironment(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get environment: %w", err)
	}
	return env, nil
}

func (s *defaultStore) ListByOrg(ctx context.Context, orgID string) ([]store.Environment, error) {
	query := `
		SELECT id, org_id, client_id, name, tenant_id, subscription_ids,
		       last_test_at, last_test_ok
		FROM environments WHERE org_id = ?
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	envs := make([]store.Environment, 0)
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, err
		}
		envs = append(envs, *env)
	}
	return envs, rows.Err()
}

func (s *defaultStore) Upsert(ctx context.Context, env store.Environment) error {
	subs, err := json.Marshal(env.SubscriptionIDs)
	if err != nil {
		return fmt.Errorf("marshal subscription ids: %w", err)
	}

	query := `
		INSERT INTO environments (
			id, org_id, client_id, name, tenant_id, subscription_ids,
			last_test_at, last_test_ok
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			org_id = excluded.org_id,
			client_id = excluded.client_id,
			name = excluded.name,
			tenant_id = excluded.tenant_id,
			subscription_ids = excluded.subscription_ids`

	_, err = s.db.ExecContext(ctx, query,
		env.ID, env.OrgID, duckdb.NullString(env.ClientID), env.Name, env.TenantID,
		subs, duckdb.NullTime(env.LastTestAt), duckdb.NullBool(env.LastTestOK),
	)
	if err != nil {
		return fmt.Errorf("upsert environment: %w", err)
	}
	return nil
}

func (s *defaultStore) RecordConnectionTest(ctx context.Context, id string, at time.Time, ok bool) error {
	query := `UPDATE environments SET last_test_at = ?, last_test_ok = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, at, ok, id)
	if err != nil {
		return fmt.Errorf("record connection test: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvironment(row rowScanner) (*store.Environment, error) {
	var (
		env      store.Environment
		clientID sql.NullString
		subsRaw  []byte
		testAt   sql.NullTime
		testOK   sql.NullBool
	)
	err := row.Scan(
		&env.ID, &env.OrgID, &clientID, &env.Name, &env.TenantID,
		&subsRaw, &testAt, &testOK,
	)
	if err != nil {
		return nil, err
	}
	if clientID.Valid {
		env.ClientID = &clientID.String
	}
	if len(subsRaw) > 0 {
		_ = json.Unmarshal(subsRaw, &env.SubscriptionIDs)
	}
	if testAt.Valid {
		t := testAt.Time
		env.LastTestAt = &t
	}
	if testOK.Valid {
		ok := testOK.Bool
		env.LastTestOK = &ok
	}
	return &env, nil
}
