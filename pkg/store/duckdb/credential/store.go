package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/de-tools/estate-atlas/pkg/models/store"
)

// Store persists delegated token records keyed by (client, organization).
type Store interface {
	Get(ctx context.Context, clientID, orgID string) (*store.Credential, error)
	Upsert(ctx context.Context, rec store.Credential) error
	Delete(ctx context.Context, clientID, orgID string) error
}

var ErrNotFound = fmt.Errorf("credential not found")

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{db: db}, nil
}

func (s *defaultStore) Get(ctx context.Context, clientID, orgID string) (*store.Credential, error) {
	query := `
		SELECT client_id, org_id, access_token, refresh_token, expires_at,
		       scopes, updated_at
		FROM credentials WHERE client_id = ? AND org_id = ?`

	var (
		rec       store.Credential
		scopesRaw []byte
	)
	err := s.db.QueryRowContext(ctx, query, clientID, orgID).Scan(
		&rec.ClientID, &rec.OrgID, &rec.AccessToken, &rec.RefreshToken,
		&rec.ExpiresAt, &scopesRaw, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if len(scopesRaw) > 0 {
		_ = json.Unmarshal(scopesRaw, &rec.Scopes)
	}
	return &rec, nil
}

func (s *defaultStore) Upsert(ctx context.Context, rec store.Credential) error {
	scopes, err := json.Marshal(rec.Scopes)
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO credentials (
			client_id, org_id, access_token, refresh_token, expires_at,
			scopes, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id, org_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		rec.ClientID, rec.OrgID, rec.AccessToken, rec.RefreshToken,
		rec.ExpiresAt, scopes, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

func (s *defaultStore) Delete(ctx context.Context, clientID, orgID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE client_id = ? AND org_id = ?`,
		clientID, orgID,
	)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
