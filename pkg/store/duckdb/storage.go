package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const AssessmentsSchema = `
	CREATE TABLE IF NOT EXISTS assessments (
		id VARCHAR PRIMARY KEY,
		org_id VARCHAR NOT NULL,
		client_id VARCHAR NULL,
		environment_id VARCHAR NOT NULL,
		type VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		score DOUBLE NULL,
		category_scores JSON NULL,
		failure_reason VARCHAR NULL,
		failure_detail VARCHAR NULL,
		credential_path VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP NULL,
		completed_at TIMESTAMP NULL
	);
`

const FindingsSchema = `
	CREATE TABLE IF NOT EXISTS findings (
		id VARCHAR PRIMARY KEY,
		assessment_id VARCHAR NOT NULL,
		resource_id VARCHAR,
		resource_name VARCHAR,
		resource_type VARCHAR,
		category VARCHAR NOT NULL,
		severity INTEGER NOT NULL,
		issue VARCHAR,
		recommendation VARCHAR,
		effort VARCHAR
	);
`

const StoredResourcesSchema = `
	CREATE TABLE IF NOT EXISTS stored_resources (
		id VARCHAR NOT NULL,
		assessment_id VARCHAR NOT NULL,
		name VARCHAR,
		type VARCHAR,
		resource_group VARCHAR,
		location VARCHAR,
		subscription_id VARCHAR,
		tags JSON,
		sku VARCHAR,
		kind VARCHAR,
		PRIMARY KEY (assessment_id, id)
	);
`

const EnvironmentsSchema = `
	CREATE TABLE IF NOT EXISTS environments (
		id VARCHAR PRIMARY KEY,
		org_id VARCHAR NOT NULL,
		client_id VARCHAR NULL,
		name VARCHAR NOT NULL,
		tenant_id VARCHAR NOT NULL,
		subscription_ids JSON NOT NULL,
		last_test_at TIMESTAMP NULL,
		last_test_ok BOOLEAN NULL
	);
`

const CredentialsSchema = `
	CREATE TABLE IF NOT EXISTS credentials (
		client_id VARCHAR NOT NULL,
		org_id VARCHAR NOT NULL,
		access_token VARCHAR NOT NULL,
		refresh_token VARCHAR NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		scopes JSON,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (client_id, org_id)
	);
`

const PlansSchema = `
	CREATE TABLE IF NOT EXISTS org_plans (
		org_id VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL,
		max_assessments_per_month INTEGER NULL,
		max_subscriptions INTEGER NULL,
		features JSON
	);
`

const UsageCountersSchema = `
	CREATE TABLE IF NOT EXISTS usage_counters (
		org_id VARCHAR NOT NULL,
		period VARCHAR NOT NULL,
		metric VARCHAR NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (org_id, period, metric)
	);
`

var bootQueries = []string{
	AssessmentsSchema,
	FindingsSchema,
	StoredResourcesSchema,
	EnvironmentsSchema,
	CredentialsSchema,
	PlansSchema,
	UsageCountersSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), nil)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)

	// The catalog is shared by every pooled connection, so the schema runs
	// once here. Replaying the DDL in a per-connection boot hook causes
	// catalog write-write conflicts when the pool grows under load.
	for _, query := range bootQueries {
		if _, err := db.ExecContext(context.Background(), query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
	}
	return db, nil
}
