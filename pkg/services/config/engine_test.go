package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "estate-atlas.db", cfg.Database.Path)
	assert.Equal(t, "default", cfg.AzureProfile)

	opts := cfg.FetchOptions()
	assert.Equal(t, int32(500), opts.PageSize)
	assert.Equal(t, 4, opts.MaxConcurrency)
	assert.Equal(t, 30*time.Second, opts.QueryTimeout)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	content := `
server:
  host: 127.0.0.1
  port: "9090"
database:
  path: /var/lib/atlas/atlas.db
oauth:
  token_url: https://login.example.com/oauth2/token
  client_id: client-1
  client_secret: secret
  scopes:
    - https://management.azure.com/.default
fetch:
  page_size: 100
  max_concurrency: 2
  query_timeout_seconds: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/var/lib/atlas/atlas.db", cfg.Database.Path)
	assert.Equal(t, "client-1", cfg.OAuthConfig().ClientID)
	assert.Equal(t, []string{"https://management.azure.com/.default"}, cfg.OAuthConfig().Scopes)

	opts := cfg.FetchOptions()
	assert.Equal(t, int32(100), opts.PageSize)
	assert.Equal(t, 2, opts.MaxConcurrency)
	assert.Equal(t, 10*time.Second, opts.QueryTimeout)
	// unset values keep their defaults
	assert.Equal(t, float64(5), opts.RequestsPerSecond)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/engine.yaml")
	assert.Error(t, err)
}
