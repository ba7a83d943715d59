package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/de-tools/estate-atlas/pkg/services/credential"
	"github.com/de-tools/estate-atlas/pkg/services/inventory"
)

type Server struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type Database struct {
	Path string `mapstructure:"path"`
}

type OAuth struct {
	TokenURL     string   `mapstructure:"token_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	Scopes       []string `mapstructure:"scopes"`
}

type Fetch struct {
	PageSize          int32   `mapstructure:"page_size"`
	MaxConcurrency    int     `mapstructure:"max_concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	QueryTimeoutSecs  int     `mapstructure:"query_timeout_seconds"`
}

// Engine is the full engine configuration, loaded from an optional YAML file
// with ESTATE_-prefixed environment variables taking precedence.
type Engine struct {
	Server       Server   `mapstructure:"server"`
	Database     Database `mapstructure:"database"`
	OAuth        OAuth    `mapstructure:"oauth"`
	Fetch        Fetch    `mapstructure:"fetch"`
	AzureProfile string   `mapstructure:"azure_profile"`
}

func Load(path string) (*Engine, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.path", "estate-atlas.db")
	v.SetDefault("azure_profile", credential.DefaultProfile)

	defaults := inventory.DefaultOptions()
	v.SetDefault("fetch.page_size", defaults.PageSize)
	v.SetDefault("fetch.max_concurrency", defaults.MaxConcurrency)
	v.SetDefault("fetch.requests_per_second", defaults.RequestsPerSecond)
	v.SetDefault("fetch.burst", defaults.Burst)
	v.SetDefault("fetch.query_timeout_seconds", int(defaults.QueryTimeout/time.Second))

	v.SetEnvPrefix("ESTATE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Engine
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// FetchOptions maps the fetch section onto the fetcher's options, keeping the
// built-in retry policy.
func (e *Engine) FetchOptions() inventory.Options {
	opts := inventory.DefaultOptions()
	if e.Fetch.PageSize > 0 {
		opts.PageSize = e.Fetch.PageSize
	}
	if e.Fetch.MaxConcurrency > 0 {
		opts.MaxConcurrency = e.Fetch.MaxConcurrency
	}
	if e.Fetch.RequestsPerSecond > 0 {
		opts.RequestsPerSecond = e.Fetch.RequestsPerSecond
	}
	if e.Fetch.Burst > 0 {
		opts.Burst = e.Fetch.Burst
	}
	if e.Fetch.QueryTimeoutSecs > 0 {
		opts.QueryTimeout = time.Duration(e.Fetch.QueryTimeoutSecs) * time.Second
	}
	return opts
}

// OAuthConfig maps the oauth section onto the vault refresher configuration.
func (e *Engine) OAuthConfig() credential.OAuthConfig {
	return credential.OAuthConfig{
		TokenURL:     e.OAuth.TokenURL,
		ClientID:     e.OAuth.ClientID,
		ClientSecret: e.OAuth.ClientSecret,
		Scopes:       e.OAuth.Scopes,
	}
}
