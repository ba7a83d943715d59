package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/de-tools/estate-atlas/pkg/models/domain"
	"github.com/de-tools/estate-atlas/pkg/models/store"
	credstore "github.com/de-tools/estate-atlas/pkg/store/duckdb/credential"
)

// ErrNoCredential means no delegated credential is stored for the pair;
// remediation is initial setup, not re-authentication.
var ErrNoCredential = errors.New("no delegated credential configured")

// ErrCredentialInvalid means a credential is stored but expired and could
// not be refreshed; remediation is re-authentication.
var ErrCredentialInvalid = errors.New("delegated credential invalid or unrefreshable")

// ErrInsufficientScope is reported by access probes when the token
// authenticates but lacks permission on the target subscription.
var ErrInsufficientScope = errors.New("credential lacks required permission")

// Refresher exchanges a refresh token for a fresh access token at the
// identity provider.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Prober performs a minimal authenticated call against one subscription.
// It returns nil on success, ErrInsufficientScope on an authorization
// failure, and any other error for connectivity problems.
type Prober interface {
	Probe(ctx context.Context, token domain.Token, subscriptionID string) error
}

type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type oauthRefresher struct {
	cfg *oauth2.Config
}

func NewOAuthRefresher(cfg OAuthConfig) Refresher {
	return &oauthRefresher{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
			Scopes:       cfg.Scopes,
		},
	}
}

func (r *oauthRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// Vault resolves a valid delegated access token for a (client, organization)
// pair, refreshing stored credentials when they are within the expiry margin.
type Vault interface {
	GetToken(ctx context.Context, clientID, orgID string) (domain.Token, error)
	TestAccess(ctx context.Context, clientID, orgID, subscriptionID string) (domain.AccessStatus, error)
}

type Options struct {
	// ExpiryMargin is how close to expiry a cached token may be before a
	// refresh is forced.
	ExpiryMargin time.Duration
	// RefreshTimeout bounds a single call to the identity provider.
	RefreshTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		ExpiryMargin:   5 * time.Minute,
		RefreshTimeout: 15 * time.Second,
	}
}

type defaultVault struct {
	store     credstore.Store
	refresher Refresher
	prober    Prober
	opts      Options
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewVault(store credstore.Store, refresher Refresher, prober Prober, opts Options) (Vault, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is nil")
	}
	if refresher == nil {
		return nil, fmt.Errorf("refresher is nil")
	}
	return &defaultVault{
		store:     store,
		refresher: refresher,
		prober:    prober,
		opts:      opts,
		now:       time.Now,
		locks:     map[string]*sync.Mutex{},
	}, nil
}

// keyLock returns the refresh lock for one (client, organization) pair.
// Locks are per pair, never global, so unrelated clients' refreshes do not
// contend.
func (v *defaultVault) keyLock(clientID, orgID string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := clientID + "/" + orgID
	l, ok := v.locks[key]
	if !ok {
		l = &sync.Mutex{}
		v.locks[key] = l
	}
	return l
}

func (v *defaultVault) GetToken(ctx context.Context, clientID, orgID string) (domain.Token, error) {
	// Serialize per pair: concurrent callers during an in-flight refresh
	// wait here and then reuse the refreshed record instead of triggering
	// a refresh storm against the identity provider.
	lock := v.keyLock(clientID, orgID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := v.store.Get(ctx, clientID, orgID)
	if errors.Is(err, credstore.ErrNotFound) {
		return domain.Token{}, ErrNoCredential
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("load credential: %w", err)
	}

	if rec.ExpiresAt.After(v.now().Add(v.opts.ExpiryMargin)) {
		return domain.Token{
			AccessToken: rec.AccessToken,
			ExpiresAt:   rec.ExpiresAt,
			Scopes:      rec.Scopes,
		}, nil
	}

	return v.refresh(ctx, rec)
}

func (v *defaultVault) refresh(ctx context.Context, rec *store.Credential) (domain.Token, error) {
	logger := zerolog.Ctx(ctx)

	refreshCtx, cancel := context.WithTimeout(ctx, v.opts.RefreshTimeout)
	defer cancel()

	tok, err := v.refresher.Refresh(refreshCtx, rec.RefreshToken)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("client_id", rec.ClientID).
			Str("org_id", rec.OrgID).
			Msg("token refresh failed")
		return domain.Token{}, fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	updated := store.Credential{
		ClientID:     rec.ClientID,
		OrgID:        rec.OrgID,
		AccessToken:  tok.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Scopes:       rec.Scopes,
		UpdatedAt:    v.now().UTC(),
	}
	// The provider may rotate the refresh token.
	if tok.RefreshToken != "" {
		updated.RefreshToken = tok.RefreshToken
	}

	if err := v.store.Upsert(ctx, updated); err != nil {
		return domain.Token{}, fmt.Errorf("persist refreshed credential: %w", err)
	}

	return domain.Token{
		AccessToken: updated.AccessToken,
		ExpiresAt:   updated.ExpiresAt,
		Scopes:      updated.Scopes,
	}, nil
}

func (v *defaultVault) TestAccess(ctx context.Context, clientID, orgID, subscriptionID string) (domain.AccessStatus, error) {
	token, err := v.GetToken(ctx, clientID, orgID)
	if errors.Is(err, ErrNoCredential) {
		return domain.AccessStatusNoCredential, nil
	}
	if errors.Is(err, ErrCredentialInvalid) {
		// Present but unusable: the caller must re-authenticate, which is
		// a permission problem from the probe's point of view.
		return domain.AccessStatusInsufficient, nil
	}
	if err != nil {
		return "", err
	}

	if v.prober == nil {
		return domain.AccessStatusValid, nil
	}

	err = v.prober.Probe(ctx, token, subscriptionID)
	if errors.Is(err, ErrInsufficientScope) {
		return domain.AccessStatusInsufficient, nil
	}
	if err != nil {
		return "", fmt.Errorf("access probe: %w", err)
	}
	return domain.AccessStatusValid, nil
}
