package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"strava-effort/internal/apperr"
	"strava-effort/internal/logging"
	"strava-effort/internal/store"
)

// ExpirySkew is how long before expiry a token is already treated as expired.
const ExpirySkew = 5 * time.Minute

// CredentialStore persists the credential record.
type CredentialStore interface {
	GetCredentials(ctx context.Context) (*store.Credentials, error)
	SaveCredentials(ctx context.Context, c *store.Credentials) error
	DeleteCredentials(ctx context.Context) error
}

// Options configures a Manager. Zero values select the Strava endpoint,
// http.DefaultClient and time.Now.
type Options struct {
	HTTPClient *http.Client
	Endpoint   oauth2.Endpoint
	Now        func() time.Time
	Logger     zerolog.Logger
}

// Manager owns the OAuth token state for one session. It keeps an in-memory
// copy of the stored credentials and writes every change through to the store.
type Manager struct {
	store    CredentialStore
	client   *http.Client
	endpoint oauth2.Endpoint
	now      func() time.Time
	log      zerolog.Logger

	mu     sync.Mutex
	cached *store.Credentials
	// generation increments on Logout and Forget. Writes that started under
	// an older generation are dropped.
	generation uint64

	refreshes singleflight.Group
}

// NewManager creates a Manager backed by s.
func NewManager(s CredentialStore, opts Options) *Manager {
	m := &Manager{
		store:    s,
		client:   opts.HTTPClient,
		endpoint: opts.Endpoint,
		now:      opts.Now,
		log:      logging.Component(opts.Logger, "auth"),
	}
	if m.client == nil {
		m.client = http.DefaultClient
	}
	if m.endpoint.TokenURL == "" {
		m.endpoint = Endpoint
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// ValidToken returns an access token that stays valid for at least
// ExpirySkew, refreshing it first when needed.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	creds, err := m.credentials(ctx)
	if err != nil {
		return "", err
	}

	if m.fresh(creds) {
		return creds.AccessToken, nil
	}

	m.log.Debug().Int64("expires_at", creds.ExpiresAt).Msg("access token expired or expiring soon")
	refreshed, err := m.sharedRefresh(ctx, false)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new token pair.
// Concurrent callers share a single exchange, which is not cancelled when
// the caller that started it gives up.
func (m *Manager) Refresh(ctx context.Context) (*store.Credentials, error) {
	return m.sharedRefresh(ctx, true)
}

func (m *Manager) sharedRefresh(ctx context.Context, force bool) (*store.Credentials, error) {
	ch := m.refreshes.DoChan("refresh", func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx), force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		creds := *res.Val.(*store.Credentials)
		return &creds, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context, force bool) (*store.Credentials, error) {
	gen := m.currentGeneration()
	creds, err := m.credentials(ctx)
	if err != nil {
		return nil, err
	}
	// A flight that finished just before this one may already have refreshed.
	if !force && m.fresh(creds) {
		return creds, nil
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return nil, apperr.Auth("missing credentials")
	}

	cfg := newOAuthConfig(m.endpoint, creds.ClientID, creds.ClientSecret, "")
	token, err := cfg.TokenSource(m.withClient(ctx), &oauth2.Token{RefreshToken: creds.RefreshToken}).Token()
	if err != nil {
		return nil, tokenError("refreshing token", err)
	}

	updated := *creds
	updated.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		updated.RefreshToken = token.RefreshToken
	}
	if scope := grantedScope(token); scope != "" {
		updated.Scope = scope
	}
	issued := expiresAtMillis(token)
	if issued < creds.ExpiresAt {
		m.log.Warn().Int64("stored", creds.ExpiresAt).Int64("issued", issued).Msg("refreshed token expires before stored expiry, discarding it")
		return nil, apperr.Data("refreshed token expires before stored expiry", nil)
	}
	updated.ExpiresAt = issued

	if err := m.save(ctx, &updated, gen); err != nil {
		return nil, err
	}

	m.log.Info().Time("expires_at", updated.Expiry()).Msg("access token refreshed")
	return &updated, nil
}

// ExchangeAuthorizationCode trades an authorization code for tokens and
// stores the resulting credentials.
func (m *Manager) ExchangeAuthorizationCode(ctx context.Context, code, clientID, clientSecret string) (*store.Credentials, error) {
	if clientID == "" || clientSecret == "" {
		return nil, apperr.Auth("missing credentials")
	}
	if code == "" {
		return nil, apperr.Auth("missing authorization code")
	}

	gen := m.currentGeneration()
	cfg := newOAuthConfig(m.endpoint, clientID, clientSecret, "")
	token, err := cfg.Exchange(m.withClient(ctx), code)
	if err != nil {
		return nil, tokenError("exchanging authorization code", err)
	}

	// A new grant starts a new credential record, so its expiry replaces
	// whatever was stored before.
	creds := &store.Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAtMillis(token),
		Scope:        grantedScope(token),
		AthleteID:    ExtractAthleteID(token),
	}
	if err := m.save(ctx, creds, gen); err != nil {
		return nil, err
	}

	m.log.Info().Int64("athlete_id", creds.AthleteID).Msg("authorization code exchanged")
	out := *creds
	return &out, nil
}

// AuthorizeURL returns the URL the user visits to grant access.
func (m *Manager) AuthorizeURL(clientID, redirectURI, state string) string {
	cfg := newOAuthConfig(m.endpoint, clientID, "", redirectURI)
	return cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

// HasCredentials reports whether a usable token pair is stored.
func (m *Manager) HasCredentials(ctx context.Context) bool {
	creds, err := m.credentials(ctx)
	if err != nil {
		return false
	}
	return creds.AccessToken != "" && creds.RefreshToken != ""
}

// SaveClientConfig stores the client ID and secret, keeping any tokens.
func (m *Manager) SaveClientConfig(ctx context.Context, clientID, clientSecret string) error {
	gen := m.currentGeneration()
	creds, err := m.credentials(ctx)
	if err != nil {
		if !apperr.IsAuth(err) {
			return err
		}
		creds = &store.Credentials{}
	}
	creds.ClientID = clientID
	creds.ClientSecret = clientSecret
	return m.save(ctx, creds, gen)
}

// Logout removes the stored credentials and forgets the cached copy. A
// refresh still in flight is not written back.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	if err := m.store.DeleteCredentials(ctx); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	m.cached = nil
	return nil
}

// Forget drops the in-memory copy so the next call reloads from the store.
func (m *Manager) Forget() {
	m.mu.Lock()
	m.generation++
	m.cached = nil
	m.mu.Unlock()
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// credentials returns a copy of the current credentials, loading them from
// the store on first use.
func (m *Manager) credentials(ctx context.Context) (*store.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cached == nil {
		creds, err := m.store.GetCredentials(ctx)
		if errors.Is(err, store.ErrNoCredentials) {
			return nil, apperr.Auth("missing credentials")
		}
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		m.cached = creds
	}

	out := *m.cached
	return &out, nil
}

// save writes creds through to the store unless the credentials were
// cleared after gen was taken.
func (m *Manager) save(ctx context.Context, creds *store.Credentials, gen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation {
		return apperr.Auth("credentials cleared while saving")
	}
	if err := m.store.SaveCredentials(ctx, creds); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	stored := *creds
	m.cached = &stored
	return nil
}

// fresh reports whether the access token stays valid beyond ExpirySkew.
func (m *Manager) fresh(creds *store.Credentials) bool {
	return creds.AccessToken != "" && m.now().UnixMilli() < creds.ExpiresAt-ExpirySkew.Milliseconds()
}

func (m *Manager) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

// tokenError maps an oauth2 failure onto the error taxonomy.
func tokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &apperr.NetworkError{Op: op, StatusCode: re.Response.StatusCode, Body: string(re.Body), Err: err}
	}
	return &apperr.NetworkError{Op: op, Err: err}
}
