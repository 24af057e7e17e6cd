package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/term"
	"gpbackup/pkg/config"
	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/logger"
)

// Manager obtains an authorized credential for the Photos library, running
// the installed-app OAuth flow when no credential is stored.
type Manager struct {
	store            CredentialStore
	clientSecretFile string
	scopes           []string
	logger           logger.Logger

	in          io.Reader
	out         io.Writer
	interactive func() bool
}

// NewManager creates a credential manager backed by store
func NewManager(store CredentialStore, cfg config.PhotosConfig, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		store:            store,
		clientSecretFile: cfg.ClientSecretFile,
		scopes:           cfg.Scopes,
		logger:           log.WithField("component", "auth"),
		in:               os.Stdin,
		out:              os.Stdout,
		interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// SetPrompt overrides where the authorization prompt reads and writes
func (m *Manager) SetPrompt(in io.Reader, out io.Writer, interactive func() bool) {
	m.in = in
	m.out = out
	m.interactive = interactive
}

// Store returns the backing credential store
func (m *Manager) Store() CredentialStore {
	return m.store
}

// Obtain returns the stored credential, or authorizes interactively when
// none exists. The credential is written back to the store on every success.
func (m *Manager) Obtain(ctx context.Context) (*Credential, error) {
	cred, err := m.store.Load()
	switch {
	case err == nil:
		m.logger.DebugWithFields("Using stored credential", map[string]interface{}{
			"store": m.store.Name(),
		})
	case errors.Is(err, ErrCredentialsNotFound):
		m.logger.InfoWithFields("No stored credential, starting authorization", map[string]interface{}{
			"store": m.store.Name(),
		})
		cred, err = m.authorize(ctx)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errs.Wrap(errs.ErrorTypeAuth, "load credential", err)
	}

	if err := m.store.Save(cred); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "persist credential", err)
	}
	return cred, nil
}

// Login runs the interactive flow regardless of any stored credential
func (m *Manager) Login(ctx context.Context) (*Credential, error) {
	cred, err := m.authorize(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(cred); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "persist credential", err)
	}
	m.logger.InfoWithFields("Authorization stored", map[string]interface{}{
		"store": m.store.Name(),
	})
	return cred, nil
}

// Status returns the stored credential with secrets masked
func (m *Manager) Status() (*Credential, error) {
	cred, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return Sanitize(cred), nil
}

// Logout deletes the stored credential
func (m *Manager) Logout() error {
	return m.store.Delete()
}

// ClientConfig parses the OAuth client secret file
func (m *Manager) ClientConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(m.clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, m.scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}
	return cfg, nil
}

func (m *Manager) authorize(ctx context.Context) (*Credential, error) {
	oauthCfg, err := m.ClientConfig()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "authorize", err)
	}

	if !m.interactive() {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "authorize", ErrNotInteractive)
	}

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintf(m.out, "Open the following link in your browser and authorize access:\n\n%s\n\nAuthorization code: ", authURL)

	var code string
	if _, err := fmt.Fscan(m.in, &code); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "read authorization code", err)
	}

	tok, err := oauthCfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "exchange authorization code", err)
	}

	return NewCredential(tok, oauthCfg), nil
}

// HTTPClient returns a client that authorizes requests with cred, refreshing
// the access token when it expires and writing refreshed tokens back to the store.
func (m *Manager) HTTPClient(ctx context.Context, cred *Credential) *http.Client {
	oauthCfg := cred.OAuthConfig(m.scopes)
	src := &persistingTokenSource{
		base:     oauthCfg.TokenSource(ctx, cred.Token()),
		store:    m.store,
		template: *cred,
		last:     cred.AccessToken,
		logger:   m.logger,
	}
	return oauth2.NewClient(ctx, src)
}

// persistingTokenSource saves every newly issued access token
type persistingTokenSource struct {
	mu       sync.Mutex
	base     oauth2.TokenSource
	store    CredentialStore
	template Credential
	last     string
	logger   logger.Logger
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tok, err := p.base.Token()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "refresh token", err)
	}

	if tok.AccessToken != p.last {
		p.template.AccessToken = tok.AccessToken
		p.template.Expiry = tok.Expiry.UTC()
		if tok.RefreshToken != "" {
			p.template.RefreshToken = tok.RefreshToken
		}
		if err := p.store.Save(&p.template); err != nil {
			p.logger.WithError(err).Warn("Failed to persist refreshed token")
		} else {
			p.logger.Debug("Persisted refreshed token")
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
