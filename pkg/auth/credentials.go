package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gpbackup/pkg/config"
)

// Credential is the persisted OAuth authorization for the Photos library.
// Field names follow the authorized-user file written by earlier versions.
type Credential struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"_refresh_token"`
	TokenURI     string    `json:"_token_uri"`
	ClientID     string    `json:"_client_id"`
	ClientSecret string    `json:"_client_secret"`
	Scopes       []string  `json:"scopes,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Layouts accepted for the expiry field. Older files carry a naive
// ISO-8601 timestamp in UTC without a zone offset.
var expiryLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON reads both the current format and the authorized-user file
// written by earlier versions, which stores scopes under "_scopes".
func (c *Credential) UnmarshalJSON(data []byte) error {
	type plain Credential
	aux := struct {
		*plain
		Expiry       *string  `json:"expiry"`
		LegacyScopes []string `json:"_scopes"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(c.Scopes) == 0 && len(aux.LegacyScopes) > 0 {
		c.Scopes = aux.LegacyScopes
	}

	c.Expiry = time.Time{}
	if aux.Expiry == nil || *aux.Expiry == "" {
		return nil
	}
	expiry, err := parseExpiry(*aux.Expiry)
	if err != nil {
		return err
	}
	c.Expiry = expiry
	return nil
}

func parseExpiry(value string) (time.Time, error) {
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry %q", value)
}

// CredentialStore persists a single credential
type CredentialStore interface {
	// Name identifies the backend in logs and status output
	Name() string

	// Load returns the stored credential or ErrCredentialsNotFound
	Load() (*Credential, error)

	// Save overwrites the stored credential
	Save(cred *Credential) error

	// Delete removes the stored credential
	Delete() error

	// Exists reports whether a credential is stored
	Exists() bool
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNotInteractive      = errors.New("interactive authorization requires a terminal")
)

// NewCredential builds a credential record from an OAuth token and the client config that issued it
func NewCredential(tok *oauth2.Token, cfg *oauth2.Config) *Credential {
	cred := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry.UTC(),
	}
	if cfg != nil {
		cred.TokenURI = cfg.Endpoint.TokenURL
		cred.ClientID = cfg.ClientID
		cred.ClientSecret = cfg.ClientSecret
		cred.Scopes = append([]string(nil), cfg.Scopes...)
	}
	return cred
}

// Token converts the record into an oauth2 token
func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// OAuthConfig rebuilds the client config needed to refresh this credential
func (c *Credential) OAuthConfig(scopes []string) *oauth2.Config {
	tokenURL := c.TokenURI
	if tokenURL == "" {
		tokenURL = google.Endpoint.TokenURL
	}
	if len(c.Scopes) > 0 {
		scopes = c.Scopes
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  google.Endpoint.AuthURL,
			TokenURL: tokenURL,
		},
	}
}

// Validate checks that the record can be used to authorize requests
func (c *Credential) Validate() error {
	if c == nil {
		return ErrInvalidCredentials
	}
	if c.AccessToken == "" && c.RefreshToken == "" {
		return fmt.Errorf("%w: neither access nor refresh token present", ErrInvalidCredentials)
	}
	return nil
}

// NewStore creates the credential store selected by the configuration
func NewStore(cfg config.CredentialsConfig) (CredentialStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.File), nil
	case "keyring":
		return NewKeyringStore()
	case "encrypted":
		path := cfg.File
		if path == "" || path == "credential.json" {
			dir, err := getConfigDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get config directory: %w", err)
			}
			path = filepath.Join(dir, "credential.enc")
		}
		return NewEncryptedFileStore(path)
	default:
		return nil, fmt.Errorf("unknown credentials backend: %s", cfg.Backend)
	}
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "gpbackup")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "gpbackup")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "gpbackup")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "gpbackup")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy of the credential with secrets masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	return &Credential{
		AccessToken:  maskString(cred.AccessToken),
		RefreshToken: maskString(cred.RefreshToken),
		TokenURI:     cred.TokenURI,
		ClientID:     cred.ClientID,
		ClientSecret: maskString(cred.ClientSecret),
		Scopes:       cred.Scopes,
		Expiry:       cred.Expiry,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
