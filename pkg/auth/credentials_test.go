package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gpbackup/pkg/config"
	errs "gpbackup/pkg/errors"
	"gpbackup/pkg/logger"
)

func sampleCredential() *Credential {
	return &Credential{
		AccessToken:  "ya29.access-token-value",
		RefreshToken: "1//refresh-token-value",
		TokenURI:     "https://oauth2.googleapis.com/token",
		ClientID:     "client-id.apps.googleusercontent.com",
		ClientSecret: "client-secret-value",
		Expiry:       time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

// tokenServer answers OAuth token requests with a fixed access token
func tokenServer(t *testing.T, accessToken string) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var grants []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		grants = append(grants, r.PostForm.Get("grant_type"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","refresh_token":"1//issued-refresh","expires_in":3600}`, accessToken)
	}))
	t.Cleanup(srv.Close)
	return srv, &grants
}

func writeClientSecret(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client_secret.json")
	content := fmt.Sprintf(`{"installed":{"client_id":"cid.apps.googleusercontent.com","client_secret":"csecret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":%q,"redirect_uris":["urn:ietf:wg:oauth:2.0:oob"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func photosConfig(secretFile string) config.PhotosConfig {
	cfg := config.DefaultConfig().Photos
	cfg.ClientSecretFile = secretFile
	return cfg
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "credential.json")
	store := NewFileStore(path)

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.False(t, store.Exists())

	require.NoError(t, store.Save(sampleCredential()))
	assert.True(t, store.Exists())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleCredential(), loaded)

	require.NoError(t, store.Delete())
	assert.ErrorIs(t, store.Delete(), ErrCredentialsNotFound)
}

func TestFileStoreJSONFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(t, NewFileStore(path).Save(sampleCredential()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"token", "_refresh_token", "_token_uri", "_client_id", "_client_secret", "expiry"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "2024-03-05T10:00:00Z", fields["expiry"])
}

func TestFileStoreLoadsPythonCredentialFile(t *testing.T) {
	tests := []struct {
		name   string
		expiry string
		want   time.Time
	}{
		{"naive isoformat", `"2024-03-05T10:11:12.345678"`, time.Date(2024, 3, 5, 10, 11, 12, 345678000, time.UTC)},
		{"naive without fraction", `"2024-03-05T10:11:12"`, time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)},
		{"rfc3339 offset", `"2024-03-05T12:11:12+02:00"`, time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)},
		{"null", `null`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "credential.json")
			content := `{"_client_id": "cid", "_client_secret": "csecret", "_id_token": null, ` +
				`"_quota_project_id": null, "_refresh_token": "1//rt", ` +
				`"_scopes": ["https://www.googleapis.com/auth/photoslibrary.readonly"], ` +
				`"_token_uri": "https://oauth2.googleapis.com/token", "expiry": ` + tt.expiry + `, "token": "at"}`
			require.NoError(t, os.WriteFile(path, []byte(content), 0600))

			cred, err := NewFileStore(path).Load()
			require.NoError(t, err)

			assert.Equal(t, "at", cred.AccessToken)
			assert.Equal(t, "1//rt", cred.RefreshToken)
			assert.Equal(t, "cid", cred.ClientID)
			assert.Equal(t, "csecret", cred.ClientSecret)
			assert.Equal(t, "https://oauth2.googleapis.com/token", cred.TokenURI)
			assert.Equal(t, []string{"https://www.googleapis.com/auth/photoslibrary.readonly"}, cred.Scopes)
			assert.True(t, tt.want.Equal(cred.Expiry), "expiry %s", cred.Expiry)
		})
	}
}

func TestFileStoreRejectsUnknownExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"at","expiry":"next tuesday"}`), 0600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestFileStoreRejectsEmptyCredential(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "credential.json"))
	assert.ErrorIs(t, store.Save(&Credential{ClientID: "x"}), ErrInvalidCredentials)
	assert.False(t, store.Exists())
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("GPBACKUP_PASSPHRASE", "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credential.enc")

	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleCredential()))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleCredential().RefreshToken, loaded.RefreshToken)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(content, []byte("refresh-token-value")), "file contains plaintext refresh token")

	t.Setenv("GPBACKUP_PASSPHRASE", "another passphrase")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Load()
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	cred := sampleCredential()
	masked := Sanitize(cred)

	assert.Equal(t, "ya29...alue", masked.AccessToken)
	assert.NotEqual(t, cred.RefreshToken, masked.RefreshToken)
	assert.NotEqual(t, cred.ClientSecret, masked.ClientSecret)
	assert.Equal(t, cred.ClientID, masked.ClientID)
	assert.Nil(t, Sanitize(nil))
	assert.Equal(t, "********", maskString("short"))
}

func TestCredentialConversion(t *testing.T) {
	cred := sampleCredential()
	tok := cred.Token()
	assert.Equal(t, cred.AccessToken, tok.AccessToken)
	assert.Equal(t, cred.RefreshToken, tok.RefreshToken)

	cfg := cred.OAuthConfig([]string{"scope-a"})
	assert.Equal(t, cred.TokenURI, cfg.Endpoint.TokenURL)
	assert.Equal(t, []string{"scope-a"}, cfg.Scopes)

	back := NewCredential(tok, cfg)
	assert.Equal(t, cred.ClientSecret, back.ClientSecret)
	assert.Equal(t, cred.Expiry, back.Expiry)
}

func TestObtainUsesStoredCredential(t *testing.T) {
	store := NewMockStoreWith(sampleCredential())
	m := NewManager(store, photosConfig("does-not-exist.json"), logger.NewNopLogger())
	m.SetPrompt(strings.NewReader(""), &bytes.Buffer{}, func() bool {
		t.Fatal("prompt must not run when a credential is stored")
		return false
	})

	cred, err := m.Obtain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleCredential().AccessToken, cred.AccessToken)
	assert.Equal(t, 1, store.SaveCount(), "credential is rewritten on every obtain")
}

func TestObtainRefusesWithoutTerminal(t *testing.T) {
	srv, grants := tokenServer(t, "unused")
	secret := writeClientSecret(t, srv.URL+"/token")

	m := NewManager(NewMockStore(), photosConfig(secret), logger.NewNopLogger())
	m.SetPrompt(strings.NewReader("code\n"), &bytes.Buffer{}, func() bool { return false })

	_, err := m.Obtain(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
	assert.ErrorIs(t, err, ErrNotInteractive)
	assert.Empty(t, *grants)
}

func TestObtainMissingClientSecret(t *testing.T) {
	m := NewManager(NewMockStore(), photosConfig(filepath.Join(t.TempDir(), "missing.json")), logger.NewNopLogger())
	m.SetPrompt(strings.NewReader(""), &bytes.Buffer{}, func() bool { return true })

	_, err := m.Obtain(context.Background())
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
}

func TestObtainInteractiveFlow(t *testing.T) {
	srv, grants := tokenServer(t, "fresh-access")
	secret := writeClientSecret(t, srv.URL+"/token")

	store := NewMockStore()
	out := &bytes.Buffer{}
	m := NewManager(store, photosConfig(secret), logger.NewNopLogger())
	m.SetPrompt(strings.NewReader("4/auth-code\n"), out, func() bool { return true })

	cred, err := m.Obtain(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "access_type=offline")
	assert.Contains(t, out.String(), "state=state-token")
	assert.Equal(t, []string{"authorization_code"}, *grants)

	assert.Equal(t, "fresh-access", cred.AccessToken)
	assert.Equal(t, "1//issued-refresh", cred.RefreshToken)
	assert.Equal(t, srv.URL+"/token", cred.TokenURI)
	assert.Equal(t, "cid.apps.googleusercontent.com", cred.ClientID)
	assert.Equal(t, cred, store.Current())
}

func TestObtainLoadFailureIsAuthError(t *testing.T) {
	store := NewMockStore()
	store.LoadError = errors.New("corrupt file")

	m := NewManager(store, photosConfig("unused.json"), logger.NewNopLogger())
	_, err := m.Obtain(context.Background())
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
}

func TestHTTPClientPersistsRefreshedToken(t *testing.T) {
	tokenSrv, grants := tokenServer(t, "refreshed-access")

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	cred := sampleCredential()
	cred.TokenURI = tokenSrv.URL + "/token"
	cred.Expiry = time.Now().Add(-time.Hour)

	store := NewMockStoreWith(cred)
	m := NewManager(store, photosConfig("unused.json"), logger.NewNopLogger())

	client := m.HTTPClient(context.Background(), cred)
	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer refreshed-access", gotAuth)
	assert.Equal(t, []string{"refresh_token"}, *grants)
	require.NotNil(t, store.Current())
	assert.Equal(t, "refreshed-access", store.Current().AccessToken)
	assert.Equal(t, 1, store.SaveCount())
}

func TestStatusAndLogout(t *testing.T) {
	store := NewMockStoreWith(sampleCredential())
	m := NewManager(store, photosConfig("unused.json"), logger.NewNopLogger())

	status, err := m.Status()
	require.NoError(t, err)
	assert.NotEqual(t, sampleCredential().AccessToken, status.AccessToken)

	require.NoError(t, m.Logout())
	_, err = m.Status()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestNewStoreSelectsBackend(t *testing.T) {
	store, err := NewStore(config.CredentialsConfig{Backend: "file", File: "cred.json"})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = NewStore(config.CredentialsConfig{Backend: "vault"})
	assert.Error(t, err)
}

func TestShowClientSecretGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowClientSecretGuide(&buf, "client_secret.json")
	assert.Contains(t, buf.String(), "Photos Library API")
	assert.Contains(t, buf.String(), "client_secret.json")
}
