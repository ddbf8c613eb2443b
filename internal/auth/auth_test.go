package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	sec     *Secret
	loadErr error
	saveErr error
	saved   *Secret
}

func (m *memStore) Load() (*Secret, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	cp := *m.sec
	return &cp, nil
}

func (m *memStore) Save(sec *Secret) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = sec
	return nil
}

func validSecret() *Secret {
	return &Secret{
		ClientID:     "client-1",
		ClientSecret: "hush",
		RedirectURL:  "https://example.com/callback",
		RefreshToken: "refresh-old",
		AccountID:    "555",
	}
}

func TestRefresh_ExchangesAndRotates(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"grant_type":    r.PostFormValue("grant_type"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
			"refresh_token": r.PostFormValue("refresh_token"),
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"access_token":  "access-new",
			"refresh_token": "refresh-new",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	store := &memStore{sec: validSecret()}
	creds, err := NewOAuthProvider(srv.URL, store).Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access-new", creds.AccessToken)
	assert.Equal(t, "555", creds.AccountID)
	assert.Equal(t, map[string]string{
		"client_id":     "client-1",
		"client_secret": "hush",
		"grant_type":    "refresh_token",
		"redirect_uri":  "https://example.com/callback",
		"refresh_token": "refresh-old",
	}, gotForm)

	require.NotNil(t, store.saved)
	assert.Equal(t, "refresh-new", store.saved.RefreshToken)
	assert.Equal(t, "access-new", store.saved.AccessToken)
	assert.Equal(t, int64(3600), store.saved.ExpiresIn)
}

func TestRefresh_SaveFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"access_token":  "access-new",
			"refresh_token": "refresh-new",
		})
	}))
	defer srv.Close()

	store := &memStore{sec: validSecret(), saveErr: fmt.Errorf("disk full")}
	creds, err := NewOAuthProvider(srv.URL, store).Refresh(context.Background())
	require.NoError(t, err, "a stale secret file must not block the run")
	assert.Equal(t, "access-new", creds.AccessToken)
}

func TestRefresh_EndpointRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewOAuthProvider(srv.URL, &memStore{sec: validSecret()}).Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestRefresh_IncompleteSecret(t *testing.T) {
	sec := validSecret()
	sec.RefreshToken = ""

	_, err := NewOAuthProvider("http://unused.invalid", &memStore{sec: sec}).Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}

func TestRefresh_MissingAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"refresh_token": "refresh-new"}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewOAuthProvider(srv.URL, &memStore{sec: validSecret()}).Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access_token")
}

func TestRefresh_LoadFailure(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("no such file")}
	_, err := NewOAuthProvider("http://unused.invalid", store).Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load secret")
}

func TestFileSecretStore_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.json")
	store := &FileSecretStore{Path: path}

	want := validSecret()
	want.AccessToken = "access-1"
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileSecretStore_MissingFile(t *testing.T) {
	store := &FileSecretStore{Path: filepath.Join(t.TempDir(), "absent.json")}
	_, err := store.Load()
	require.Error(t, err)
}

func TestFileSecretStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := &FileSecretStore{Path: path}
	_, err := store.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode secret")
}
