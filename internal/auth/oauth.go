package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultTokenURL is the Quora OAuth token endpoint.
const DefaultTokenURL = "https://www.quora.com/_/oauth/token"

// refreshTimeout bounds the credential refresh call. The harvest itself
// has no overall deadline; only this call is short-fused.
const refreshTimeout = 10 * time.Second

// OAuthProvider refreshes the access token via the refresh-token grant
// and persists the rotated refresh token.
type OAuthProvider struct {
	TokenURL string
	Store    SecretStore

	httpClient *http.Client
}

// NewOAuthProvider creates a provider against the given token endpoint.
func NewOAuthProvider(tokenURL string, store SecretStore) *OAuthProvider {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &OAuthProvider{
		TokenURL:   tokenURL,
		Store:      store,
		httpClient: &http.Client{Timeout: refreshTimeout},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh exchanges the stored refresh token for a fresh access token.
// Any failure here is fatal for the run: no fetch may start without a
// valid bearer token. A failure to persist the rotated secret is logged
// but does not fail the refresh.
func (p *OAuthProvider) Refresh(ctx context.Context) (Credentials, error) {
	sec, err := p.Store.Load()
	if err != nil {
		return Credentials{}, eris.Wrap(err, "auth: load secret")
	}
	if sec.RefreshToken == "" || sec.ClientID == "" {
		return Credentials{}, eris.New("auth: invalid token: secret is missing refresh_token or client_id")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	form := url.Values{
		"client_id":     {sec.ClientID},
		"client_secret": {sec.ClientSecret},
		"grant_type":    {"refresh_token"},
		"redirect_uri":  {sec.RedirectURL},
		"refresh_token": {sec.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credentials{}, eris.Wrap(err, "auth: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Credentials{}, eris.Wrap(err, "auth: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credentials{}, eris.Wrap(err, "auth: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return Credentials{}, eris.Errorf("auth: token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return Credentials{}, eris.Wrap(err, "auth: decode token response")
	}
	if tok.AccessToken == "" {
		return Credentials{}, eris.New("auth: token response has no access_token")
	}

	sec.AccessToken = tok.AccessToken
	sec.RefreshToken = tok.RefreshToken
	sec.ExpiresIn = tok.ExpiresIn
	if err := p.Store.Save(sec); err != nil {
		zap.L().Error("failed to persist rotated secret", zap.Error(err))
	}

	return Credentials{AccessToken: tok.AccessToken, AccountID: sec.AccountID}, nil
}
