package auth

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// Secret is the persisted OAuth state for the ad account. The refresh
// token rotates on every successful refresh, so the file is rewritten
// after each run.
type Secret struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	AccountID    string `json:"account_id"`
}

// SecretStore loads and persists the OAuth secret.
type SecretStore interface {
	Load() (*Secret, error)
	Save(sec *Secret) error
}

// FileSecretStore keeps the secret as a JSON file on disk.
type FileSecretStore struct {
	Path string
}

// Load reads and decodes the secret file.
func (s *FileSecretStore) Load() (*Secret, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "auth: read secret file %s", s.Path)
	}
	var sec Secret
	if err := json.Unmarshal(data, &sec); err != nil {
		return nil, eris.Wrapf(err, "auth: decode secret file %s", s.Path)
	}
	return &sec, nil
}

// Save writes the secret file with owner-only permissions.
func (s *FileSecretStore) Save(sec *Secret) error {
	data, err := json.MarshalIndent(sec, "", "    ")
	if err != nil {
		return eris.Wrap(err, "auth: encode secret")
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return eris.Wrapf(err, "auth: write secret file %s", s.Path)
	}
	return nil
}
