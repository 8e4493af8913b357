package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const credFileName = "credentials.json"

// Token sources.
const (
	SourceEnv  = "env"
	SourceFile = "file"
)

// Credentials is a stored ID token and the identity it was issued for.
// Tokens from the environment carry no Subject or ExpiresAt; those are only
// known once the token is parsed.
type Credentials struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`
	Subject   string     `json:"subject,omitempty"`
	Email     string     `json:"email,omitempty"`
	SavedAt   time.Time  `json:"saved_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the recorded expiry has passed. Unknown expiry is
// not expired.
func (c *Credentials) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// TokenStore keeps the signed-in user's credentials in Dir. EnvVar, when set
// in the environment, takes precedence over the file.
type TokenStore struct {
	Dir    string
	EnvVar string
}

func (s TokenStore) path() string {
	return filepath.Join(s.Dir, credFileName)
}

// Load returns the current credentials, or nil when nobody is signed in.
func (s TokenStore) Load() (*Credentials, error) {
	if s.EnvVar != "" {
		if env := stripBearer(strings.TrimSpace(os.Getenv(s.EnvVar))); env != "" {
			return &Credentials{Token: env, Source: SourceEnv}, nil
		}
	}

	b, err := os.ReadFile(s.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if c.Token == "" {
		return nil, nil
	}
	c.Source = SourceFile
	return &c, nil
}

// Save records token for the subject named in claims. The file is 0600
// inside a 0700 directory.
func (s TokenStore) Save(token string, claims *Claims) error {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return errors.New("empty token")
	}
	if claims == nil || claims.Subject == "" {
		return fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	}
	c := Credentials{
		Token:   token,
		Source:  SourceFile,
		Subject: claims.Subject,
		Email:   claims.Email,
		SavedAt: time.Now().UTC(),
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		c.ExpiresAt = &exp
	}

	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.WriteFile(s.path(), b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Forget removes the credentials file. Nothing to remove is not an error.
func (s TokenStore) Forget() error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

func stripBearer(s string) string {
	if len(s) > 7 && strings.EqualFold(s[:7], "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
