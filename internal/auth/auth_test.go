package auth

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, c Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	return Claims{
		Email:           "ada@example.com",
		CognitoUsername: "auth0_ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "https://issuer.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenStoreSaveRecordsIdentity(t *testing.T) {
	s := TokenStore{Dir: t.TempDir(), EnvVar: "CLOUDTODO_TEST_TOKEN"}

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, creds, "no file means not logged in")

	c := validClaims()
	require.NoError(t, s.Save("Bearer "+mintToken(t, c), &c))
	creds, err = s.Load()
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, SourceFile, creds.Source)
	assert.Equal(t, "user-123", creds.Subject)
	assert.Equal(t, "ada@example.com", creds.Email)
	assert.False(t, strings.HasPrefix(creds.Token, "Bearer"))
	require.NotNil(t, creds.ExpiresAt)
	assert.False(t, creds.Expired(time.Now()))
	assert.True(t, creds.Expired(time.Now().Add(2*time.Hour)))

	info, err := os.Stat(filepath.Join(s.Dir, "credentials.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Forget())
	require.NoError(t, s.Forget(), "forgetting twice is fine")
	creds, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestTokenStoreEnvOverride(t *testing.T) {
	s := TokenStore{Dir: t.TempDir(), EnvVar: "CLOUDTODO_TEST_TOKEN"}
	c := validClaims()
	require.NoError(t, s.Save(mintToken(t, c), &c))
	t.Setenv("CLOUDTODO_TEST_TOKEN", "bearer from-env")

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", creds.Token)
	assert.Equal(t, SourceEnv, creds.Source)
	assert.Empty(t, creds.Subject)
}

func TestTokenStoreRejectsIncompleteTokens(t *testing.T) {
	s := TokenStore{Dir: t.TempDir()}
	c := validClaims()
	assert.Error(t, s.Save("   ", &c))

	c.Subject = ""
	assert.ErrorIs(t, s.Save("abc", &c), ErrInvalidClaims)
	assert.ErrorIs(t, s.Save("abc", nil), ErrInvalidClaims)
}

func TestTokenParserVerified(t *testing.T) {
	p, err := NewTokenParser(testSecret, "", "https://issuer.example.com", "")
	require.NoError(t, err)

	c, err := p.Parse(mintToken(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-123", c.Subject)
	assert.Equal(t, "ada@example.com", c.Email)
	assert.Equal(t, "auth0_ada", c.Username())
}

func TestTokenParserErrors(t *testing.T) {
	p, err := NewTokenParser(testSecret, "", "https://issuer.example.com", "")
	require.NoError(t, err)

	_, err = p.Parse("")
	assert.ErrorIs(t, err, ErrNoSession)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = p.Parse(mintToken(t, expired))
	assert.ErrorIs(t, err, ErrExpiredToken)

	other := validClaims()
	other.Issuer = "https://evil.example.com"
	_, err = p.Parse(mintToken(t, other))
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub := validClaims()
	noSub.Subject = ""
	_, err = p.Parse(mintToken(t, noSub))
	assert.ErrorIs(t, err, ErrInvalidClaims)

	bad, err := NewTokenParser("other-secret", "", "", "")
	require.NoError(t, err)
	_, err = bad.Parse(mintToken(t, validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = p.Parse("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenParserUnverifiedStillChecksExpiry(t *testing.T) {
	p, err := NewTokenParser("", "", "", "")
	require.NoError(t, err)

	c, err := p.Parse(mintToken(t, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-123", c.Subject)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = p.Parse(mintToken(t, expired))
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewTokenParserRejectsBothKeys(t *testing.T) {
	_, err := NewTokenParser("s", "pem", "", "")
	assert.Error(t, err)

	_, err = NewTokenParser("", "not a pem", "", "")
	assert.Error(t, err)
}

func newTestProvider(t *testing.T, opened *[]string) (*TokenProvider, TokenStore) {
	t.Helper()
	store := TokenStore{Dir: t.TempDir(), EnvVar: "CLOUDTODO_TEST_TOKEN"}
	parser, err := NewTokenParser(testSecret, "", "", "")
	require.NoError(t, err)
	ui := HostedUI{
		Domain:      "auth.example.com",
		ClientID:    "client-1",
		RedirectURI: "http://localhost:3000/",
		LogoutURI:   "http://localhost:3000/bye",
		Scopes:      "openid email",
	}
	open := func(u string) error {
		*opened = append(*opened, u)
		return nil
	}
	return NewTokenProvider(store, parser, ui, open, zap.NewNop()), store
}

func TestTokenProviderIdentityAndAttributes(t *testing.T) {
	var opened []string
	p, store := newTestProvider(t, &opened)
	ctx := context.Background()

	_, err := p.CurrentIdentity(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	c := validClaims()
	require.NoError(t, store.Save(mintToken(t, c), &c))

	id, err := p.CurrentIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.UserID)
	assert.Equal(t, "auth0_ada", id.Username)
	require.NotNil(t, id.ExpiresAt)

	attrs, err := p.Attributes(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", attrs.Email)

	_, err = p.Attributes(ctx, Identity{UserID: "someone-else"})
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestTokenProviderSignInRedirect(t *testing.T) {
	var opened []string
	p, _ := newTestProvider(t, &opened)

	require.NoError(t, p.SignInRedirect(context.Background(), ProviderConfig{Custom: "Auth0"}))
	require.Len(t, opened, 1)

	u, err := url.Parse(opened[0])
	require.NoError(t, err)
	assert.Equal(t, "auth.example.com", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)
	assert.Equal(t, "Auth0", u.Query().Get("identity_provider"))
	assert.Equal(t, "client-1", u.Query().Get("client_id"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
}

func TestTokenProviderSignOut(t *testing.T) {
	var opened []string
	p, store := newTestProvider(t, &opened)
	c := validClaims()
	require.NoError(t, store.Save(mintToken(t, c), &c))

	require.NoError(t, p.SignOut(context.Background()))

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
	require.Len(t, opened, 1)
	assert.Contains(t, opened[0], "/logout")
}

func TestAuthorizeURLRequiresDomain(t *testing.T) {
	_, err := HostedUI{}.AuthorizeURL(ProviderConfig{})
	assert.Error(t, err)
	assert.Empty(t, HostedUI{Domain: "d", ClientID: "c"}.LogoutURL())
}

func TestTokenProviderRejectsSwappedToken(t *testing.T) {
	var opened []string
	p, store := newTestProvider(t, &opened)

	saved := validClaims()
	other := validClaims()
	other.Subject = "intruder"
	// A file whose token names a different subject than was recorded.
	require.NoError(t, store.Save(mintToken(t, other), &saved))

	_, err := p.CurrentIdentity(context.Background())
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
