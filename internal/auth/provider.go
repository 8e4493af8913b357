package auth

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Identity is the authenticated principal behind the current session.
type Identity struct {
	UserID    string
	Username  string
	ExpiresAt *time.Time
}

// Attributes are the profile attributes attached to an identity.
type Attributes struct {
	Email         string
	EmailVerified bool
	Name          string
}

// ProviderConfig selects the upstream identity provider for a sign-in redirect.
type ProviderConfig struct {
	Custom string // e.g. "Auth0"
}

// IdentityProvider is the identity collaborator used by the session resolver
// and the view.
type IdentityProvider interface {
	CurrentIdentity(ctx context.Context) (Identity, error)
	Attributes(ctx context.Context, id Identity) (Attributes, error)
	// SignInRedirect hands control to the hosted sign-in page. It returns
	// once the redirect has been started, not when the user has signed in.
	SignInRedirect(ctx context.Context, pc ProviderConfig) error
	SignOut(ctx context.Context) error
}

// HostedUI describes the OAuth2 hosted sign-in endpoints.
type HostedUI struct {
	Domain      string
	ClientID    string
	RedirectURI string
	LogoutURI   string
	Scopes      string
}

// AuthorizeURL builds the authorize URL for provider pc.
func (h HostedUI) AuthorizeURL(pc ProviderConfig) (string, error) {
	if h.Domain == "" || h.ClientID == "" {
		return "", fmt.Errorf("hosted UI domain and client id are required")
	}
	q := url.Values{}
	q.Set("client_id", h.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", h.Scopes)
	if h.RedirectURI != "" {
		q.Set("redirect_uri", h.RedirectURI)
	}
	if pc.Custom != "" {
		q.Set("identity_provider", pc.Custom)
	}
	u := url.URL{Scheme: "https", Host: h.Domain, Path: "/oauth2/authorize", RawQuery: q.Encode()}
	return u.String(), nil
}

// LogoutURL builds the hosted logout URL, or "" when no logout redirect is set.
func (h HostedUI) LogoutURL() string {
	if h.Domain == "" || h.ClientID == "" || h.LogoutURI == "" {
		return ""
	}
	q := url.Values{}
	q.Set("client_id", h.ClientID)
	q.Set("logout_uri", h.LogoutURI)
	u := url.URL{Scheme: "https", Host: h.Domain, Path: "/logout", RawQuery: q.Encode()}
	return u.String()
}

// TokenProvider implements IdentityProvider on top of a stored ID token.
type TokenProvider struct {
	store  TokenStore
	parser *TokenParser
	ui     HostedUI
	open   func(string) error
	logger *zap.Logger
}

// NewTokenProvider wires a TokenProvider. open launches a URL; nil means
// OpenBrowser.
func NewTokenProvider(store TokenStore, parser *TokenParser, ui HostedUI, open func(string) error, logger *zap.Logger) *TokenProvider {
	if open == nil {
		open = OpenBrowser
	}
	return &TokenProvider{store: store, parser: parser, ui: ui, open: open, logger: logger}
}

// claims parses the stored token. A saved token must still belong to the
// subject it was saved for.
func (p *TokenProvider) claims() (*Claims, error) {
	creds, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, ErrNoSession
	}
	c, err := p.parser.Parse(creds.Token)
	if err != nil {
		return nil, err
	}
	if creds.Subject != "" && creds.Subject != c.Subject {
		return nil, fmt.Errorf("%w: token does not match saved subject", ErrInvalidClaims)
	}
	return c, nil
}

// CurrentIdentity returns the identity of the stored token.
func (p *TokenProvider) CurrentIdentity(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	c, err := p.claims()
	if err != nil {
		return Identity{}, err
	}
	id := Identity{UserID: c.Subject, Username: c.Username()}
	if c.ExpiresAt != nil {
		t := c.ExpiresAt.Time
		id.ExpiresAt = &t
	}
	return id, nil
}

// Attributes re-reads the token so a token swapped since CurrentIdentity is
// noticed.
func (p *TokenProvider) Attributes(ctx context.Context, id Identity) (Attributes, error) {
	if err := ctx.Err(); err != nil {
		return Attributes{}, err
	}
	c, err := p.claims()
	if err != nil {
		return Attributes{}, err
	}
	if c.Subject != id.UserID {
		return Attributes{}, fmt.Errorf("%w: session changed", ErrInvalidClaims)
	}
	return Attributes{Email: c.Email, EmailVerified: c.EmailVerified, Name: c.Name}, nil
}

// SignInRedirect opens the hosted UI authorize page in the browser.
func (p *TokenProvider) SignInRedirect(ctx context.Context, pc ProviderConfig) error {
	u, err := p.ui.AuthorizeURL(pc)
	if err != nil {
		return err
	}
	p.logger.Info("starting sign-in redirect", zap.String("provider", pc.Custom))
	if err := p.open(u); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

// SignOut forgets the stored token and opens the hosted logout page when one
// is configured. A token supplied by environment cannot be forgotten.
func (p *TokenProvider) SignOut(ctx context.Context) error {
	creds, _ := p.store.Load()
	if creds != nil && creds.Source == SourceEnv {
		p.logger.Warn("token is provided by environment; nothing to delete", zap.String("env", p.store.EnvVar))
	} else if err := p.store.Forget(); err != nil {
		return err
	}
	if u := p.ui.LogoutURL(); u != "" {
		if err := p.open(u); err != nil {
			p.logger.Warn("open logout page", zap.Error(err))
		}
	}
	return nil
}
