package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession     = errors.New("no session")
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Claims are the ID token claims issued by the hosted UI. Federated users
// carry both the pool username and the upstream provider's nickname.
type Claims struct {
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	CognitoUsername   string `json:"cognito:username"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	jwt.RegisteredClaims
}

// Username returns the short username claim, if any.
func (c *Claims) Username() string {
	if c.CognitoUsername != "" {
		return c.CognitoUsername
	}
	return c.PreferredUsername
}

// TokenParser turns a raw ID token into Claims. Without a configured key the
// signature is not checked (the data service re-validates every request), but
// expiry and issuer still are.
type TokenParser struct {
	secretKey []byte
	publicKey *rsa.PublicKey
	issuer    string
	audience  string
	now       func() time.Time
}

// NewTokenParser builds a parser. At most one of secret (HS256) or publicKeyPEM
// (RS256) may be set.
func NewTokenParser(secret, publicKeyPEM, issuer, audience string) (*TokenParser, error) {
	p := &TokenParser{issuer: issuer, audience: audience, now: time.Now}
	switch {
	case secret != "" && publicKeyPEM != "":
		return nil, errors.New("only one of secret or public key may be set")
	case secret != "":
		p.secretKey = []byte(secret)
	case publicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		p.publicKey = key
	}
	return p, nil
}

// Parse validates the token and returns its claims.
func (p *TokenParser) Parse(raw string) (*Claims, error) {
	raw = stripBearer(raw)
	if raw == "" {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	var err error
	if p.secretKey == nil && p.publicKey == nil {
		_, _, err = jwt.NewParser().ParseUnverified(raw, claims)
	} else {
		opts := []jwt.ParserOption{jwt.WithTimeFunc(p.now)}
		if p.issuer != "" {
			opts = append(opts, jwt.WithIssuer(p.issuer))
		}
		if p.audience != "" {
			opts = append(opts, jwt.WithAudience(p.audience))
		}
		if p.secretKey != nil {
			opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		} else {
			opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
		}
		_, err = jwt.ParseWithClaims(raw, claims, p.key, opts...)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// ParseUnverified skips claim validation entirely.
	if exp := claims.ExpiresAt; exp != nil && !p.now().Before(exp.Time) {
		return nil, ErrExpiredToken
	}
	if p.issuer != "" && claims.Issuer != p.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	}
	return claims, nil
}

func (p *TokenParser) key(token *jwt.Token) (interface{}, error) {
	if p.secretKey != nil {
		return p.secretKey, nil
	}
	return p.publicKey, nil
}
