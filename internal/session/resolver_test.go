package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/auth"
)

type fakeIDP struct {
	id       auth.Identity
	attrs    auth.Attributes
	idErr    error
	attrsErr error
}

func (f *fakeIDP) CurrentIdentity(context.Context) (auth.Identity, error) { return f.id, f.idErr }
func (f *fakeIDP) Attributes(context.Context, auth.Identity) (auth.Attributes, error) {
	return f.attrs, f.attrsErr
}
func (f *fakeIDP) SignInRedirect(context.Context, auth.ProviderConfig) error { return nil }
func (f *fakeIDP) SignOut(context.Context) error                            { return nil }

func TestResolveDisplayNamePreference(t *testing.T) {
	tests := []struct {
		name  string
		id    auth.Identity
		attrs auth.Attributes
		want  string
	}{
		{"email wins", auth.Identity{UserID: "u1", Username: "ada"}, auth.Attributes{Email: "ada@example.com"}, "ada@example.com"},
		{"username without email", auth.Identity{UserID: "u1", Username: "ada"}, auth.Attributes{}, "ada"},
		{"user id last", auth.Identity{UserID: "u1"}, auth.Attributes{}, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&fakeIDP{id: tt.id, attrs: tt.attrs}, zap.NewNop())
			res := r.Resolve(context.Background())
			assert.True(t, res.OK)
			assert.Equal(t, tt.want, res.DisplayName)
			assert.Equal(t, ReasonNone, res.Reason)
		})
	}
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name   string
		idp    *fakeIDP
		reason Reason
	}{
		{"never signed in", &fakeIDP{idErr: auth.ErrNoSession}, ReasonNoSession},
		{"expired", &fakeIDP{idErr: fmt.Errorf("parse: %w", auth.ErrExpiredToken)}, ReasonExpired},
		{"network", &fakeIDP{idErr: errors.New("dial tcp: timeout")}, ReasonError},
		{"attributes fail", &fakeIDP{id: auth.Identity{UserID: "u1"}, attrsErr: errors.New("boom")}, ReasonError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResolver(tt.idp, zap.NewNop()).Resolve(context.Background())
			assert.False(t, res.OK)
			assert.Empty(t, res.DisplayName)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Error(t, res.Err)
		})
	}
}
