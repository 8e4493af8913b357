// Package session decides whether a usable signed-in identity exists and
// what to call the user.
package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/idilsaglam/cloudtodo/internal/auth"
)

// Reason classifies an unsuccessful resolution. The view treats every reason
// as signed out.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNoSession
	ReasonExpired
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoSession:
		return "no-session"
	case ReasonExpired:
		return "expired"
	default:
		return "error"
	}
}

// Result is the outcome of one resolution.
type Result struct {
	OK          bool
	DisplayName string
	Identity    auth.Identity
	Reason      Reason
	Err         error
}

// Resolver resolves the current session against an identity provider.
type Resolver struct {
	idp    auth.IdentityProvider
	logger *zap.Logger
}

func NewResolver(idp auth.IdentityProvider, logger *zap.Logger) *Resolver {
	return &Resolver{idp: idp, logger: logger}
}

// Resolve never fails; any error becomes Result{OK: false}.
func (r *Resolver) Resolve(ctx context.Context) Result {
	id, err := r.idp.CurrentIdentity(ctx)
	if err != nil {
		return r.failed(err)
	}
	attrs, err := r.idp.Attributes(ctx, id)
	if err != nil {
		return r.failed(err)
	}
	name := DisplayName(attrs, id)
	r.logger.Info("session resolved", zap.String("user_id", id.UserID))
	return Result{OK: true, DisplayName: name, Identity: id}
}

func (r *Resolver) failed(err error) Result {
	res := Result{Err: err, Reason: classify(err)}
	if res.Reason == ReasonNoSession {
		r.logger.Debug("no current session")
	} else {
		r.logger.Warn("error getting current user", zap.Stringer("reason", res.Reason), zap.Error(err))
	}
	return res
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return ReasonNoSession
	case errors.Is(err, auth.ErrExpiredToken):
		return ReasonExpired
	default:
		return ReasonError
	}
}

// DisplayName picks email, then username, then user id.
func DisplayName(attrs auth.Attributes, id auth.Identity) string {
	for _, s := range []string{attrs.Email, id.Username, id.UserID} {
		if s != "" {
			return s
		}
	}
	return ""
}
