package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/urbanwoods/api/internal/platform/httpx"
)

// AdminChecker resolves whether the authenticated identity maps to a user
// flagged as an administrator, when the token itself carries no admin claim.
type AdminChecker interface {
	IsAdmin(ctx context.Context, identity *Identity) (bool, error)
}

// AdminCheckerFunc adapts a function to the AdminChecker interface.
type AdminCheckerFunc func(ctx context.Context, identity *Identity) (bool, error)

// IsAdmin implements AdminChecker.
func (f AdminCheckerFunc) IsAdmin(ctx context.Context, identity *Identity) (bool, error) {
	if f == nil {
		return false, nil
	}
	return f(ctx, identity)
}

// Authenticator guards routes behind bearer credential verification.
type Authenticator struct {
	verifier TokenVerifier
	admins   AdminChecker
}

// NewAuthenticator constructs an Authenticator from a verifier and admin resolver.
func NewAuthenticator(verifier TokenVerifier, admins AdminChecker) *Authenticator {
	return &Authenticator{verifier: verifier, admins: admins}
}

// RequireAuth rejects requests lacking a valid bearer credential.
func (a *Authenticator) RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := a.authenticate(w, r)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin rejects requests whose identity is not an administrator.
// Authorization happens before any order logic runs.
func (a *Authenticator) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, ok := a.authenticate(w, r)
			if !ok {
				return
			}
			admin := identity.Admin
			if !admin && a.admins != nil {
				resolved, err := a.admins.IsAdmin(ctx, identity)
				if err != nil {
					httpx.WriteError(ctx, w, httpx.NewError("authorization_failed", "could not verify administrator access", http.StatusInternalServerError))
					return
				}
				admin = resolved
			}
			if !admin {
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "administrator access required", http.StatusForbidden))
				return
			}
			identity.Admin = true
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) authenticate(w http.ResponseWriter, r *http.Request) (*Identity, bool) {
	ctx := r.Context()
	if a == nil || a.verifier == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	token := BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	identity, err := a.verifier.VerifyToken(ctx, token)
	if err != nil || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "invalid credential", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}
