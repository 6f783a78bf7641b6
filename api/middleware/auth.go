package middleware

import (
	"net/http"
	"strings"

	"github.com/greengrocer/storefront/api/responses"
	"github.com/greengrocer/storefront/api/validators"
	pkgAuth "github.com/greengrocer/storefront/pkg/auth"
	"github.com/greengrocer/storefront/pkg/auth/session"
	"github.com/greengrocer/storefront/pkg/config"
	pkgerrors "github.com/greengrocer/storefront/pkg/errors"
	"github.com/greengrocer/storefront/pkg/logger"
)

// Auth requires a valid bearer token backed by a live access session.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, verifier, logg, true)
}

// OptionalAuth authenticates when an Authorization header is present and
// lets guests through otherwise. A present but invalid token is rejected.
func OptionalAuth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, verifier, logg, false)
}

func authenticate(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" && !required {
				next.ServeHTTP(w, r)
				return
			}

			token, err := validators.BearerToken(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			ctx := WithAccountID(r.Context(), claims.AccountID)
			ctx = WithAccessID(ctx, claims.ID)
			if logg != nil {
				ctx = logg.WithAccountID(ctx, claims.AccountID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
