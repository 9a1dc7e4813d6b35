package middleware

import (
	"net/http"
	"strings"

	"github.com/bibo40140/caisse-backend/api/responses"
	pkgAuth "github.com/bibo40140/caisse-backend/pkg/auth"
	"github.com/bibo40140/caisse-backend/pkg/config"
	pkgerrors "github.com/bibo40140/caisse-backend/pkg/errors"
	"github.com/bibo40140/caisse-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
// Every authenticated request carries a tenant id; handlers scope all queries
// to it.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithTenantID(r.Context(), claims.TenantID)
			if claims.DeviceID != "" {
				ctx = WithDeviceID(ctx, claims.DeviceID)
			}
			if claims.User != "" {
				ctx = WithUser(ctx, claims.User)
			}

			if logg != nil {
				ctx = logg.WithTenantID(ctx, claims.TenantID.String())
				if claims.DeviceID != "" {
					ctx = logg.WithDeviceID(ctx, claims.DeviceID)
				}
				if claims.User != "" {
					ctx = logg.WithUser(ctx, claims.User)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
