package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/storeops-io/storeops/internal/audit"
	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/tenantdb"
)

const (
	authorizationHeader = "Authorization"
	bearer              = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth authenticates every non-public request. On success the request
// context carries the principal and a data handle bound to the principal's
// organization; handlers never choose a tenant themselves.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
		r = r.WithContext(ctx)

		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authorizationHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		principal, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx = identity.ContextWithPrincipal(r.Context(), principal)
		if a.gateway != nil {
			handle, err := a.gateway.For(principal.OrganizationID)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "authentication error")
				return
			}
			ctx = tenantdb.ContextWithHandle(ctx, handle)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePrincipal returns the authenticated principal or writes a 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	principal, ok := identity.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return identity.Principal{}, false
	}
	return principal, true
}

// requireSuperAdmin gates grid and role administration.
func requireSuperAdmin(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return identity.Principal{}, false
	}
	if !principal.SuperAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return identity.Principal{}, false
	}
	return principal, true
}

// requirePlatformAdmin gates the cross-tenant platform surface.
func requirePlatformAdmin(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return identity.Principal{}, false
	}
	if !principal.PlatformAdmin {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return identity.Principal{}, false
	}
	return principal, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
