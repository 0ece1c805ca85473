package httpapi

import (
	"net/http"
	"strings"

	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	identity.TokenPair
	User identity.Principal `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, principal, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.CountAuthAttempt("login", "denied")
		handleIdentityError(w, r, err)
		return
	}
	obs.CountAuthAttempt("login", "ok")
	a.audit(r.Context(), "auth.login", map[string]any{
		"user_id": principal.UserID,
		"org_id":  principal.OrganizationID,
	})
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, User: principal})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}
	pair, principal, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.CountAuthAttempt("refresh", "denied")
		handleIdentityError(w, r, err)
		return
	}
	obs.CountAuthAttempt("refresh", "ok")
	writeJSON(w, http.StatusOK, sessionResponse{TokenPair: pair, User: principal})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if err := a.auth.Logout(r.Context(), principal.UserID); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.logout", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, principal)
}
