package httpapi

import (
	"net/http"
	"strings"

	"github.com/storeops-io/storeops/internal/identity"
)

type createRoleRequest struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Level       int    `json:"level"`
	SortOrder   int    `json:"sort_order"`
}

// updateRoleRequest deliberately has no key field: combined with
// DisallowUnknownFields in decodeJSON, a payload trying to rename a role
// fails with 400 before reaching the registry.
type updateRoleRequest struct {
	Label       *string `json:"label"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Level       *int    `json:"level"`
	SortOrder   *int    `json:"sort_order"`
	Active      *bool   `json:"active"`
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRoles(w, r)
	case http.MethodPost:
		a.createRole(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	roles, err := a.registry.ListActiveRoles(r.Context(), principal.OrganizationID)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	if roles == nil {
		roles = []identity.Role{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": roles})
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.registry.CreateRole(r.Context(), principal.OrganizationID, identity.NewRole{
		Key:         req.Key,
		Label:       req.Label,
		Description: req.Description,
		Color:       req.Color,
		Level:       req.Level,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.created", map[string]any{"role_key": role.Key})
	w.Header().Set("Location", "/v1/roles/"+role.ID)
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodPatch {
			methodNotAllowed(w, r, http.MethodPatch)
			return
		}
		a.updateRole(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "deactivate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.deactivateRole(w, r, parts[0])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request, roleID string) {
	principal, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.registry.UpdateRole(r.Context(), principal.OrganizationID, roleID, identity.RolePatch{
		Label:       req.Label,
		Description: req.Description,
		Color:       req.Color,
		Level:       req.Level,
		SortOrder:   req.SortOrder,
		Active:      req.Active,
	})
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.updated", map[string]any{"role_key": role.Key})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) deactivateRole(w http.ResponseWriter, r *http.Request, roleID string) {
	principal, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	role, err := a.registry.DeactivateRole(r.Context(), principal.OrganizationID, roleID)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "role.deactivated", map[string]any{"role_key": role.Key})
	writeJSON(w, http.StatusOK, role)
}
