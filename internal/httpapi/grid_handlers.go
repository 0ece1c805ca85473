package httpapi

import (
	"net/http"
	"strings"

	"github.com/storeops-io/storeops/internal/identity"
)

type bulkGridRequest struct {
	Modules map[string]bool `json:"modules"`
}

func (a *API) handleModulesCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := requirePrincipal(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": identity.AllModules()})
}

// handleGrid returns the dense role/module grid for the caller's tenant.
// Every active role appears with every known module, unset cells as false.
func (a *API) handleGrid(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	grid, err := a.registry.FullGrid(r.Context(), principal.OrganizationID)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modules": identity.AllModules(),
		"grid":    grid,
	})
}

func (a *API) handleGridRole(w http.ResponseWriter, r *http.Request) {
	roleKey := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/modules/grid/"), "/")
	if roleKey == "" || strings.Contains(roleKey, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	principal, ok := requireSuperAdmin(w, r)
	if !ok {
		return
	}
	var req bulkGridRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.registry.BulkSetForRole(r.Context(), principal.OrganizationID, roleKey, req.Modules); err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit(r.Context(), "grid.bulk_set", map[string]any{
		"role_key": roleKey,
		"count":    len(req.Modules),
	})
	w.WriteHeader(http.StatusNoContent)
}
