package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/storeops-io/storeops/internal/ids"
	"github.com/storeops-io/storeops/internal/tenantdb"
)

// workspaceCollection serves a tenant-owned table through the gateway handle
// attached at authentication time. Handlers never pick a tenant: the handle is
// already closed over the caller's organization, and access to the table is
// gated by the module grid.
func (a *API) workspaceCollection(table, moduleKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := requirePrincipal(w, r)
		if !ok {
			return
		}
		if !principal.CanAccessModule(moduleKey) {
			writeError(w, r, http.StatusForbidden, "forbidden")
			return
		}
		handle, ok := tenantdb.HandleFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusServiceUnavailable, "data gateway unavailable")
			return
		}
		switch r.Method {
		case http.MethodGet:
			a.listWorkspaceRows(w, r, handle, table)
		case http.MethodPost:
			a.createWorkspaceRow(w, r, handle, table)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	}
}

func (a *API) listWorkspaceRows(w http.ResponseWriter, r *http.Request, handle *tenantdb.Handle, table string) {
	where := tenantdb.Filter{}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		where["status"] = status
	}
	if storeID := strings.TrimSpace(r.URL.Query().Get("store_id")); storeID != "" {
		where["store_id"] = storeID
	}
	rows, err := handle.FindMany(r.Context(), table, where)
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}
	if rows == nil {
		rows = []tenantdb.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (a *API) createWorkspaceRow(w http.ResponseWriter, r *http.Request, handle *tenantdb.Handle, table string) {
	var payload map[string]any
	if err := decodeLooseJSON(w, r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(payload) == 0 {
		writeError(w, r, http.StatusBadRequest, "request body is required")
		return
	}
	record := tenantdb.Row(payload)
	id, _ := record["id"].(string)
	if strings.TrimSpace(id) == "" {
		id = ids.New()
		record["id"] = id
	}
	if err := handle.CreateOne(r.Context(), table, record); err != nil {
		handleGatewayError(w, r, err)
		return
	}
	created, err := handle.FindByID(r.Context(), table, id)
	if err != nil {
		handleGatewayError(w, r, err)
		return
	}
	a.audit(r.Context(), "workspace.row.created", map[string]any{"table": table, "id": id})
	w.Header().Set("Location", "/v1/"+table+"/"+id)
	writeJSON(w, http.StatusCreated, created)
}

func handleGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenantdb.ErrNotTenantOwned),
		errors.Is(err, tenantdb.ErrMissingTenant),
		errors.Is(err, tenantdb.ErrMismatchedRows):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
