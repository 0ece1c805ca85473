package httpapi

import (
	"net/http"
	"strings"

	"github.com/storeops-io/storeops/internal/identity"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// handlePlatformOrganizations is the explicitly platform-scoped surface.
// Organizations are never served through the tenant gateway; only platform
// admins reach this handler.
func (a *API) handlePlatformOrganizations(w http.ResponseWriter, r *http.Request) {
	if a.platform == nil {
		writeError(w, r, http.StatusServiceUnavailable, "platform store unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if _, ok := requirePlatformAdmin(w, r); !ok {
			return
		}
		orgs, err := a.platform.ListOrganizations(r.Context())
		if err != nil {
			handleIdentityError(w, r, err)
			return
		}
		if orgs == nil {
			orgs = []identity.Organization{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": orgs})
	case http.MethodPost:
		if _, ok := requirePlatformAdmin(w, r); !ok {
			return
		}
		var req createOrganizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Slug) == "" {
			writeError(w, r, http.StatusBadRequest, "name and slug are required")
			return
		}
		org, err := a.platform.CreateOrganization(r.Context(), req.Name, req.Slug)
		if err != nil {
			handleIdentityError(w, r, err)
			return
		}
		a.audit(r.Context(), "platform.organization.created", map[string]any{"slug": org.Slug})
		w.Header().Set("Location", "/v1/platform/organizations/"+org.ID)
		writeJSON(w, http.StatusCreated, org)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}
