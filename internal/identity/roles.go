package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Role keys look like STORE_MANAGER: stable machine identifiers, never
// display strings.
var roleKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)

// Registry answers "what can this role do" as data. Roles and grid cells are
// tenant rows editable at runtime, not compile-time enums.
type Registry struct {
	roles   RoleStore
	modules ModuleAccessStore
}

// NewRegistry constructs the role registry and access grid facade.
func NewRegistry(roles RoleStore, modules ModuleAccessStore) (*Registry, error) {
	if roles == nil || modules == nil {
		return nil, fmt.Errorf("%w: role and module stores are required", ErrInvalidInput)
	}
	return &Registry{roles: roles, modules: modules}, nil
}

// ListActiveRoles returns the tenant's active roles ordered by sort order.
func (r *Registry) ListActiveRoles(ctx context.Context, orgID string) ([]Role, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return r.roles.ListActive(ctx, orgID)
}

// CreateRole adds a role definition. The key is normalized to upper case and
// is immutable afterwards; a duplicate key within the tenant is a conflict.
func (r *Registry) CreateRole(ctx context.Context, orgID string, input NewRole) (Role, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return Role{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	key := strings.ToUpper(strings.TrimSpace(input.Key))
	if !roleKeyPattern.MatchString(key) {
		return Role{}, fmt.Errorf("%w: role key must match %s", ErrInvalidInput, roleKeyPattern.String())
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return Role{}, fmt.Errorf("%w: role label is required", ErrInvalidInput)
	}
	return r.roles.Create(ctx, Role{
		OrganizationID: orgID,
		Key:            key,
		Label:          label,
		Description:    strings.TrimSpace(input.Description),
		Color:          strings.TrimSpace(input.Color),
		Level:          input.Level,
		SortOrder:      input.SortOrder,
		Active:         true,
	})
}

// UpdateRole patches role metadata. There is intentionally no way to express
// a key change through RolePatch; the HTTP layer rejects payloads carrying one.
func (r *Registry) UpdateRole(ctx context.Context, orgID, roleID string, patch RolePatch) (Role, error) {
	orgID = strings.TrimSpace(orgID)
	roleID = strings.TrimSpace(roleID)
	if orgID == "" || roleID == "" {
		return Role{}, fmt.Errorf("%w: organization_id and role_id are required", ErrInvalidInput)
	}
	if patch.Label != nil {
		label := strings.TrimSpace(*patch.Label)
		if label == "" {
			return Role{}, fmt.Errorf("%w: role label is required", ErrInvalidInput)
		}
		patch.Label = &label
	}
	return r.roles.Update(ctx, orgID, roleID, patch)
}

// DeactivateRole sets active=false without cascading: principals holding the
// role keep it, and from then on resolve whatever the grid grants an inactive
// role, which is nothing new.
func (r *Registry) DeactivateRole(ctx context.Context, orgID, roleID string) (Role, error) {
	inactive := false
	return r.UpdateRole(ctx, orgID, roleID, RolePatch{Active: &inactive})
}

// AccessibleModules returns module keys granted to the role. Callers must
// special-case super admins before calling; the grid governs everyone else.
func (r *Registry) AccessibleModules(ctx context.Context, orgID, roleKey string) ([]string, error) {
	orgID = strings.TrimSpace(orgID)
	roleKey = strings.TrimSpace(roleKey)
	if orgID == "" || roleKey == "" {
		return nil, fmt.Errorf("%w: organization_id and role_key are required", ErrInvalidInput)
	}
	return r.modules.GrantedModules(ctx, orgID, roleKey)
}

// FullGrid builds the dense role->module->bool mapping: every (active role,
// known module) cell is zero-filled first, then stored rows are overlaid.
// An admin UI therefore always sees the complete grid even before any cell
// has been written.
func (r *Registry) FullGrid(ctx context.Context, orgID string) (map[string]map[string]bool, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	roles, err := r.roles.ListActive(ctx, orgID)
	if err != nil {
		return nil, err
	}
	grid := make(map[string]map[string]bool, len(roles))
	for _, role := range roles {
		cells := make(map[string]bool, len(KnownModules))
		for _, module := range KnownModules {
			cells[module] = false
		}
		grid[role.Key] = cells
	}
	entries, err := r.modules.Entries(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if cells, ok := grid[entry.RoleKey]; ok && IsKnownModule(entry.ModuleKey) {
			cells[entry.ModuleKey] = entry.HasAccess
		}
	}
	return grid, nil
}

// BulkSetForRole replaces one role's module map. The target role and every
// module key are validated up front; the store applies all upserts in a
// single transaction so a partial update is never observable.
func (r *Registry) BulkSetForRole(ctx context.Context, orgID, roleKey string, access map[string]bool) error {
	orgID = strings.TrimSpace(orgID)
	roleKey = strings.TrimSpace(roleKey)
	if orgID == "" || roleKey == "" {
		return fmt.Errorf("%w: organization_id and role_key are required", ErrInvalidInput)
	}
	if len(access) == 0 {
		return fmt.Errorf("%w: module map is empty", ErrInvalidInput)
	}
	for key := range access {
		if !IsKnownModule(key) {
			return fmt.Errorf("%w: unknown module %q", ErrInvalidInput, key)
		}
	}
	if _, err := r.roles.FindByKey(ctx, orgID, roleKey); err != nil {
		return err
	}
	return r.modules.BulkSet(ctx, orgID, roleKey, access)
}
