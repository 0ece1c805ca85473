package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/ids"
)

const roleColumns = `r.id, r.org_id, r.key, r.label, r.description, r.color, r.level, r.sort_order, r.active, r.created_at, r.updated_at`

// ListActive returns the tenant's active roles with their member counts.
func (s *Store) ListActive(ctx context.Context, orgID string) ([]identity.Role, error) {
	return s.listRoles(ctx, orgID, true)
}

// List returns every role of the tenant, inactive ones included.
func (s *Store) List(ctx context.Context, orgID string) ([]identity.Role, error) {
	return s.listRoles(ctx, orgID, false)
}

func (s *Store) listRoles(ctx context.Context, orgID string, activeOnly bool) ([]identity.Role, error) {
	query := `
		select ` + roleColumns + `, count(u.id) as usage_count
		from roles r
		left join users u on u.org_id = r.org_id and u.role_key = r.key
		where r.org_id = $1`
	if activeOnly {
		query += ` and r.active = true`
	}
	query += `
		group by r.id
		order by r.sort_order asc, r.key asc`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []identity.Role
	for rows.Next() {
		role, err := scanRole(rows, true)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Create inserts a role definition. A duplicate (org_id, key) maps to
// ErrConflict, an unknown organization to ErrNotFound.
func (s *Store) Create(ctx context.Context, role identity.Role) (identity.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, org_id, key, label, description, color, level, sort_order, active)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning `+strings.ReplaceAll(roleColumns, "r.", "")+`
	`, ids.New(), role.OrganizationID, role.Key, role.Label, role.Description,
		role.Color, role.Level, role.SortOrder, role.Active)
	created, err := scanRole(row, false)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return identity.Role{}, identity.ErrConflict
			case pgErrForeignKeyViolation:
				return identity.Role{}, identity.ErrNotFound
			}
		}
		return identity.Role{}, err
	}
	return created, nil
}

// Get fetches one role by id within the tenant.
func (s *Store) Get(ctx context.Context, orgID, roleID string) (identity.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+strings.ReplaceAll(roleColumns, "r.", "")+`
		from roles
		where org_id = $1 and id = $2
	`, orgID, roleID)
	return scanRole(row, false)
}

// FindByKey fetches one role by its key within the tenant.
func (s *Store) FindByKey(ctx context.Context, orgID, key string) (identity.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+strings.ReplaceAll(roleColumns, "r.", "")+`
		from roles
		where org_id = $1 and key = $2
	`, orgID, key)
	return scanRole(row, false)
}

// Update patches role metadata. The key column has no corresponding patch
// field and so can never change after creation.
func (s *Store) Update(ctx context.Context, orgID, roleID string, patch identity.RolePatch) (identity.Role, error) {
	assignments := []string{}
	args := []any{orgID, roleID}
	add := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Label != nil {
		add("label", *patch.Label)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Color != nil {
		add("color", *patch.Color)
	}
	if patch.Level != nil {
		add("level", *patch.Level)
	}
	if patch.SortOrder != nil {
		add("sort_order", *patch.SortOrder)
	}
	if patch.Active != nil {
		add("active", *patch.Active)
	}
	if len(assignments) == 0 {
		return s.Get(ctx, orgID, roleID)
	}
	add("updated_at", time.Now().UTC())

	row := s.db.QueryRowContext(ctx, `
		update roles set `+strings.Join(assignments, ", ")+`
		where org_id = $1 and id = $2
		returning `+strings.ReplaceAll(roleColumns, "r.", "")+`
	`, args...)
	return scanRole(row, false)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner, withUsage bool) (identity.Role, error) {
	var role identity.Role
	dest := []any{&role.ID, &role.OrganizationID, &role.Key, &role.Label, &role.Description,
		&role.Color, &role.Level, &role.SortOrder, &role.Active, &role.CreatedAt, &role.UpdatedAt}
	if withUsage {
		dest = append(dest, &role.UsageCount)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.Role{}, identity.ErrNotFound
		}
		return identity.Role{}, err
	}
	return role, nil
}
