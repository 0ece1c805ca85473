package pg

import (
	"context"
	"sort"

	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/ids"
)

// GrantedModules returns the module keys the role can reach. Absent rows and
// has_access=false rows are the same thing to callers.
func (s *Store) GrantedModules(ctx context.Context, orgID, roleKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select module_key
		from module_access
		where org_id = $1 and role_key = $2 and has_access = true
		order by module_key asc
	`, orgID, roleKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		modules = append(modules, key)
	}
	return modules, rows.Err()
}

// Entries returns every stored grid cell for the tenant, including explicit
// denials, so the registry can overlay them onto the zero-filled grid.
func (s *Store) Entries(ctx context.Context, orgID string) ([]identity.ModuleAccess, error) {
	rows, err := s.db.QueryContext(ctx, `
		select role_key, module_key, has_access
		from module_access
		where org_id = $1
		order by role_key asc, module_key asc
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []identity.ModuleAccess
	for rows.Next() {
		entry := identity.ModuleAccess{OrganizationID: orgID}
		if err := rows.Scan(&entry.RoleKey, &entry.ModuleKey, &entry.HasAccess); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// BulkSet upserts one role's module map in a single transaction. Either every
// cell lands or none does; readers never observe a half-applied grid row.
func (s *Store) BulkSet(ctx context.Context, orgID, roleKey string, access map[string]bool) error {
	keys := make([]string, 0, len(access))
	for key := range access {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range keys {
		_, err := tx.ExecContext(ctx, `
			insert into module_access (id, org_id, role_key, module_key, has_access)
			values ($1, $2, $3, $4, $5)
			on conflict (org_id, role_key, module_key)
			do update set has_access = excluded.has_access, updated_at = now()
		`, ids.New(), orgID, roleKey, key, access[key])
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return identity.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}
