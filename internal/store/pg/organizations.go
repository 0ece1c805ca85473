package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/ids"
)

// Organizations are deliberately not reachable through the tenant gateway:
// the table has no org_id predicate that would make sense. This store is the
// explicitly platform-scoped path, exposed only to platform admins.

func (s *Store) ListOrganizations(ctx context.Context) ([]identity.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, slug, active, created_at, updated_at
		from organizations
		order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []identity.Organization
	for rows.Next() {
		var org identity.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (s *Store) CreateOrganization(ctx context.Context, name, slug string) (identity.Organization, error) {
	var org identity.Organization
	err := s.db.QueryRowContext(ctx, `
		insert into organizations (id, name, slug, active)
		values ($1, $2, $3, true)
		returning id, name, slug, active, created_at, updated_at
	`, ids.New(), strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(slug))).
		Scan(&org.ID, &org.Name, &org.Slug, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return identity.Organization{}, identity.ErrConflict
		}
		return identity.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetOrganization(ctx context.Context, id string) (identity.Organization, error) {
	var org identity.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, slug, active, created_at, updated_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Organization{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Organization{}, err
	}
	return org, nil
}
