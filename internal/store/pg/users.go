package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/ids"
)

const credentialColumns = `id, org_id, email, password_hash, refresh_token_hash, role_key, store_id, super_admin, platform_admin, active`

// FindCredentialByEmail matches on lower(email), the same expression the
// unique index is built on, so rows seeded with mixed case still resolve.
func (s *Store) FindCredentialByEmail(ctx context.Context, email string) (identity.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+credentialColumns+` from users where lower(email) = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanCredential(row)
}

func (s *Store) FindCredential(ctx context.Context, userID string) (identity.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+credentialColumns+` from users where id = $1`, userID)
	return scanCredential(row)
}

func (s *Store) FindUser(ctx context.Context, userID string) (identity.User, error) {
	var (
		user    identity.User
		storeID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, org_id, email, role_key, store_id, super_admin, platform_admin, active, created_at, updated_at
		from users
		where id = $1
	`, userID).Scan(&user.ID, &user.OrganizationID, &user.Email, &user.RoleKey, &storeID,
		&user.SuperAdmin, &user.PlatformAdmin, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.User{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.User{}, err
	}
	if storeID.Valid {
		user.StoreID = &storeID.String
	}
	return user, nil
}

// SetRefreshTokenHash rotates or clears the stored refresh digest. The single
// column write is what makes rotation invalidate every earlier refresh token.
func (s *Store) SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error {
	var value sql.NullString
	if hash != nil {
		value = sql.NullString{String: *hash, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token_hash = $1, updated_at = now() where id = $2`,
		value, userID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return identity.ErrNotFound
	}
	return nil
}

// CreateUser provisions an account. Used by the platform surface and seeds;
// the auth flow itself never creates users.
func (s *Store) CreateUser(ctx context.Context, orgID, email, passwordHash, roleKey string) (identity.User, error) {
	var (
		user    identity.User
		storeID sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, org_id, email, password_hash, role_key, active)
		values ($1, $2, $3, $4, $5, true)
		returning id, org_id, email, role_key, store_id, super_admin, platform_admin, active, created_at, updated_at
	`, ids.New(), orgID, strings.ToLower(strings.TrimSpace(email)), passwordHash, roleKey)
	err := row.Scan(&user.ID, &user.OrganizationID, &user.Email, &user.RoleKey, &storeID,
		&user.SuperAdmin, &user.PlatformAdmin, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return identity.User{}, identity.ErrConflict
			case pgErrForeignKeyViolation:
				return identity.User{}, identity.ErrNotFound
			}
		}
		return identity.User{}, err
	}
	if storeID.Valid {
		user.StoreID = &storeID.String
	}
	return user, nil
}

func scanCredential(row *sql.Row) (identity.Credential, error) {
	var (
		cred        identity.Credential
		refreshHash sql.NullString
		storeID     sql.NullString
	)
	err := row.Scan(&cred.UserID, &cred.OrganizationID, &cred.Email, &cred.PasswordHash,
		&refreshHash, &cred.RoleKey, &storeID, &cred.SuperAdmin, &cred.PlatformAdmin, &cred.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Credential{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Credential{}, err
	}
	if refreshHash.Valid {
		cred.RefreshTokenHash = &refreshHash.String
	}
	if storeID.Valid {
		cred.StoreID = &storeID.String
	}
	return cred, nil
}
