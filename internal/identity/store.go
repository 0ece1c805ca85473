package identity

import "context"

// UserStore describes the credential persistence required by the auth flow.
type UserStore interface {
	// FindCredentialByEmail looks up by case-folded email.
	FindCredentialByEmail(ctx context.Context, email string) (Credential, error)
	FindCredential(ctx context.Context, userID string) (Credential, error)
	FindUser(ctx context.Context, userID string) (User, error)
	// SetRefreshTokenHash rotates (or, with nil, clears) the stored refresh
	// digest. The previous hash stops verifying immediately.
	SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error
}

// RoleStore manages per-tenant role definitions.
type RoleStore interface {
	ListActive(ctx context.Context, orgID string) ([]Role, error)
	List(ctx context.Context, orgID string) ([]Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Get(ctx context.Context, orgID, roleID string) (Role, error)
	FindByKey(ctx context.Context, orgID, key string) (Role, error)
	Update(ctx context.Context, orgID, roleID string, patch RolePatch) (Role, error)
}

// ModuleAccessStore manages the sparse role->module grid.
type ModuleAccessStore interface {
	// GrantedModules returns module keys with has_access=true for the pair.
	GrantedModules(ctx context.Context, orgID, roleKey string) ([]string, error)
	// Entries returns every stored cell for the tenant.
	Entries(ctx context.Context, orgID string) ([]ModuleAccess, error)
	// BulkSet upserts all cells for one role atomically: a concurrent reader
	// never observes a partially applied map.
	BulkSet(ctx context.Context, orgID, roleKey string, access map[string]bool) error
}
