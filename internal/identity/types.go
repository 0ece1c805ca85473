package identity

import "time"

// Organization is a tenant: an isolated customer account. Organization rows
// are platform-scoped and never reachable through tenant-bound data handles.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is the public projection of an account. Password and refresh hashes
// never leave the store layer through this type.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	RoleKey        string    `json:"role_key"`
	StoreID        *string   `json:"store_id,omitempty"`
	SuperAdmin     bool      `json:"super_admin"`
	PlatformAdmin  bool      `json:"platform_admin"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Credential is the authentication view of a user row. RefreshTokenHash is
// nil when no session is active.
type Credential struct {
	UserID           string
	OrganizationID   string
	Email            string
	PasswordHash     string
	RefreshTokenHash *string
	RoleKey          string
	StoreID          *string
	SuperAdmin       bool
	PlatformAdmin    bool
	Active           bool
}

// Role is a per-tenant, runtime-editable role definition. Key is immutable
// after creation; everything else is metadata.
type Role struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Key            string    `json:"key"`
	Label          string    `json:"label"`
	Description    string    `json:"description,omitempty"`
	Color          string    `json:"color,omitempty"`
	Level          int       `json:"level"`
	SortOrder      int       `json:"sort_order"`
	Active         bool      `json:"active"`
	UsageCount     int       `json:"usage_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewRole carries the fields accepted when creating a role.
type NewRole struct {
	Key         string
	Label       string
	Description string
	Color       string
	Level       int
	SortOrder   int
}

// RolePatch updates role metadata. The key is deliberately absent: it cannot
// be changed once the role exists.
type RolePatch struct {
	Label       *string
	Description *string
	Color       *string
	Level       *int
	SortOrder   *int
	Active      *bool
}

// ModuleAccess is one sparse grid cell: (org, role, module) -> bool.
// A missing row reads as false.
type ModuleAccess struct {
	OrganizationID string    `json:"organization_id"`
	RoleKey        string    `json:"role_key"`
	ModuleKey      string    `json:"module_key"`
	HasAccess      bool      `json:"has_access"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Principal is the authenticated identity for one request. It is derived from
// a verified access token plus a fresh user lookup and is never persisted or
// cached across requests.
type Principal struct {
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"organization_id"`
	Email          string   `json:"email"`
	RoleKey        string   `json:"role_key"`
	StoreID        *string  `json:"store_id,omitempty"`
	SuperAdmin     bool     `json:"super_admin"`
	PlatformAdmin  bool     `json:"platform_admin"`
	Modules        []string `json:"modules"`
}

// CanAccessModule reports whether the principal may reach a feature module.
// Super admins bypass the grid entirely.
func (p Principal) CanAccessModule(key string) bool {
	if p.SuperAdmin {
		return IsKnownModule(key)
	}
	for _, m := range p.Modules {
		if m == key {
			return true
		}
	}
	return false
}
