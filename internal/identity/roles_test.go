package identity

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
)

func newTestRegistry(t *testing.T, roles RoleStore, modules ModuleAccessStore) *Registry {
	t.Helper()
	if roles == nil {
		roles = &stubRoleStore{}
	}
	if modules == nil {
		modules = &stubModuleStore{}
	}
	reg, err := NewRegistry(roles, modules)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestCreateRoleNormalizesKey(t *testing.T) {
	var created Role
	roles := &stubRoleStore{
		create: func(_ context.Context, role Role) (Role, error) {
			created = role
			return role, nil
		},
	}
	reg := newTestRegistry(t, roles, nil)

	_, err := reg.CreateRole(context.Background(), "org-1", NewRole{
		Key:   "  store_manager ",
		Label: " Store Manager ",
	})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if created.Key != "STORE_MANAGER" {
		t.Fatalf("expected upper-cased key, got %q", created.Key)
	}
	if created.Label != "Store Manager" {
		t.Fatalf("expected trimmed label, got %q", created.Label)
	}
	if !created.Active {
		t.Fatal("new roles start active")
	}
}

func TestCreateRoleRejectsBadInput(t *testing.T) {
	reg := newTestRegistry(t, nil, nil)
	cases := []NewRole{
		{Key: "", Label: "x"},
		{Key: "lower-case", Label: "x"},
		{Key: "1STARTS_WITH_DIGIT", Label: "x"},
		{Key: "HAS SPACE", Label: "x"},
		{Key: "VALID_KEY", Label: "   "},
	}
	for _, input := range cases {
		if _, err := reg.CreateRole(context.Background(), "org-1", input); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("input %+v: expected ErrInvalidInput, got %v", input, err)
		}
	}
}

func TestFullGridZeroFillsEveryCell(t *testing.T) {
	roles := &stubRoleStore{
		listActive: func(_ context.Context, _ string) ([]Role, error) {
			return []Role{
				{Key: "ADMIN"},
				{Key: "EMPLOYEE"},
			}, nil
		},
	}
	modules := &stubModuleStore{
		entries: func(_ context.Context, _ string) ([]ModuleAccess, error) {
			return []ModuleAccess{
				{RoleKey: "EMPLOYEE", ModuleKey: ModuleTasks, HasAccess: true},
				{RoleKey: "EMPLOYEE", ModuleKey: ModuleNews, HasAccess: false},
				// Rows for unknown roles or modules are ignored.
				{RoleKey: "GHOST", ModuleKey: ModuleTasks, HasAccess: true},
				{RoleKey: "ADMIN", ModuleKey: "retired-module", HasAccess: true},
			}, nil
		},
	}
	reg := newTestRegistry(t, roles, modules)

	grid, err := reg.FullGrid(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("FullGrid: %v", err)
	}
	if len(grid) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(grid))
	}
	for _, roleKey := range []string{"ADMIN", "EMPLOYEE"} {
		cells, ok := grid[roleKey]
		if !ok {
			t.Fatalf("missing role %s", roleKey)
		}
		if len(cells) != len(KnownModules) {
			t.Fatalf("role %s: expected %d cells, got %d", roleKey, len(KnownModules), len(cells))
		}
	}
	if !grid["EMPLOYEE"][ModuleTasks] {
		t.Fatal("stored grant not overlaid")
	}
	if grid["EMPLOYEE"][ModuleNews] {
		t.Fatal("explicit denial must read false")
	}
	if grid["ADMIN"][ModuleTasks] {
		t.Fatal("unset cell must read false")
	}
	if _, ok := grid["GHOST"]; ok {
		t.Fatal("inactive/unknown role leaked into grid")
	}
}

func TestBulkSetForRoleValidatesBeforeWriting(t *testing.T) {
	var bulkCalls int
	roles := &stubRoleStore{
		findByKey: func(_ context.Context, _, key string) (Role, error) {
			if key == "STORE_MANAGER" {
				return Role{Key: key}, nil
			}
			return Role{}, ErrNotFound
		},
	}
	modules := &stubModuleStore{
		bulkSet: func(_ context.Context, _, _ string, _ map[string]bool) error {
			bulkCalls++
			return nil
		},
	}
	reg := newTestRegistry(t, roles, modules)
	ctx := context.Background()

	if err := reg.BulkSetForRole(ctx, "org-1", "STORE_MANAGER", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty map: expected ErrInvalidInput, got %v", err)
	}
	err := reg.BulkSetForRole(ctx, "org-1", "STORE_MANAGER", map[string]bool{"not-a-module": true})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown module: expected ErrInvalidInput, got %v", err)
	}
	err = reg.BulkSetForRole(ctx, "org-1", "MISSING", map[string]bool{ModuleTasks: true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing role: expected ErrNotFound, got %v", err)
	}
	if bulkCalls != 0 {
		t.Fatalf("store written despite validation failure: %d calls", bulkCalls)
	}

	if err := reg.BulkSetForRole(ctx, "org-1", "STORE_MANAGER", map[string]bool{
		ModuleTasks: true,
		ModuleNews:  false,
	}); err != nil {
		t.Fatalf("BulkSetForRole: %v", err)
	}
	if bulkCalls != 1 {
		t.Fatalf("expected one bulk write, got %d", bulkCalls)
	}
}

func TestBulkSetForRoleAppliedTwiceIsIdempotent(t *testing.T) {
	stored := map[string]bool{}
	roles := &stubRoleStore{
		listActive: func(_ context.Context, _ string) ([]Role, error) {
			return []Role{{Key: "STORE_MANAGER"}}, nil
		},
		findByKey: func(_ context.Context, _, key string) (Role, error) {
			if key != "STORE_MANAGER" {
				return Role{}, ErrNotFound
			}
			return Role{Key: key}, nil
		},
	}
	modules := &stubModuleStore{
		bulkSet: func(_ context.Context, _, _ string, access map[string]bool) error {
			for module, ok := range access {
				stored[module] = ok
			}
			return nil
		},
		entries: func(_ context.Context, _ string) ([]ModuleAccess, error) {
			var out []ModuleAccess
			for module, ok := range stored {
				out = append(out, ModuleAccess{RoleKey: "STORE_MANAGER", ModuleKey: module, HasAccess: ok})
			}
			return out, nil
		},
		granted: func(_ context.Context, _, _ string) ([]string, error) {
			var out []string
			for module, ok := range stored {
				if ok {
					out = append(out, module)
				}
			}
			sort.Strings(out)
			return out, nil
		},
	}
	reg := newTestRegistry(t, roles, modules)
	ctx := context.Background()

	access := map[string]bool{
		ModuleTasks:   true,
		ModuleNews:    false,
		ModuleReports: true,
	}
	if err := reg.BulkSetForRole(ctx, "org-1", "STORE_MANAGER", access); err != nil {
		t.Fatalf("first BulkSetForRole: %v", err)
	}
	firstGrid, err := reg.FullGrid(ctx, "org-1")
	if err != nil {
		t.Fatalf("FullGrid: %v", err)
	}
	firstModules, err := reg.AccessibleModules(ctx, "org-1", "STORE_MANAGER")
	if err != nil {
		t.Fatalf("AccessibleModules: %v", err)
	}

	// The same map applied again changes nothing observable.
	if err := reg.BulkSetForRole(ctx, "org-1", "STORE_MANAGER", access); err != nil {
		t.Fatalf("second BulkSetForRole: %v", err)
	}
	secondGrid, err := reg.FullGrid(ctx, "org-1")
	if err != nil {
		t.Fatalf("FullGrid after reapply: %v", err)
	}
	secondModules, err := reg.AccessibleModules(ctx, "org-1", "STORE_MANAGER")
	if err != nil {
		t.Fatalf("AccessibleModules after reapply: %v", err)
	}
	if !reflect.DeepEqual(firstGrid, secondGrid) {
		t.Fatalf("grid changed on reapply:\nfirst:  %v\nsecond: %v", firstGrid, secondGrid)
	}
	if !reflect.DeepEqual(firstModules, secondModules) {
		t.Fatalf("granted modules changed on reapply: %v vs %v", firstModules, secondModules)
	}
	if !reflect.DeepEqual(firstModules, []string{ModuleReports, ModuleTasks}) {
		t.Fatalf("unexpected granted modules: %v", firstModules)
	}
}

func TestDeactivateRolePatchesActiveOnly(t *testing.T) {
	var gotPatch RolePatch
	roles := &stubRoleStore{
		update: func(_ context.Context, _, _ string, patch RolePatch) (Role, error) {
			gotPatch = patch
			return Role{Key: "EMPLOYEE", Active: false}, nil
		},
	}
	reg := newTestRegistry(t, roles, nil)

	role, err := reg.DeactivateRole(context.Background(), "org-1", "role-1")
	if err != nil {
		t.Fatalf("DeactivateRole: %v", err)
	}
	if role.Active {
		t.Fatal("expected inactive role")
	}
	if gotPatch.Active == nil || *gotPatch.Active {
		t.Fatal("expected active=false patch")
	}
	if gotPatch.Label != nil || gotPatch.Description != nil {
		t.Fatal("deactivation must not touch metadata")
	}
}
