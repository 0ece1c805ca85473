package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/storeops-io/storeops/internal/identity"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func credentialRows(refreshHash any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "org_id", "email", "password_hash", "refresh_token_hash",
		"role_key", "store_id", "super_admin", "platform_admin", "active",
	}).AddRow("user-1", "org-1", "manager@example.com", "$2a$hash", refreshHash,
		"STORE_MANAGER", nil, false, false, true)
}

func TestFindCredentialByEmailNormalizes(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`from users where lower(email) = $1`)).
		WithArgs("manager@example.com").
		WillReturnRows(credentialRows(nil))

	cred, err := store.FindCredentialByEmail(context.Background(), "  Manager@Example.COM ")
	if err != nil {
		t.Fatalf("FindCredentialByEmail: %v", err)
	}
	if cred.UserID != "user-1" || cred.RefreshTokenHash != nil {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindCredentialMapsMissingToNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`from users where id = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "email", "password_hash", "refresh_token_hash",
			"role_key", "store_id", "super_admin", "platform_admin", "active",
		}))

	if _, err := store.FindCredential(context.Background(), "ghost"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetRefreshTokenHashRotatesAndClears(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	hash := "abc123"
	mock.ExpectExec(regexp.QuoteMeta(`update users set refresh_token_hash = $1, updated_at = now() where id = $2`)).
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.SetRefreshTokenHash(ctx, "user-1", &hash); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`update users set refresh_token_hash = $1, updated_at = now() where id = $2`)).
		WithArgs(sqlmock.AnyArg(), "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.SetRefreshTokenHash(ctx, "user-1", nil); err != nil {
		t.Fatalf("clear: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`update users set refresh_token_hash = $1, updated_at = now() where id = $2`)).
		WithArgs(sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.SetRefreshTokenHash(ctx, "ghost", nil); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRoleMapsUniqueViolationToConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`insert into roles`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := store.Create(context.Background(), identity.Role{
		OrganizationID: "org-1",
		Key:            "ADMIN",
		Label:          "Administrator",
		Active:         true,
	})
	if !errors.Is(err, identity.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestListActiveRolesIncludesUsageCount(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`count(u.id) as usage_count`)).
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "key", "label", "description", "color",
			"level", "sort_order", "active", "created_at", "updated_at", "usage_count",
		}).
			AddRow("r1", "org-1", "ADMIN", "Administrator", "", "", 100, 10, true, now, now, 2).
			AddRow("r2", "org-1", "EMPLOYEE", "Employee", "", "", 10, 30, true, now, now, 14))

	roles, err := store.ListActive(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[1].UsageCount != 14 {
		t.Fatalf("unexpected usage count: %d", roles[1].UsageCount)
	}
}

func TestUpdateRoleBuildsDynamicSet(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	label := "Shift Lead"
	active := false

	mock.ExpectQuery(regexp.QuoteMeta(`update roles set label = $3, active = $4, updated_at = $5`)).
		WithArgs("org-1", "r1", "Shift Lead", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "org_id", "key", "label", "description", "color",
			"level", "sort_order", "active", "created_at", "updated_at",
		}).AddRow("r1", "org-1", "SHIFT_LEAD", "Shift Lead", "", "", 20, 15, false, now, now))

	role, err := store.Update(context.Background(), "org-1", "r1", identity.RolePatch{
		Label:  &label,
		Active: &active,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if role.Label != "Shift Lead" || role.Active {
		t.Fatalf("unexpected role: %+v", role)
	}
}

func TestGrantedModulesListsOnlyGrants(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`where org_id = $1 and role_key = $2 and has_access = true`)).
		WithArgs("org-1", "EMPLOYEE").
		WillReturnRows(sqlmock.NewRows([]string{"module_key"}).
			AddRow("news").
			AddRow("tasks"))

	modules, err := store.GrantedModules(context.Background(), "org-1", "EMPLOYEE")
	if err != nil {
		t.Fatalf("GrantedModules: %v", err)
	}
	if len(modules) != 2 || modules[0] != "news" || modules[1] != "tasks" {
		t.Fatalf("unexpected modules: %v", modules)
	}
}

func TestBulkSetAppliesAllCellsInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	// Cells are applied in sorted module order inside the transaction.
	mock.ExpectExec(regexp.QuoteMeta(`insert into module_access`)).
		WithArgs(sqlmock.AnyArg(), "org-1", "EMPLOYEE", "news", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into module_access`)).
		WithArgs(sqlmock.AnyArg(), "org-1", "EMPLOYEE", "tasks", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.BulkSet(context.Background(), "org-1", "EMPLOYEE", map[string]bool{
		"tasks": true,
		"news":  false,
	})
	if err != nil {
		t.Fatalf("BulkSet: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBulkSetRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into module_access`)).
		WithArgs(sqlmock.AnyArg(), "org-1", "GHOST", "tasks", true).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := store.BulkSet(context.Background(), "org-1", "GHOST", map[string]bool{"tasks": true})
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
