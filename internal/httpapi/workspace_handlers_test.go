package httpapi

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/storeops-io/storeops/internal/identity"
	"github.com/storeops-io/storeops/internal/tenantdb"
)

func newMockGateway(t *testing.T) (*tenantdb.Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return tenantdb.New(db, "tasks", "audits", "campaigns"), mock
}

func TestWorkspaceListIsTenantScoped(t *testing.T) {
	gateway, mock := newMockGateway(t)
	api, _ := newTestAPI(t, gateway)
	manager := api.login("manager@example.com", "manager-pass")

	// The query carries the caller's organization; the handler never chooses it.
	mock.ExpectQuery(regexp.QuoteMeta(`select * from tasks where org_id = $1 and status = $2`)).
		WithArgs("org-1", "open").
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "title", "status"}).
			AddRow("t1", "org-1", "restock shelves", "open"))

	resp := api.get("/v1/tasks?status=open", authHeader(manager.AccessToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[struct {
		Items []map[string]any `json:"items"`
	}](t, resp)
	if len(payload.Items) != 1 || payload.Items[0]["id"] != "t1" {
		t.Fatalf("unexpected items: %v", payload.Items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWorkspaceCreateStampsTenant(t *testing.T) {
	gateway, mock := newMockGateway(t)
	api, _ := newTestAPI(t, gateway)
	manager := api.login("manager@example.com", "manager-pass")

	mock.ExpectExec(regexp.QuoteMeta(`insert into tasks (id, org_id, title) values ($1, $2, $3)`)).
		WithArgs("task-9", "org-1", "count inventory").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`select * from tasks where org_id = $1 and id = $2`)).
		WithArgs("org-1", "task-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "title"}).
			AddRow("task-9", "org-1", "count inventory"))

	// A forged org_id in the payload is overwritten before insert.
	resp := api.post("/v1/tasks", map[string]any{
		"id":     "task-9",
		"title":  "count inventory",
		"org_id": "someone-else",
	}, authHeader(manager.AccessToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decode[map[string]any](t, resp)
	if created["org_id"] != "org-1" {
		t.Fatalf("row not stamped with caller tenant: %v", created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestWorkspaceRequiresModuleAccess(t *testing.T) {
	gateway, _ := newMockGateway(t)
	api, _ := newTestAPI(t, gateway)
	// The manager's grid grants tasks only.
	manager := api.login("manager@example.com", "manager-pass")

	resp := api.get("/v1/campaigns", authHeader(manager.AccessToken))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without module grant, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Super admins bypass the grid.
	admin := api.login("admin@example.com", "admin-pass")
	if !admin.User.CanAccessModule(identity.ModuleCampaigns) {
		t.Fatal("super admin should bypass the grid")
	}
}
