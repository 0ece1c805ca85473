// Package tenantdb is the single choke point for data access to tenant-owned
// tables. A handle is bound to one organization for its whole lifetime; every
// operation it performs carries the tenant predicate, and caller-supplied
// tenant values in filters or payloads are overwritten, never trusted.
package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrNotTenantOwned is returned when a tenant-bound handle touches a table
	// outside the allow-list. Platform-scoped tables (the organization
	// registry itself, platform-admin data) are reached through plain stores,
	// never through a handle.
	ErrNotTenantOwned = errors.New("tenantdb: table is not tenant-owned")

	// ErrMissingTenant is returned when a handle is requested without a tenant
	// id. Construction fails rather than ever producing an unscoped handle.
	ErrMissingTenant = errors.New("tenantdb: tenant id is required")

	// ErrMismatchedRows is returned when a multi-row insert carries records
	// with differing column sets. Padding the gaps with NULLs would hide
	// caller bugs, so the whole batch is rejected up front.
	ErrMismatchedRows = errors.New("tenantdb: records have mismatched columns")
)

// aggregateFuncs is the closed set of SQL aggregates a handle will run.
var aggregateFuncs = map[string]struct{}{
	"count": {},
	"sum":   {},
	"avg":   {},
	"min":   {},
	"max":   {},
}

var columnPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// TenantColumn is the column stamped and filtered on every tenant-owned table.
const TenantColumn = "org_id"

// Gateway holds the connection pool and the fixed allow-list of tenant-owned
// tables. The list is explicit: adding a table to the schema does not make it
// tenant-scoped until it is registered here.
type Gateway struct {
	db     *sql.DB
	tables map[string]struct{}
}

// New builds a gateway over db for the given tenant-owned tables.
func New(db *sql.DB, tables ...string) *Gateway {
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return &Gateway{db: db, tables: set}
}

// Owns reports whether table is on the allow-list.
func (g *Gateway) Owns(table string) bool {
	_, ok := g.tables[table]
	return ok
}

// For returns a handle closed over tenantID. There is no API to re-scope a
// handle; a new request obtains a new handle from its verified principal.
func (g *Gateway) For(tenantID string) (*Handle, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	return &Handle{gateway: g, tenantID: tenantID}, nil
}

// Filter is a conjunctive equality filter. Values may be scalars or slices
// (rendered as IN lists). Any entry under the tenant column is discarded and
// replaced by the handle's tenant id.
type Filter map[string]any

// Row is a generic column->value record.
type Row map[string]any

// Handle executes operations confined to a single tenant.
type Handle struct {
	gateway  *Gateway
	tenantID string
}

// TenantID reports the organization the handle is bound to.
func (h *Handle) TenantID() string { return h.tenantID }

// FindMany selects all rows matching the filter within the tenant.
func (h *Handle) FindMany(ctx context.Context, table string, where Filter) ([]Row, error) {
	clause, args, err := h.whereClause(table, where)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`select * from %s where %s`, table, clause)
	rows, err := h.gateway.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// FindByID selects a single row by primary key. Unlike the source design this
// lookup is also tenant-scoped: every allow-listed table carries the tenant
// column, so there is no reason to rely on a caller-side ownership re-check.
func (h *Handle) FindByID(ctx context.Context, table, id string) (Row, error) {
	if !h.gateway.Owns(table) {
		return nil, fmt.Errorf("%w: %s", ErrNotTenantOwned, table)
	}
	query := fmt.Sprintf(`select * from %s where %s = $1 and id = $2`, table, TenantColumn)
	rows, err := h.gateway.db.QueryContext(ctx, query, h.tenantID, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, sql.ErrNoRows
	}
	return result[0], nil
}

// Count counts rows matching the filter within the tenant.
func (h *Handle) Count(ctx context.Context, table string, where Filter) (int64, error) {
	clause, args, err := h.whereClause(table, where)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`select count(*) from %s where %s`, table, clause)
	var n int64
	if err := h.gateway.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Aggregate computes fn over column for rows matching the filter within the
// tenant. The function comes from a closed set and the column must be a plain
// identifier (or * for count); the filter goes through the same WHERE builder
// as every other read, so the tenant predicate is always injected. A NULL
// result, such as sum over no rows, comes back as nil.
func (h *Handle) Aggregate(ctx context.Context, table, fn, column string, where Filter) (any, error) {
	fn = strings.ToLower(strings.TrimSpace(fn))
	if _, ok := aggregateFuncs[fn]; !ok {
		return nil, fmt.Errorf("tenantdb: unsupported aggregate %q", fn)
	}
	column = strings.TrimSpace(column)
	if column != "*" && !columnPattern.MatchString(column) {
		return nil, fmt.Errorf("tenantdb: invalid aggregate column %q", column)
	}
	if column == "*" && fn != "count" {
		return nil, fmt.Errorf("tenantdb: %s requires a column", fn)
	}
	clause, args, err := h.whereClause(table, where)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`select %s(%s) from %s where %s`, fn, column, table, clause)
	var out any
	if err := h.gateway.db.QueryRowContext(ctx, query, args...).Scan(&out); err != nil {
		return nil, err
	}
	if b, ok := out.([]byte); ok {
		return string(b), nil
	}
	return out, nil
}

// CreateOne inserts a row with the tenant id stamped on, overwriting any
// caller-supplied value.
func (h *Handle) CreateOne(ctx context.Context, table string, values Row) error {
	return h.CreateMany(ctx, table, []Row{values})
}

// CreateMany inserts rows, stamping the tenant id onto every one.
func (h *Handle) CreateMany(ctx context.Context, table string, records []Row) error {
	if !h.gateway.Owns(table) {
		return fmt.Errorf("%w: %s", ErrNotTenantOwned, table)
	}
	if len(records) == 0 {
		return nil
	}
	columns := h.insertColumns(records[0])
	for _, record := range records[1:] {
		if !sameShape(columns, h.stamp(record)) {
			return fmt.Errorf("%w: %s", ErrMismatchedRows, table)
		}
	}
	var (
		placeholders []string
		args         []any
		idx          = 1
	)
	for _, record := range records {
		stamped := h.stamp(record)
		group := make([]string, 0, len(columns))
		for _, col := range columns {
			group = append(group, fmt.Sprintf("$%d", idx))
			args = append(args, stamped[col])
			idx++
		}
		placeholders = append(placeholders, "("+strings.Join(group, ", ")+")")
	}
	query := fmt.Sprintf(`insert into %s (%s) values %s`,
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err := h.gateway.db.ExecContext(ctx, query, args...)
	return err
}

// UpdateMany updates all rows matching the filter within the tenant and
// returns the affected count. Tenant values in both filter and payload are
// overwritten, so an update can neither match nor move rows across tenants.
func (h *Handle) UpdateMany(ctx context.Context, table string, where Filter, set Row) (int64, error) {
	clause, args, err := h.whereClause(table, where)
	if err != nil {
		return 0, err
	}
	if len(set) == 0 {
		return 0, errors.New("tenantdb: empty update payload")
	}
	delete(set, TenantColumn)
	cols := sortedKeys(set)
	assignments := make([]string, 0, len(cols))
	idx := len(args) + 1
	for _, col := range cols {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, set[col])
		idx++
	}
	query := fmt.Sprintf(`update %s set %s where %s`, table, strings.Join(assignments, ", "), clause)
	res, err := h.gateway.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteMany deletes all rows matching the filter within the tenant.
func (h *Handle) DeleteMany(ctx context.Context, table string, where Filter) (int64, error) {
	clause, args, err := h.whereClause(table, where)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`delete from %s where %s`, table, clause)
	res, err := h.gateway.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Upsert inserts or updates on the given conflict columns. The tenant id is
// stamped into the payload and forced into the conflict target, so an upsert
// can never create a row in, or match a row from, a foreign tenant.
func (h *Handle) Upsert(ctx context.Context, table string, conflictColumns []string, values Row) error {
	if !h.gateway.Owns(table) {
		return fmt.Errorf("%w: %s", ErrNotTenantOwned, table)
	}
	stamped := h.stamp(values)
	conflict := normalizeConflict(conflictColumns)
	columns := sortedKeys(stamped)
	var (
		placeholders []string
		args         []any
	)
	for i, col := range columns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, stamped[col])
	}
	conflictSet := make(map[string]struct{}, len(conflict))
	for _, c := range conflict {
		conflictSet[c] = struct{}{}
	}
	var updates []string
	for _, col := range columns {
		if _, ok := conflictSet[col]; ok {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	var query string
	if len(updates) == 0 {
		query = fmt.Sprintf(`insert into %s (%s) values (%s) on conflict (%s) do nothing`,
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(conflict, ", "))
	} else {
		query = fmt.Sprintf(`insert into %s (%s) values (%s) on conflict (%s) do update set %s`,
			table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
			strings.Join(conflict, ", "), strings.Join(updates, ", "))
	}
	_, err := h.gateway.db.ExecContext(ctx, query, args...)
	return err
}

// whereClause renders the filter with the tenant predicate in first position.
// Caller-supplied tenant values are dropped before rendering.
func (h *Handle) whereClause(table string, where Filter) (string, []any, error) {
	if !h.gateway.Owns(table) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotTenantOwned, table)
	}
	clauses := []string{fmt.Sprintf("%s = $1", TenantColumn)}
	args := []any{h.tenantID}
	idx := 2
	for _, col := range sortedFilterKeys(where) {
		value := where[col]
		switch v := value.(type) {
		case []string:
			if len(v) == 0 {
				clauses = append(clauses, "false")
				continue
			}
			group := make([]string, 0, len(v))
			for _, item := range v {
				group = append(group, fmt.Sprintf("$%d", idx))
				args = append(args, item)
				idx++
			}
			clauses = append(clauses, fmt.Sprintf("%s in (%s)", col, strings.Join(group, ", ")))
		case []any:
			if len(v) == 0 {
				clauses = append(clauses, "false")
				continue
			}
			group := make([]string, 0, len(v))
			for _, item := range v {
				group = append(group, fmt.Sprintf("$%d", idx))
				args = append(args, item)
				idx++
			}
			clauses = append(clauses, fmt.Sprintf("%s in (%s)", col, strings.Join(group, ", ")))
		case nil:
			clauses = append(clauses, fmt.Sprintf("%s is null", col))
		default:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, idx))
			args = append(args, value)
			idx++
		}
	}
	return strings.Join(clauses, " and "), args, nil
}

// stamp copies the record and forces the tenant column to the handle's tenant.
func (h *Handle) stamp(record Row) Row {
	out := make(Row, len(record)+1)
	for k, v := range record {
		out[k] = v
	}
	out[TenantColumn] = h.tenantID
	return out
}

func (h *Handle) insertColumns(sample Row) []string {
	return sortedKeys(h.stamp(sample))
}

// sameShape reports whether the stamped record carries exactly the columns of
// the first record in the batch.
func sameShape(columns []string, record Row) bool {
	if len(record) != len(columns) {
		return false
	}
	for _, col := range columns {
		if _, ok := record[col]; !ok {
			return false
		}
	}
	return true
}

func normalizeConflict(columns []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" || c == TenantColumn {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	// Tenant column leads the conflict target so the unique index match is
	// always tenant-qualified.
	return append([]string{TenantColumn}, out...)
}

func sortedKeys(record Row) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFilterKeys(where Filter) []string {
	keys := make([]string, 0, len(where))
	for k := range where {
		if k == TenantColumn {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		record := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
				continue
			}
			record[col] = values[i]
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
