// Package data implements the data-operation backend over database/sql.
// Two drivers are supported: sqlite (modernc.org/sqlite, in-process) and
// postgres (lib/pq). Queries are always parameterized; identifiers are
// validated before any SQL is built.
package data

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/zcli/zkernel/backend"
)

// identRe accepts plain SQL identifiers only. Anything else is rejected
// before query building, so descriptor content never reaches SQL text.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var _ backend.Executor = (*Backend)(nil)

// Backend executes data operations against one database handle. Any
// serialization beyond database/sql's pooling is the driver's concern.
type Backend struct {
	db       *sql.DB
	postgres bool
	logger   *zap.Logger
}

// Open connects a data backend. driver is "sqlite" or "postgres".
func Open(driver, dsn string, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var driverName string
	switch driver {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported data driver %q", driver)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	logger.Info("data backend opened", zap.String("driver", driver))
	return &Backend{db: db, postgres: driver == "postgres", logger: logger}, nil
}

// NewWithDB wraps an existing handle (tests, embedders).
func NewWithDB(db *sql.DB, postgres bool, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{db: db, postgres: postgres, logger: logger}
}

// DB exposes the underlying handle for schema setup.
func (b *Backend) DB() *sql.DB { return b.db }

// Close releases the database handle.
func (b *Backend) Close() error { return b.db.Close() }

// Execute performs one decoded operation and returns a result the kernel
// can render or envelope as-is: rows for select, a count for count, and an
// affected-rows summary for writes.
func (b *Backend) Execute(ctx context.Context, op backend.Op) (any, error) {
	if err := validateOp(op); err != nil {
		return nil, err
	}
	switch op.Op {
	case "select":
		return b.selectRows(ctx, op)
	case "count":
		return b.countRows(ctx, op)
	case "insert":
		return b.insertRow(ctx, op)
	case "update":
		return b.updateRows(ctx, op)
	case "delete":
		return b.deleteRows(ctx, op)
	default:
		return nil, fmt.Errorf("unsupported operation %q", op.Op)
	}
}

func validateOp(op backend.Op) error {
	if !identRe.MatchString(op.Table) {
		return fmt.Errorf("invalid table identifier %q", op.Table)
	}
	for _, col := range op.Columns {
		if !identRe.MatchString(col) {
			return fmt.Errorf("invalid column identifier %q", col)
		}
	}
	for col := range op.Values {
		if !identRe.MatchString(col) {
			return fmt.Errorf("invalid column identifier %q", col)
		}
	}
	for col := range op.Where {
		if !identRe.MatchString(col) {
			return fmt.Errorf("invalid column identifier %q", col)
		}
	}
	return nil
}

// placeholder renders the n-th (1-based) bind marker for the active driver.
func (b *Backend) placeholder(n int) string {
	if b.postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// whereClause builds a deterministic equality filter. Keys are sorted so
// the same descriptor always produces the same SQL.
func (b *Backend) whereClause(where map[string]any, startIdx int) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	cols := sortedKeys(where)
	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		parts = append(parts, fmt.Sprintf("%s = %s", col, b.placeholder(startIdx+i)))
		args = append(args, where[col])
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func (b *Backend) selectRows(ctx context.Context, op backend.Op) (any, error) {
	projection := "*"
	if len(op.Columns) > 0 {
		projection = strings.Join(op.Columns, ", ")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", projection, op.Table)
	clause, args := b.whereClause(op.Where, 1)
	query += clause
	if op.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", op.Limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", op.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		scans := make([]any, len(cols))
		for i := range values {
			scans[i] = &values[i]
		}
		if err := rows.Scan(scans...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if bs, ok := values[i].([]byte); ok {
				row[col] = string(bs)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (b *Backend) countRows(ctx context.Context, op backend.Op) (any, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", op.Table)
	clause, args := b.whereClause(op.Where, 1)
	query += clause

	var count int64
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return nil, fmt.Errorf("count %s: %w", op.Table, err)
	}
	return map[string]any{"count": count}, nil
}

func (b *Backend) insertRow(ctx context.Context, op backend.Op) (any, error) {
	values := make(map[string]any, len(op.Values))
	for k, v := range op.Values {
		values[k] = v
	}
	// An "id" key with an empty value asks the backend to generate one.
	var generatedID string
	if id, ok := values["id"]; ok && (id == nil || id == "") {
		generatedID = uuid.NewString()
		values["id"] = generatedID
	}

	cols := sortedKeys(values)
	marks := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		marks = append(marks, b.placeholder(i+1))
		args = append(args, values[col])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		op.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", op.Table, err)
	}
	affected, _ := res.RowsAffected()
	out := map[string]any{"rows_affected": affected}
	if generatedID != "" {
		out["id"] = generatedID
	}
	return out, nil
}

func (b *Backend) updateRows(ctx context.Context, op backend.Op) (any, error) {
	cols := sortedKeys(op.Values)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+len(op.Where))
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = %s", col, b.placeholder(i+1)))
		args = append(args, op.Values[col])
	}
	clause, whereArgs := b.whereClause(op.Where, len(cols)+1)
	query := fmt.Sprintf("UPDATE %s SET %s%s", op.Table, strings.Join(sets, ", "), clause)
	args = append(args, whereArgs...)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", op.Table, err)
	}
	affected, _ := res.RowsAffected()
	return map[string]any{"rows_affected": affected}, nil
}

func (b *Backend) deleteRows(ctx context.Context, op backend.Op) (any, error) {
	clause, args := b.whereClause(op.Where, 1)
	query := fmt.Sprintf("DELETE FROM %s%s", op.Table, clause)

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete from %s: %w", op.Table, err)
	}
	affected, _ := res.RowsAffected()
	return map[string]any{"rows_affected": affected}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
