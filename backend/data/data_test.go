package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zcli/zkernel/backend"
)

func testBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open("sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	_, err = b.DB().Exec(`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		name TEXT,
		active INTEGER DEFAULT 1
	)`)
	require.NoError(t, err)
	return b
}

func seed(t *testing.T, b *Backend) {
	t.Helper()
	for _, row := range [][]any{
		{"u1", "ada", 1},
		{"u2", "grace", 1},
		{"u3", "linus", 0},
	} {
		_, err := b.DB().Exec("INSERT INTO users (id, name, active) VALUES (?, ?, ?)", row...)
		require.NoError(t, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported data driver")
}

func TestExecuteSelect(t *testing.T) {
	b := testBackend(t)
	seed(t, b)

	out, err := b.Execute(context.Background(), backend.Op{
		Op:      "select",
		Table:   "users",
		Columns: []string{"id", "name"},
		Where:   map[string]any{"active": 1},
	})
	require.NoError(t, err)

	rows, ok := out.([]map[string]any)
	require.True(t, ok)
	require.Len(t, rows, 2)
	names := []string{rows[0]["name"].(string), rows[1]["name"].(string)}
	assert.ElementsMatch(t, []string{"ada", "grace"}, names)
	assert.NotContains(t, rows[0], "active", "projection must be honored")
}

func TestExecuteSelectLimit(t *testing.T) {
	b := testBackend(t)
	seed(t, b)

	out, err := b.Execute(context.Background(), backend.Op{
		Op:    "select",
		Table: "users",
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, out.([]map[string]any), 1)
}

func TestExecuteCount(t *testing.T) {
	b := testBackend(t)
	seed(t, b)

	out, err := b.Execute(context.Background(), backend.Op{
		Op:    "count",
		Table: "users",
		Where: map[string]any{"active": 0},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"count": int64(1)}, out)
}

func TestExecuteInsert(t *testing.T) {
	b := testBackend(t)

	out, err := b.Execute(context.Background(), backend.Op{
		Op:     "insert",
		Table:  "users",
		Values: map[string]any{"id": "u9", "name": "joan"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rows_affected": int64(1)}, out)
}

func TestExecuteInsertGeneratesID(t *testing.T) {
	b := testBackend(t)

	out, err := b.Execute(context.Background(), backend.Op{
		Op:     "insert",
		Table:  "users",
		Values: map[string]any{"id": "", "name": "joan"},
	})
	require.NoError(t, err)

	result := out.(map[string]any)
	id, ok := result["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)

	rows, err := b.Execute(context.Background(), backend.Op{
		Op:    "select",
		Table: "users",
		Where: map[string]any{"id": id},
	})
	require.NoError(t, err)
	require.Len(t, rows.([]map[string]any), 1)
}

func TestExecuteUpdate(t *testing.T) {
	b := testBackend(t)
	seed(t, b)

	out, err := b.Execute(context.Background(), backend.Op{
		Op:     "update",
		Table:  "users",
		Values: map[string]any{"active": 0},
		Where:  map[string]any{"active": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rows_affected": int64(2)}, out)
}

func TestExecuteDelete(t *testing.T) {
	b := testBackend(t)
	seed(t, b)

	out, err := b.Execute(context.Background(), backend.Op{
		Op:    "delete",
		Table: "users",
		Where: map[string]any{"id": "u3"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rows_affected": int64(1)}, out)

	count, err := b.Execute(context.Background(), backend.Op{Op: "count", Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count.(map[string]any)["count"])
}

func TestExecuteRejectsInvalidIdentifiers(t *testing.T) {
	b := testBackend(t)

	tests := []backend.Op{
		{Op: "select", Table: "users; DROP TABLE users"},
		{Op: "select", Table: "users", Columns: []string{"name, id"}},
		{Op: "insert", Table: "users", Values: map[string]any{"name) VALUES ('x'); --": "v"}},
		{Op: "delete", Table: "users", Where: map[string]any{"1=1; --": true}},
	}
	for _, op := range tests {
		_, err := b.Execute(context.Background(), op)
		require.Error(t, err, "%+v", op)
		assert.Contains(t, err.Error(), "invalid")
	}
}

func TestExecuteErrorSurfacesFromDriver(t *testing.T) {
	b := testBackend(t)

	_, err := b.Execute(context.Background(), backend.Op{
		Op:    "select",
		Table: "missing_table",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select from missing_table")
}

func TestWhereClauseDeterministic(t *testing.T) {
	b := NewWithDB(nil, false, zap.NewNop())
	clause, args := b.whereClause(map[string]any{"b": 2, "a": 1, "c": 3}, 1)
	assert.Equal(t, " WHERE a = ? AND b = ? AND c = ?", clause)
	assert.Equal(t, []any{1, 2, 3}, args)
}

func TestWhereClausePostgresPlaceholders(t *testing.T) {
	b := NewWithDB(nil, true, zap.NewNop())
	clause, args := b.whereClause(map[string]any{"b": 2, "a": 1}, 3)
	assert.Equal(t, " WHERE a = $3 AND b = $4", clause)
	assert.Equal(t, []any{1, 2}, args)
}
