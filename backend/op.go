package backend

import (
	"fmt"
	"strings"
)

// Op is a decoded data-operation descriptor. Mapping commands are decoded
// into this shape before they reach an Executor.
type Op struct {
	Op      string         // "select", "insert", "update", "delete", "count"
	Table   string         // target table
	Columns []string       // optional projection for select
	Values  map[string]any // column values for insert/update
	Where   map[string]any // equality filters
	Limit   int            // optional row cap for select
}

// Known operation types, in the order they are documented.
var opTypes = map[string]bool{
	"select": true,
	"insert": true,
	"update": true,
	"delete": true,
	"count":  true,
}

// DecodeOp converts a mapping command into an Op. The mapping must declare
// its operation type under the "op" key and its target under "table".
func DecodeOp(m map[string]any) (Op, error) {
	op := Op{Limit: 0}

	rawOp, ok := m["op"]
	if !ok {
		return op, fmt.Errorf("mapping command has no \"op\" key")
	}
	opName, ok := rawOp.(string)
	if !ok || opName == "" {
		return op, fmt.Errorf("\"op\" must be a non-empty string, got %T", rawOp)
	}
	opName = strings.ToLower(opName)
	if !opTypes[opName] {
		return op, fmt.Errorf("unknown operation type %q", opName)
	}
	op.Op = opName

	table, _ := m["table"].(string)
	if table == "" {
		return op, fmt.Errorf("operation %q has no \"table\"", opName)
	}
	op.Table = table

	if raw, ok := m["columns"]; ok {
		cols, err := toStringSlice(raw)
		if err != nil {
			return op, fmt.Errorf("\"columns\": %w", err)
		}
		op.Columns = cols
	}
	if raw, ok := m["values"]; ok {
		values, ok := raw.(map[string]any)
		if !ok {
			return op, fmt.Errorf("\"values\" must be a mapping, got %T", raw)
		}
		op.Values = values
	}
	if raw, ok := m["where"]; ok {
		where, ok := raw.(map[string]any)
		if !ok {
			return op, fmt.Errorf("\"where\" must be a mapping, got %T", raw)
		}
		op.Where = where
	}
	if raw, ok := m["limit"]; ok {
		switch v := raw.(type) {
		case int:
			op.Limit = v
		case float64: // JSON numbers decode as float64
			op.Limit = int(v)
		default:
			return op, fmt.Errorf("\"limit\" must be a number, got %T", raw)
		}
		if op.Limit < 0 {
			return op, fmt.Errorf("\"limit\" must not be negative")
		}
	}

	switch op.Op {
	case "insert":
		if len(op.Values) == 0 {
			return op, fmt.Errorf("insert requires \"values\"")
		}
	case "update":
		if len(op.Values) == 0 {
			return op, fmt.Errorf("update requires \"values\"")
		}
		if len(op.Where) == 0 {
			return op, fmt.Errorf("update requires \"where\"")
		}
	case "delete":
		if len(op.Where) == 0 {
			return op, fmt.Errorf("delete requires \"where\"")
		}
	}
	return op, nil
}

func toStringSlice(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", raw)
	}
}
