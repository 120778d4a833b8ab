// Package bridge exposes the dispatcher to remote clients over a WebSocket
// endpoint. One JSON request in, one envelope out; sessions are scoped to
// the connection.
package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zcli/zkernel/kernel"
)

// Request is one command submission from a bridge client. Command is either
// a JSON string (a command token, possibly modifier-carrying) or a JSON
// object (a data-operation descriptor).
type Request struct {
	ID      string          `json:"id"`
	Command json.RawMessage `json:"command"`
	Args    map[string]any  `json:"args,omitempty"`
	Path    string          `json:"path,omitempty"`
}

// Response is the envelope produced by the dispatch, echoing the request id.
type Response struct {
	ID string `json:"id,omitempty"`
	kernel.Envelope
}

// decodeCommand resolves the request's command into the shape the kernel
// dispatches on: string token or mapping.
func decodeCommand(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("request has no command")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("decode command string: %w", err)
		}
		return s, nil
	case '{':
		var m map[string]any
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("decode command object: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("command must be a string or an object")
	}
}
