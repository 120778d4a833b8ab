// Package dialog implements the dialog backend: named confirm/notice
// prompts defined in the same YAML document as wizards.
package dialog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zcli/zkernel/backend"
)

// Kind distinguishes dialog behaviors.
type Kind string

const (
	// KindConfirm resolves to a boolean answer.
	KindConfirm Kind = "confirm"
	// KindNotice resolves to its own message; it has no answer.
	KindNotice Kind = "notice"
)

// Definition is one dialog.
type Definition struct {
	ID      string `yaml:"id"`
	Kind    Kind   `yaml:"kind"`
	Message string `yaml:"message"`
	Default bool   `yaml:"default"` // confirm answer when none is supplied
}

type document struct {
	Dialogs []Definition `yaml:"dialogs"`
}

// Outcome is the product of a dialog run.
type Outcome struct {
	Dialog    string `json:"dialog"`
	Message   string `json:"message"`
	Confirmed bool   `json:"confirmed,omitempty"`
}

var _ backend.Runner = (*Backend)(nil)

// Backend holds the loaded dialog definitions.
type Backend struct {
	mu      sync.RWMutex
	dialogs map[string]Definition
	logger  *zap.Logger
}

// New creates an empty dialog backend.
func New(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		dialogs: make(map[string]Definition),
		logger:  logger,
	}
}

// LoadFile loads dialog definitions from a YAML document, replacing the
// current set.
func (b *Backend) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read dialog definitions: %w", err)
	}
	return b.Load(data)
}

// Load parses YAML dialog definitions, replacing the current set.
func (b *Backend) Load(data []byte) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse dialog definitions: %w", err)
	}
	dialogs := make(map[string]Definition, len(doc.Dialogs))
	for i, def := range doc.Dialogs {
		if def.ID == "" {
			return fmt.Errorf("dialog[%d]: id is required", i)
		}
		if _, dup := dialogs[def.ID]; dup {
			return fmt.Errorf("dialog %q defined twice", def.ID)
		}
		switch def.Kind {
		case KindConfirm, KindNotice:
		case "":
			def.Kind = KindNotice
		default:
			return fmt.Errorf("dialog %q: unknown kind %q", def.ID, def.Kind)
		}
		dialogs[def.ID] = def
	}

	b.mu.Lock()
	b.dialogs = dialogs
	b.mu.Unlock()
	b.logger.Info("loaded dialog definitions", zap.Int("count", len(dialogs)))
	return nil
}

// Has reports whether a dialog id is defined.
func (b *Backend) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.dialogs[id]
	return ok
}

// Names returns the defined dialog ids, sorted.
func (b *Backend) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.dialogs))
	for id := range b.dialogs {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Run resolves a dialog. Confirm dialogs take their answer from the
// "answer" arg; without one they use the definition default, unless the
// caller's required gate demands an explicit answer.
func (b *Backend) Run(ctx context.Context, id string, call backend.Call) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	def, ok := b.dialogs[id]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown dialog %q", id)
	}

	out := Outcome{Dialog: id, Message: def.Message}
	if def.Kind == KindConfirm {
		raw, supplied := call.Args["answer"]
		switch {
		case supplied:
			answer, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("dialog %q: \"answer\" must be a bool, got %T", id, raw)
			}
			out.Confirmed = answer
		case call.Required:
			return nil, fmt.Errorf("dialog %q: explicit answer required", id)
		default:
			out.Confirmed = def.Default
		}
	}

	b.logger.Debug("dialog resolved",
		zap.String("dialog", id),
		zap.String("kind", string(def.Kind)),
		zap.String("session_id", call.SessionID),
	)
	return out, nil
}
