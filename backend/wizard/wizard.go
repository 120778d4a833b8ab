// Package wizard implements the wizard backend: named multi-step sequences
// defined declaratively in YAML and run against a caller's arguments.
package wizard

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zcli/zkernel/backend"
)

// Definition is one wizard: an ordered step sequence.
type Definition struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Steps []Step `yaml:"steps"`
}

// Step collects a group of fields.
type Step struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// Field is a single value a wizard collects. A field marked required (in the
// definition or by the caller's required gate) must be answered; other
// fields fall back to their default.
type Field struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
	Default  any    `yaml:"default"`
}

// document is the on-disk shape shared with the dialog backend.
type document struct {
	Wizards []Definition `yaml:"wizards"`
}

// RunResult is the product of a completed wizard run.
type RunResult struct {
	RunID   string         `json:"run_id"`
	Wizard  string         `json:"wizard"`
	Answers map[string]any `json:"answers"`
}

var _ backend.Runner = (*Backend)(nil)

// Backend holds the loaded wizard definitions.
type Backend struct {
	mu      sync.RWMutex
	wizards map[string]Definition
	logger  *zap.Logger
}

// New creates an empty wizard backend.
func New(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		wizards: make(map[string]Definition),
		logger:  logger,
	}
}

// LoadFile loads wizard definitions from a YAML document, replacing the
// current set.
func (b *Backend) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read wizard definitions: %w", err)
	}
	return b.Load(data)
}

// Load parses YAML wizard definitions, replacing the current set.
func (b *Backend) Load(data []byte) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse wizard definitions: %w", err)
	}
	wizards := make(map[string]Definition, len(doc.Wizards))
	for i, def := range doc.Wizards {
		if def.ID == "" {
			return fmt.Errorf("wizard[%d]: id is required", i)
		}
		if _, dup := wizards[def.ID]; dup {
			return fmt.Errorf("wizard %q defined twice", def.ID)
		}
		if len(def.Steps) == 0 {
			return fmt.Errorf("wizard %q has no steps", def.ID)
		}
		wizards[def.ID] = def
	}

	b.mu.Lock()
	b.wizards = wizards
	b.mu.Unlock()
	b.logger.Info("loaded wizard definitions", zap.Int("count", len(wizards)))
	return nil
}

// Has reports whether a wizard id is defined.
func (b *Backend) Has(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.wizards[id]
	return ok
}

// Names returns the defined wizard ids, sorted.
func (b *Backend) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.wizards))
	for id := range b.wizards {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// Run walks the wizard's steps, resolving each field from the call's args.
// A required field without an answer fails the run; optional fields take
// their default. The caller's required gate promotes every field to
// required.
func (b *Backend) Run(ctx context.Context, id string, call backend.Call) (any, error) {
	b.mu.RLock()
	def, ok := b.wizards[id]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown wizard %q", id)
	}

	answers := make(map[string]any)
	for _, step := range def.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, field := range step.Fields {
			value, supplied := call.Args[field.Name]
			switch {
			case supplied:
				answers[field.Name] = value
			case field.Required || call.Required:
				return nil, fmt.Errorf("wizard %q step %q: required field %q not answered",
					id, step.Name, field.Name)
			default:
				answers[field.Name] = field.Default
			}
		}
	}

	result := RunResult{
		RunID:   uuid.NewString(),
		Wizard:  id,
		Answers: answers,
	}
	b.logger.Debug("wizard run complete",
		zap.String("wizard", id),
		zap.String("run_id", result.RunID),
		zap.String("session_id", call.SessionID),
	)
	return result, nil
}
