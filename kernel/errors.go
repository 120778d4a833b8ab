package kernel

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across the three failure classes.
var (
	ErrInvalidModifier = errors.New("invalid modifier combination")
	ErrUnroutable      = errors.New("unroutable command")
)

// InvalidModifierError reports an unparseable modifier combination detected
// before routing. It is never retried.
type InvalidModifierError struct {
	Raw    string // base token the symbols were attached to
	Reason string
}

func (e *InvalidModifierError) Error() string {
	return fmt.Sprintf("invalid modifiers on %q: %s", e.Raw, e.Reason)
}

func (e *InvalidModifierError) Is(target error) bool {
	return target == ErrInvalidModifier
}

// UnroutableError reports a base command that matched no backend shape. It
// carries the unmatched token and, when a registered identifier is close
// enough, a suggestion.
type UnroutableError struct {
	Command    string
	Suggestion string
}

func (e *UnroutableError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unroutable command %q (did you mean %q?)", e.Command, e.Suggestion)
	}
	return fmt.Sprintf("unroutable command %q", e.Command)
}

func (e *UnroutableError) Is(target error) bool {
	return target == ErrUnroutable
}

// BackendError wraps a failure surfaced from an invoked backend. The cause
// propagates unchanged; Unwrap exposes it to errors.Is/As.
type BackendError struct {
	Route Route
	Name  string // command or operation name the backend was asked for
	Err   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.Route, e.Name, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
