// Package backend defines the closed set of capability contracts the kernel
// routes commands to. Backends are mode-agnostic: they receive a Call built
// by the dispatcher and never see whether the caller is a terminal or a
// bridge client.
package backend

import "context"

// Call carries the caller-scoped data a backend may need for one invocation.
// It is built by the dispatcher from the execution context and owned by the
// backend for the duration of the call only.
type Call struct {
	// Path is the caller's navigation position at dispatch time.
	Path string
	// SessionID and UserID identify the caller. Both may be empty when the
	// dispatcher runs without a session (e.g. one-shot tooling).
	SessionID string
	UserID    string
	// Args holds the arguments supplied alongside the command token.
	Args map[string]any
	// Required is set when the command carried the required-field modifier;
	// wizard and dialog runs treat missing answers as a validation failure
	// instead of falling back to defaults.
	Required bool
}

// Invoker is the function-execution backend: named functions invoked with a
// bag of arguments.
type Invoker interface {
	Has(name string) bool
	Names() []string
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// Runner is the wizard/dialog backend contract: identified sequences run
// against the caller's context.
type Runner interface {
	Has(id string) bool
	Names() []string
	Run(ctx context.Context, id string, call Call) (any, error)
}

// Executor is the data-operation backend: it receives a decoded operation
// descriptor and performs it against whatever store it fronts.
type Executor interface {
	Execute(ctx context.Context, op Op) (any, error)
}
