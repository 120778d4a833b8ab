// Package kernel implements the command dispatch core: modifier processing,
// shape-based routing to backend capabilities, and mode-aware result shaping.
//
// A dispatch call is synchronous and holds no state across calls. Backends
// may block on I/O; the kernel imposes no timeout or retry of its own, and
// backend failures propagate to the caller unchanged.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/zcli/zkernel/backend"
)

// FunctionSigil marks a string command as a function call: "&greet" invokes
// the registered function "greet".
const FunctionSigil = '&'

// suggestion cutoff: identifiers further away than this are not offered.
const maxSuggestionDistance = 3

// Backends bundles the capability providers the dispatcher routes to. Every
// field may be nil; commands routed to a missing backend are unroutable.
type Backends struct {
	Functions backend.Invoker
	Wizards   backend.Runner
	Dialogs   backend.Runner
	Data      backend.Executor
}

// Dispatcher routes commands to backends. It is safe for concurrent use:
// every call carries its own ExecContext and the dispatcher caches nothing
// across calls.
type Dispatcher struct {
	backends Backends
	logger   *zap.Logger
}

// New creates a dispatcher over the given backends.
func New(backends Backends, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{backends: backends, logger: logger}
}

// Dispatch runs one command: modifier processing, routing, backend launch,
// modifier semantics. The returned Result carries the raw value plus
// modifier and routing metadata; errors surface on the error return and are
// never swallowed or retried here. Use Shape to produce the mode-appropriate
// caller-facing form.
func (d *Dispatcher) Dispatch(ctx context.Context, ectx *ExecContext, raw any) (Result, error) {
	if ectx == nil {
		return Result{}, errors.New("nil execution context")
	}

	switch cmd := raw.(type) {
	case string:
		return d.dispatchString(ctx, ectx, cmd)
	case map[string]any:
		return d.dispatchMapping(ctx, ectx, cmd)
	case backend.Op:
		return d.execute(ctx, ectx, cmd)
	default:
		return Result{}, &UnroutableError{Command: fmt.Sprintf("%T", raw)}
	}
}

// DispatchShaped is Dispatch followed by Shape.
func (d *Dispatcher) DispatchShaped(ctx context.Context, ectx *ExecContext, raw any) (any, error) {
	res, err := d.Dispatch(ctx, ectx, raw)
	return Shape(ectx, res, err)
}

func (d *Dispatcher) dispatchString(ctx context.Context, ectx *ExecContext, raw string) (Result, error) {
	mods, base, err := ParseModifiers(raw)
	if err != nil {
		return Result{}, err
	}
	if base == "" {
		return Result{}, &UnroutableError{Command: raw}
	}

	route, err := d.route(base)
	if err != nil {
		return Result{}, err
	}

	if mods.MenuWrap {
		// Execution is deferred: the target becomes a single-entry transient
		// menu. Routability was already verified above. The remaining
		// modifiers travel on the deferred token so they still apply when
		// the caller dispatches the selection.
		deferred := mods
		deferred.MenuWrap = false
		menu := &Menu{
			Title: base,
			Items: []MenuItem{
				{Label: base, Command: deferred.Token(base)},
				{Label: "cancel"},
			},
		}
		return Result{Value: menu, Menu: menu, Route: route, Modifiers: mods}, nil
	}

	value, err := d.launch(ctx, ectx, route, base, mods)
	if err != nil {
		return Result{}, err
	}

	res := Result{Value: value, Route: route, Modifiers: mods, Bounce: mods.Bounce}
	if mods.Anchor && ectx.Session != nil {
		ectx.Session.SetAnchor(ectx.Path, value)
		res.Anchored = true
	}
	return res, nil
}

func (d *Dispatcher) dispatchMapping(ctx context.Context, ectx *ExecContext, m map[string]any) (Result, error) {
	op, err := backend.DecodeOp(m)
	if err != nil {
		return Result{}, &UnroutableError{Command: fmt.Sprintf("mapping: %v", err)}
	}
	return d.execute(ctx, ectx, op)
}

func (d *Dispatcher) execute(ctx context.Context, ectx *ExecContext, op backend.Op) (Result, error) {
	if d.backends.Data == nil {
		return Result{}, &UnroutableError{Command: op.Op}
	}
	d.logger.Debug("dispatching data operation",
		zap.String("op", op.Op),
		zap.String("table", op.Table),
		zap.String("mode", ectx.Mode.String()),
	)
	value, err := d.backends.Data.Execute(ctx, op)
	if err != nil {
		return Result{}, &BackendError{Route: RouteData, Name: op.Op, Err: err}
	}
	return Result{Value: value, Route: RouteData}, nil
}

// route decides which backend owns a base command. It is a total function
// over the command's shape: exactly one target, or an UnroutableError.
// Bare tokens resolve against wizard and dialog ids first, then against
// registered function names, so a wizard id shadows a function of the same
// name; the sigil always addresses the function backend directly.
func (d *Dispatcher) route(base string) (Route, error) {
	if base[0] == FunctionSigil {
		if d.backends.Functions == nil {
			return "", &UnroutableError{Command: base}
		}
		return RouteFunction, nil
	}
	if d.backends.Wizards != nil && d.backends.Wizards.Has(base) {
		return RouteWizard, nil
	}
	if d.backends.Dialogs != nil && d.backends.Dialogs.Has(base) {
		return RouteDialog, nil
	}
	if d.backends.Functions != nil && d.backends.Functions.Has(base) {
		return RouteFunction, nil
	}
	return "", &UnroutableError{Command: base, Suggestion: d.suggest(base)}
}

func (d *Dispatcher) launch(ctx context.Context, ectx *ExecContext, route Route, base string, mods Modifiers) (any, error) {
	call := backend.Call{
		Path:     ectx.Path,
		Args:     ectx.Args,
		Required: mods.Required,
	}
	if ectx.Session != nil {
		call.SessionID = ectx.Session.ID
		call.UserID = ectx.Session.UserID
	}

	d.logger.Debug("launching command",
		zap.String("command", base),
		zap.String("route", string(route)),
		zap.String("mode", ectx.Mode.String()),
		zap.Strings("modifiers", mods.Symbols()),
	)

	var (
		value any
		err   error
		name  = base
	)
	switch route {
	case RouteFunction:
		name = strings.TrimPrefix(base, string(FunctionSigil))
		value, err = d.backends.Functions.Invoke(ctx, name, ectx.Args)
	case RouteWizard:
		value, err = d.backends.Wizards.Run(ctx, base, call)
	case RouteDialog:
		value, err = d.backends.Dialogs.Run(ctx, base, call)
	default:
		return nil, &UnroutableError{Command: base}
	}
	if err != nil {
		return nil, &BackendError{Route: route, Name: name, Err: err}
	}
	return value, nil
}

// suggest returns the nearest registered wizard, dialog or function
// identifier, or "" when nothing is close enough.
func (d *Dispatcher) suggest(base string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	consider := func(names []string) {
		for _, name := range names {
			if dist := levenshtein.ComputeDistance(base, name); dist < bestDist {
				best, bestDist = name, dist
			}
		}
	}
	if d.backends.Wizards != nil {
		consider(d.backends.Wizards.Names())
	}
	if d.backends.Dialogs != nil {
		consider(d.backends.Dialogs.Names())
	}
	if d.backends.Functions != nil {
		// Functions are suggested with their sigil so the suggestion routes.
		for _, name := range d.backends.Functions.Names() {
			if dist := levenshtein.ComputeDistance(base, name); dist < bestDist {
				best, bestDist = string(FunctionSigil)+name, dist
			}
		}
	}
	return best
}
