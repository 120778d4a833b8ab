package kernel

// Route names the backend that owned a command.
type Route string

const (
	RouteFunction Route = "function"
	RouteWizard   Route = "wizard"
	RouteDialog   Route = "dialog"
	RouteData     Route = "data"
)

// Result is the outcome of one dispatch call. Value holds the backend's raw
// result; the remaining fields are modifier and routing metadata the caller
// may act on.
type Result struct {
	// Value is the backend's raw result, or the transient Menu when the
	// command carried the menu-wrap modifier.
	Value any
	// Route names the backend that produced (or, for menus, would produce)
	// the value.
	Route Route
	// Modifiers is the parsed modifier set of the command.
	Modifiers Modifiers
	// Bounce marks the result for return to the caller's context instead of
	// direct rendering.
	Bounce bool
	// Anchored reports that the value was persisted on the session's anchor
	// store under the dispatch path.
	Anchored bool
	// Menu is set when execution was deferred behind a transient menu.
	Menu *Menu
}

// Menu is the transient wrapper produced by the ~ modifier. Execution of the
// target is deferred until the caller dispatches the selected item.
type Menu struct {
	Title string     `json:"title"`
	Items []MenuItem `json:"items"`
}

// MenuItem is one selectable entry of a transient menu. Command is the token
// to dispatch when the item is chosen; an empty Command dismisses the menu.
type MenuItem struct {
	Label   string `json:"label"`
	Command string `json:"command,omitempty"`
}

// Status values used in bridge envelopes.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Envelope is the structured result wrapper used only in bridge mode. It is
// built by pure shaping from a Result and an error; no I/O happens here.
type Envelope struct {
	Status           Status   `json:"status"`
	Payload          any      `json:"payload,omitempty"`
	Error            string   `json:"error,omitempty"`
	ModifiersApplied []string `json:"modifiers_applied,omitempty"`
	Route            string   `json:"route,omitempty"`
	Bounce           bool     `json:"bounce,omitempty"`
	Anchored         bool     `json:"anchored,omitempty"`
	Mode             string   `json:"mode"`
}

// Shape converts a dispatch outcome into the caller-facing form selected by
// the context's mode. Terminal mode passes both values through unchanged;
// bridge mode folds the error channel into an envelope with status "error".
func Shape(ectx *ExecContext, res Result, err error) (any, error) {
	if ectx.Mode == ModeTerminal {
		return res.Value, err
	}
	return NewEnvelope(res, err), nil
}

// NewEnvelope builds the bridge envelope for a dispatch outcome.
func NewEnvelope(res Result, err error) *Envelope {
	env := &Envelope{
		Status:           StatusOK,
		Payload:          res.Value,
		ModifiersApplied: res.Modifiers.Symbols(),
		Route:            string(res.Route),
		Bounce:           res.Bounce,
		Anchored:         res.Anchored,
		Mode:             ModeBridge.String(),
	}
	if err != nil {
		env.Status = StatusError
		env.Payload = nil
		env.Error = err.Error()
	}
	return env
}
