package kernel

import "github.com/zcli/zkernel/session"

// Mode distinguishes the two caller kinds. It decides result shaping only;
// backends never see it.
type Mode int

const (
	// ModeTerminal is an interactive in-process caller: results pass through
	// unchanged.
	ModeTerminal Mode = iota
	// ModeBridge is a remote caller: results are wrapped into envelopes.
	ModeBridge
)

func (m Mode) String() string {
	switch m {
	case ModeTerminal:
		return "terminal"
	case ModeBridge:
		return "bridge"
	default:
		return "unknown"
	}
}

// ExecContext carries the caller state for one dispatch call. It is owned by
// the caller; the dispatcher borrows it for the duration of one call and
// never retains or mutates it. Concurrent dispatches must each supply their
// own ExecContext.
type ExecContext struct {
	// Path is the caller's current navigation position.
	Path string
	// Session is the active session, or nil when dispatching without one.
	// Anchored results need a session to persist on.
	Session *session.Session
	// Mode selects the result shape.
	Mode Mode
	// Args are the arguments supplied alongside the command token.
	Args map[string]any
}
