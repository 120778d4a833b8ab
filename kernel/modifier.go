package kernel

import "strings"

// Modifier symbols attach to a command token and alter how its result is
// handled without changing which backend owns it.
//
//	^cmd   bounce: the result is returned to the caller's context instead
//	       of being rendered directly
//	~cmd   menu-wrap: the target is wrapped into a transient menu before
//	       execution
//	cmd*   required: the resulting field/action is a validation gate
//	cmd!   anchor: the result persists across navigation transitions
const (
	SymbolBounce   = '^'
	SymbolMenuWrap = '~'
	SymbolRequired = '*'
	SymbolAnchor   = '!'
)

// Modifiers is the parsed modifier set of one command token. The zero value
// is the empty set.
type Modifiers struct {
	Bounce   bool
	MenuWrap bool
	Required bool
	Anchor   bool
}

// IsZero reports whether no modifier is present.
func (m Modifiers) IsZero() bool {
	return m == Modifiers{}
}

// Symbols returns the set as symbol strings, prefix symbols first. Used for
// envelope metadata and error reporting.
func (m Modifiers) Symbols() []string {
	var out []string
	if m.Bounce {
		out = append(out, string(SymbolBounce))
	}
	if m.MenuWrap {
		out = append(out, string(SymbolMenuWrap))
	}
	if m.Required {
		out = append(out, string(SymbolRequired))
	}
	if m.Anchor {
		out = append(out, string(SymbolAnchor))
	}
	return out
}

// Token re-attaches the set's symbols around a base command, producing a
// dispatchable token with the same semantic effect set.
func (m Modifiers) Token(base string) string {
	var b strings.Builder
	if m.Bounce {
		b.WriteRune(SymbolBounce)
	}
	if m.MenuWrap {
		b.WriteRune(SymbolMenuWrap)
	}
	b.WriteString(base)
	if m.Required {
		b.WriteRune(SymbolRequired)
	}
	if m.Anchor {
		b.WriteRune(SymbolAnchor)
	}
	return b.String()
}

// String renders the set the way it would appear around a command token,
// e.g. "^…!" for bounce+anchor.
func (m Modifiers) String() string {
	var b strings.Builder
	if m.Bounce {
		b.WriteRune(SymbolBounce)
	}
	if m.MenuWrap {
		b.WriteRune(SymbolMenuWrap)
	}
	b.WriteString("…")
	if m.Required {
		b.WriteRune(SymbolRequired)
	}
	if m.Anchor {
		b.WriteRune(SymbolAnchor)
	}
	return b.String()
}

// ParseModifiers strips the modifier symbols from a raw command token and
// returns the set together with the base command. Prefix symbols are consumed
// left to right, then suffix symbols are consumed from the end, each removed
// as matched. Symbols outside the modifier set stay part of the base command.
// Parsing is deterministic and idempotent: a base command with no modifiers
// comes back unchanged with the empty set.
//
// Bounce and menu-wrap together are rejected: bounce suppresses rendering
// while menu-wrap demands an interactive render, so the combination has no
// coherent meaning.
func ParseModifiers(raw string) (Modifiers, string, error) {
	var mods Modifiers

	rest := raw
	for len(rest) > 0 {
		switch rest[0] {
		case SymbolBounce:
			mods.Bounce = true
		case SymbolMenuWrap:
			mods.MenuWrap = true
		default:
			goto suffix
		}
		rest = rest[1:]
	}

suffix:
	for len(rest) > 0 {
		switch rest[len(rest)-1] {
		case SymbolRequired:
			mods.Required = true
		case SymbolAnchor:
			mods.Anchor = true
		default:
			return finishParse(mods, rest)
		}
		rest = rest[:len(rest)-1]
	}
	return finishParse(mods, rest)
}

func finishParse(mods Modifiers, base string) (Modifiers, string, error) {
	if mods.Bounce && mods.MenuWrap {
		return Modifiers{}, base, &InvalidModifierError{
			Raw:    base,
			Reason: "bounce (^) and menu-wrap (~) cannot be combined",
		}
	}
	return mods, base, nil
}
