// Package terminal runs the dispatcher behind an interactive prompt. The
// terminal is a plain caller: raw results are rendered as-is, with no
// envelope wrapping.
package terminal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/zcli/zkernel/kernel"
	"github.com/zcli/zkernel/session"
)

const prompt = "> "

// REPL reads command lines, dispatches them in terminal mode and renders
// the results.
type REPL struct {
	dispatcher *kernel.Dispatcher
	sess       *session.Session
	path       string
	in         *bufio.Scanner
	out        io.Writer
	logger     *zap.Logger

	// lastBounce holds the most recent bounce-flagged result. It belongs to
	// the calling frame (this REPL), not to the rendering pipeline.
	lastBounce any
}

// New creates a REPL bound to one session.
func New(dispatcher *kernel.Dispatcher, sess *session.Session, in io.Reader, out io.Writer, logger *zap.Logger) *REPL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &REPL{
		dispatcher: dispatcher,
		sess:       sess,
		path:       "home",
		in:         bufio.NewScanner(in),
		out:        out,
		logger:     logger,
	}
}

// Run loops until the input ends, the caller cancels, or the user quits.
func (r *REPL) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, prompt)
		if !r.in.Scan() {
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		done, err := r.Handle(ctx, line)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		if done {
			return nil
		}
	}
}

// Handle processes one input line. The bool return reports a quit request.
func (r *REPL) Handle(ctx context.Context, line string) (bool, error) {
	switch line {
	case "exit", "quit":
		return true, nil
	case ":bounce":
		// Render the value the last bounce handed back to this frame.
		if r.lastBounce == nil {
			fmt.Fprintln(r.out, "(nothing bounced)")
			return false, nil
		}
		r.render(r.lastBounce)
		return false, nil
	}

	cmd, args, err := ParseLine(line)
	if err != nil {
		return false, err
	}

	ectx := &kernel.ExecContext{
		Path:    r.path,
		Session: r.sess,
		Mode:    kernel.ModeTerminal,
		Args:    args,
	}
	res, err := r.dispatcher.Dispatch(ctx, ectx, cmd)
	if err != nil {
		return false, err
	}

	switch {
	case res.Menu != nil:
		return false, r.runMenu(ctx, res.Menu)
	case res.Bounce:
		// Bounced results go back to the caller's context, not the screen.
		r.lastBounce = res.Value
	default:
		r.render(res.Value)
	}
	return false, nil
}

// runMenu renders a transient menu and dispatches the selected entry.
func (r *REPL) runMenu(ctx context.Context, menu *kernel.Menu) error {
	fmt.Fprintf(r.out, "-- %s --\n", menu.Title)
	for i, item := range menu.Items {
		fmt.Fprintf(r.out, "%d) %s\n", i+1, item.Label)
	}
	fmt.Fprint(r.out, "select: ")
	if !r.in.Scan() {
		return r.in.Err()
	}
	choice, err := strconv.Atoi(strings.TrimSpace(r.in.Text()))
	if err != nil || choice < 1 || choice > len(menu.Items) {
		return fmt.Errorf("invalid selection")
	}
	selected := menu.Items[choice-1]
	if selected.Command == "" {
		return nil // dismissed
	}
	_, err = r.Handle(ctx, selected.Command)
	return err
}

func (r *REPL) render(value any) {
	switch value.(type) {
	case nil:
		fmt.Fprintln(r.out, "(no result)")
	case string, bool, int, int64, float64:
		fmt.Fprintf(r.out, "%v\n", value)
	default:
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			fmt.Fprintf(r.out, "%v\n", value)
			return
		}
		fmt.Fprintln(r.out, string(data))
	}
}

// ParseLine splits an input line into the command token and its arguments.
// A line starting with "{" is a JSON data-operation descriptor; otherwise
// the first field is the command and the rest are key=value arguments with
// bool/number coercion.
func ParseLine(line string) (any, map[string]any, error) {
	if strings.HasPrefix(line, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, nil, fmt.Errorf("malformed operation descriptor: %w", err)
		}
		return m, nil, nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("empty command line")
	}
	cmd := fields[0]
	if len(fields) == 1 {
		return cmd, nil, nil
	}
	args := make(map[string]any, len(fields)-1)
	for _, field := range fields[1:] {
		key, raw, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return nil, nil, fmt.Errorf("argument %q is not key=value", field)
		}
		args[key] = coerce(raw)
	}
	return cmd, args, nil
}

func coerce(raw string) any {
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}
