// Package terminal owns the process's terminal: it drives a Bubble Tea
// program to completion, forwarding key/window events into whatever
// tea.Model it is handed. Callers depend on Handle, never on a concrete
// *tea.Program, so tests can swap in the scripted mock.
package terminal

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nahharris/patch-hub/internal/actor"
)

// Handle is the operation surface of the Terminal actor. There is exactly
// one long-running operation (Run drives the whole TUI session to
// completion); IsInteractive is a cheap synchronous query that reports the
// interactivity flag the handle was created with.
type Handle interface {
	// Run drives model via Bubble Tea until it returns tea.Quit, and yields
	// the final model. It blocks for the lifetime of the TUI session; the
	// single dedicated actor goroutine is busy for the whole call, which is
	// fine since nothing else needs Terminal concurrently with a running
	// program.
	Run(ctx context.Context, model tea.Model) (tea.Model, error)
	// IsInteractive reports whether the underlying terminal is an
	// interactive TTY (vs. piped/redirected stdio).
	IsInteractive() bool
}

type opKind int

const opRun opKind = iota

type request struct {
	op    opKind
	model tea.Model
	reply chan response
}

type response struct {
	model tea.Model
	err   error
}

// live drives a real *tea.Program over the process's own stdio.
type live struct {
	mbox          *actor.Mailbox[request]
	interactive   bool
	programOption []tea.ProgramOption
}

// Spawn starts the Terminal actor. interactive should reflect whether
// os.Stdin/os.Stdout are a real TTY (the `tui` command decides this via
// golang.org/x/term.IsTerminal, the same check internal/ui uses for width
// detection, and passes it to App through Options.Interactive).
func Spawn(ctx context.Context, interactive bool, opts ...tea.ProgramOption) (Handle, actor.Join) {
	l := &live{
		mbox:          actor.NewMailbox[request](4),
		interactive:   interactive,
		programOption: opts,
	}
	join := make(chan struct{})
	go func() {
		defer close(join)
		l.mbox.Run(ctx, l.apply)
	}()
	return l, join
}

// Close stops the Terminal actor.
func Close(h Handle) {
	if l, ok := h.(*live); ok {
		l.mbox.Close()
	}
}

func (l *live) apply(req request) {
	p := tea.NewProgram(req.model, l.programOption...)
	final, err := p.Run()
	if err != nil {
		req.reply <- response{err: fmt.Errorf("terminal: run program: %w", err)}
		return
	}
	req.reply <- response{model: final}
}

func (l *live) Run(ctx context.Context, model tea.Model) (tea.Model, error) {
	req := request{op: opRun, model: model, reply: make(chan response, 1)}
	if err := l.mbox.Send(ctx, req); err != nil {
		return nil, err
	}
	select {
	case resp := <-req.reply:
		return resp.model, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *live) IsInteractive() bool {
	return l.interactive
}

// mock drives model through a scripted sequence of messages without
// touching a real terminal, so ui.Model's Update/View logic can be
// exercised in tests.
type mock struct {
	interactive bool
	script      []tea.Msg
}

// Mock returns a Terminal handle that, on Run, feeds script into the
// model's Update loop in order (running any returned tea.Cmd synchronously
// and feeding its resulting message back in too) and returns once the model
// issues tea.Quit or the script is exhausted.
func Mock(interactive bool, script []tea.Msg) Handle {
	return &mock{interactive: interactive, script: script}
}

func (m *mock) Run(_ context.Context, model tea.Model) (tea.Model, error) {
	current := model
	queue := append([]tea.Msg{}, m.script...)

	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]

		if _, ok := msg.(tea.QuitMsg); ok {
			return current, nil
		}

		var cmd tea.Cmd
		current, cmd = current.Update(msg)
		if cmd == nil {
			continue
		}
		if next := cmd(); next != nil {
			if _, ok := next.(tea.QuitMsg); ok {
				return current, nil
			}
			queue = append(queue, next)
		}
	}
	return current, nil
}

func (m *mock) IsInteractive() bool {
	return m.interactive
}
