package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"multiplex/internal/config"
	"multiplex/internal/layout"
	"multiplex/internal/workspace"
)

// pollInterval is the drive loop's poll-interval timer, per spec §5's
// suggested 5-50ms range.
const pollInterval = 15 * time.Millisecond

// prefixByte is Ctrl+B, the command-mode prefix, chosen because it rarely
// appears in ordinary shell input.
const prefixByte = 0x02

// ctrlW is "press Ctrl+W to close" from the exit banner.
const ctrlW = 0x17

func newRunCmd() *cobra.Command {
	var layoutName string
	var maxSessions int

	cmd := &cobra.Command{
		Use:   "run [-- command [args...]]",
		Short: "Attach the terminal to a workspace of sessions",
		Long: `run attaches the calling terminal directly to a workspace: the first
session runs the given command (or your login shell, if none is given).

Once attached:
  Ctrl+B c   create a new session
  Ctrl+B n   switch to the next session
  Ctrl+B p   switch to the previous session
  Ctrl+B x   close the active session
  Ctrl+B 1-9 switch to session N
  Ctrl+B q   quit
  Ctrl+W     close a dead session (after its exit banner appears)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			return runAttach(command, layoutName, maxSessions)
		},
	}

	cmd.Flags().StringVar(&layoutName, "layout", "", "Initial layout (vertical, horizontal, grid, spiral, floating, tabbed, stacked)")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "Override the configured session cap")

	return cmd
}

func runAttach(command, layoutName string, maxSessions int) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) || !isatty.IsTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("run: stdin and stdout must both be a terminal")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if maxSessions > 0 {
		cfg.MaxSessions = maxSessions
	}
	if cfg.Shell != "" {
		os.Setenv("SHELL", cfg.Shell)
	}

	hints := detectTerminalHints()
	log.Printf("cmd: attaching (term=%s colorterm=%s)", hints.Term, hints.ColorTerm)

	modeName := layoutName
	if modeName == "" {
		modeName = cfg.DefaultLayout
	}
	if modeName == "" {
		modeName = "grid"
	}
	mode, err := layout.ParseMode(modeName)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	redraw := newRedrawSink()
	ws := workspace.New(workspace.Options{
		ProjectDir:  dir,
		MaxSessions: cfg.MaxSessions,
		Redraw:      redraw,
		Worktree:    cfg.Worktree,
	})

	if _, err := ws.Create(command); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	driveLoop(ws, mode, redraw)
	return nil
}

// redrawSink is the single-producer-many-consumers "notify" channel spec
// §5 describes: sending when nothing is listening is a no-op, and at
// most one pending redraw is ever queued.
type redrawSink struct {
	ch      chan struct{}
	pending int32
}

func newRedrawSink() *redrawSink {
	return &redrawSink{ch: make(chan struct{}, 1)}
}

func (r *redrawSink) Signal() {
	if atomic.CompareAndSwapInt32(&r.pending, 0, 1) {
		r.ch <- struct{}{}
	}
}

func (r *redrawSink) drained() {
	atomic.StoreInt32(&r.pending, 0)
}

// driveLoop is the cooperative scheduler spec §5 describes: it suspends
// at the poll-interval timer, the redraw channel, and the input source,
// never blocking on a PTY read or write.
func driveLoop(ws *workspace.Workspace, mode layout.Mode, redraw *redrawSink) {
	out := newRenderer(os.Stdout)
	cols, rows, _ := term.GetSize(int(os.Stdout.Fd()))
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	vp := layout.Viewport{W: cols, H: rows}
	resizeAll(ws, mode, vp)

	sigwinch := make(chan os.Signal, 1)
	signal.Notify(sigwinch, syscall.SIGWINCH)
	defer signal.Stop(sigwinch)

	input := make(chan []byte, 64)
	eof := make(chan struct{})
	go readStdin(input, eof)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	os.Stdout.WriteString("\x1b[2J")
	out.Draw(ws, mode, vp)

	for {
		select {
		case <-ticker.C:
			ws.Update()

		case <-redraw.ch:
			redraw.drained()
			out.Draw(ws, mode, vp)
			out.drawConflictBanner(vp, ws.Conflicts())

		case <-sigwinch:
			if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 && rows > 0 {
				vp = layout.Viewport{W: cols, H: rows}
				resizeAll(ws, mode, vp)
				os.Stdout.WriteString("\x1b[2J")
				out.Draw(ws, mode, vp)
			}

		case data := <-input:
			if handleInput(ws, mode, &vp, data) {
				out.Draw(ws, mode, vp)
				return
			}

		case <-eof:
			return
		}
	}
}

func resizeAll(ws *workspace.Workspace, mode layout.Mode, vp layout.Viewport) {
	ids := ws.IDs()
	mapping := layout.Layout(vp, ids, mode)
	for _, id := range ids {
		rect := mapping[id]
		if rect.W > 0 && rect.H > 0 {
			ws.Resize(id, rect.W, rect.H)
		}
	}
}

// readStdin feeds raw bytes from the terminal to input, one read's worth
// of bytes at a time, until EOF closes eof.
func readStdin(input chan<- []byte, eof chan<- struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			input <- chunk
		}
		if err != nil {
			close(eof)
			return
		}
	}
}

// handleInput processes one read's worth of input bytes, intercepting the
// command-mode prefix. Returns true if the attach loop should exit.
func handleInput(ws *workspace.Workspace, mode layout.Mode, vp *layout.Viewport, data []byte) bool {
	for i := 0; i < len(data); i++ {
		b := data[i]

		if b == prefixByte {
			i++
			if i >= len(data) {
				return false
			}
			if handlePrefixCommand(ws, data[i]) {
				return true
			}
			continue
		}

		if b == ctrlW {
			if id, ok := ws.ActiveID(); ok {
				if snap, ok := ws.Snapshot(id); ok && !snap.Alive {
					ws.Close(id)
					if ws.Len() == 0 {
						return true
					}
					resizeAll(ws, mode, *vp)
					continue
				}
			}
		}

		ws.WriteActive([]byte{b})
	}
	return false
}

// handlePrefixCommand dispatches the byte following the command prefix.
// Returns true on "quit" — either requested directly, or because closing
// the active session left the workspace empty.
func handlePrefixCommand(ws *workspace.Workspace, b byte) bool {
	switch {
	case b == prefixByte:
		ws.WriteActive([]byte{prefixByte})
	case b == 'c':
		ws.Create("")
	case b == 'n':
		ws.Next()
	case b == 'p':
		ws.Previous()
	case b == 'x':
		if id, ok := ws.ActiveID(); ok {
			ws.Close(id)
			return ws.Len() == 0
		}
	case b == 'q':
		return true
	case b >= '1' && b <= '9':
		ws.SwitchTo(int(b - '1'))
	}
	return false
}
