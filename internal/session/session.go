// Package session binds one PTY channel to one terminal grid and its
// parser, adding resize, key delivery, exit-banner rendering, and
// active-file extraction on top.
package session

import (
	"regexp"

	"github.com/google/uuid"

	"multiplex/internal/grid"
	"multiplex/internal/keys"
	"multiplex/internal/pty"
)

// ID uniquely identifies a session for the life of the process. Assigned
// fresh at creation, never recycled.
type ID uuid.UUID

func newID() ID {
	return ID(uuid.New())
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// UpdateResult classifies the outcome of a single Update call.
type UpdateResult int

const (
	NoChange UpdateResult = iota
	Damaged
	Died
)

const exitBanner = "[Process exited — press Ctrl+W to close]"

// pollBudget bounds how many PTY reads a single Update performs before
// yielding back to the drive loop, per §5's per-tick poll budget.
const pollBudget = 10

var activeFilePatterns = []*regexp.Regexp{
	regexp.MustCompile(`([a-zA-Z0-9_/.\-]+\.[a-zA-Z]+):(\d+)`),
	regexp.MustCompile(`(?i)(?:error|warning) in ([a-zA-Z0-9_/.\-]+\.[a-zA-Z]+)`),
	regexp.MustCompile(`(?i)editing ([a-zA-Z0-9_/.\-]+\.[a-zA-Z]+)`),
}

// Session owns exactly one PTY channel and one grid+parser. Not safe for
// concurrent use on its own — callers (Workspace) hold a per-session lock
// around every method below.
type Session struct {
	ID ID

	channel *pty.Channel
	grid    *grid.Grid
	parser  *grid.Parser

	cols, rows int

	activeFiles   []string
	activeFileSet map[string]bool

	died bool
}

// New spawns a PTY channel under opts.Size and wraps it with a fresh grid
// of the same dimensions.
func New(opts pty.Options) (*Session, error) {
	ch, err := pty.Spawn(opts)
	if err != nil {
		return nil, err
	}
	g := grid.New(opts.Size.Cols, opts.Size.Rows)
	return &Session{
		ID:            newID(),
		channel:       ch,
		grid:          g,
		parser:        grid.NewParser(g),
		cols:          opts.Size.Cols,
		rows:          opts.Size.Rows,
		activeFileSet: make(map[string]bool),
	}, nil
}

// Update drains the PTY up to pollBudget reads (or until WouldBlock),
// feeding each chunk to the parser and the active-file scanner. The first
// Eof observed marks the session dead, writes the exit banner into the
// grid, and returns Died.
func (s *Session) Update() UpdateResult {
	if s.died {
		return NoChange
	}

	damaged := false
	for i := 0; i < pollBudget; i++ {
		r := s.channel.Poll()
		switch {
		case r.Eof:
			s.die()
			return Died
		case r.WouldBlock:
			if damaged {
				return Damaged
			}
			return NoChange
		default:
			if s.parser.Feed(r.Data) {
				damaged = true
			}
			s.scanActiveFiles(r.Data)
		}
	}
	if damaged {
		return Damaged
	}
	return NoChange
}

func (s *Session) die() {
	s.died = true
	row := s.grid.Cursor.Row
	s.grid.CurrentFg = grid.BrightRed
	s.grid.CurrentBg = grid.Default
	s.grid.Cursor = grid.Cursor{Col: 0, Row: row}
	p := grid.NewParser(s.grid)
	p.Feed([]byte(exitBanner))
	s.grid.ResetPen()
}

func (s *Session) scanActiveFiles(data []byte) {
	for _, re := range activeFilePatterns {
		for _, m := range re.FindAllStringSubmatch(string(data), -1) {
			if len(m) < 2 {
				continue
			}
			file := m[1]
			if !s.activeFileSet[file] {
				s.activeFileSet[file] = true
				s.activeFiles = append(s.activeFiles, file)
			}
		}
	}
}

// ActiveFiles returns the ordered, deduplicated list of file-like strings
// observed in the child's output so far.
func (s *Session) ActiveFiles() []string {
	out := make([]string, len(s.activeFiles))
	copy(out, s.activeFiles)
	return out
}

// Write forwards bytes to the PTY if alive; dropped silently otherwise.
func (s *Session) Write(data []byte) error {
	if s.died {
		return nil
	}
	return s.channel.Write(data)
}

// SendKey encodes ev and writes it. Dead sessions accept the call but
// drop the bytes.
func (s *Session) SendKey(ev keys.Event) error {
	b := keys.Encode(ev)
	if len(b) == 0 {
		return nil
	}
	return s.Write(b)
}

// Resize resizes the PTY and the grid together, clamping the cursor.
func (s *Session) Resize(cols, rows int) error {
	if cols == s.cols && rows == s.rows {
		return nil
	}
	if err := s.channel.Resize(pty.Size{Cols: cols, Rows: rows}); err != nil {
		return err
	}
	s.grid.Resize(cols, rows)
	s.cols, s.rows = cols, rows
	return nil
}

// Snapshot is a read-only view of a session suitable for a single render.
type Snapshot struct {
	Grid  grid.Snapshot
	Alive bool
}

// Snapshot returns a read-only view of the session's grid and liveness.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{Grid: s.grid.Snapshot(), Alive: !s.died}
}

// Alive reports whether the session's child is still considered live.
func (s *Session) Alive() bool {
	return !s.died
}

// Close tears down the underlying PTY channel. Idempotent.
func (s *Session) Close() error {
	return s.channel.Shutdown()
}

// Size returns the session's last-known (cols, rows).
func (s *Session) Size() (cols, rows int) {
	return s.cols, s.rows
}
