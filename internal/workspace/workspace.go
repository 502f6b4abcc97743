// Package workspace owns the ordered collection of sessions, tracks the
// active one, and drives per-tick polling under a try-lock discipline so
// the renderer and the poller never block on each other.
package workspace

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"multiplex/internal/config"
	"multiplex/internal/gitworktree"
	"multiplex/internal/keys"
	"multiplex/internal/pty"
	"multiplex/internal/session"
)

// DefaultMaxSessions matches the core's documented default cap.
const DefaultMaxSessions = 10

// DefaultSize is the initial grid size every new session is given.
var DefaultSize = pty.Size{Cols: 80, Rows: 24}

// entry wraps a session with the per-session reader-writer lock the
// concurrency model requires: update/write take it exclusive, renderer
// reads take it shared.
type entry struct {
	id   session.ID
	mu   sync.RWMutex
	sess *session.Session

	worktreeDir string
}

// RedrawSink receives a notification whenever a tick produced visible
// change. Sending when nothing is listening is a no-op.
type RedrawSink interface {
	Signal()
}

// Workspace owns the ordered session list, active tracking, and the
// optional worktree collaborator.
type Workspace struct {
	listMu sync.RWMutex
	order  []*entry

	activeMu sync.RWMutex
	active   *session.ID

	projectDir  string
	maxSessions int
	redraw      RedrawSink

	worktrees *gitworktree.Manager
}

// Options configures a new Workspace.
type Options struct {
	ProjectDir  string
	MaxSessions int
	Redraw      RedrawSink
	Worktree    config.WorktreeConfig
}

// New constructs a Workspace rooted at opts.ProjectDir. If the directory
// is a git repository and opts.Worktree.Enabled, sessions are offered
// private worktrees; otherwise they run directly in ProjectDir.
func New(opts Options) *Workspace {
	max := opts.MaxSessions
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &Workspace{
		projectDir:  opts.ProjectDir,
		maxSessions: max,
		redraw:      opts.Redraw,
		worktrees:   gitworktree.NewManagerWithConfig(opts.ProjectDir, opts.Worktree),
	}
}

// Create spawns a new session, optionally overriding the shell command.
// Fails with ErrTooManySessions if the workspace is already at capacity.
func (w *Workspace) Create(command string) (session.ID, error) {
	w.listMu.Lock()
	if len(w.order) >= w.maxSessions {
		w.listMu.Unlock()
		return session.ID{}, ErrTooManySessions
	}
	w.listMu.Unlock()

	dir := w.projectDir
	worktreeDir := ""
	if w.worktrees.IsGitRepo() {
		if wd, err := w.worktrees.CreateWorktree(uuid.NewString()); err == nil {
			dir = wd
			worktreeDir = wd
		}
	}

	sess, err := session.New(pty.Options{Program: command, Dir: dir, Size: DefaultSize})
	if err != nil {
		if worktreeDir != "" {
			w.worktrees.CleanupWorktree(worktreeDir)
		}
		return session.ID{}, fmt.Errorf("spawn failed: %w", err)
	}

	e := &entry{id: sess.ID, sess: sess, worktreeDir: worktreeDir}

	w.listMu.Lock()
	w.order = append(w.order, e)
	w.listMu.Unlock()

	w.activeMu.Lock()
	if w.active == nil {
		id := sess.ID
		w.active = &id
	}
	w.activeMu.Unlock()

	return sess.ID, nil
}

// Close shuts down and removes the session by id. Active moves to the
// first remaining session, or to none if the workspace is now empty.
func (w *Workspace) Close(id session.ID) error {
	w.listMu.Lock()
	idx := w.indexOf(id)
	if idx < 0 {
		w.listMu.Unlock()
		return ErrNotFound
	}
	e := w.order[idx]
	w.order = append(w.order[:idx], w.order[idx+1:]...)
	w.listMu.Unlock()

	e.mu.Lock()
	e.sess.Close()
	e.mu.Unlock()

	if e.worktreeDir != "" {
		w.worktrees.CleanupWorktree(e.worktreeDir)
	}

	w.activeMu.Lock()
	if w.active != nil && *w.active == id {
		w.listMu.RLock()
		if len(w.order) > 0 {
			first := w.order[0].id
			w.active = &first
		} else {
			w.active = nil
		}
		w.listMu.RUnlock()
	}
	w.activeMu.Unlock()

	return nil
}

// indexOf must be called with listMu held.
func (w *Workspace) indexOf(id session.ID) int {
	for i, e := range w.order {
		if e.id == id {
			return i
		}
	}
	return -1
}

// Next cycles the active session forward through creation order.
func (w *Workspace) Next() {
	w.cycle(1)
}

// Previous cycles the active session backward through creation order.
func (w *Workspace) Previous() {
	w.cycle(-1)
}

func (w *Workspace) cycle(dir int) {
	w.listMu.RLock()
	defer w.listMu.RUnlock()
	if len(w.order) == 0 {
		return
	}

	w.activeMu.Lock()
	defer w.activeMu.Unlock()
	if w.active == nil {
		id := w.order[0].id
		w.active = &id
		return
	}
	idx := w.indexOf(*w.active)
	if idx < 0 {
		id := w.order[0].id
		w.active = &id
		return
	}
	n := len(w.order)
	next := ((idx+dir)%n + n) % n
	id := w.order[next].id
	w.active = &id
}

// SetActive sets the active session iff id exists; no-op otherwise.
func (w *Workspace) SetActive(id session.ID) {
	w.listMu.RLock()
	defer w.listMu.RUnlock()
	if w.indexOf(id) < 0 {
		return
	}
	w.activeMu.Lock()
	w.active = &id
	w.activeMu.Unlock()
}

// SwitchTo selects the session at the given position; no-op if out of
// range.
func (w *Workspace) SwitchTo(index int) {
	w.listMu.RLock()
	defer w.listMu.RUnlock()
	if index < 0 || index >= len(w.order) {
		return
	}
	id := w.order[index].id
	w.activeMu.Lock()
	w.active = &id
	w.activeMu.Unlock()
}

// ActiveID returns the active session ID, if any.
func (w *Workspace) ActiveID() (session.ID, bool) {
	w.activeMu.RLock()
	defer w.activeMu.RUnlock()
	if w.active == nil {
		return session.ID{}, false
	}
	return *w.active, true
}

// IDs returns the ordered list of session IDs, stable across ticks unless
// sessions are created or closed.
func (w *Workspace) IDs() []session.ID {
	w.listMu.RLock()
	defer w.listMu.RUnlock()
	ids := make([]session.ID, len(w.order))
	for i, e := range w.order {
		ids[i] = e.id
	}
	return ids
}

// Update runs a single tick: every session that can be locked exclusively
// without blocking is polled. Sessions currently read-locked by the
// renderer are skipped this tick — the next tick catches up. The redraw
// sink fires at most once per tick, only if something changed.
func (w *Workspace) Update() {
	w.listMu.RLock()
	entries := make([]*entry, len(w.order))
	copy(entries, w.order)
	w.listMu.RUnlock()

	changed := false
	for _, e := range entries {
		if !e.mu.TryLock() {
			continue
		}
		result := e.sess.Update()
		e.mu.Unlock()
		if result != session.NoChange {
			changed = true
		}
	}

	if changed && w.redraw != nil {
		w.redraw.Signal()
	}
}

// SendKey delivers ev to the active session.
func (w *Workspace) SendKey(ev keys.Event) error {
	id, ok := w.ActiveID()
	if !ok {
		return nil
	}
	e := w.find(id)
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.SendKey(ev)
}

// WriteActive forwards raw bytes to the active session's PTY unchanged.
// Used by a terminal-attached front end that already has exact PTY-ready
// bytes from its own raw-mode stdin, bypassing the keys.Event encoding
// that exists for front ends with a structured event source instead.
func (w *Workspace) WriteActive(data []byte) error {
	id, ok := w.ActiveID()
	if !ok {
		return nil
	}
	e := w.find(id)
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Write(data)
}

// Resize is a thin pass-through to the named session's Resize.
func (w *Workspace) Resize(id session.ID, cols, rows int) error {
	e := w.find(id)
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Resize(cols, rows)
}

func (w *Workspace) find(id session.ID) *entry {
	w.listMu.RLock()
	defer w.listMu.RUnlock()
	idx := w.indexOf(id)
	if idx < 0 {
		return nil
	}
	return w.order[idx]
}

// Snapshot is the renderer-facing read-only view of one session.
func (w *Workspace) Snapshot(id session.ID) (session.Snapshot, bool) {
	e := w.find(id)
	if e == nil {
		return session.Snapshot{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sess.Snapshot(), true
}

// Conflict reports a file observed in more than one session's output.
type Conflict struct {
	File       string
	SessionIDs []session.ID
}

// Conflicts aggregates every session's active-files list and reports
// files touched by more than one session. Pure read-only query; it adds
// no session-level state beyond what each session already tracks.
func (w *Workspace) Conflicts() []Conflict {
	w.listMu.RLock()
	entries := make([]*entry, len(w.order))
	copy(entries, w.order)
	w.listMu.RUnlock()

	byFile := make(map[string][]session.ID)
	for _, e := range entries {
		e.mu.RLock()
		files := e.sess.ActiveFiles()
		e.mu.RUnlock()
		for _, f := range files {
			byFile[f] = append(byFile[f], e.id)
		}
	}

	var conflicts []Conflict
	for file, ids := range byFile {
		if len(ids) > 1 {
			conflicts = append(conflicts, Conflict{File: file, SessionIDs: ids})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].File < conflicts[j].File })
	return conflicts
}

// Len returns the current session count.
func (w *Workspace) Len() int {
	w.listMu.RLock()
	defer w.listMu.RUnlock()
	return len(w.order)
}
