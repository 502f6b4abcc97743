// Package pty spawns a child process on a pseudo-terminal and exposes
// non-blocking reads, buffered writes, and liveness tracking over it.
package pty

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Size is a terminal size in character cells.
type Size struct {
	Cols int
	Rows int
}

// Options configures a new Channel.
type Options struct {
	// Program is either a bare executable or, if it contains whitespace, a
	// shell command line run via "$SHELL" -c <command>. Empty means a
	// login-shell invocation of $SHELL (or /bin/bash).
	Program string
	Args    []string
	Dir     string
	// Env overrides parent-environment entries with the same key.
	Env  map[string]string
	Size Size
}

// Channel owns the PTY master, the child process, and its liveness state.
type Channel struct {
	master *os.File
	fd     int
	cmd    *exec.Cmd

	writeMu sync.Mutex
	writer  *bufio.Writer

	sizeMu sync.Mutex
	size   Size

	alive atomic.Bool
}

// Spawn opens a PTY, starts the child described by opts on its slave end,
// and sets the master non-blocking.
func Spawn(opts Options) (*Channel, error) {
	name, args := resolveCommand(opts.Program, opts.Args)

	cmd := exec.Command(name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = mergedEnv(opts.Env)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Size.Rows),
		Cols: uint16(opts.Size.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("spawn failed: %w", err)
	}

	fd := int(master.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		master.Close()
		cmd.Process.Kill()
		return nil, fmt.Errorf("spawn failed: set nonblock: %w", err)
	}

	c := &Channel{
		master: master,
		fd:     fd,
		cmd:    cmd,
		writer: bufio.NewWriter(master),
		size:   opts.Size,
	}
	c.alive.Store(true)
	return c, nil
}

// resolveCommand decides the program/argv pair per §4.2: a command line
// containing whitespace runs under "$SHELL -c"; an empty program is a
// login shell.
func resolveCommand(program string, args []string) (string, []string) {
	shell := loginShell()
	if program == "" {
		return shell, []string{"-l"}
	}
	if strings.ContainsAny(program, " \t") {
		return shell, []string{"-c", program}
	}
	return program, args
}

func loginShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/bash"
}

// mergedEnv builds the child's environment: the parent's environment with
// TERM/COLORTERM forced and any explicit overrides applied last.
func mergedEnv(overrides map[string]string) []string {
	base := map[string]string{
		"TERM":      "xterm-256color",
		"COLORTERM": "truecolor",
	}
	env := make([]string, 0, len(os.Environ())+len(overrides)+2)
	seen := make(map[string]bool, len(overrides)+2)

	for k, v := range overrides {
		base[k] = v
	}

	for key, val := range base {
		env = append(env, key+"="+val)
		seen[key] = true
	}

	for _, kv := range os.Environ() {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if seen[key] {
			continue
		}
		env = append(env, kv)
		seen[key] = true
	}
	return env
}

// PollResult classifies the outcome of a single Poll call.
type PollResult struct {
	Data      []byte
	WouldBlock bool
	Eof       bool
}

const pollBufSize = 4096

// Poll performs a single non-blocking read of up to 4 KiB. It never blocks:
// absence of data is reported as WouldBlock, not an error.
func (c *Channel) Poll() PollResult {
	if !c.alive.Load() {
		return PollResult{Eof: true}
	}

	buf := make([]byte, pollBufSize)
	n, err := unix.Read(c.fd, buf)
	switch {
	case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
		return PollResult{WouldBlock: true}
	case err != nil:
		c.alive.Store(false)
		return PollResult{Eof: true}
	case n == 0:
		c.alive.Store(false)
		return PollResult{Eof: true}
	default:
		return PollResult{Data: buf[:n]}
	}
}

// Write appends to the buffered writer and flushes immediately. Dead
// channels silently succeed.
func (c *Channel) Write(p []byte) error {
	if !c.alive.Load() {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.Write(p); err != nil {
		return fmt.Errorf("io failed: write: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("io failed: flush: %w", err)
	}
	return nil
}

// Resize issues TIOCSWINSZ on the master. No-op if size is unchanged from
// the last successful resize.
func (c *Channel) Resize(size Size) error {
	c.sizeMu.Lock()
	defer c.sizeMu.Unlock()
	if size == c.size {
		return nil
	}
	if err := pty.Setsize(c.master, &pty.Winsize{
		Rows: uint16(size.Rows),
		Cols: uint16(size.Cols),
	}); err != nil {
		return fmt.Errorf("io failed: resize: %w", err)
	}
	c.size = size
	return nil
}

// Alive reports the channel's liveness flag.
func (c *Channel) Alive() bool {
	return c.alive.Load()
}

// Shutdown marks the channel not-alive and closes the master, which sends
// SIGHUP to any surviving child.
func (c *Channel) Shutdown() error {
	if !c.alive.CompareAndSwap(true, false) {
		return nil
	}
	if err := c.master.Close(); err != nil {
		return fmt.Errorf("io failed: shutdown: %w", err)
	}
	return nil
}

// Wait blocks until the child process exits and returns its error, if any.
// Intended for callers that need the real exit status after Eof; the
// drive loop itself never blocks on this.
func (c *Channel) Wait() error {
	return c.cmd.Wait()
}
