// Package gitworktree is the optional version-control collaborator: it
// gives each session its own working directory by checking out a git
// worktree on a private branch, shelling out to the real git binary.
package gitworktree

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"multiplex/internal/config"
)

// Manager creates and cleans up per-session worktrees under a single
// project directory.
type Manager struct {
	projectDir string
	cfg        config.WorktreeConfig
	isRepo     bool
}

// NewManager probes projectDir once at construction and remembers
// whether it is a git repository.
func NewManager(projectDir string) *Manager {
	return NewManagerWithConfig(projectDir, config.WorktreeConfig{Enabled: true})
}

// NewManagerWithConfig is NewManager with explicit worktree settings.
func NewManagerWithConfig(projectDir string, cfg config.WorktreeConfig) *Manager {
	return &Manager{
		projectDir: projectDir,
		cfg:        cfg,
		isRepo:     isGitRepo(projectDir),
	}
}

func isGitRepo(dir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = dir
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// IsGitRepo reports whether the project directory is a git repository.
func (m *Manager) IsGitRepo() bool {
	return m.isRepo
}

// CreateWorktree checks out (or reuses) a worktree for name, returning
// its path. After the worktrees root is created, the rest of creation runs
// under a file lock on a single .lock file in that root, so concurrent
// calls (for any name) run their `git worktree add` one at a time.
func (m *Manager) CreateWorktree(name string) (string, error) {
	if !m.cfg.Enabled {
		return "", fmt.Errorf("worktree: disabled in config")
	}
	if !m.isRepo {
		return "", fmt.Errorf("worktree: %s is not a git repository", m.projectDir)
	}

	root := config.WorktreesDir()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("worktree: create root: %w", err)
	}

	lock := flock.New(filepath.Join(root, ".lock"))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("worktree: acquire lock: %w", err)
	}
	defer lock.Unlock()

	path := filepath.Join(root, name)

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
			return "", fmt.Errorf("worktree: %s exists but has no .git file — corrupt worktree dir", path)
		}
		return path, nil
	}

	branchFrom := m.cfg.GetBranchFrom()
	args := []string{"worktree", "add"}
	if m.cfg.UseDetachedHead {
		args = append(args, "--detach", path, branchFrom)
	} else {
		args = append(args, "-b", name, path, branchFrom)
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = m.projectDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("worktree: git worktree add: %s: %w", strings.TrimSpace(string(out)), err)
	}

	return path, nil
}

// CleanupWorktree removes the worktree at path (as returned by
// CreateWorktree): it prunes the git worktree registration, deletes the
// branch if one was created, and removes the directory.
func (m *Manager) CleanupWorktree(path string) error {
	if !m.isRepo {
		return nil
	}
	name := filepath.Base(path)

	removeCmd := exec.Command("git", "worktree", "remove", "--force", path)
	removeCmd.Dir = m.projectDir
	removeCmd.Run() // best-effort; directory removal below is the fallback

	branchCmd := exec.Command("git", "branch", "-D", name)
	branchCmd.Dir = m.projectDir
	branchCmd.Run() // no-op if detached-head mode never created this branch

	pruneCmd := exec.Command("git", "worktree", "prune")
	pruneCmd.Dir = m.projectDir
	pruneCmd.Run()

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("worktree: remove dir: %w", err)
	}
	return nil
}
