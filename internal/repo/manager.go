// Package repo provides the git operations a release deployment needs.
//
// Every command goes through a runner.Runner, so the operations can be
// exercised against real repositories in tests or against a scripted
// fake when only the orchestration is under test.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shinji-kodama/release-deploy/internal/model"
	"github.com/shinji-kodama/release-deploy/internal/runner"
)

// Manager runs git and filesystem commands through a Runner.
type Manager struct {
	runner runner.Runner
}

// NewManager creates a Manager that executes commands with r.
func NewManager(r runner.Runner) *Manager {
	return &Manager{runner: r}
}

// RepoRoot returns the absolute path to the top-level directory of the
// working tree containing path.
func (m *Manager) RepoRoot(path string) (string, error) {
	output, err := m.git(path, nil, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// FetchTags fetches all tags from the default remote.
func (m *Manager) FetchTags(dir string) error {
	_, err := m.git(dir, nil, "fetch", "--tags")
	return err
}

// Describe returns the raw `git describe --tags` output for HEAD,
// e.g. "v1.2.3-4-gabcdef\n".
func (m *Manager) Describe(dir string) (string, error) {
	return m.git(dir, nil, "describe", "--tags")
}

// Clone clones url into target, relative to dir. env carries credentials
// for git and is never logged.
func (m *Manager) Clone(dir, url, target string, env map[string]string) error {
	_, err := m.git(dir, env, "clone", url, target)
	return err
}

// CheckoutBranch creates branch, or resets it if it already exists, so that
// it points at the current HEAD of the working tree in dir.
func (m *Manager) CheckoutBranch(dir, branch string) error {
	_, err := m.git(dir, nil, "checkout", "-B", branch)
	return err
}

// HeadSubject returns the subject line of the HEAD commit.
func (m *Manager) HeadSubject(dir string) (string, error) {
	return m.git(dir, nil, "show", "--pretty=format:%s", "-s", "HEAD")
}

// ClearWorkingTree removes every top-level entry of dir except the .git
// directory. The entries are expanded here and handed to `rm -rf` as
// explicit arguments; no shell is involved.
func (m *Manager) ClearWorkingTree(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidWorkDir,
			fmt.Sprintf("cannot list working tree %q", dir), err)
	}

	var targets []string
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		targets = append(targets, "./"+entry.Name())
	}
	if len(targets) == 0 {
		return nil
	}
	sort.Strings(targets)

	args := append([]string{"rm", "-rf", "--"}, targets...)
	_, err = m.runner.Run(runner.Command{Dir: dir, Args: args})
	return err
}

// IsInside reports whether path lies strictly below root. Both paths are
// cleaned and made absolute before comparison.
func IsInside(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// git executes a git subcommand in dir.
func (m *Manager) git(dir string, env map[string]string, args ...string) (string, error) {
	return m.runner.Run(runner.Command{
		Dir:  dir,
		Args: append([]string{"git"}, args...),
		Env:  env,
	})
}
