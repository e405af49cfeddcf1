// Package runner executes external commands on behalf of release-deploy.
//
// The Runner interface is the only place the rest of the module touches
// os/exec, so orchestration code can be exercised with a scripted fake
// instead of real git processes.
package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/shinji-kodama/release-deploy/internal/model"
)

// Command describes a single external process invocation.
type Command struct {
	// Dir is the working directory. It must exist and be a directory.
	Dir string

	// Args is the argument vector; Args[0] is the executable name.
	Args []string

	// Env holds extra environment variables overlaid on the current
	// process environment. Values are never logged.
	Env map[string]string
}

// String renders the argument vector the way it is reported in logs.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}

// Runner runs a Command and returns its captured standard output.
//
// A process that exits non-zero yields an error from which a *CommandError
// can be recovered with errors.As. Implementations never retry.
type Runner interface {
	Run(cmd Command) (string, error)
}

// CommandError describes an external command that failed.
type CommandError struct {
	// Args is the argument vector that was executed.
	Args []string

	// Dir is the working directory the command ran in.
	Dir string

	// ExitCode is the process exit status, or -1 when the process
	// could not be started at all.
	ExitCode int

	// Stderr is the captured standard error text.
	Stderr string
}

// Error returns the exit status followed by the trimmed stderr text.
func (e *CommandError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("exit status %d", e.ExitCode)
	}
	return fmt.Sprintf("exit status %d: %s", e.ExitCode, stderr)
}

// LogFunc receives operator-facing progress lines.
type LogFunc func(format string, args ...interface{})

// Exec is the os/exec backed Runner.
//
// It holds no state besides the log sink, so a single Exec can be shared by
// every step of a deployment.
type Exec struct {
	logf LogFunc
}

// NewExec creates an Exec that reports each command through logf.
// A nil logf discards the reports.
func NewExec(logf LogFunc) *Exec {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Exec{logf: logf}
}

// Run executes cmd synchronously and returns its stdout verbatim.
//
// The attempted command line and working directory are reported first,
// before any precondition is checked, so every attempt leaves a trace even
// when it is rejected. On failure the stderr text is reported as well, and
// the returned error is a model.CLIError with ExitCommandFailed wrapping a
// *CommandError.
func (e *Exec) Run(cmd Command) (string, error) {
	e.logf("Running command: '%s' in '%s'", cmd, cmd.Dir)

	if len(cmd.Args) == 0 {
		e.logf("Error executing command: empty argument vector")
		return "", model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("empty command in '%s'", cmd.Dir))
	}
	if err := checkWorkDir(cmd.Dir); err != nil {
		e.logf("Error executing command: %s", cmd)
		e.logf("%v", err)
		return "", model.WrapCLIError(model.ExitInvalidWorkDir,
			fmt.Sprintf("command '%s' cannot run in '%s'", cmd, cmd.Dir), err)
	}

	// #nosec G204 -- the argument vector is assembled by this module and no shell is involved
	c := exec.Command(cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		// Overlay rather than replace, since git still needs HOME and PATH
		// from the CI runner. os/exec keeps the last value of a duplicated
		// key, so cmd.Env wins over the inherited environment.
		c.Env = append(os.Environ(), envList(cmd.Env)...)
	}

	// Capture stdout and stderr separately so stderr can go into the error
	// while stdout is returned untouched on success.
	var stdout, stderr strings.Builder
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		cmdErr := &CommandError{
			Args:     append([]string(nil), cmd.Args...),
			Dir:      cmd.Dir,
			ExitCode: -1,
			Stderr:   stderr.String(),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		} else if cmdErr.Stderr == "" {
			// The process never started, so there is no stderr of its own.
			cmdErr.Stderr = err.Error()
		}

		e.logf("Error executing command: %s", cmd)
		if s := strings.TrimSpace(cmdErr.Stderr); s != "" {
			e.logf("%s", s)
		}
		return "", model.WrapCLIError(model.ExitCommandFailed,
			fmt.Sprintf("command '%s' failed in '%s'", cmd, cmd.Dir), cmdErr)
	}

	return stdout.String(), nil
}

// checkWorkDir verifies that dir exists and is a directory.
func checkWorkDir(dir string) error {
	if dir == "" {
		return errors.New("working directory must not be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("working directory %q is not accessible: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory %q is not a directory", dir)
	}
	return nil
}

// envList flattens env into KEY=VALUE pairs in a stable order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// AsCommandError extracts the *CommandError from err, if any.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}
