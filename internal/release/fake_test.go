package release

import (
	"strings"

	"github.com/shinji-kodama/release-deploy/internal/model"
	"github.com/shinji-kodama/release-deploy/internal/runner"
)

// fakeRunner is a scripted runner.Runner. Each command is matched by the
// longest registered prefix of its joined argument vector.
type fakeRunner struct {
	responses map[string]fakeResponse
	calls     []runner.Command
}

type fakeResponse struct {
	stdout string
	err    error
	// hook runs before the response is returned, e.g. to create the
	// directory a clone would have produced.
	hook func(cmd runner.Command)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string]fakeResponse)}
}

func (f *fakeRunner) on(prefix string, resp fakeResponse) *fakeRunner {
	f.responses[prefix] = resp
	return f
}

func (f *fakeRunner) Run(cmd runner.Command) (string, error) {
	f.calls = append(f.calls, cmd)

	line := cmd.String()
	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return "", nil
	}

	resp := f.responses[best]
	if resp.hook != nil {
		resp.hook(cmd)
	}
	return resp.stdout, resp.err
}

// commandLines returns the joined argument vectors of every call.
func (f *fakeRunner) commandLines() []string {
	lines := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		lines = append(lines, c.String())
	}
	return lines
}

// commandFailure builds the error runner.Exec returns for a non-zero exit.
func commandFailure(args []string, code int, stderr string) error {
	return model.WrapCLIError(model.ExitCommandFailed, "command failed",
		&runner.CommandError{Args: args, ExitCode: code, Stderr: stderr})
}
