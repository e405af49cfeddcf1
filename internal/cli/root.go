// Package cli implements the cobra-based command line for release-deploy.
//
// The root command is the deployment itself: it takes a single
// TEMPLATE_TYPE argument. This file defines the command, its global flags,
// and error-to-exit-code handling.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/release-deploy/internal/model"
)

// Global flag variables. They are bound to flags on the root command each
// time NewRootCommand is called, which also resets them to their defaults.
var (
	// jsonOutput switches stdout and error output to JSON.
	jsonOutput bool

	// verbose enables step-level progress lines on stderr.
	verbose bool

	// configPath points at an explicit config file instead of discovery.
	configPath string

	// projectRootFlag overrides the git top level of the working directory.
	projectRootFlag string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// styles holds the lipgloss styles for one output stream.
type styles struct {
	error   lipgloss.Style
	verbose lipgloss.Style
}

// stylesFor builds styles whose color profile is detected from w rather
// than from stdout. Errors and progress go to stderr, which may be a
// terminal while stdout is piped (or the other way around).
func stylesFor(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		error:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		verbose: r.NewStyle().Faint(true),
	}
}

// NewRootCommand creates and configures the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		// TEMPLATE_TYPE is spelled out in Use so that the usage line printed
		// for invalid arguments shows the required positional argument.
		Use:   "release-deploy [flags] TEMPLATE_TYPE",
		Short: "Prepare a release branch for a template type",
		Long: `release-deploy clones the repository into a temporary directory inside
the project, creates or resets the release branch for the given template
type, reads the version from the branch's head commit, clears the clone's
working tree, and prints the project's base tag.

Template types:
  assignment   deploys to release/assignment
  report       deploys to release/report

The clone URL is built from $GITHUB_REPOSITORY and authenticated with
$GITHUB_TOKEN (names can be changed in .release-deploy.yaml).

Examples:
  release-deploy assignment
  release-deploy --json report
  release-deploy --project-root ~/src/templates -v report`,

		// Rejects anything but exactly one known template type before RunE,
		// so no external command runs for invalid input.
		Args: validateTemplateArg,

		// ValidArgs feeds shell completion with the known template types.
		ValidArgs: model.TemplateTypeNames(),

		// SilenceUsage keeps cobra from dumping the usage text on every
		// failing git command; Execute prints it only for invalid arguments.
		SilenceUsage: true,

		// SilenceErrors hands error printing to Execute so that --json
		// output and the exit code mapping stay in one place.
		SilenceErrors: true,

		// Setting Version makes cobra register the --version flag. The
		// build metadata comes from ldflags and defaults to dev builds.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, args[0])
		},
	}

	// Unknown or malformed flags are argument errors, not general failures,
	// so they exit with the same code as a bad TEMPLATE_TYPE.
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitInvalidArgument, "invalid flags", err)
	})

	// Flags live on the root command itself, not as persistent flags,
	// because there are no subcommands to inherit them.
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Config file (default: .release-deploy.{yaml,yml,jsonc,json} in the project root)")
	rootCmd.Flags().StringVar(&projectRootFlag, "project-root", "", "Project directory (default: git top level of the current directory)")

	return rootCmd
}

// validateTemplateArg accepts exactly one argument naming a known
// template type.
func validateTemplateArg(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return model.NewCLIError(model.ExitInvalidArgument,
			fmt.Sprintf("expected exactly 1 TEMPLATE_TYPE argument, received %d", len(args)))
	}
	_, err := model.ParseTemplateType(args[0])
	return err
}

// Execute runs the root command and exits with the code derived from any
// returned error. Invalid arguments also print the usage text.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	code := exitCode(err)
	printError(os.Stderr, err)
	if code == model.ExitInvalidArgument && !jsonOutput {
		fmt.Fprintln(os.Stderr)
		fmt.Fprint(os.Stderr, rootCmd.UsageString())
	}
	os.Exit(int(code))
}

// exitCode maps err onto a process exit code. CLIErrors carry their own
// code; anything else is a general error.
func exitCode(err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return model.ExitGeneralError
}

// printError outputs an error in the format selected by --json.
func printError(w io.Writer, err error) {
	message := err.Error()
	var detail error
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		message = cliErr.Message
		detail = cliErr.Err
	}

	if jsonOutput {
		errObj := map[string]interface{}{
			"message": message,
			"code":    int(exitCode(err)),
		}
		if detail != nil {
			errObj["detail"] = detail.Error()
		}
		data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	prefix := stylesFor(w).error.Render("Error:")
	if detail != nil {
		fmt.Fprintf(w, "%s %s: %v\n", prefix, message, detail)
	} else {
		fmt.Fprintf(w, "%s %s\n", prefix, message)
	}
}

// logger writes operator-facing progress to stderr. Command lines are
// always reported; step details only with --verbose.
type logger struct {
	w       io.Writer
	verbose bool
}

// Commandf reports an external command or its failure.
func (l *logger) Commandf(format string, args ...interface{}) {
	fmt.Fprintln(l.w, strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

// Verbosef reports a step detail when verbose mode is enabled.
func (l *logger) Verbosef(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	fmt.Fprintln(l.w, stylesFor(l.w).verbose.Render("[verbose] "+fmt.Sprintf(format, args...)))
}
