// Package model defines the domain types for the release-deploy CLI.
//
// Every value here is transient: it lives for one invocation of the CLI
// and nothing is written to disk besides the temporary clone itself.
package model

import (
	"fmt"
	"strings"
)

// TemplateType selects which release branch a deployment targets.
// The set of template types is closed and fixed at compile time.
type TemplateType string

const (
	// TemplateAssignment deploys the assignment template.
	TemplateAssignment TemplateType = "assignment"

	// TemplateReport deploys the report template.
	TemplateReport TemplateType = "report"
)

// templateTypes lists the template types in the order they are shown
// in help text and shell completion.
var templateTypes = [...]TemplateType{TemplateAssignment, TemplateReport}

// String returns the string representation of TemplateType.
func (t TemplateType) String() string {
	return string(t)
}

// IsValid reports whether t is one of the predefined template types.
func (t TemplateType) IsValid() bool {
	switch t {
	case TemplateAssignment, TemplateReport:
		return true
	default:
		return false
	}
}

// ReleaseBranch returns the release branch name for the template type.
// It returns an empty string for an invalid template type.
func (t TemplateType) ReleaseBranch() string {
	switch t {
	case TemplateAssignment:
		return "release/assignment"
	case TemplateReport:
		return "release/report"
	default:
		return ""
	}
}

// TemplateTypes returns every valid template type.
// The returned slice is a fresh copy and may be modified by the caller.
func TemplateTypes() []TemplateType {
	out := make([]TemplateType, len(templateTypes))
	copy(out, templateTypes[:])
	return out
}

// TemplateTypeNames returns every valid template type as a string,
// suitable for cobra's ValidArgs.
func TemplateTypeNames() []string {
	names := make([]string, 0, len(templateTypes))
	for _, t := range templateTypes {
		names = append(names, t.String())
	}
	return names
}

// ParseTemplateType converts s to a TemplateType. Matching is exact.
// An unknown value yields a CLIError with ExitInvalidArgument.
func ParseTemplateType(s string) (TemplateType, error) {
	t := TemplateType(s)
	if !t.IsValid() {
		return "", NewCLIError(ExitInvalidArgument,
			fmt.Sprintf("invalid template type %q (valid: %s)", s, strings.Join(TemplateTypeNames(), ", ")))
	}
	return t, nil
}

// DeployResult is the outcome of a completed deployment run.
type DeployResult struct {
	// TemplateType is the template type the run was invoked with.
	TemplateType TemplateType `json:"templateType"`

	// Branch is the release branch that was checked out in the clone.
	Branch string `json:"branch"`

	// BranchVersion is the version token read from the release branch's
	// head commit subject. It is not validated.
	BranchVersion string `json:"branchVersion"`

	// BaseTag is the nearest tag of the project with the distance suffix removed.
	BaseTag string `json:"baseTag"`

	// CloneDir is the absolute path of the temporary clone.
	CloneDir string `json:"cloneDir"`
}

// ExitCode defines the CLI exit codes. Scripts and CI jobs can rely on
// these values to tell failure kinds apart.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidArgument indicates the command line was rejected before
	// any side effect took place.
	ExitInvalidArgument ExitCode = 2

	// ExitCommandFailed indicates an external command exited non-zero
	// or could not be started.
	ExitCommandFailed ExitCode = 3

	// ExitInvalidWorkDir indicates a command was asked to run in a
	// directory that does not exist or is not a directory.
	ExitInvalidWorkDir ExitCode = 4

	// ExitConfigError indicates the project config file could not be
	// read, parsed or validated.
	ExitConfigError ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
