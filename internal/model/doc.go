// Package model defines the domain types and value objects for the
// release-deploy CLI.
//
// This package contains pure data structures with no external dependencies:
// the fixed TemplateType to release branch table, the DeployResult produced
// by a run, and the exit codes (ExitCode) and error type (CLIError) used to
// map failures onto process exit statuses.
package model
