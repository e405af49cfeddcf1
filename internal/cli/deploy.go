package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/release-deploy/internal/config"
	"github.com/shinji-kodama/release-deploy/internal/model"
	"github.com/shinji-kodama/release-deploy/internal/release"
	"github.com/shinji-kodama/release-deploy/internal/repo"
	"github.com/shinji-kodama/release-deploy/internal/runner"
)

// runDeploy is the main logic of the root command.
func runDeploy(cmd *cobra.Command, templateType string) error {
	log := &logger{w: cmd.ErrOrStderr(), verbose: verbose}
	m := repo.NewManager(runner.NewExec(log.Commandf))

	root, err := resolveProjectRoot(m, projectRootFlag)
	if err != nil {
		return err
	}
	log.Verbosef("Project root: %s", root)

	cfg, err := loadConfig(root, configPath)
	if err != nil {
		return err
	}
	if cfg.Path != "" {
		log.Verbosef("Loaded config %s", cfg.Path)
	}

	d := release.NewDeployer(m, release.Options{
		ProjectRoot: root,
		Config:      cfg,
		Getenv:      os.Getenv,
		Logf:        log.Verbosef,
	})

	result, err := d.Deploy(templateType)
	if err != nil {
		return err
	}

	return printDeployResult(cmd.OutOrStdout(), result)
}

// resolveProjectRoot returns the absolute project directory: the flag value
// when set, otherwise the git top level of the current directory.
func resolveProjectRoot(m *repo.Manager, flagValue string) (string, error) {
	if flagValue != "" {
		abs, err := filepath.Abs(flagValue)
		if err != nil {
			return "", model.WrapCLIError(model.ExitInvalidWorkDir,
				fmt.Sprintf("invalid project root %q", flagValue), err)
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return "", model.WrapCLIError(model.ExitInvalidWorkDir,
				fmt.Sprintf("project root %q is not a directory", abs), err)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, "cannot determine working directory", err)
	}
	return m.RepoRoot(cwd)
}

// loadConfig reads the explicit config file when one was given, otherwise
// discovers one in the project root.
func loadConfig(root, explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	return config.Discover(root)
}

// printDeployResult writes the base tag, or the whole result with --json.
func printDeployResult(w io.Writer, result *model.DeployResult) error {
	if !jsonOutput {
		_, err := fmt.Fprintln(w, result.BaseTag)
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to encode result", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
