// Package release prepares a release branch in a temporary clone and
// resolves the project's base tag.
//
// Orchestration steps:
//  1. Validate the template type against the fixed template table
//  2. Resolve the base tag of the project
//  3. Clone the remote into <projectRoot>/<prefix><template type>
//  4. Create or reset the release branch in the clone
//  5. Read the version from the release branch's head commit
//  6. Clear the clone's working tree
//  7. Resolve the base tag again for output
//
// The first failing step aborts the run. The clone directory is left as-is
// for the operator to inspect or remove.
package release

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/release-deploy/internal/config"
	"github.com/shinji-kodama/release-deploy/internal/model"
	"github.com/shinji-kodama/release-deploy/internal/repo"
	"github.com/shinji-kodama/release-deploy/internal/runner"
)

// Deployer runs the release preparation steps for one project.
type Deployer struct {
	repo        *repo.Manager
	resolver    *Resolver
	cfg         *config.Config
	projectRoot string
	getenv      func(string) string
	logf        runner.LogFunc
}

// Options configures a Deployer.
type Options struct {
	// ProjectRoot is the absolute path of the project working tree. Tags
	// are resolved here and the clone is created directly below it.
	ProjectRoot string

	// Config supplies the remote host, env var names and clone prefix.
	// Nil means config.Default().
	Config *config.Config

	// Getenv reads the token and repository. Nil means os.Getenv.
	Getenv func(string) string

	// Logf receives step-level progress lines. Nil discards them.
	Logf runner.LogFunc
}

// NewDeployer creates a Deployer that runs its commands through m.
func NewDeployer(m *repo.Manager, opts Options) *Deployer {
	d := &Deployer{
		repo:        m,
		resolver:    NewResolver(m),
		cfg:         opts.Config,
		projectRoot: opts.ProjectRoot,
		getenv:      opts.Getenv,
		logf:        opts.Logf,
	}
	if d.cfg == nil {
		d.cfg = config.Default()
	}
	if d.getenv == nil {
		d.getenv = os.Getenv
	}
	if d.logf == nil {
		d.logf = func(string, ...interface{}) {}
	}
	return d
}

// CloneDir returns the clone directory used for templateType.
// Concurrent runs for the same template type share this path.
func (d *Deployer) CloneDir(templateType model.TemplateType) string {
	return filepath.Join(d.projectRoot, d.cloneName(templateType))
}

func (d *Deployer) cloneName(templateType model.TemplateType) string {
	return d.cfg.TempDirPrefix + templateType.String()
}

// Deploy prepares the release branch for templateType and returns the
// resolved base tag together with the branch's head version.
//
// An unknown template type is rejected before any command runs.
func (d *Deployer) Deploy(templateType string) (*model.DeployResult, error) {
	t, err := model.ParseTemplateType(templateType)
	if err != nil {
		return nil, err
	}
	branch := t.ReleaseBranch()
	cloneDir := d.CloneDir(t)
	d.logf("Template %q deploys to branch %q", t, branch)

	// The working tree of cloneDir gets wiped below; it must never be the
	// project itself or anything outside it.
	if !repo.IsInside(d.projectRoot, cloneDir) {
		return nil, model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("clone directory %q is not inside project root %q", cloneDir, d.projectRoot))
	}

	if _, err := d.resolver.BaseTag(d.projectRoot); err != nil {
		return nil, err
	}

	if err := d.removeStaleClone(cloneDir); err != nil {
		return nil, err
	}

	remote := d.cfg.Resolve(d.getenv)
	if err := d.repo.Clone(d.projectRoot, remote.URL, d.cloneName(t), remote.Env); err != nil {
		return nil, err
	}

	if err := d.repo.CheckoutBranch(cloneDir, branch); err != nil {
		return nil, err
	}

	version, err := d.resolver.HeadCommitVersion(cloneDir)
	if err != nil {
		return nil, err
	}
	d.logf("Release branch %q is at version %q", branch, version)

	if err := d.repo.ClearWorkingTree(cloneDir); err != nil {
		return nil, err
	}

	tag, err := d.resolver.BaseTag(d.projectRoot)
	if err != nil {
		return nil, err
	}
	d.logf("Base tag is %q", tag)

	return &model.DeployResult{
		TemplateType:  t,
		Branch:        branch,
		BranchVersion: version,
		BaseTag:       tag,
		CloneDir:      cloneDir,
	}, nil
}

// removeStaleClone deletes a clone left behind by an earlier run for the
// same template type so that git can clone into a fresh directory.
func (d *Deployer) removeStaleClone(cloneDir string) error {
	if _, err := os.Lstat(cloneDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("cannot inspect clone directory %q", cloneDir), err)
	}

	d.logf("Removing previous clone %q", cloneDir)
	if err := os.RemoveAll(cloneDir); err != nil {
		return model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to remove previous clone %q", cloneDir), err)
	}
	return nil
}
