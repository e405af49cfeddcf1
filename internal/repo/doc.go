// Package repo provides the git operations used by release-deploy.
//
// All git operations are performed by invoking the git binary through
// a runner.Runner rather than using a Go git library:
//   - the tool behaves exactly like the git the operator uses in CI
//   - `checkout -B` and `describe --tags` keep their native semantics
//   - tests can swap the runner for a fake
//
// The Manager struct provides clone, checkout, tag and commit queries,
// plus clearing of a clone's working tree.
package repo
