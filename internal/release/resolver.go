package release

import (
	"strings"

	"github.com/shinji-kodama/release-deploy/internal/repo"
)

// ParseHeadVersion returns the last whitespace-delimited token of a commit
// subject, e.g. "Release version 1.2.3" yields "1.2.3". A subject without
// whitespace is returned whole. The token is not checked to look like a
// version.
func ParseHeadVersion(subject string) string {
	fields := strings.Fields(subject)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// ParseBaseTag returns the part of a `git describe --tags` string before
// the first hyphen, e.g. "v1.2.3-4-gabcdef" yields "v1.2.3". A string
// without a hyphen is returned whole.
func ParseBaseTag(describe string) string {
	tag, _, _ := strings.Cut(strings.TrimSpace(describe), "-")
	return tag
}

// Resolver reads versions and tags from repositories.
// Command failures are returned unchanged.
type Resolver struct {
	repo *repo.Manager
}

// NewResolver creates a Resolver backed by m.
func NewResolver(m *repo.Manager) *Resolver {
	return &Resolver{repo: m}
}

// HeadCommitVersion returns the version token from the subject of the
// HEAD commit in dir.
func (r *Resolver) HeadCommitVersion(dir string) (string, error) {
	subject, err := r.repo.HeadSubject(dir)
	if err != nil {
		return "", err
	}
	return ParseHeadVersion(subject), nil
}

// BaseTag fetches tags into dir and returns the nearest tag of HEAD with
// the distance suffix stripped.
func (r *Resolver) BaseTag(dir string) (string, error) {
	if err := r.repo.FetchTags(dir); err != nil {
		return "", err
	}
	describe, err := r.repo.Describe(dir)
	if err != nil {
		return "", err
	}
	return ParseBaseTag(describe), nil
}
