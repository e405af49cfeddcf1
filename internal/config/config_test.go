package config

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/release-deploy/internal/model"
)

// writeConfig writes content to name inside a fresh directory and returns
// the directory.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	return dir
}

func TestDiscover_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	dir := writeConfig(t, ".release-deploy.yaml", `
remoteHost: git.example.com
tokenEnv: CI_TOKEN
tempDirPrefix: deploy-
`)
	cfg, err := Discover(dir)
	require.NoError(t, err)

	assert.Equal(t, "git.example.com", cfg.RemoteHost)
	assert.Equal(t, "CI_TOKEN", cfg.TokenEnv)
	assert.Equal(t, "GITHUB_REPOSITORY", cfg.RepositoryEnv, "unset fields keep defaults")
	assert.Equal(t, "deploy-", cfg.TempDirPrefix)
	assert.Equal(t, filepath.Join(dir, ".release-deploy.yaml"), cfg.Path)
}

func TestLoad_EmptyYAMLUsesDefaults(t *testing.T) {
	dir := writeConfig(t, ".release-deploy.yml", "")
	cfg, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, "github.com", cfg.RemoteHost)
}

func TestLoad_JSONCWithComments(t *testing.T) {
	dir := writeConfig(t, ".release-deploy.jsonc", `{
  // self-hosted forge
  "remoteHost": "forge.internal",
  /* repository comes from the CI runner */
  "repositoryEnv": "CI_REPOSITORY",
}`)
	cfg, err := Discover(dir)
	require.NoError(t, err)

	assert.Equal(t, "forge.internal", cfg.RemoteHost)
	assert.Equal(t, "CI_REPOSITORY", cfg.RepositoryEnv)
	assert.Equal(t, "GITHUB_TOKEN", cfg.TokenEnv)
}

func TestFind_PriorityOrder(t *testing.T) {
	dir := writeConfig(t, ".release-deploy.json", `{}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".release-deploy.yaml"), []byte("{}"), 0644))

	assert.Equal(t, filepath.Join(dir, ".release-deploy.yaml"), Find(dir))
	assert.Equal(t, "", Find(t.TempDir()))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantMsg string
	}{
		{"unknown yaml key", ".release-deploy.yaml", "branches:\n  report: main\n", "failed to parse"},
		{"malformed yaml", ".release-deploy.yaml", "remoteHost: [\n", "failed to parse"},
		{"unknown json key", ".release-deploy.json", `{"branches": {}}`, "failed to parse"},
		{"host with path", ".release-deploy.yaml", "remoteHost: github.com/evil\n", "invalid config"},
		{"prefix escapes root", ".release-deploy.yaml", "tempDirPrefix: ../out_\n", "invalid config"},
		{"prefix with separator", ".release-deploy.json", `{"tempDirPrefix": "a/b"}`, "invalid config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.file, tt.content)
			_, err := Discover(dir)
			require.Error(t, err)

			var cliErr *model.CLIError
			require.True(t, errors.As(err, &cliErr))
			assert.Equal(t, model.ExitConfigError, cliErr.Code)
			assert.Contains(t, cliErr.Message, tt.wantMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitConfigError, cliErr.Code)
}

func TestResolve_WithToken(t *testing.T) {
	env := map[string]string{"GITHUB_TOKEN": "tok123", "GITHUB_REPOSITORY": "acme/templates"}
	remote := Default().Resolve(func(k string) string { return env[k] })

	assert.Equal(t, "https://github.com/acme/templates.git", remote.URL)
	assert.NotContains(t, remote.URL, "tok123", "the token must never be part of the URL")

	require.Len(t, remote.Env, 3)
	assert.Equal(t, "1", remote.Env["GIT_CONFIG_COUNT"])
	assert.Equal(t, "http.https://github.com/.extraheader", remote.Env["GIT_CONFIG_KEY_0"])

	value := remote.Env["GIT_CONFIG_VALUE_0"]
	require.True(t, strings.HasPrefix(value, "AUTHORIZATION: basic "))
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "AUTHORIZATION: basic "))
	require.NoError(t, err)
	assert.Equal(t, "x-access-token:tok123", string(decoded))
}

// TestResolve_AppendsToInheritedGitConfig verifies that GIT_CONFIG_*
// entries exported by the environment stay in effect next to the header.
func TestResolve_AppendsToInheritedGitConfig(t *testing.T) {
	env := map[string]string{
		"GITHUB_TOKEN":       "tok123",
		"GITHUB_REPOSITORY":  "acme/templates",
		"GIT_CONFIG_COUNT":   "2",
		"GIT_CONFIG_KEY_0":   "safe.directory",
		"GIT_CONFIG_VALUE_0": "*",
		"GIT_CONFIG_KEY_1":   "core.autocrlf",
		"GIT_CONFIG_VALUE_1": "false",
	}
	remote := Default().Resolve(func(k string) string { return env[k] })

	require.Len(t, remote.Env, 3)
	assert.Equal(t, "3", remote.Env["GIT_CONFIG_COUNT"])
	assert.Equal(t, "http.https://github.com/.extraheader", remote.Env["GIT_CONFIG_KEY_2"])
	assert.True(t, strings.HasPrefix(remote.Env["GIT_CONFIG_VALUE_2"], "AUTHORIZATION: basic "))
	assert.NotContains(t, remote.Env, "GIT_CONFIG_KEY_0", "inherited entries are left untouched")
}

func TestInheritedConfigCount(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 0},
		{"0", 0},
		{"4", 4},
		{" 2 ", 2},
		{"-1", 0},
		{"many", 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := inheritedConfigCount(func(string) string { return tt.value })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UnsetValuesAreEmbeddedAsIs(t *testing.T) {
	remote := Default().Resolve(func(string) string { return "" })

	assert.Equal(t, "https://github.com/.git", remote.URL)
	assert.Empty(t, remote.Env)
}
