// Package config loads the optional project configuration for release-deploy.
//
// The file lives in the project root and may be YAML or JSONC (JSON with
// comments). JSONC is stripped with github.com/tidwall/jsonc before being
// handed to encoding/json, the same way devcontainer-style files are read.
// A project without a config file runs with Default().
package config

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/release-deploy/internal/model"
)

// FileNames lists the config file names searched in the project root,
// in priority order.
var FileNames = []string{
	".release-deploy.yaml",
	".release-deploy.yml",
	".release-deploy.jsonc",
	".release-deploy.json",
}

// Config holds the settings used to build the clone command.
// Unset fields fall back to the values in Default().
type Config struct {
	// RemoteHost is the host part of the clone URL.
	RemoteHost string `yaml:"remoteHost" json:"remoteHost"`

	// TokenEnv names the environment variable holding the access token.
	TokenEnv string `yaml:"tokenEnv" json:"tokenEnv"`

	// RepositoryEnv names the environment variable holding "owner/name".
	RepositoryEnv string `yaml:"repositoryEnv" json:"repositoryEnv"`

	// TempDirPrefix is prepended to the template type to name the clone
	// directory inside the project root.
	TempDirPrefix string `yaml:"tempDirPrefix" json:"tempDirPrefix"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `yaml:"-" json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		RemoteHost:    "github.com",
		TokenEnv:      "GITHUB_TOKEN",
		RepositoryEnv: "GITHUB_REPOSITORY",
		TempDirPrefix: "tmp_deploy_",
	}
}

// Find returns the path of the first config file present in dir, or an
// empty string when there is none.
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Discover loads the config file found in dir, or returns Default() when
// the directory has none.
func Discover(dir string) (*Config, error) {
	path := Find(dir)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Load reads the config file at path. The format is chosen by extension:
// .yaml and .yml are YAML, anything else is treated as JSONC.
//
// Returns a CLIError with ExitConfigError on any read, parse or
// validation failure.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("failed to read config %s", path), err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// An empty document decodes to io.EOF; defaults apply.
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse config %s", path), err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse config %s", path), err)
		}
	}

	cfg.fillDefaults()
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigError,
			fmt.Sprintf("invalid config %s", path), err)
	}
	return cfg, nil
}

// fillDefaults restores defaults for fields a config file set to "".
func (c *Config) fillDefaults() {
	def := Default()
	if c.RemoteHost == "" {
		c.RemoteHost = def.RemoteHost
	}
	if c.TokenEnv == "" {
		c.TokenEnv = def.TokenEnv
	}
	if c.RepositoryEnv == "" {
		c.RepositoryEnv = def.RepositoryEnv
	}
	if c.TempDirPrefix == "" {
		c.TempDirPrefix = def.TempDirPrefix
	}
}

// Validate checks field values. The prefix must name a plain directory
// entry so the clone can never land outside the project root.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RemoteHost) == "" {
		return fmt.Errorf("remoteHost must not be empty")
	}
	if strings.ContainsAny(c.RemoteHost, "/@ ") {
		return fmt.Errorf("remoteHost %q must be a bare host name", c.RemoteHost)
	}
	if strings.TrimSpace(c.TokenEnv) == "" {
		return fmt.Errorf("tokenEnv must not be empty")
	}
	if strings.TrimSpace(c.RepositoryEnv) == "" {
		return fmt.Errorf("repositoryEnv must not be empty")
	}
	if c.TempDirPrefix == "" {
		return fmt.Errorf("tempDirPrefix must not be empty")
	}
	if strings.ContainsAny(c.TempDirPrefix, `/\`) || strings.Contains(c.TempDirPrefix, "..") {
		return fmt.Errorf("tempDirPrefix %q must not contain path separators or \"..\"", c.TempDirPrefix)
	}
	return nil
}

// Remote is the concrete clone target derived from the config and the
// process environment.
type Remote struct {
	// URL is the credential-free clone URL.
	URL string

	// Env carries the credentials for git. It is empty when no token is set.
	Env map[string]string
}

// Resolve builds the clone Remote using getenv (normally os.Getenv).
//
// Values are not validated: an unset repository is embedded as-is and
// the clone fails when git runs. The token never appears in the URL; it
// is passed through GIT_CONFIG_* variables as an extra HTTP header.
func (c *Config) Resolve(getenv func(string) string) Remote {
	repository := getenv(c.RepositoryEnv)
	token := getenv(c.TokenEnv)

	remote := Remote{URL: fmt.Sprintf("https://%s/%s.git", c.RemoteHost, repository)}
	if token == "" {
		return remote
	}

	// GIT_CONFIG_COUNT may already carry entries exported by the CI runner;
	// the header is appended after them so none are shadowed.
	n := inheritedConfigCount(getenv)
	basic := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	remote.Env = map[string]string{
		"GIT_CONFIG_COUNT": strconv.Itoa(n + 1),
	}
	remote.Env[fmt.Sprintf("GIT_CONFIG_KEY_%d", n)] = fmt.Sprintf("http.https://%s/.extraheader", c.RemoteHost)
	remote.Env[fmt.Sprintf("GIT_CONFIG_VALUE_%d", n)] = "AUTHORIZATION: basic " + basic
	return remote
}

// inheritedConfigCount returns the GIT_CONFIG_COUNT already present in the
// environment. A missing or malformed value counts as zero.
func inheritedConfigCount(getenv func(string) string) int {
	n, err := strconv.Atoi(strings.TrimSpace(getenv("GIT_CONFIG_COUNT")))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
