// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "WOPICHUNK_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs against the host emulator.
	Development Environment = "development"
	// Staging is for runs against a pre-production WOPI host.
	Staging Environment = "staging"
	// Production is for runs against a production WOPI host.
	Production Environment = "production"
)

// Resource backend kinds.
const (
	ResourcesFS = "fs"
	ResourcesS3 = "s3"
)

// defaultMaxFrameSize matches the frame parser's default bound.
const defaultMaxFrameSize = 256 << 20

// maxFrameSizeLimit caps transfer.max_frame_size. Frames are buffered
// whole in memory.
const maxFrameSizeLimit = 4 << 30

// Config is the configuration for the wopichunk tools.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Host configures the WOPI host the client talks to.
	Host HostConfig `yaml:"host"`

	// Resources configures where Zip-chunked resources and their
	// offset indexes are read from.
	Resources ResourcesConfig `yaml:"resources"`

	// Transfer configures frame parsing and snapshot encoding.
	Transfer TransferConfig `yaml:"transfer"`

	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Host      *HostConfig      `yaml:"host,omitempty"`
	Resources *ResourcesConfig `yaml:"resources,omitempty"`
	Transfer  *TransferConfig  `yaml:"transfer,omitempty"`
	Log       *LogConfig       `yaml:"log,omitempty"`
}

// HostConfig configures the WOPI host connection.
type HostConfig struct {
	// URL is the host base URL. Requests go to
	// {url}/wopi/files/{id}/contents.
	// Default: http://localhost:8080
	URL string `yaml:"url"`

	// AccessToken is sent as the access_token query parameter.
	// Usually written as ${WOPI_ACCESS_TOKEN} so the file holds no
	// secret.
	AccessToken string `yaml:"access_token"`

	// Timeout bounds one request, as a Go duration.
	// Default: 30s
	Timeout string `yaml:"timeout"`
}

// ResourcesConfig configures the resource backend.
type ResourcesConfig struct {
	// Kind is "fs" or "s3".
	// Default: fs
	Kind string `yaml:"kind"`

	// Root is the directory for the fs backend.
	Root string `yaml:"root"`

	// Bucket, Prefix, and Region configure the s3 backend. An empty
	// Region defers to the AWS credential chain.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// TransferConfig configures frame handling.
type TransferConfig struct {
	// MaxFrameSize bounds the extended header plus payload of one
	// parsed frame, in bytes.
	// Default: 256 MiB
	MaxFrameSize uint64 `yaml:"max_frame_size"`

	// SnapshotCompression is "none", "lz4", or "zstd".
	// Default: zstd
	SnapshotCompression string `yaml:"snapshot_compression"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration, used as the base before
// the config file is applied.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Host: HostConfig{
			URL:     "http://localhost:8080",
			Timeout: "30s",
		},
		Resources: ResourcesConfig{
			Kind: ResourcesFS,
			Root: filepath.Join(homeDir, ".cache", "wopichunk", "resources"),
		},
		Transfer: TransferConfig{
			MaxFrameSize:        defaultMaxFrameSize,
			SnapshotCompression: "zstd",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the file named by WOPICHUNK_CONFIG.
// There is no fallback: if the variable is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your wopichunk.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${VAR} and ${VAR:-default} in string fields
// that name paths, URLs, or credentials.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Host != nil {
		overrideString(&c.Host.URL, overrides.Host.URL)
		overrideString(&c.Host.AccessToken, overrides.Host.AccessToken)
		overrideString(&c.Host.Timeout, overrides.Host.Timeout)
	}

	if overrides.Resources != nil {
		overrideString(&c.Resources.Kind, overrides.Resources.Kind)
		overrideString(&c.Resources.Root, overrides.Resources.Root)
		overrideString(&c.Resources.Bucket, overrides.Resources.Bucket)
		overrideString(&c.Resources.Prefix, overrides.Resources.Prefix)
		overrideString(&c.Resources.Region, overrides.Resources.Region)
	}

	if overrides.Transfer != nil {
		if overrides.Transfer.MaxFrameSize != 0 {
			c.Transfer.MaxFrameSize = overrides.Transfer.MaxFrameSize
		}
		overrideString(&c.Transfer.SnapshotCompression, overrides.Transfer.SnapshotCompression)
	}

	if overrides.Log != nil {
		overrideString(&c.Log.Level, overrides.Log.Level)
	}
}

func overrideString(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Host.URL = expandVars(c.Host.URL, vars)
	c.Host.AccessToken = expandVars(c.Host.AccessToken, vars)
	c.Resources.Root = expandVars(c.Resources.Root, vars)
	c.Resources.Bucket = expandVars(c.Resources.Bucket, vars)
	c.Resources.Prefix = expandVars(c.Resources.Prefix, vars)
	c.Resources.Region = expandVars(c.Resources.Region, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Host.URL == "" {
		errs = append(errs, errors.New("host.url is required"))
	} else if parsed, err := url.Parse(c.Host.URL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("host.url %q is not an absolute URL", c.Host.URL))
	}
	if _, err := c.Host.TimeoutDuration(); err != nil {
		errs = append(errs, err)
	}

	switch c.Resources.Kind {
	case ResourcesFS:
		if c.Resources.Root == "" {
			errs = append(errs, errors.New("resources.root is required for the fs backend"))
		}
	case ResourcesS3:
		if c.Resources.Bucket == "" {
			errs = append(errs, errors.New("resources.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("resources.kind must be one of: %v", []string{ResourcesFS, ResourcesS3}))
	}

	if c.Transfer.MaxFrameSize == 0 {
		errs = append(errs, errors.New("transfer.max_frame_size must be positive"))
	} else if c.Transfer.MaxFrameSize > maxFrameSizeLimit {
		errs = append(errs, fmt.Errorf("transfer.max_frame_size %d exceeds limit %d", c.Transfer.MaxFrameSize, uint64(maxFrameSizeLimit)))
	}
	compressions := []string{"none", "lz4", "zstd"}
	if !slices.Contains(compressions, c.Transfer.SnapshotCompression) {
		errs = append(errs, fmt.Errorf("transfer.snapshot_compression must be one of: %v", compressions))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (h HostConfig) TimeoutDuration() (time.Duration, error) {
	if h.Timeout == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(h.Timeout)
	if err != nil {
		return 0, fmt.Errorf("host.timeout: %w", err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("host.timeout %s is negative", h.Timeout)
	}
	return duration, nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
