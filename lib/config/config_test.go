// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "wopichunk.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Resources.Kind != ResourcesFS {
		t.Errorf("expected resources.kind=fs, got %s", cfg.Resources.Kind)
	}
	if cfg.Transfer.MaxFrameSize != 256<<20 {
		t.Errorf("expected max_frame_size=256MiB, got %d", cfg.Transfer.MaxFrameSize)
	}
	if cfg.Transfer.SnapshotCompression != "zstd" {
		t.Errorf("expected snapshot_compression=zstd, got %s", cfg.Transfer.SnapshotCompression)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when WOPICHUNK_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "WOPICHUNK_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
host:
  url: https://wopi.staging.example
`)
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Host.URL != "https://wopi.staging.example" {
		t.Errorf("expected host.url from file, got %s", cfg.Host.URL)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: development

host:
  url: http://127.0.0.1:9000
  timeout: 5s

resources:
  kind: s3
  bucket: documents
  prefix: tenant-a
  region: us-west-2

transfer:
  max_frame_size: 1048576
  snapshot_compression: lz4

log:
  level: debug
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Host.URL != "http://127.0.0.1:9000" {
		t.Errorf("expected host.url=http://127.0.0.1:9000, got %s", cfg.Host.URL)
	}
	if timeout, _ := cfg.Host.TimeoutDuration(); timeout != 5*time.Second {
		t.Errorf("expected timeout=5s, got %s", timeout)
	}
	if cfg.Resources.Kind != ResourcesS3 || cfg.Resources.Bucket != "documents" || cfg.Resources.Prefix != "tenant-a" {
		t.Errorf("unexpected resources section: %+v", cfg.Resources)
	}
	if cfg.Transfer.MaxFrameSize != 1<<20 {
		t.Errorf("expected max_frame_size=1MiB, got %d", cfg.Transfer.MaxFrameSize)
	}
	if cfg.Transfer.SnapshotCompression != "lz4" {
		t.Errorf("expected snapshot_compression=lz4, got %s", cfg.Transfer.SnapshotCompression)
	}
	if level, _ := cfg.Log.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("expected level=debug, got %s", level)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFile(writeConfig(t, "host: [not, a, map")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

host:
  url: http://localhost:8080

resources:
  root: /default/resources

production:
  host:
    url: https://wopi.example
    timeout: 2m
  resources:
    root: /prod/resources
  transfer:
    snapshot_compression: none
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Host.URL != "https://wopi.example" {
		t.Errorf("expected host.url=https://wopi.example, got %s", cfg.Host.URL)
	}
	if cfg.Host.Timeout != "2m" {
		t.Errorf("expected timeout=2m, got %s", cfg.Host.Timeout)
	}
	if cfg.Resources.Root != "/prod/resources" {
		t.Errorf("expected root=/prod/resources, got %s", cfg.Resources.Root)
	}
	if cfg.Transfer.SnapshotCompression != "none" {
		t.Errorf("expected snapshot_compression=none, got %s", cfg.Transfer.SnapshotCompression)
	}
	// Unset override fields keep their base values.
	if cfg.Log.Level != "info" {
		t.Errorf("expected level=info, got %s", cfg.Log.Level)
	}
}

func TestProductionDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level=warn for production without overrides, got %s", cfg.Log.Level)
	}
}

func TestOtherEnvironmentSectionIgnored(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
environment: development
staging:
  host:
    url: https://wopi.staging.example
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Host.URL != "http://localhost:8080" {
		t.Errorf("staging section applied in development: host.url=%s", cfg.Host.URL)
	}
}

func TestAccessTokenExpansion(t *testing.T) {
	t.Setenv("WOPICHUNK_TEST_TOKEN", "secret-token")

	cfg, err := LoadFile(writeConfig(t, `
host:
  access_token: ${WOPICHUNK_TEST_TOKEN}
resources:
  root: ${WOPICHUNK_TEST_UNSET:-/srv/resources}
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Host.AccessToken != "secret-token" {
		t.Errorf("expected expanded access token, got %q", cfg.Host.AccessToken)
	}
	if cfg.Resources.Root != "/srv/resources" {
		t.Errorf("expected default root, got %q", cfg.Resources.Root)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("WOPICHUNK_HOST_URL", "http://env.example")

	cfg, err := LoadFile(writeConfig(t, "host:\n  url: http://file.example\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Host.URL != "http://file.example" {
		t.Errorf("expected host.url from file, got %s (env vars should not override)", cfg.Host.URL)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/wopichunk",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/wopichunk",
		},
		{
			input:    "${WOPICHUNK_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "invalid" },
			wantErr: "invalid environment",
		},
		{
			name:    "relative host url",
			modify:  func(c *Config) { c.Host.URL = "wopi/files" },
			wantErr: "not an absolute URL",
		},
		{
			name:    "bad timeout",
			modify:  func(c *Config) { c.Host.Timeout = "soon" },
			wantErr: "host.timeout",
		},
		{
			name:    "unknown resource kind",
			modify:  func(c *Config) { c.Resources.Kind = "ftp" },
			wantErr: "resources.kind",
		},
		{
			name:    "s3 without bucket",
			modify:  func(c *Config) { c.Resources.Kind = ResourcesS3 },
			wantErr: "resources.bucket",
		},
		{
			name:    "zero max frame size",
			modify:  func(c *Config) { c.Transfer.MaxFrameSize = 0 },
			wantErr: "max_frame_size",
		},
		{
			name:    "unbounded max frame size",
			modify:  func(c *Config) { c.Transfer.MaxFrameSize = 1<<64 - 1 },
			wantErr: "max_frame_size",
		},
		{
			name:    "unknown compression",
			modify:  func(c *Config) { c.Transfer.SnapshotCompression = "gzip" },
			wantErr: "snapshot_compression",
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Host.URL = ""
	cfg.Transfer.SnapshotCompression = "gzip"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"host.url is required", "snapshot_compression"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
