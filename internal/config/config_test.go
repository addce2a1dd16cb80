package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"templatefiller/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvDebug, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(tempHome, ".config", "templatefiller", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	wantWorkspace := filepath.Join(tempHome, ".local", "share", "templatefiller", "workspaces")
	if cfg.Paths.WorkspaceDir != wantWorkspace {
		t.Fatalf("unexpected workspace dir: got %q want %q", cfg.Paths.WorkspaceDir, wantWorkspace)
	}
	if cfg.Paths.APIBind != "127.0.0.1:5000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Pipeline.CheckFillPolicy != config.PolicyAccumulate || cfg.Pipeline.NocheckFillPolicy != config.PolicyFailFast {
		t.Fatalf("unexpected fill policies: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.UnexpectedEntrySeverity != config.SeverityWarning {
		t.Fatalf("unexpected severity: %q", cfg.Pipeline.UnexpectedEntrySeverity)
	}
	if cfg.Storage.Backend != config.BackendLocal {
		t.Fatalf("unexpected backend: %q", cfg.Storage.Backend)
	}
	if cfg.Debug {
		t.Fatal("expected debug disabled by default")
	}
	if got := cfg.RecordsPath(); got != filepath.Join(tempHome, ".local", "share", "templatefiller", "records.db") {
		t.Fatalf("unexpected records path: %q", got)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvDebug, "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `debug = true

[paths]
upload_dir = "~/in"
download_dir = "~/out"
api_bind = " 0.0.0.0:8080 "

[limits]
max_payload_bytes = 1024

[pipeline]
unexpected_entry_severity = "ERROR"
nocheck_fill_policy = "accumulate"
ignore_patterns = ["  ", "tmp/**"]

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if !cfg.Debug {
		t.Fatal("expected debug from file")
	}
	if cfg.Paths.UploadDir != filepath.Join(tempHome, "in") {
		t.Fatalf("unexpected upload dir: %q", cfg.Paths.UploadDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:8080" {
		t.Fatalf("expected trimmed bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Limits.MaxPayloadBytes != 1024 {
		t.Fatalf("unexpected payload limit: %d", cfg.Limits.MaxPayloadBytes)
	}
	if cfg.Limits.MaxEntries != config.Default().Limits.MaxEntries {
		t.Fatalf("expected default entry limit, got %d", cfg.Limits.MaxEntries)
	}
	if cfg.Pipeline.UnexpectedEntrySeverity != config.SeverityError {
		t.Fatalf("unexpected severity: %q", cfg.Pipeline.UnexpectedEntrySeverity)
	}
	if cfg.Pipeline.NocheckFillPolicy != config.PolicyAccumulate {
		t.Fatalf("unexpected nocheck policy: %q", cfg.Pipeline.NocheckFillPolicy)
	}
	if len(cfg.Pipeline.IgnorePatterns) != 1 || cfg.Pipeline.IgnorePatterns[0] != "tmp/**" {
		t.Fatalf("unexpected ignore patterns: %v", cfg.Pipeline.IgnorePatterns)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadUsesEnvConfigPathAndDebug(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(configPath, []byte("[limits]\nmax_entries = 5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(config.EnvConfigPath, configPath)
	t.Setenv(config.EnvDebug, "1")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected env config, got %q exists=%v", resolved, exists)
	}
	if cfg.Limits.MaxEntries != 5 {
		t.Fatalf("unexpected max entries: %d", cfg.Limits.MaxEntries)
	}
	if !cfg.Debug {
		t.Fatal("expected debug forced by env")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nzip_dir = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "zip_dir") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateRejectsInvalidSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"payload", func(c *config.Config) { c.Limits.MaxPayloadBytes = 0 }, "max_payload_bytes"},
		{"ratio", func(c *config.Config) { c.Limits.MaxCompressionRatio = 0.5 }, "max_compression_ratio"},
		{"severity", func(c *config.Config) { c.Pipeline.UnexpectedEntrySeverity = "fatal" }, "unexpected_entry_severity"},
		{"policy", func(c *config.Config) { c.Pipeline.CheckFillPolicy = "sometimes" }, "check_fill_policy"},
		{"backend", func(c *config.Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"bucket", func(c *config.Config) { c.Storage.Backend = config.BackendS3 }, "bucket"},
		{"credentials", func(c *config.Config) {
			c.Storage.Backend = config.BackendS3
			c.Storage.S3.Bucket = "b"
			c.Storage.S3.AccessKeyID = "id"
		}, "secret_access_key"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.UploadDir = "/tmp/u"
			cfg.Paths.WorkspaceDir = "/tmp/w"
			cfg.Paths.DownloadDir = "/tmp/d"
			cfg.Paths.StateDir = "/tmp/s"
			cfg.Schema.Path = "/tmp/schema.yaml"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTripsAndRefusesOverwrite(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvDebug, "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected CreateSample to refuse an existing file")
	}
}

func TestEnsureDirectoriesCreatesLocalStores(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.WorkspaceDir = filepath.Join(base, "ws")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.WorkspaceDir, cfg.Paths.DownloadDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
