package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// EnvConfigPath names the environment variable consulted when no explicit
// config path is given.
const EnvConfigPath = "TEMPLATE_FILLER_CONFIG"

// EnvDebug forces debug mode when set to a truthy value.
const EnvDebug = "TEMPLATE_FILLER_DEBUG"

// Paths contains store locations and the bind address.
type Paths struct {
	UploadDir    string `toml:"upload_dir"`
	WorkspaceDir string `toml:"workspace_dir"`
	DownloadDir  string `toml:"download_dir"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
}

// Limits bounds what an upload may cost.
type Limits struct {
	MaxPayloadBytes      int64   `toml:"max_payload_bytes"`
	MaxDecompressedBytes int64   `toml:"max_decompressed_bytes"`
	MaxCompressionRatio  float64 `toml:"max_compression_ratio"`
	MaxEntries           int     `toml:"max_entries"`
}

// Schema points at the template schema document.
type Schema struct {
	Path string `toml:"path"`
}

// Pipeline contains per-mode processing policy.
type Pipeline struct {
	UnexpectedEntrySeverity string   `toml:"unexpected_entry_severity"`
	CheckFillPolicy         string   `toml:"check_fill_policy"`
	NocheckFillPolicy       string   `toml:"nocheck_fill_policy"`
	IgnorePatterns          []string `toml:"ignore_patterns"`
}

// S3 contains settings for the S3 download backend.
type S3 struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	Prefix          string `toml:"prefix"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	UsePathStyle    bool   `toml:"use_path_style"`
}

// Storage selects where output archives are kept.
type Storage struct {
	Backend string `toml:"backend"`
	S3      S3     `toml:"s3"`
}

// Workspace controls the stale workspace sweeper.
type Workspace struct {
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
	MaxAgeSeconds        int `toml:"max_age_seconds"`
}

// Server contains HTTP timeouts.
type Server struct {
	ReadTimeoutSeconds     int `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `toml:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics toggles the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for the template filler.
//
// Configuration sections by subsystem:
//   - Paths: upload, workspace, and download stores plus state and logs
//   - Limits: payload and decompression ceilings
//   - Schema: template schema document location
//   - Pipeline: diagnostic severity and fill policies
//   - Storage: local or S3 output archive backend
//   - Workspace: stale workspace sweeping
//   - Server: HTTP timeouts
//   - Logging: log format and level
//   - Metrics: Prometheus exposition
type Config struct {
	Debug     bool      `toml:"debug"`
	Paths     Paths     `toml:"paths"`
	Limits    Limits    `toml:"limits"`
	Schema    Schema    `toml:"schema"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Storage   Storage   `toml:"storage"`
	Workspace Workspace `toml:"workspace"`
	Server    Server    `toml:"server"`
	Logging   Logging   `toml:"logging"`
	Metrics   Metrics   `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/templatefiller/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("templatefiller.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the local stores the service writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.UploadDir, c.Paths.WorkspaceDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Storage.Backend == BackendLocal {
		dirs = append(dirs, c.Paths.DownloadDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RecordsPath returns the sqlite database holding sessions and downloads.
func (c *Config) RecordsPath() string {
	return filepath.Join(c.Paths.StateDir, "records.db")
}

// SweepInterval returns how often stale workspaces are reclaimed.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Workspace.SweepIntervalSeconds) * time.Second
}

// WorkspaceMaxAge returns the age after which an unlocked workspace is stale.
func (c *Config) WorkspaceMaxAge() time.Duration {
	return time.Duration(c.Workspace.MaxAgeSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
// It refuses to replace an existing file.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	if _, err := file.WriteString(sampleConfig); err != nil {
		file.Close()
		return fmt.Errorf("write sample config: %w", err)
	}
	return file.Close()
}
