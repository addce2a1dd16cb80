package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateWorkspace(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.UploadDir == "" {
		return errors.New("paths.upload_dir must be set")
	}
	if c.Paths.WorkspaceDir == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Storage.Backend == BackendLocal && c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set for the local storage backend")
	}
	if c.Schema.Path == "" {
		return errors.New("schema.path must be set")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxPayloadBytes <= 0 {
		return errors.New("limits.max_payload_bytes must be positive")
	}
	if c.Limits.MaxDecompressedBytes <= 0 {
		return errors.New("limits.max_decompressed_bytes must be positive")
	}
	if c.Limits.MaxCompressionRatio < 1 {
		return errors.New("limits.max_compression_ratio must be at least 1")
	}
	if c.Limits.MaxEntries <= 0 {
		return errors.New("limits.max_entries must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.UnexpectedEntrySeverity {
	case SeverityError, SeverityWarning:
	default:
		return fmt.Errorf("pipeline.unexpected_entry_severity: unsupported value %q (want error or warning)", c.Pipeline.UnexpectedEntrySeverity)
	}
	for name, value := range map[string]string{
		"pipeline.check_fill_policy":   c.Pipeline.CheckFillPolicy,
		"pipeline.nocheck_fill_policy": c.Pipeline.NocheckFillPolicy,
	} {
		if value != PolicyFailFast && value != PolicyAccumulate {
			return fmt.Errorf("%s: unsupported value %q (want fail_fast or accumulate)", name, value)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		return nil
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket must be set when storage.backend is s3")
		}
		hasKey := c.Storage.S3.AccessKeyID != ""
		hasSecret := c.Storage.S3.SecretAccessKey != ""
		if hasKey != hasSecret {
			return errors.New("storage.s3.access_key_id and storage.s3.secret_access_key must be set together")
		}
		if c.Storage.S3.Endpoint != "" && !strings.HasPrefix(c.Storage.S3.Endpoint, "http://") && !strings.HasPrefix(c.Storage.S3.Endpoint, "https://") {
			return fmt.Errorf("storage.s3.endpoint must be an http(s) URL, got %q", c.Storage.S3.Endpoint)
		}
		return nil
	default:
		return fmt.Errorf("storage.backend: unsupported value %q (want local or s3)", c.Storage.Backend)
	}
}

func (c *Config) validateWorkspace() error {
	if c.Workspace.SweepIntervalSeconds < 0 {
		return errors.New("workspace.sweep_interval_seconds must be non-negative")
	}
	if c.Workspace.MaxAgeSeconds <= 0 {
		return errors.New("workspace.max_age_seconds must be positive")
	}
	if c.Server.ReadTimeoutSeconds <= 0 || c.Server.WriteTimeoutSeconds <= 0 {
		return errors.New("server timeouts must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
