package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeStorage()
	c.normalizeLogging()
	c.normalizeMetrics()
	if value, ok := os.LookupEnv(EnvDebug); ok {
		if enabled, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			c.Debug = enabled
		}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.upload_dir", &c.Paths.UploadDir},
		{"paths.workspace_dir", &c.Paths.WorkspaceDir},
		{"paths.download_dir", &c.Paths.DownloadDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"schema.path", &c.Schema.Path},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizePipeline() {
	c.Pipeline.UnexpectedEntrySeverity = strings.ToLower(strings.TrimSpace(c.Pipeline.UnexpectedEntrySeverity))
	if c.Pipeline.UnexpectedEntrySeverity == "" {
		c.Pipeline.UnexpectedEntrySeverity = SeverityWarning
	}
	c.Pipeline.CheckFillPolicy = normalizePolicy(c.Pipeline.CheckFillPolicy, PolicyAccumulate)
	c.Pipeline.NocheckFillPolicy = normalizePolicy(c.Pipeline.NocheckFillPolicy, PolicyFailFast)

	patterns := c.Pipeline.IgnorePatterns[:0]
	for _, pattern := range c.Pipeline.IgnorePatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Pipeline.IgnorePatterns = patterns
}

func normalizePolicy(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "-", "_")
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeStorage() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	s3 := &c.Storage.S3
	s3.Bucket = strings.TrimSpace(s3.Bucket)
	s3.Endpoint = strings.TrimSpace(s3.Endpoint)
	s3.Prefix = strings.Trim(strings.TrimSpace(s3.Prefix), "/")
	s3.Region = strings.TrimSpace(s3.Region)
	if s3.Region == "" {
		if value, ok := os.LookupEnv("AWS_REGION"); ok && strings.TrimSpace(value) != "" {
			s3.Region = strings.TrimSpace(value)
		} else {
			s3.Region = defaultS3Region
		}
	}
	if s3.AccessKeyID == "" {
		if value, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok {
			s3.AccessKeyID = strings.TrimSpace(value)
		}
	}
	if s3.SecretAccessKey == "" {
		if value, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok {
			s3.SecretAccessKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Path = strings.TrimSpace(c.Metrics.Path)
	if c.Metrics.Path == "" {
		c.Metrics.Path = defaultMetricsPath
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		c.Metrics.Path = "/" + c.Metrics.Path
	}
}
