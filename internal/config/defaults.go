package config

const (
	defaultAPIBind              = "127.0.0.1:5000"
	defaultUploadDir            = "~/.local/share/templatefiller/uploads"
	defaultWorkspaceDir         = "~/.local/share/templatefiller/workspaces"
	defaultDownloadDir          = "~/.local/share/templatefiller/downloads"
	defaultStateDir             = "~/.local/share/templatefiller"
	defaultLogDir               = "~/.local/share/templatefiller/logs"
	defaultSchemaPath           = "~/.config/templatefiller/schema.yaml"
	defaultMaxPayloadBytes      = 16 << 20
	defaultMaxDecompressedBytes = 256 << 20
	defaultMaxCompressionRatio  = 100
	defaultMaxEntries           = 10000
	defaultSweepInterval        = 600
	defaultWorkspaceMaxAge      = 3600
	defaultReadTimeout          = 60
	defaultWriteTimeout         = 120
	defaultShutdownTimeout      = 10
	defaultMetricsPath          = "/metrics"
	defaultS3Region             = "us-east-1"
)

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Fill policies.
const (
	PolicyFailFast   = "fail_fast"
	PolicyAccumulate = "accumulate"
)

// Diagnostic severities accepted for unexpected entries.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// DefaultIgnorePatterns lists archive members skipped during extraction.
func DefaultIgnorePatterns() []string {
	return []string{"__MACOSX/**", "**/.DS_Store"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir:    defaultUploadDir,
			WorkspaceDir: defaultWorkspaceDir,
			DownloadDir:  defaultDownloadDir,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Limits: Limits{
			MaxPayloadBytes:      defaultMaxPayloadBytes,
			MaxDecompressedBytes: defaultMaxDecompressedBytes,
			MaxCompressionRatio:  defaultMaxCompressionRatio,
			MaxEntries:           defaultMaxEntries,
		},
		Schema: Schema{Path: defaultSchemaPath},
		Pipeline: Pipeline{
			UnexpectedEntrySeverity: SeverityWarning,
			CheckFillPolicy:         PolicyAccumulate,
			NocheckFillPolicy:       PolicyFailFast,
			IgnorePatterns:          DefaultIgnorePatterns(),
		},
		Storage: Storage{
			Backend: BackendLocal,
			S3:      S3{Region: defaultS3Region},
		},
		Workspace: Workspace{
			SweepIntervalSeconds: defaultSweepInterval,
			MaxAgeSeconds:        defaultWorkspaceMaxAge,
		},
		Server: Server{
			ReadTimeoutSeconds:     defaultReadTimeout,
			WriteTimeoutSeconds:    defaultWriteTimeout,
			ShutdownTimeoutSeconds: defaultShutdownTimeout,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
		Metrics: Metrics{
			Enabled: true,
			Path:    defaultMetricsPath,
		},
	}
}
