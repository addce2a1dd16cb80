package testsupport

import (
	"path/filepath"
	"testing"

	"templatefiller/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspaces")
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = ""
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Schema.Path = filepath.Join(base, "schema.yaml")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMaxPayload sets the upload size ceiling.
func WithMaxPayload(bytes int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Limits.MaxPayloadBytes = bytes
	}
}

// WithMaxDecompressed sets the extraction budget.
func WithMaxDecompressed(bytes int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Limits.MaxDecompressedBytes = bytes
	}
}

// WithDebug toggles debug failure detail.
func WithDebug(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Debug = enabled
	}
}

// WithFillPolicies overrides the per-mode fill policies.
func WithFillPolicies(check, nocheck string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.CheckFillPolicy = check
		b.cfg.Pipeline.NocheckFillPolicy = nocheck
	}
}

// WithSchemaDocument writes doc to the configured schema path.
func WithSchemaDocument(doc string) ConfigOption {
	return func(b *configBuilder) {
		WriteFile(b.t, b.cfg.Schema.Path, []byte(doc))
	}
}

// BaseDir returns the root temp directory used by the builder.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
