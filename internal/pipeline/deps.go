package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"templatefiller/internal/archive"
	"templatefiller/internal/config"
	"templatefiller/internal/fault"
	"templatefiller/internal/fill"
	"templatefiller/internal/metrics"
	"templatefiller/internal/records"
	"templatefiller/internal/schema"
	"templatefiller/internal/storage"
)

// Deps are the collaborators a Pipeline shares across sessions. None of
// them carry per-session state.
type Deps struct {
	Config    *config.Config
	Schema    *schema.Schema
	Extractor *archive.Extractor
	Engine    *fill.Engine
	Uploads   storage.Store
	Downloads storage.Store
	Records   *records.Store
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// NewDeps loads the schema against the built-in fill registry and opens the
// configured stores. Schema and limit problems surface as ConfigError faults.
func NewDeps(ctx context.Context, cfg *config.Config, recs *records.Store, recorder metrics.Recorder, logger *slog.Logger) (Deps, error) {
	if cfg == nil {
		return Deps{}, errors.New("pipeline deps: config is required")
	}
	registry := fill.Builtins()
	tmpl, err := schema.Load(cfg.Schema.Path, registry)
	if err != nil {
		return Deps{}, err
	}
	extractor, err := archive.NewExtractor(archive.Limits{
		MaxDecompressedBytes: cfg.Limits.MaxDecompressedBytes,
		MaxCompressionRatio:  cfg.Limits.MaxCompressionRatio,
		MaxEntries:           cfg.Limits.MaxEntries,
	}, cfg.Pipeline.IgnorePatterns)
	if err != nil {
		return Deps{}, fault.Wrap(fault.ConfigError, "startup", "extractor", "invalid extraction limits", err)
	}
	uploads, err := storage.NewUploadStore(cfg)
	if err != nil {
		return Deps{}, fault.Wrap(fault.ConfigError, "startup", "upload store", "open upload store", err)
	}
	downloads, err := storage.NewDownloadStore(ctx, cfg)
	if err != nil {
		return Deps{}, fault.Wrap(fault.ConfigError, "startup", "download store", "open download store", err)
	}
	return Deps{
		Config:    cfg,
		Schema:    tmpl,
		Extractor: extractor,
		Engine:    fill.NewEngine(registry),
		Uploads:   uploads,
		Downloads: downloads,
		Records:   recs,
		Metrics:   recorder,
		Logger:    logger,
	}, nil
}
