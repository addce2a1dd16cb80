package preflight

import (
	"context"

	"templatefiller/internal/config"
	"templatefiller/internal/storage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes every check that applies to cfg. The download store is
// probed through downloads when it is non-nil.
func RunAll(ctx context.Context, cfg *config.Config, downloads storage.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Storage.Backend == config.BackendLocal {
		results = append(results, CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir))
	}
	results = append(results, CheckSchema(cfg.Schema.Path))
	results = append(results, CheckRecords(ctx, cfg.RecordsPath()))
	if downloads != nil {
		results = append(results, CheckStore(ctx, "Download store", downloads))
	}
	return results
}
