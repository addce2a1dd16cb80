package storage

import (
	"context"
	"fmt"

	"templatefiller/internal/config"
)

// NewDownloadStore builds the output archive store selected by cfg.
func NewDownloadStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return NewLocalStore(cfg.Paths.DownloadDir)
	case config.BackendS3:
		s3cfg := cfg.Storage.S3
		client, err := NewS3Client(ctx, S3Options{
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			UsePathStyle:    s3cfg.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, s3cfg.Bucket, s3cfg.Prefix)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
}

// NewUploadStore builds the store that holds raw uploads until extraction.
func NewUploadStore(cfg *config.Config) (Store, error) {
	return NewLocalStore(cfg.Paths.UploadDir)
}
