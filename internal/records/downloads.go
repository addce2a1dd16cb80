package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const downloadColumns = "output_id, session_id, backend, storage_key, size, sha256, created_at"

// InsertDownload records a published archive. Output ids are never reused.
func (s *Store) InsertDownload(ctx context.Context, d Download) (*Download, error) {
	if strings.TrimSpace(d.OutputID) == "" {
		return nil, errors.New("output id is required")
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO downloads (`+downloadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.OutputID, d.SessionID, d.Backend, d.StorageKey, d.Size, d.SHA256, formatTime(d.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOutput, d.OutputID)
		}
		return nil, fmt.Errorf("insert download: %w", err)
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return &d, nil
}

// GetDownload returns the record for outputID, or nil when none exists.
func (s *Store) GetDownload(ctx context.Context, outputID string) (*Download, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+downloadColumns+` FROM downloads WHERE output_id = ?`, outputID)
	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download: %w", err)
	}
	return d, nil
}

// ListDownloads returns download records newest first. A zero limit returns all.
func (s *Store) ListDownloads(ctx context.Context, limit int) ([]*Download, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads ORDER BY created_at DESC, output_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

func scanDownload(scanner interface{ Scan(dest ...any) error }) (*Download, error) {
	var (
		d          Download
		createdRaw string
	)
	if err := scanner.Scan(&d.OutputID, &d.SessionID, &d.Backend, &d.StorageKey, &d.Size, &d.SHA256, &createdRaw); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		d.CreatedAt = created
	}
	return &d, nil
}
