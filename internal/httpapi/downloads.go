package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"templatefiller/internal/logging"
	"templatefiller/internal/storage"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if storage.ValidateKey(id) != nil {
		s.reporter.WriteError(w, http.StatusNotFound, "download not found")
		return
	}
	record, err := s.records.GetDownload(r.Context(), id)
	if err != nil {
		s.logger.Error("download lookup failed", logging.String("output_id", id), logging.Error(err))
		s.reporter.WriteError(w, http.StatusInternalServerError, "download lookup failed")
		return
	}
	if record == nil {
		s.reporter.WriteError(w, http.StatusNotFound, "download not found")
		return
	}

	body, obj, err := s.downloads.Open(r.Context(), record.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			logging.WarnWithContext(s.logger, "recorded download missing from store", "download_blob_missing",
				logging.String("output_id", id),
				logging.String("backend", record.Backend),
				logging.String(logging.FieldImpact, "download returns 404"),
			)
			s.reporter.WriteError(w, http.StatusNotFound, "download not found")
			return
		}
		s.logger.Error("download open failed", logging.String("output_id", id), logging.Error(err))
		s.reporter.WriteError(w, http.StatusInternalServerError, "download unavailable")
		return
	}
	defer body.Close()

	size := obj.Size
	if size <= 0 {
		size = record.Size
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": id}))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("ETag", strconv.Quote(record.SHA256))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Debug("download stream interrupted", logging.String("output_id", id), logging.Error(err))
	}
}
