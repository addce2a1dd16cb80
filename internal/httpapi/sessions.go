package httpapi

import (
	"net/http"
	"time"

	"templatefiller/internal/logging"
)

// SessionResponse is the JSON view of a recorded session.
type SessionResponse struct {
	ID            string    `json:"id"`
	Mode          string    `json:"mode"`
	State         string    `json:"state"`
	UploadName    string    `json:"upload_name,omitempty"`
	Diagnostics   int       `json:"diagnostics"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OutputID      string    `json:"output_id,omitempty"`
	Download      string    `json:"download,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, err := s.records.GetSession(r.Context(), id)
	if err != nil {
		s.logger.Error("session lookup failed", logging.String(logging.FieldSessionID, id), logging.Error(err))
		s.reporter.WriteError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	if session == nil {
		s.reporter.WriteError(w, http.StatusNotFound, "session not found")
		return
	}

	resp := SessionResponse{
		ID:          session.ID,
		Mode:        session.Mode,
		State:       string(session.State),
		UploadName:  session.UploadName,
		Diagnostics: session.Diagnostics,
		ErrorKind:   session.ErrorKind,
		OutputID:    session.OutputID,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
	if session.OutputID != "" {
		resp.Download = DownloadPath(session.OutputID)
	}
	// Failure reasons embed internal error text.
	if s.cfg.Debug {
		resp.FailureReason = session.FailureReason
	}
	s.reporter.writeJSON(w, http.StatusOK, resp)
}
