package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"templatefiller/internal/fault"
	"templatefiller/internal/logging"
	"templatefiller/internal/pipeline"
	"templatefiller/internal/validate"
)

// GenericFailureMessage is shown for faults when debug detail is off.
const GenericFailureMessage = "Check your uploaded file again"

// Reporter renders pipeline outcomes as HTTP responses.
type Reporter struct {
	Debug  bool
	Logger *slog.Logger
}

// FaultResponse is the body written for failed sessions.
type FaultResponse struct {
	Error     string       `json:"error"`
	Kind      fault.Kind   `json:"kind"`
	SessionID string       `json:"session_id,omitempty"`
	Detail    *FaultDetail `json:"detail,omitempty"`
}

// FaultDetail carries internals, included only in debug mode.
type FaultDetail struct {
	Message string   `json:"message"`
	Stage   string   `json:"stage,omitempty"`
	Op      string   `json:"op,omitempty"`
	Chain   []string `json:"chain,omitempty"`
	Frames  []string `json:"frames,omitempty"`
}

// ReportResponse is the body written for rejected check-mode sessions.
type ReportResponse struct {
	SessionID   string                `json:"session_id"`
	Mode        string                `json:"mode"`
	State       string                `json:"state"`
	Passed      bool                  `json:"passed"`
	Errors      int                   `json:"errors"`
	Diagnostics []validate.Diagnostic `json:"diagnostics"`
}

// ReadyResponse is the JSON body for successful sessions.
type ReadyResponse struct {
	SessionID   string                `json:"session_id"`
	Mode        string                `json:"mode"`
	OutputID    string                `json:"output_id"`
	Download    string                `json:"download"`
	SHA256      string                `json:"sha256"`
	Size        int64                 `json:"size"`
	Entries     []string              `json:"entries"`
	Diagnostics []validate.Diagnostic `json:"diagnostics"`
}

// StatusFor maps a fault kind to an HTTP status.
func StatusFor(kind fault.Kind) int {
	switch kind {
	case fault.PayloadTooLarge, fault.ArchiveTooLarge:
		return http.StatusRequestEntityTooLarge
	case fault.PathTraversal, fault.ExtractionFailure:
		return http.StatusBadRequest
	case fault.FillError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// DownloadPath is the URL a ready output is fetched from.
func DownloadPath(outputID string) string {
	return "/downloads/" + outputID
}

// Report writes outcome. Ready sessions redirect to the download unless the
// client asked for JSON.
func (rp Reporter) Report(w http.ResponseWriter, r *http.Request, outcome pipeline.Outcome) {
	switch {
	case outcome.Fault != nil:
		rp.WriteFault(w, outcome.Session.ID, outcome.Fault)
	case outcome.Output != nil:
		if wantsJSON(r) {
			rp.writeJSON(w, http.StatusCreated, ReadyResponse{
				SessionID:   outcome.Session.ID,
				Mode:        string(outcome.Session.Mode),
				OutputID:    outcome.Output.ID,
				Download:    DownloadPath(outcome.Output.ID),
				SHA256:      outcome.Output.SHA256,
				Size:        outcome.Output.Size,
				Entries:     outcome.Output.Entries,
				Diagnostics: nonNil(outcome.Diagnostics),
			})
			return
		}
		http.Redirect(w, r, DownloadPath(outcome.Output.ID), http.StatusSeeOther)
	default:
		errs := 0
		for _, d := range outcome.Diagnostics {
			if d.Severity == validate.SeverityError {
				errs++
			}
		}
		rp.writeJSON(w, http.StatusUnprocessableEntity, ReportResponse{
			SessionID:   outcome.Session.ID,
			Mode:        string(outcome.Session.Mode),
			State:       string(outcome.Session.State),
			Passed:      errs == 0,
			Errors:      errs,
			Diagnostics: nonNil(outcome.Diagnostics),
		})
	}
}

// WriteFault renders f, with internals only in debug mode.
func (rp Reporter) WriteFault(w http.ResponseWriter, sessionID string, f *fault.Fault) {
	body := FaultResponse{
		Error:     GenericFailureMessage,
		Kind:      f.Kind,
		SessionID: sessionID,
	}
	if rp.Debug {
		body.Error = f.Error()
		body.Detail = &FaultDetail{
			Message: f.Message,
			Stage:   f.Stage,
			Op:      f.Op,
			Chain:   fault.Chain(f),
			Frames:  f.Frames,
		}
	}
	rp.writeJSON(w, StatusFor(f.Kind), body)
}

// WriteError renders a request-level problem that never reached the pipeline.
func (rp Reporter) WriteError(w http.ResponseWriter, status int, message string) {
	rp.writeJSON(w, status, map[string]string{"error": message})
}

func (rp Reporter) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		rp.log().Error("failed to encode response", logging.Error(err))
	}
}

func (rp Reporter) log() *slog.Logger {
	if rp.Logger != nil {
		return rp.Logger
	}
	return logging.NewNop()
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func nonNil(diags []validate.Diagnostic) []validate.Diagnostic {
	if diags == nil {
		return []validate.Diagnostic{}
	}
	return diags
}
