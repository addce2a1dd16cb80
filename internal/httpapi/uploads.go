package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"templatefiller/internal/fault"
	"templatefiller/internal/logging"
	"templatefiller/internal/pipeline"
)

const (
	formFile       = "file"
	formCheckError = "check_error"
	formApostrophe = "apostrophe"
	formDialect    = "dialect"
)

// handleUpload serves the explicit check and nocheck endpoints.
func (s *Server) handleUpload(mode pipeline.Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.processUpload(w, r, func(*multipart.Form) pipeline.Mode { return mode })
	}
}

// handleNewLetter serves the combined form; check_error=on selects check mode.
func (s *Server) handleNewLetter(w http.ResponseWriter, r *http.Request) {
	s.processUpload(w, r, func(form *multipart.Form) pipeline.Mode {
		if formValue(form, formCheckError) == "on" {
			return pipeline.ModeCheck
		}
		return pipeline.ModeNocheck
	})
}

func (s *Server) processUpload(w http.ResponseWriter, r *http.Request, pickMode func(*multipart.Form) pipeline.Mode) {
	limit := s.cfg.Limits.MaxPayloadBytes + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			f := fault.Wrap(fault.PayloadTooLarge, "intake", "read request", "upload exceeds the configured payload limit", err)
			s.logRequestFault(r, f)
			s.reporter.WriteFault(w, "", f)
			return
		}
		s.reporter.WriteError(w, http.StatusBadRequest, "expected a multipart upload with a file field")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Debug("multipart cleanup failed", logging.Error(err))
		}
	}()

	file, header, err := r.FormFile(formFile)
	if err != nil {
		s.reporter.WriteError(w, http.StatusBadRequest, "no file part")
		return
	}
	defer file.Close()

	name := uploadName(header.Filename)
	if name == "" {
		s.reporter.WriteError(w, http.StatusBadRequest, "no selected file")
		return
	}
	if !strings.EqualFold(path.Ext(name), ".zip") {
		s.reporter.WriteError(w, http.StatusBadRequest, "only .zip uploads are accepted")
		return
	}

	specs := pipeline.PostProcessors(formValue(r.MultipartForm, formApostrophe), formValue(r.MultipartForm, formDialect))
	if err := s.pipeline.CheckPostProcessors(specs); err != nil {
		s.reporter.WriteError(w, http.StatusBadRequest, "invalid text option: "+err.Error())
		return
	}

	outcome := s.pipeline.Run(r.Context(), pipeline.Request{
		Mode:           pickMode(r.MultipartForm),
		FileName:       name,
		Body:           file,
		PostProcessors: specs,
	})
	s.reporter.Report(w, r, outcome)
}

// logRequestFault records a fault raised before a session exists.
func (s *Server) logRequestFault(r *http.Request, f *fault.Fault) {
	s.metrics.IncFault(string(f.Kind))
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "upload refused", "upload_refused",
		logging.String(logging.FieldErrorKind, string(f.Kind)),
		logging.String(logging.FieldStage, f.Stage),
		logging.String("op", f.Op),
		logging.String(logging.FieldErrorHint, pipeline.Hint(f.Kind)),
		logging.Strings("error_chain", fault.Chain(f)),
		logging.Strings("frames", f.Frames),
		logging.Error(f),
	)
}

// uploadName keeps only the final path element of a client-supplied name.
func uploadName(raw string) string {
	name := strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/"))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func formValue(form *multipart.Form, key string) string {
	if form == nil {
		return ""
	}
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
