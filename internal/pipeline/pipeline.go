package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"templatefiller/internal/archive"
	"templatefiller/internal/fault"
	"templatefiller/internal/fill"
	"templatefiller/internal/logging"
	"templatefiller/internal/metrics"
	"templatefiller/internal/packaging"
	"templatefiller/internal/records"
	"templatefiller/internal/schema"
	"templatefiller/internal/staging"
	"templatefiller/internal/validate"
)

const (
	stageIntake   = "intake"
	stageValidate = "validate"
	stageFill     = "fill"
	stagePackage  = "package"
)

// Pipeline runs sessions against a fixed set of dependencies.
type Pipeline struct {
	deps       Deps
	logger     *slog.Logger
	metrics    metrics.Recorder
	unexpected validate.Severity
	policies   map[Mode]fill.Policy
}

// New validates deps and resolves the configured policies.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("pipeline: config is required")
	case deps.Schema == nil:
		return nil, errors.New("pipeline: schema is required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor is required")
	case deps.Engine == nil:
		return nil, errors.New("pipeline: fill engine is required")
	case deps.Uploads == nil || deps.Downloads == nil:
		return nil, errors.New("pipeline: upload and download stores are required")
	case deps.Records == nil:
		return nil, errors.New("pipeline: records store is required")
	}

	severity, err := validate.ParseSeverity(deps.Config.Pipeline.UnexpectedEntrySeverity)
	if err != nil {
		return nil, fault.Wrap(fault.ConfigError, "startup", "pipeline", "invalid unexpected entry severity", err)
	}
	checkPolicy, err := fill.ParsePolicy(deps.Config.Pipeline.CheckFillPolicy)
	if err != nil {
		return nil, fault.Wrap(fault.ConfigError, "startup", "pipeline", "invalid check fill policy", err)
	}
	nocheckPolicy, err := fill.ParsePolicy(deps.Config.Pipeline.NocheckFillPolicy)
	if err != nil {
		return nil, fault.Wrap(fault.ConfigError, "startup", "pipeline", "invalid nocheck fill policy", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Pipeline{
		deps:       deps,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
		metrics:    recorder,
		unexpected: severity,
		policies: map[Mode]fill.Policy{
			ModeCheck:   checkPolicy,
			ModeNocheck: nocheckPolicy,
		},
	}, nil
}

// Deps returns the pipeline's collaborators.
func (p *Pipeline) Deps() Deps {
	return p.deps
}

// CheckPostProcessors reports the first request rule the fill registry
// would refuse, so callers can reject bad input before a session exists.
func (p *Pipeline) CheckPostProcessors(specs []schema.FillSpec) error {
	registry := p.deps.Engine.Registry()
	for _, spec := range specs {
		if err := registry.Check(spec.Name, spec.Params); err != nil {
			return err
		}
	}
	return nil
}

// Run processes one upload to a terminal state.
func (p *Pipeline) Run(ctx context.Context, req Request) Outcome {
	started := time.Now()
	id := uuid.NewString()
	ctx = logging.WithSessionID(ctx, id)

	run := &sessionRun{
		p:      p,
		id:     id,
		req:    req,
		logger: logging.WithContext(ctx, p.logger).With(logging.Args(logging.String(logging.FieldMode, string(req.Mode)))...),
	}
	outcome := run.execute(ctx)

	p.metrics.ObserveSession(string(req.Mode), outcome.Label(), time.Since(started))
	for _, d := range outcome.Diagnostics {
		p.metrics.AddDiagnostics(string(d.Kind), string(d.Severity), 1)
	}
	run.logger.Info(
		"session finished",
		logging.String(logging.FieldEventType, "session_complete"),
		logging.String("outcome", outcome.Label()),
		logging.Int("diagnostics", len(outcome.Diagnostics)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return outcome
}

type sessionRun struct {
	p      *Pipeline
	id     string
	req    Request
	logger *slog.Logger
	state  State
	report validate.Report
}

func (r *sessionRun) execute(ctx context.Context) Outcome {
	p := r.p
	mode, err := ParseMode(string(r.req.Mode))
	if err != nil {
		return r.fail(ctx, fault.Wrap(fault.ConfigError, stageIntake, "mode", "unsupported upload mode", err))
	}
	r.req.Mode = mode
	if _, err := p.deps.Records.CreateSession(ctx, r.id, string(r.req.Mode), r.req.FileName); err != nil {
		return r.fail(ctx, fault.Wrap(fault.IOFailure, stageIntake, "record session", "could not record session", err))
	}
	r.state = StateReceived
	r.logger.Info("session received",
		logging.String(logging.FieldEventType, "session_start"),
		logging.String("upload_name", r.req.FileName),
	)

	ws, err := staging.Create(p.deps.Config.Paths.WorkspaceDir, r.id)
	if err != nil {
		return r.fail(ctx, fault.Wrap(fault.IOFailure, stageIntake, "workspace", "could not create workspace", err))
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logging.WarnWithContext(r.logger, "workspace release failed", "workspace_release_failed",
				logging.String("workspace", ws.Root),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the stale workspace sweeper will reclaim it"),
				logging.String(logging.FieldImpact, "disk space held until the next sweep"),
			)
		}
	}()

	var entries []archive.Entry
	if err := r.stage(ctx, stageIntake, func(ctx context.Context) error {
		entries, err = r.intake(ctx, ws)
		return err
	}); err != nil {
		return r.fail(ctx, fault.As(err, stageIntake))
	}
	if err := r.transition(ctx, StateExtracted, records.Detail{}); err != nil {
		return r.fail(ctx, fault.As(err, stageIntake))
	}

	if r.req.Mode == ModeCheck {
		_ = r.stage(ctx, stageValidate, func(context.Context) error {
			r.report = validate.Run(entries, p.deps.Schema, validate.Options{UnexpectedSeverity: p.unexpected})
			return nil
		})
		if err := r.transition(ctx, StateValidated, records.Detail{Diagnostics: len(r.report.Diagnostics)}); err != nil {
			return r.fail(ctx, fault.As(err, stageValidate))
		}
	}

	var results []fill.Result
	if err := r.stage(ctx, stageFill, func(ctx context.Context) error {
		var failures []fill.Failure
		results, failures, err = p.deps.Engine.Apply(ctx, entries, p.deps.Schema, fill.Options{
			Policy:         p.policies[r.req.Mode],
			PostProcessors: r.req.PostProcessors,
		})
		if err != nil {
			return err
		}
		if len(failures) == 0 {
			return nil
		}
		if r.req.Mode == ModeCheck {
			r.report.Add(fillDiagnostics(failures)...)
			return nil
		}
		return fault.Wrap(fault.FillError, stageFill, "apply", summarizeFailures(failures), joinFailures(failures))
	}); err != nil {
		return r.fail(ctx, fault.As(err, stageFill))
	}

	if r.req.Mode == ModeCheck && !r.report.Passed() {
		return r.reject(ctx)
	}
	if err := r.transition(ctx, StateFilled, records.Detail{Diagnostics: len(r.report.Diagnostics)}); err != nil {
		return r.fail(ctx, fault.As(err, stageFill))
	}

	var output *packaging.Output
	if err := r.stage(ctx, stagePackage, func(ctx context.Context) error {
		built, err := packaging.Build(results)
		if err != nil {
			return err
		}
		output, err = packaging.Publish(ctx, p.deps.Downloads, p.deps.Records, r.id, r.req.FileName, built)
		return err
	}); err != nil {
		return r.fail(ctx, fault.As(err, stagePackage))
	}
	p.metrics.AddBytes("out", output.Size)

	if err := r.transition(ctx, StatePackaged, records.Detail{OutputID: output.ID}); err != nil {
		return r.fail(ctx, fault.As(err, stagePackage))
	}
	if err := r.transition(ctx, StateReady, records.Detail{}); err != nil {
		return r.fail(ctx, fault.As(err, stagePackage))
	}
	return Outcome{
		Session:     r.session(),
		Diagnostics: r.report.Diagnostics,
		Output:      output,
	}
}

// intake reads the payload, keeps the raw upload in the upload store while
// extraction runs, and unpacks it into the workspace.
func (r *sessionRun) intake(ctx context.Context, ws *staging.Workspace) ([]archive.Entry, error) {
	p := r.p
	body := r.req.Body
	if body == nil {
		body = bytes.NewReader(nil)
	}
	payload, err := archive.ReadPayload(body, p.deps.Config.Limits.MaxPayloadBytes)
	if err != nil {
		return nil, err
	}
	p.metrics.AddBytes("in", int64(len(payload)))

	key := UploadKey(time.Now(), r.id, r.req.FileName)
	if err := p.deps.Uploads.Put(ctx, key, payload); err != nil {
		return nil, fault.Wrap(fault.IOFailure, stageIntake, "stash upload", "could not store upload", err)
	}
	defer func() {
		if err := p.deps.Uploads.Delete(context.WithoutCancel(ctx), key); err != nil {
			logging.WarnWithContext(r.logger, "upload cleanup failed", "upload_cleanup_failed",
				logging.String("upload_key", key),
				logging.Error(err),
			)
		}
	}()

	entries, err := p.deps.Extractor.Extract(ctx, payload, ws)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("archive extracted", logging.Int("entries", len(entries)))
	return entries, nil
}

// UploadKey names a stashed upload: unix time, session id, then the
// sanitized upload name.
func UploadKey(now time.Time, sessionID, uploadName string) string {
	return fmt.Sprintf("%d_%s_%s.zip", now.Unix(), sessionID, packaging.Stem(uploadName))
}

func (r *sessionRun) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	stageCtx := logging.WithStage(ctx, name)
	logger := r.logger.With(logging.Args(logging.String(logging.FieldStage, name))...)
	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(started)
	r.p.metrics.ObserveStage(name, elapsed)
	if err != nil {
		return err
	}
	logger.Debug("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed),
	)
	return nil
}

func (r *sessionRun) transition(ctx context.Context, state State, detail records.Detail) error {
	if err := r.p.deps.Records.Transition(ctx, r.id, state, detail); err != nil {
		return fault.Wrap(fault.IOFailure, string(state), "record transition", "could not persist session state", err)
	}
	r.state = state
	r.logger.Info("session transition",
		logging.String(logging.FieldEventType, "session_transition"),
		logging.String("state", string(state)),
	)
	return nil
}

func (r *sessionRun) session() Session {
	return Session{ID: r.id, Mode: r.req.Mode, State: r.state}
}

func (r *sessionRun) reject(ctx context.Context) Outcome {
	errs := r.report.Errors()
	reason := fmt.Sprintf("%d error diagnostic(s)", errs)
	if err := r.p.deps.Records.Transition(context.WithoutCancel(ctx), r.id, StateRejected, records.Detail{
		Diagnostics:   len(r.report.Diagnostics),
		FailureReason: reason,
	}); err != nil {
		logging.WarnWithContext(r.logger, "could not persist rejection", "session_record_failed", logging.Error(err))
	}
	r.state = StateRejected
	r.logger.Info("session rejected",
		logging.String(logging.FieldEventType, "session_rejected"),
		logging.Int("errors", errs),
		logging.Int("diagnostics", len(r.report.Diagnostics)),
	)
	return Outcome{Session: r.session(), Diagnostics: r.report.Diagnostics}
}

// fail records the fault with full detail. Callers decide what to reveal.
func (r *sessionRun) fail(ctx context.Context, f *fault.Fault) Outcome {
	r.p.metrics.IncFault(string(f.Kind))
	logging.ErrorWithContext(r.logger, "session failed", "session_failure",
		logging.String(logging.FieldErrorKind, string(f.Kind)),
		logging.String(logging.FieldStage, f.Stage),
		logging.String("op", f.Op),
		logging.String(logging.FieldErrorHint, Hint(f.Kind)),
		logging.Strings("error_chain", fault.Chain(f)),
		logging.Strings("frames", f.Frames),
		logging.Error(f),
	)
	if r.state != "" {
		if err := r.p.deps.Records.Transition(context.WithoutCancel(ctx), r.id, StateFailed, records.Detail{
			Diagnostics:   len(r.report.Diagnostics),
			ErrorKind:     string(f.Kind),
			FailureReason: f.Error(),
		}); err != nil {
			logging.WarnWithContext(r.logger, "could not persist failure", "session_record_failed", logging.Error(err))
		}
	}
	r.state = StateFailed
	return Outcome{Session: r.session(), Diagnostics: r.report.Diagnostics, Fault: f}
}

func fillDiagnostics(failures []fill.Failure) []validate.Diagnostic {
	diags := make([]validate.Diagnostic, 0, len(failures))
	for _, failure := range failures {
		message := failure.Message
		if failure.Rule != "" {
			message = failure.Rule + ": " + message
		}
		diags = append(diags, validate.Diagnostic{
			Severity: validate.SeverityError,
			Path:     failure.Path,
			Kind:     validate.FillError,
			Message:  message,
		})
	}
	return diags
}

func summarizeFailures(failures []fill.Failure) string {
	if len(failures) == 1 {
		return "fill rule failed for " + failures[0].Path
	}
	paths := make([]string, 0, len(failures))
	for _, failure := range failures {
		paths = append(paths, failure.Path)
	}
	return fmt.Sprintf("fill rules failed for %d entries: %s", len(failures), strings.Join(paths, ", "))
}

func joinFailures(failures []fill.Failure) error {
	errs := make([]error, 0, len(failures))
	for _, failure := range failures {
		errs = append(errs, failure)
	}
	return errors.Join(errs...)
}

// Hint suggests an operator action for a fault kind.
func Hint(kind fault.Kind) string {
	switch kind {
	case fault.PayloadTooLarge:
		return "upload a smaller archive or raise limits.max_payload_bytes"
	case fault.ArchiveTooLarge:
		return "archive exceeds the [limits] extraction budget; inspect it or raise the limits"
	case fault.PathTraversal:
		return "archive contains entries that escape the extraction root; rebuild it with relative paths"
	case fault.ExtractionFailure:
		return "archive is corrupt or contains unsupported members; re-create the zip"
	case fault.FillError:
		return "a fill rule could not transform an entry; inspect the entry content and rule params"
	case fault.ConfigError:
		return "fix the configuration or schema document and restart"
	default:
		return "check filesystem permissions and storage availability"
	}
}
