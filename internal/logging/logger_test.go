package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"templatefiller/internal/logging"
)

func TestConsoleHandlerPrefixesComponentAndSession(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "pipeline")
	logger.Info("session ready",
		logging.String(logging.FieldSessionID, "0123456789abcdef"),
		logging.String("output_id", "out.zip"),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO pipeline [01234567]: session ready") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "output_id=out.zip") {
		t.Fatalf("expected attribute in line: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be folded into prefix: %q", line)
	}
}

func TestJSONHandlerCarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithSessionID(context.Background(), "sess-1")
	ctx = logging.WithStage(ctx, "intake")
	ctx = logging.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, logger).Debug("extracted")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		logging.FieldSessionID:     "sess-1",
		logging.FieldStage:         "intake",
		logging.FieldCorrelationID: "req-9",
		"level":                    "debug",
		"msg":                      "extracted",
	} {
		if got, _ := payload[key].(string); got != want {
			t.Fatalf("field %s = %q, want %q", key, got, want)
		}
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts field, got %v", payload)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logging.WarnWithContext(logger, "shown", "workspace_sweep_failed")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	for _, want := range []string{"shown", "event_type=workspace_sweep_failed", "error_hint=", "impact="} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := logging.New(logging.Options{Level: "loud", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestWithContextWithoutFieldsReturnsSameLogger(t *testing.T) {
	logger := logging.NewNop()
	if got := logging.WithContext(context.Background(), logger); got != logger {
		t.Fatal("expected logger unchanged when context has no fields")
	}
}

func TestWarnWithContextKeepsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "sweep incomplete", "sweep_failed",
		logging.String(logging.FieldImpact, "stale workspaces remain"),
	)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		logging.FieldEventType: "sweep_failed",
		logging.FieldErrorHint: "check logs for details",
		logging.FieldImpact:    "stale workspaces remain",
	} {
		if got, _ := payload[key].(string); got != want {
			t.Fatalf("field %s = %q, want %q", key, got, want)
		}
	}
}
