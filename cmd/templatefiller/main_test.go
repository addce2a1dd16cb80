package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"templatefiller/internal/records"
	"templatefiller/internal/testsupport"
)

const cliSchema = `
version: 1
rules:
  - pattern: a.txt
    kind: file
    required: true
    fill:
      name: uppercase
  - pattern: b/c.txt
    kind: file
    required: true
`

type cliEnv struct {
	base       string
	configPath string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	schemaPath := filepath.Join(base, "schema.yaml")
	testsupport.WriteFile(t, schemaPath, []byte(cliSchema))

	configPath := filepath.Join(base, "config.toml")
	doc := fmt.Sprintf(`[paths]
upload_dir = %q
workspace_dir = %q
download_dir = %q
state_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[schema]
path = %q

[logging]
level = "error"
format = "json"
`,
		filepath.Join(base, "uploads"),
		filepath.Join(base, "workspaces"),
		filepath.Join(base, "downloads"),
		filepath.Join(base, "state"),
		filepath.Join(base, "logs"),
		schemaPath,
	)
	testsupport.WriteFile(t, configPath, []byte(doc))
	return &cliEnv{base: base, configPath: configPath}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) writeArchive(t *testing.T, name string, members ...testsupport.ZipMember) string {
	t.Helper()
	path := filepath.Join(e.base, name)
	testsupport.WriteFile(t, path, testsupport.ZipBytes(t, members...))
	return path
}

func TestRunProducesOutputArchive(t *testing.T) {
	env := setupCLIEnv(t)
	archive := env.writeArchive(t, "letter.zip",
		testsupport.File("a.txt", "hello"),
		testsupport.File("b/c.txt", "world"),
	)
	outDir := filepath.Join(env.base, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	output, err := env.run(t, "run", archive, "--out", outDir, "--json")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, output)
	}
	var result runResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("decode run output: %v\n%s", err, output)
	}
	if result.State != string(records.StateReady) || !strings.HasSuffix(result.OutputID, "_letter.zip") {
		t.Fatalf("unexpected result: %#v", result)
	}
	data, err := os.ReadFile(filepath.Join(outDir, result.OutputID))
	if err != nil {
		t.Fatalf("read copied archive: %v", err)
	}
	if got := testsupport.ReadZip(t, data)["a.txt"]; got != "HELLO" {
		t.Fatalf("expected filled entry, got %q", got)
	}
}

func TestRunReportsDiagnosticsAndFails(t *testing.T) {
	env := setupCLIEnv(t)
	archive := env.writeArchive(t, "partial.zip", testsupport.File("a.txt", "hello"))

	output, err := env.run(t, "run", archive)
	if !errors.Is(err, errSessionNotReady) {
		t.Fatalf("expected errSessionNotReady, got %v", err)
	}
	for _, want := range []string{"rejected", "MissingRequiredEntry", "b/c.txt"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output:\n%s", want, output)
		}
	}

	output, err = env.run(t, "run", archive, "--mode", "nocheck")
	if err != nil {
		t.Fatalf("nocheck run: %v\n%s", err, output)
	}
	if !strings.Contains(output, "ready") {
		t.Fatalf("expected ready state:\n%s", output)
	}
}

func TestRunRejectsBadTextOptions(t *testing.T) {
	env := setupCLIEnv(t)
	archive := env.writeArchive(t, "letter.zip",
		testsupport.File("a.txt", "hello"),
		testsupport.File("b/c.txt", "world"),
	)

	_, err := env.run(t, "run", archive, "--dialect", "klingon")
	if err == nil || !strings.Contains(err.Error(), "text options") {
		t.Fatalf("expected text options error, got %v", err)
	}
	output, err := env.run(t, "sessions", "list", "--json")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if strings.Contains(output, "letter.zip") {
		t.Fatalf("no session should be recorded:\n%s", output)
	}
}

func TestRecordListings(t *testing.T) {
	env := setupCLIEnv(t)
	archive := env.writeArchive(t, "letter.zip",
		testsupport.File("a.txt", "hello"),
		testsupport.File("b/c.txt", "world"),
	)
	if _, err := env.run(t, "run", archive); err != nil {
		t.Fatalf("run: %v", err)
	}

	output, err := env.run(t, "sessions", "list", "--json")
	if err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	var sessions []records.Session
	if err := json.Unmarshal([]byte(output), &sessions); err != nil {
		t.Fatalf("decode sessions: %v\n%s", err, output)
	}
	if len(sessions) != 1 || sessions[0].State != records.StateReady {
		t.Fatalf("unexpected sessions: %#v", sessions)
	}

	output, err = env.run(t, "sessions", "show", sessions[0].ID)
	if err != nil {
		t.Fatalf("sessions show: %v", err)
	}
	for _, state := range []string{"received", "extracted", "validated", "filled", "packaged", "ready"} {
		if !strings.Contains(output, state) {
			t.Fatalf("expected %s in history:\n%s", state, output)
		}
	}

	output, err = env.run(t, "downloads", "list")
	if err != nil {
		t.Fatalf("downloads list: %v", err)
	}
	if !strings.Contains(output, sessions[0].OutputID) {
		t.Fatalf("expected output id in downloads:\n%s", output)
	}

	output, err = env.run(t, "sessions", "stats")
	if err != nil {
		t.Fatalf("sessions stats: %v", err)
	}
	if !strings.Contains(output, "total") {
		t.Fatalf("expected totals row:\n%s", output)
	}

	if _, err := env.run(t, "sessions", "show", "missing"); err == nil {
		t.Fatal("expected error for unknown session")
	}
	if _, err := env.run(t, "sessions", "list", "--state", "bogus"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestSchemaLint(t *testing.T) {
	env := setupCLIEnv(t)
	output, err := env.run(t, "schema", "lint")
	if err != nil {
		t.Fatalf("schema lint: %v", err)
	}
	if !strings.Contains(output, "2 rule(s)") || !strings.Contains(output, "uppercase") {
		t.Fatalf("unexpected lint output:\n%s", output)
	}

	bad := filepath.Join(env.base, "bad.yaml")
	testsupport.WriteFile(t, bad, []byte("version: 1\nrules:\n  - pattern: a.txt\n    fill:\n      name: nonexistent\n"))
	if _, err := env.run(t, "schema", "lint", bad); err == nil {
		t.Fatal("expected lint failure for unknown fill")
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLIEnv(t)
	output, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(output, "Configuration valid") {
		t.Fatalf("unexpected validate output:\n%s", output)
	}

	target := filepath.Join(env.base, "sample", "config.toml")
	if _, err := env.run(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestWorkspacesCommands(t *testing.T) {
	env := setupCLIEnv(t)
	output, err := env.run(t, "workspaces", "list")
	if err != nil {
		t.Fatalf("workspaces list: %v", err)
	}
	if !strings.Contains(output, "No workspaces") {
		t.Fatalf("unexpected list output:\n%s", output)
	}

	stale := filepath.Join(env.base, "workspaces", "abandoned")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	output, err = env.run(t, "workspaces", "clean", "--max-age", "-1s")
	if err != nil {
		t.Fatalf("workspaces clean: %v\n%s", err, output)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale workspace removed, stat err=%v", err)
	}
}

func TestStatusReportsReadiness(t *testing.T) {
	env := setupCLIEnv(t)
	output, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, output)
	}
	for _, want := range []string{"Template schema", "Records database", "Download store", "[OK]"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in status output:\n%s", want, output)
		}
	}
}

func TestLogsFiltersBySession(t *testing.T) {
	env := setupCLIEnv(t)
	logPath := filepath.Join(env.base, "logs", "templatefiller.log")
	testsupport.WriteFile(t, logPath, []byte(`{"level":"INFO","msg":"session finished","session_id":"abc"}
{"level":"INFO","msg":"session finished","session_id":"def"}
`))

	output, err := env.run(t, "logs", "--session", "abc")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if !strings.Contains(output, `"session_id":"abc"`) || strings.Contains(output, `"session_id":"def"`) {
		t.Fatalf("unexpected logs output:\n%s", output)
	}
}
