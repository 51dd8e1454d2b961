package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesStructuredJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	var buf bytes.Buffer
	logger := Setup("rewardsd", "test", WithWriter(&buf), WithLevel(slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("era rewards computed", "era", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["message"] != "era rewards computed" {
		t.Fatalf("message key: %v", record)
	}
	if record["severity"] != "INFO" {
		t.Fatalf("severity key: %v", record)
	}
	if record["service"] != "rewardsd" || record["env"] != "test" {
		t.Fatalf("service attributes missing: %v", record)
	}
	if _, ok := record["timestamp"]; !ok {
		t.Fatalf("timestamp missing: %v", record)
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("validator", "fire1abc"); got.Value.String() != "fire1abc" {
		t.Fatalf("allowlisted key masked: %v", got)
	}
	if got := MaskField("seed", "py/rewrd"); got.Value.String() != RedactedValue {
		t.Fatalf("seed not masked: %v", got)
	}
}

func TestRedactDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://rewards:secret@db:5432/journal": "postgres://rewards:xxxxx@db:5432/journal",
		"file:journal.db":                           "file:journal.db",
		"journal.db":                                "journal.db",
		"host=db password=secret":                   RedactedValue,
		"":                                          "",
	}
	for in, want := range cases {
		if got := RedactDSN(in); got != want {
			t.Fatalf("RedactDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rewardsd.log")
	w, err := RotatingFile(path, 0, 0)
	if err != nil {
		t.Fatalf("rotating file: %v", err)
	}
	defer w.Close()
	if _, err := w.Write([]byte("{}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("warning") != slog.LevelWarn || ParseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level mapping")
	}
}
