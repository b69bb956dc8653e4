package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupRenamesCoreKeys(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := setup(&buf, "lendingd", "test", slog.LevelInfo)
	logger.Debug("dropped")
	logger.Info("loan repaid", slog.Uint64("loan_id", 7))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "loan repaid" || line["severity"] != "INFO" {
		t.Fatalf("unexpected core keys: %v", line)
	}
	if line["service"] != "lendingd" || line["env"] != "test" {
		t.Fatalf("missing service attributes: %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp key missing: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("api_token", "secret"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected token to be redacted, got %q", attr.Value.String())
	}
	if attr := MaskField("method", "/microlend.lending.v1.LendingService/RepayLoan"); attr.Value.String() == RedactedValue {
		t.Fatalf("allowlisted key should not be redacted")
	}
	if attr := MaskField("api_token", " "); attr.Value.String() != " " {
		t.Fatalf("empty values should pass through")
	}
}

func TestMaskSecrets(t *testing.T) {
	if got := MaskSecret(""); got != "" {
		t.Fatalf("empty secret masked to %q", got)
	}
	masked := MaskSecrets([]string{"a", "b"})
	if len(masked) != 2 || masked[0] != RedactedValue || masked[1] != RedactedValue {
		t.Fatalf("unexpected mask %v", masked)
	}
	if MaskSecrets(nil) != nil {
		t.Fatalf("nil slice should stay nil")
	}
}
