package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestJSONLoggerFieldsAndEnvOverride(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer
	l := newLogger(&buf, "sceneview", "warn", "json")
	l.Info().Msg("hidden")
	l.Warn().Str("code", "E_STALE_FRAME").Msg("shown")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected exactly one json record, got %q: %v", buf.String(), err)
	}
	if rec["app"] != "sceneview" || rec["code"] != "E_STALE_FRAME" || rec["message"] != "shown" {
		t.Fatalf("record=%v", rec)
	}

	t.Setenv(EnvLogLevel, "debug")
	buf.Reset()
	l = newLogger(&buf, "sceneview", "warn", "json")
	l.Debug().Msg("visible")
	if !bytes.Contains(buf.Bytes(), []byte("visible")) {
		t.Fatalf("env override ignored: %q", buf.String())
	}
}
