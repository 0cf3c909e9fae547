package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	l := New(buf, slog.LevelInfo, "json")
	l.Debug("hidden")
	l.Info("switch", "context", "register")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %s", out)
	}
	if !strings.Contains(out, `"context":"register"`) {
		t.Errorf("expect json attribute, got %s", out)
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)
	buf := new(bytes.Buffer)
	SetDefault(New(buf, slog.LevelDebug, "text"))
	Debug("hello", "k", 1)
	if !strings.Contains(buf.String(), "k=1") {
		t.Errorf("expect record in replaced logger, got %q", buf.String())
	}
	SetDefault(nil)
	if Default() == nil {
		t.Fatal("nil logger must be ignored")
	}
}
