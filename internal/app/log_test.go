package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestActaHandler_Handle(t *testing.T) {
	ts := time.Date(2026, 10, 19, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "20261019T143045Z",
			level:   slog.LevelInfo,
			message: "inspection submitted",
			want:    "2026-10-19T14:30:45Z\tINFO\t20261019T143045Z\tinspection submitted\n",
		},
		{
			name:    "warn level",
			opID:    "op-2",
			level:   slog.LevelWarn,
			message: "backend request failed, retrying",
			want:    "2026-10-19T14:30:45Z\tWARN\top-2\tbackend request failed, retrying\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-3",
			level:   slog.LevelInfo,
			message: "process started",
			attrs:   []slog.Attr{slog.String("unit", "unit-edificio-a-101"), slog.Int("attempt", 2)},
			want:    "2026-10-19T14:30:45Z\tINFO\top-3\tprocess started\tunit=unit-edificio-a-101\tattempt=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &actaHandler{w: &buf, opID: tt.opID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestActaHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	base := &actaHandler{w: &buf, opID: "op-1"}

	h := base.WithAttrs([]slog.Attr{slog.String("component", "archive")}).WithGroup("vault")
	r := slog.NewRecord(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	got := buf.String()
	if !strings.Contains(got, "\tcomponent=archive") {
		t.Errorf("missing pre-set attr, got %q", got)
	}
	if !strings.Contains(got, "\tvault.key=abc") {
		t.Errorf("missing grouped attr, got %q", got)
	}
	if len(base.attrs) != 0 {
		t.Errorf("original handler attrs modified: %v", base.attrs)
	}
}

func TestActaHandler_Enabled(t *testing.T) {
	h := &actaHandler{level: slog.LevelWarn}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled at warn level")
	}
	if !(&actaHandler{}).Enabled(context.Background(), slog.LevelDebug) {
		t.Error("handler without level should log everything")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":  slog.LevelDebug,
		"WARN":   slog.LevelWarn,
		"error":  slog.LevelError,
		"":       slog.LevelInfo,
		"chatty": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var echo bytes.Buffer

	logger, f, err := newLogger(filepath.Join(dir, "log"), "test-op", "info", &echo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Debug("hidden")
	logger.Info("visible", "n", 1)

	data, err := os.ReadFile(filepath.Join(dir, "log", "acta.log"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(string(data), "visible\tn=1") {
		t.Errorf("log file = %q", data)
	}
	if echo.String() != string(data) {
		t.Errorf("echo = %q, want same as file", echo.String())
	}
}
