package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level to be info, got %s", cfg.Level)
	}

	if cfg.Format != FormatJSON {
		t.Errorf("expected default format to be json, got %s", cfg.Format)
	}

	if !cfg.Console.Enabled {
		t.Error("expected console to be enabled by default")
	}

	if cfg.File.Enabled {
		t.Error("expected file to be disabled by default")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "invalid log level",
			config:  &Config{Level: "loud", Format: FormatJSON},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  &Config{Level: LevelInfo, Format: "xml"},
			wantErr: true,
		},
		{
			name: "file enabled without path",
			config: &Config{
				Level:  LevelInfo,
				Format: FormatJSON,
				File:   FileConfig{Enabled: true, MaxSizeMB: 10, BatchSize: 1, BatchInterval: 1},
			},
			wantErr: true,
		},
		{
			name: "file enabled without batching",
			config: &Config{
				Level:  LevelInfo,
				Format: FormatJSON,
				File:   FileConfig{Enabled: true, Path: "x.log", MaxSizeMB: 10},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if level, err := ParseLevel("warn"); err != nil || level != LevelWarn {
		t.Errorf("ParseLevel(warn) = %v, %v", level, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func newBufferLogger(t *testing.T, format LogFormat, level LogLevel) (*MultiLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = format
	cfg.Level = level
	cfg.Console.Color = false
	cfg.Console.Output = &buf

	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return l, &buf
}

func TestMultiLogger_JSONConsole(t *testing.T) {
	l, buf := newBufferLogger(t, FormatJSON, LevelInfo)
	defer l.Close()

	ctx := ContextWithPlan(ContextWithUser(context.Background(), "alice"), "plan-1")
	l.WithComponent(ComponentService).
		WithFields(map[string]interface{}{"version": 3}).
		InfoContext(ctx, "plan generated", "blocks", 6)

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}

	want := map[string]interface{}{
		"msg":       "plan generated",
		"level":     "INFO",
		"component": "service",
		"user_id":   "alice",
		"plan_id":   "plan-1",
		"blocks":    float64(6),
		"version":   float64(3),
	}
	for k, v := range want {
		if record[k] != v {
			t.Errorf("record[%q] = %v, want %v", k, record[k], v)
		}
	}
}

func TestMultiLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, FormatText, LevelWarn)
	defer l.Close()

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warning", "attempt", 2)
	l.Error("visible error")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug and info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "visible warning") || !strings.Contains(out, "attempt=2") {
		t.Errorf("expected warning with attribute, got %q", out)
	}
	if !strings.Contains(out, "visible error") {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestColorTextHandler(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatText
	cfg.Console.Color = true
	cfg.Console.Output = &buf

	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	l.WithComponent(ComponentScheduler).Info("schedule registered", "schedule_id", "nightly")

	line := buf.String()
	if !strings.Contains(line, "[scheduler] schedule registered") {
		t.Errorf("expected component prefix before message, got %q", line)
	}
	if !strings.Contains(line, "nightly") {
		t.Errorf("expected attribute value in line, got %q", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Errorf("expected exactly one line, got %q", line)
	}
}

func TestFileLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyplan.log")
	cfg := DefaultConfig()
	cfg.Console.Enabled = false
	cfg.File.Enabled = true
	cfg.File.Path = path

	l, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx := ContextWithUser(context.Background(), "bob")
	l.WithComponent(ComponentStore).ErrorContext(ctx, "save failed", "error", "connection refused", "attempt", 1)
	l.Info("second entry")

	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid JSON line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.Level != LevelError || first.Component != ComponentStore || first.UserID != "bob" {
		t.Errorf("unexpected first entry %+v", first)
	}
	if first.Error != "connection refused" {
		t.Errorf("expected error to be lifted out of fields, got %q", first.Error)
	}
	if first.Fields["attempt"] != float64(1) {
		t.Errorf("expected attempt field, got %v", first.Fields)
	}
}

func TestNoOpLoggerAndDefault(t *testing.T) {
	if _, ok := Default().(*NoOpLogger); !ok {
		t.Fatalf("expected NoOpLogger as the initial default, got %T", Default())
	}

	l, buf := newBufferLogger(t, FormatJSON, LevelInfo)
	SetDefault(l)
	defer SetDefault(&NoOpLogger{})

	Default().Info("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("expected default logger to be replaced, got %q", buf.String())
	}

	var n NoOpLogger
	n.WithComponent(ComponentAPI).WithFields(nil).Info("ignored")
	if err := n.Close(); err != nil {
		t.Errorf("NoOpLogger.Close() = %v", err)
	}
}
