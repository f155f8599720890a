package agent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogLevelNone, "none"},
		{LogLevelError, "error"},
		{LogLevelWarn, "warn"},
		{LogLevelInfo, "info"},
		{LogLevelDebug, "debug"},
		{LogLevel(42), "level(42)"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestStdLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string // level tokens expected in output
	}{
		{LogLevelNone, nil},
		{LogLevelError, []string{"ERR"}},
		{LogLevelWarn, []string{"ERR", "WRN"}},
		{LogLevelInfo, []string{"ERR", "WRN", "INF"}},
		{LogLevelDebug, []string{"ERR", "WRN", "INF", "DBG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewStdLoggerTo(tt.level, &buf)
			ctx := context.Background()

			logger.Debug(ctx, "d")
			logger.Info(ctx, "i")
			logger.Warn(ctx, "w")
			logger.Error(ctx, "e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if buf.Len() == 0 {
				lines = nil
			}
			if len(lines) != len(tt.want) {
				t.Fatalf("emitted %d lines, want %d:\n%s", len(lines), len(tt.want), buf.String())
			}
			for _, token := range tt.want {
				if !strings.Contains(buf.String(), " "+token+" ") {
					t.Errorf("missing %s entry in output:\n%s", token, buf.String())
				}
			}
		})
	}
}

func TestStdLogger_FieldFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLoggerTo(LogLevelDebug, &buf)

	logger.Info(context.Background(), "tool dispatched",
		F("tool", "math"),
		F("call_id", "call_1"),
		F("round", 3),
		F("detail", "two words"),
		F("err", errors.New("boom failed")),
	)

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{
		"INF tool dispatched",
		"tool=math",
		"call_id=call_1",
		"round=3",
		`detail="two words"`,
		`err="boom failed"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line missing %q:\n%s", want, line)
		}
	}
}

func TestWithFields_BindsAndFlattens(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdLoggerTo(LogLevelDebug, &buf)

	scoped := WithFields(base, F("loop_id", "L1"), F("model", "gpt-4o"))
	scoped = WithFields(scoped, F("round", 2))
	if _, ok := scoped.(*fieldLogger); !ok {
		t.Fatalf("expected flattened fieldLogger, got %T", scoped)
	}
	if fl := scoped.(*fieldLogger); len(fl.bound) != 3 {
		t.Errorf("expected 3 bound fields after flattening, got %d", len(fl.bound))
	}

	scoped.Debug(context.Background(), "executing tool", F("tool", "math"))

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"loop_id=L1", "model=gpt-4o", "round=2", "tool=math"} {
		if !strings.Contains(line, want) {
			t.Errorf("line missing bound field %q:\n%s", want, line)
		}
	}
	// Bound fields come first, call-site fields last.
	if strings.Index(line, "loop_id=") > strings.Index(line, "tool=") {
		t.Errorf("bound fields should precede call-site fields:\n%s", line)
	}
}

func TestWithFields_NoFieldsReturnsSame(t *testing.T) {
	base := &NoopLogger{}
	if got := WithFields(base); got != Logger(base) {
		t.Error("WithFields with no fields should return the logger unchanged")
	}
}

// recordLogger captures entries so tests can assert what the runtime logs.
type recordLogger struct {
	entries []recordedEntry
}

type recordedEntry struct {
	level  LogLevel
	msg    string
	fields []Field
}

func (l *recordLogger) record(level LogLevel, msg string, fields []Field) {
	l.entries = append(l.entries, recordedEntry{level: level, msg: msg, fields: fields})
}

func (l *recordLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.record(LogLevelDebug, msg, fields)
}

func (l *recordLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.record(LogLevelInfo, msg, fields)
}

func (l *recordLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.record(LogLevelWarn, msg, fields)
}

func (l *recordLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.record(LogLevelError, msg, fields)
}

func (l *recordLogger) field(i int, key string) (interface{}, bool) {
	for _, f := range l.entries[i].fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func TestNoopLogger_DiscardsEverything(t *testing.T) {
	logger := NoopLogger{}
	ctx := context.Background()

	// Must not panic, block, or allocate observable state.
	logger.Debug(ctx, "d", F("k", "v"))
	logger.Info(ctx, "i")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e")
}
