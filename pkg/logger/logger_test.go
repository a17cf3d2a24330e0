package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", "console", "json"} {
		if _, err := New(Config{Level: "debug", Format: format}); err != nil {
			t.Errorf("New(format=%q) error = %v", format, err)
		}
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("New(format=xml) should fail")
	}
}
