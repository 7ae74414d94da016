package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{" WARN ", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	logger, err := New("debug")
	if err != nil {
		t.Fatal(err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger should enable debug level")
	}
	if _, err := New("nope"); err == nil {
		t.Error("expected error for unknown level")
	}
	if NewOrNop("nope") == nil {
		t.Error("NewOrNop returned nil")
	}
}

func TestNewConfig_NoStacktraces(t *testing.T) {
	config, err := newConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if !config.DisableStacktrace {
		t.Error("stacktraces should be disabled")
	}
	if config.Level.Level() != zapcore.InfoLevel {
		t.Errorf("level = %v, want info", config.Level.Level())
	}
	if len(config.OutputPaths) != 1 || config.OutputPaths[0] != "stderr" {
		t.Errorf("output paths = %v, want [stderr]", config.OutputPaths)
	}
}
