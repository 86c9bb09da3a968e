package logging

import (
	"testing"

	"github.com/etnz/finntra/config"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range testCases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Development: true})
	if err != nil {
		t.Fatalf("New() unexpected error = %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("logger at warn level accepts info entries")
	}
}
