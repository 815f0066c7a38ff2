package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"bogus":  defaultZapLevel,
	}
	for in, want := range cases {
		if got := toZapLevel(in); got != want {
			t.Errorf("toZapLevel(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestGet_ReturnsSingleton(t *testing.T) {
	a := Get(DebugLevel, FormatJSON)
	b := Get(ErrorLevel, FormatConsole)
	if a != b {
		t.Fatalf("expected the same instance")
	}
	a.With("component", "test").Debugw("hello")
}

func TestNop_DoesNotPanic(t *testing.T) {
	l := Nop()
	l.Infow("ignored", "k", "v")
	l.With("a", 1).Errorw("ignored")
}
