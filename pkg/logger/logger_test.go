package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DEBUG,
		"DEBUG":   DEBUG,
		" info ":  INFO,
		"warning": WARN,
		"error":   ERROR,
		"fatal":   FATAL,
		"bogus":   INFO,
		"":        INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLogger_KeyedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("component", "test")

	log.Infow("checkout created", "user_id", "u-1")
	log.Warnw("deferred")

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "checkout created", entries[0].Message)
		assert.Equal(t, "u-1", entries[0].ContextMap()["user_id"])
		assert.Equal(t, "test", entries[0].ContextMap()["component"])
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	}
}
