package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"Error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestStdLogger_FiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelInfo)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	assert.Empty(t, buf.String())

	l.Info(ctx, "tick done", map[string]interface{}{"symbol": "BTCUSDT", "count": 2})
	out := buf.String()
	assert.Contains(t, out, "[INFO] tick done | count=2 symbol=BTCUSDT")

	buf.Reset()
	l.Error(ctx, errors.New("boom"), "store failed", map[string]interface{}{"a": 1}, map[string]interface{}{"b": 2})
	out = buf.String()
	assert.Contains(t, out, "[ERROR] store failed | error: boom | a=1 b=2")
}

func TestNew(t *testing.T) {
	l, err := New("text", LevelDebug)
	require.NoError(t, err)
	assert.IsType(t, &StdLogger{}, l)

	l, err = New("json", LevelDebug)
	require.NoError(t, err)
	assert.IsType(t, &ZapLogger{}, l)

	_, err = New("xml", LevelDebug)
	assert.Error(t, err)
}

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapLoggerFrom(zap.New(core))
	ctx := context.Background()

	l.Info(ctx, "opened", map[string]interface{}{"symbol": "ETHUSDT"})
	l.Error(ctx, errors.New("boom"), "close failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "opened", entries[0].Message)
	assert.Equal(t, "ETHUSDT", entries[0].ContextMap()["symbol"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
