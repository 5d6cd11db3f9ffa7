package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })
	return logs
}

func TestStreamsAreTagged(t *testing.T) {
	logs := observe(t)

	ev := TurnEvent{UserID: "u1", UserMessage: "oi", Answer: "olá"}
	Chat(ev)
	Harmful(ev, "flagged")
	Latency(ev, map[string]float64{"total": 1.5})

	entries := logs.All()
	require.Len(t, entries, 3)
	streams := []string{}
	for _, e := range entries {
		streams = append(streams, e.ContextMap()["stream"].(string))
		assert.Equal(t, "u1", e.ContextMap()["user_id"])
	}
	assert.Equal(t, []string{StreamChat, StreamHarmful, StreamLatency}, streams)
	assert.Equal(t, "flagged", entries[1].ContextMap()["reason"])
	assert.Equal(t, 1.5, entries[2].ContextMap()["total"])
}

func TestFailureCarriesTraceback(t *testing.T) {
	logs := observe(t)

	Failure(TurnEvent{UserID: "u1", UserMessage: "oi"}, errors.New("search down"))

	entries := logs.FilterField(zap.String("stream", StreamError)).All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "search down", ctx["error"])
	assert.Contains(t, ctx["traceback"], "search down")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}
