package logger

import (
	"time"

	goerrors "github.com/go-errors/errors"
	"go.uber.org/zap"
)

// Event streams. Each stream is a child logger tagged with stream=<name> so
// sinks can route them apart.
const (
	StreamChat    = "chat"
	StreamError   = "error"
	StreamHarmful = "harmful"
	StreamLatency = "latency"
)

// Stream returns the child logger for one event stream.
func Stream(name string) *zap.Logger { return L().With(zap.String("stream", name)) }

// TurnEvent is the common payload of chat/harmful/error entries.
type TurnEvent struct {
	TurnID      string
	UserID      string
	ChatbotID   string
	Index       string
	UserMessage string
	Answer      string
	Reasoning   string
	Timestamp   time.Time
}

func (e TurnEvent) fields() []zap.Field {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fs := []zap.Field{
		zap.String("user_id", e.UserID),
		zap.String("user_message", e.UserMessage),
		zap.String("timestamp", ts.Format("2006-01-02 15:04:05")),
	}
	if e.TurnID != "" {
		fs = append(fs, zap.String("turn_id", e.TurnID))
	}
	if e.ChatbotID != "" {
		fs = append(fs, zap.String("chatbot_id", e.ChatbotID))
	}
	if e.Index != "" {
		fs = append(fs, zap.String("index", e.Index))
	}
	if e.Answer != "" {
		fs = append(fs, zap.String("answer", e.Answer))
	}
	if e.Reasoning != "" {
		fs = append(fs, zap.String("reasoning", e.Reasoning))
	}
	return fs
}

// Chat records a completed turn.
func Chat(e TurnEvent) { Stream(StreamChat).Info("turn", e.fields()...) }

// Harmful records a turn discarded by the safety gate or the content filter.
func Harmful(e TurnEvent, reason string) {
	fs := e.fields()
	if reason != "" {
		fs = append(fs, zap.String("reason", reason))
	}
	Stream(StreamHarmful).Warn("harmful", fs...)
}

// Failure records a failed turn with a stack-style detail of err.
func Failure(e TurnEvent, err error) {
	fs := append(e.fields(), zap.Error(err))
	if err != nil {
		fs = append(fs, zap.String("traceback", goerrors.Wrap(err, 1).ErrorStack()))
	}
	Stream(StreamError).Error("failure", fs...)
}

// Latency records the per-stage timings of one turn, in seconds.
func Latency(e TurnEvent, stages map[string]float64) {
	// stage keys share names with the turn fields ("reasoning").
	e.Answer, e.Reasoning = "", ""
	fs := e.fields()
	for k, v := range stages {
		fs = append(fs, zap.Float64(k, v))
	}
	Stream(StreamLatency).Info("latency", fs...)
}
