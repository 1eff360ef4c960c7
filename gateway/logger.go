package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"goa.design/clue/log"

	"github.com/rickchristie/gentflow"
)

// LogLevel selects which gateway events are logged.
type LogLevel string

const (
	LevelSilent LogLevel = "silent"
	LevelError  LogLevel = "error"
	LevelInfo   LogLevel = "info"
)

// ParseLogLevel parses a level name case-insensitively. An empty name selects LevelInfo.
func ParseLogLevel(s string) (LogLevel, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case "", LevelInfo:
		return LevelInfo, nil
	case LevelError:
		return LevelError, nil
	case LevelSilent:
		return LevelSilent, nil
	}
	return "", fmt.Errorf("unknown log level %q (want silent, error or info)", s)
}

// RequestLog is emitted before each candidate model is tried.
type RequestLog struct {
	Timestamp    time.Time     `json:"timestamp"`
	RequestID    string        `json:"request_id"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	MessageCount int           `json:"message_count"`
	Timeout      time.Duration `json:"timeout,omitempty"`
}

// ResponseLog is emitted when a candidate succeeded.
type ResponseLog struct {
	Timestamp    time.Time              `json:"timestamp"`
	RequestID    string                 `json:"request_id"`
	Model        string                 `json:"model"`
	Provider     string                 `json:"provider"`
	Duration     time.Duration          `json:"duration"`
	Usage        *gentflow.Usage        `json:"usage,omitempty"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	Cost         *gentflow.CostEstimate `json:"cost,omitempty"`
}

// ErrorInfo describes a failed attempt.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ErrorLog is emitted when a candidate failed after its retries.
type ErrorLog struct {
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id"`
	Model     string        `json:"model"`
	Provider  string        `json:"provider"`
	Duration  time.Duration `json:"duration"`
	Error     ErrorInfo     `json:"error"`
	Err       error         `json:"-"`
}

// RequestLogger receives the gateway's per-candidate events.
type RequestLogger interface {
	LogRequest(ctx context.Context, entry RequestLog)
	LogResponse(ctx context.Context, entry ResponseLog)
	LogError(ctx context.Context, entry ErrorLog)
}

// ClueLogger writes gateway events through goa.design/clue/log. Output goes to the logger
// stored in ctx by log.Context; without one, nothing is written.
type ClueLogger struct {
	Level LogLevel
}

// NewClueLogger creates a ClueLogger at level.
func NewClueLogger(level LogLevel) *ClueLogger {
	return &ClueLogger{Level: level}
}

// LogRequest implements RequestLogger.
func (l *ClueLogger) LogRequest(ctx context.Context, e RequestLog) {
	if l.Level != LevelInfo {
		return
	}
	log.Info(ctx,
		log.KV{K: "msg", V: "llm request"},
		log.KV{K: "request_id", V: e.RequestID},
		log.KV{K: "model", V: e.Model},
		log.KV{K: "provider", V: e.Provider},
		log.KV{K: "message_count", V: e.MessageCount},
		log.KV{K: "timeout_ms", V: e.Timeout.Milliseconds()},
	)
}

// LogResponse implements RequestLogger.
func (l *ClueLogger) LogResponse(ctx context.Context, e ResponseLog) {
	if l.Level != LevelInfo {
		return
	}
	fields := []log.Fielder{
		log.KV{K: "msg", V: "llm response"},
		log.KV{K: "request_id", V: e.RequestID},
		log.KV{K: "model", V: e.Model},
		log.KV{K: "provider", V: e.Provider},
		log.KV{K: "duration_ms", V: e.Duration.Milliseconds()},
		log.KV{K: "finish_reason", V: e.FinishReason},
	}
	if e.Usage != nil {
		fields = append(fields,
			log.KV{K: "input_tokens", V: e.Usage.InputTokens},
			log.KV{K: "output_tokens", V: e.Usage.OutputTokens},
		)
	}
	if e.Cost != nil {
		fields = append(fields, log.KV{K: "cost_cents", V: e.Cost.TotalCents})
	}
	log.Info(ctx, fields...)
}

// LogError implements RequestLogger.
func (l *ClueLogger) LogError(ctx context.Context, e ErrorLog) {
	if l.Level == LevelSilent {
		return
	}
	log.Error(ctx, e.Err,
		log.KV{K: "msg", V: "llm error"},
		log.KV{K: "request_id", V: e.RequestID},
		log.KV{K: "model", V: e.Model},
		log.KV{K: "provider", V: e.Provider},
		log.KV{K: "duration_ms", V: e.Duration.Milliseconds()},
		log.KV{K: "error_name", V: e.Error.Name},
		log.KV{K: "status", V: e.Error.Status},
		log.KV{K: "code", V: e.Error.Code},
	)
}

// Compile-time check that ClueLogger implements RequestLogger.
var _ RequestLogger = (*ClueLogger)(nil)

func describeError(err error) ErrorInfo {
	info := ErrorInfo{
		Name:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	}
	if perr, ok := asProviderError(err); ok {
		info.Status = perr.Status
		info.Code = perr.Code
	}
	return info
}
