// Package audit writes append-only JSON audit events through zap and lumberjack.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EventType names an audited step.
type EventType string

const (
	EventAppStart  EventType = "app.start"
	EventFileLoad  EventType = "file.load"
	EventRedaction EventType = "data.redaction"
	EventAPICall   EventType = "api.call"
	EventExport    EventType = "report.export"
	EventError     EventType = "error"
)

// Result is the outcome of an audited step.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Event is one audit record.
type Event struct {
	Type      EventType
	Result    Result
	RequestID string
	Provider  string
	Model     string
	File      string
	Detail    string
	Error     string
	Tokens    int
	Duration  time.Duration
	Fields    map[string]any
}

// Config controls file rotation.
type Config struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns rotation defaults for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, MaxSizeMB: 50, MaxBackups: 10, MaxAgeDays: 90, Compress: true}
}

// Logger records events tagged with a per-process session ID.
type Logger struct {
	zl        *zap.Logger
	sessionID string
	mu        sync.Mutex
	closed    bool
	rotator   *lumberjack.Logger
}

// NewLogger opens an audit log at cfg.Path.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit log path is empty")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), zapcore.InfoLevel)
	return newLogger(zap.New(core), rotator), nil
}

// Nop returns a logger that drops every event.
func Nop() *Logger { return newLogger(zap.NewNop(), nil) }

func newLogger(zl *zap.Logger, rotator *lumberjack.Logger) *Logger {
	sid := uuid.NewString()
	return &Logger{zl: zl.With(zap.String("session_id", sid)), sessionID: sid, rotator: rotator}
}

// SessionID identifies this process in every record.
func (l *Logger) SessionID() string { return l.sessionID }

// Log writes one event. Failures are written at error level.
func (l *Logger) Log(e Event) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if e.Result == "" {
		e.Result = ResultSuccess
	}
	fields := []zap.Field{zap.String("result", string(e.Result))}
	add := func(k, v string) {
		if v != "" {
			fields = append(fields, zap.String(k, v))
		}
	}
	add("request_id", e.RequestID)
	add("provider", e.Provider)
	add("model", e.Model)
	add("file", e.File)
	add("detail", e.Detail)
	add("error", e.Error)
	if e.Tokens > 0 {
		fields = append(fields, zap.Int("tokens", e.Tokens))
	}
	if e.Duration > 0 {
		fields = append(fields, zap.Duration("duration", e.Duration))
	}
	if len(e.Fields) > 0 {
		fields = append(fields, zap.Any("fields", e.Fields))
	}
	if e.Result == ResultFailure {
		l.zl.Error(string(e.Type), fields...)
		return
	}
	l.zl.Info(string(e.Type), fields...)
}

// AppStart records process start with the CLI version.
func (l *Logger) AppStart(version string) {
	l.Log(Event{Type: EventAppStart, Detail: version})
}

// FileLoad records a spreadsheet load.
func (l *Logger) FileLoad(file string, rows, cols int, err error) {
	e := Event{Type: EventFileLoad, File: file, Fields: map[string]any{"rows": rows, "columns": cols}}
	if err != nil {
		e.Result, e.Error = ResultFailure, err.Error()
	}
	l.Log(e)
}

// Redaction records the removed column names and reasons.
func (l *Logger) Redaction(requestID string, removed map[string]string) {
	fields := make(map[string]any, len(removed))
	for k, v := range removed {
		fields[k] = v
	}
	l.Log(Event{Type: EventRedaction, RequestID: requestID, Detail: fmt.Sprintf("%d columns removed", len(removed)), Fields: fields})
}

// APICall records a provider call with its usage or error.
func (l *Logger) APICall(requestID, provider, model string, tokens int, d time.Duration, err error) {
	e := Event{Type: EventAPICall, RequestID: requestID, Provider: provider, Model: model, Tokens: tokens, Duration: d}
	if err != nil {
		e.Result, e.Error = ResultFailure, err.Error()
	}
	l.Log(e)
}

// Export records a written report file.
func (l *Logger) Export(format, path string, err error) {
	e := Event{Type: EventExport, File: path, Detail: format}
	if err != nil {
		e.Result, e.Error = ResultFailure, err.Error()
	}
	l.Log(e)
}

// Error records an unexpected failure.
func (l *Logger) Error(context string, err error) {
	if err == nil {
		return
	}
	l.Log(Event{Type: EventError, Result: ResultFailure, Detail: context, Error: err.Error()})
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	_ = l.zl.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}
