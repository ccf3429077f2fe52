// Package logger sets up structured logging (log/slog) with optional
// rotating file output and request-scoped attributes carried in a context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"spotprice/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sourceIDKey  contextKey = "source_id"
)

// Manager owns the base logger and its writer.
type Manager struct {
	base   *slog.Logger
	writer io.WriteCloser

	mu         sync.Mutex
	components map[string]*slog.Logger
}

func New(cfg config.LoggingConfig) (*Manager, error) {
	w, err := createWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create log writer: %w", err)
	}
	return NewWithWriter(cfg, w), nil
}

// NewWithWriter builds a Manager on top of an existing writer (tests, cli).
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) *Manager {
	wc, ok := w.(io.WriteCloser)
	if !ok {
		wc = nopWriteCloser{w}
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: strings.EqualFold(cfg.Level, "debug"),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
				}
			case slog.LevelKey:
				if level, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(strings.ToUpper(level.String()))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(wc, opts)
	} else {
		handler = slog.NewJSONHandler(wc, opts)
	}

	if len(cfg.Fields) > 0 {
		attrs := make([]slog.Attr, 0, len(cfg.Fields))
		for k, v := range cfg.Fields {
			attrs = append(attrs, slog.String(k, v))
		}
		handler = handler.WithAttrs(attrs)
	}

	return &Manager{
		base:       slog.New(handler),
		writer:     wc,
		components: map[string]*slog.Logger{},
	}
}

func createWriter(cfg config.LoggingConfig) (io.WriteCloser, error) {
	switch cfg.Output {
	case "", "stdout":
		return nopWriteCloser{os.Stdout}, nil
	case "stderr":
		return nopWriteCloser{os.Stderr}, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path is required when output is 'file'")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unknown log output %q (stdout, stderr, file)", cfg.Output)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (m *Manager) Logger() *slog.Logger {
	return m.base
}

// Component returns a cached logger tagged with component=name.
func (m *Manager) Component(name string) *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.components[name]; ok {
		return l
	}
	l := m.base.With(slog.String("component", name))
	m.components[name] = l
	return l
}

func (m *Manager) Close() error {
	return m.writer.Close()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func WithSourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sourceIDKey, id)
}

// FromContext adds request-scoped attributes found in ctx to l.
func FromContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		l = l.With(slog.String("request_id", id))
	}
	if id, ok := ctx.Value(sourceIDKey).(string); ok && id != "" {
		l = l.With(slog.String("source_id", id))
	}
	return l
}
