// Package logging настраивает slog и принимает события неисправностей.
// Два выхода:
//   - slog.Logger для stderr (операционный вывод)
//   - EventLog для JSONL-журнала сработавших неисправностей
package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pico-faultsim/internal/fault"
)

// LevelTrace уровень ниже Debug: каждое событие неисправности
const LevelTrace = slog.LevelDebug - 4

// ParseLevel "trace", "debug", "info", "warn", "error"; неизвестное -> info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
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

// NewLogger создает логгер; format "json" или "text"
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Component логгер модуля с атрибутом component
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String("component", name))
}

// SlogRecorder пишет события неисправностей в лог на уровне TRACE
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder создает recorder поверх логгера
func NewSlogRecorder(l *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: l}
}

// Record реализует fault.Recorder
func (r *SlogRecorder) Record(e fault.Event) {
	r.logger.Log(context.Background(), LevelTrace, "fault triggered",
		"peripheral", e.Peripheral,
		"kind", e.Kind.String(),
		"op", e.Op,
		"before", e.Before,
		"after", e.After,
	)
}

// EventLog пишет события в JSONL-файл. Безопасен для конкурентного использования,
// nil EventLog допустим: все методы ничего не делают.
type EventLog struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
}

// OpenEventLog открывает файл на дозапись; пустой путь дает nil
func OpenEventLog(path string) (*EventLog, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &EventLog{w: f, file: f}, nil
}

// NewEventLog журнал поверх произвольного writer
func NewEventLog(w io.Writer) *EventLog {
	return &EventLog{w: w}
}

// Scoped возвращает recorder, добавляющий к каждой строке имя сценария
func (el *EventLog) Scoped(scenario string) fault.Recorder {
	if el == nil {
		return nil
	}
	return fault.RecorderFunc(func(e fault.Event) { el.write(scenario, e) })
}

// Record реализует fault.Recorder
func (el *EventLog) Record(e fault.Event) {
	el.write("", e)
}

func (el *EventLog) write(scenario string, e fault.Event) {
	if el == nil || el.w == nil {
		return
	}
	entry := struct {
		Time     string `json:"time"`
		Scenario string `json:"scenario,omitempty"`
		fault.Event
	}{
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Scenario: scenario,
		Event:    e,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	_, _ = el.w.Write(data)
}

// Close закрывает файл
func (el *EventLog) Close() error {
	if el == nil || el.file == nil {
		return nil
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	err := el.file.Close()
	el.file = nil
	el.w = nil
	return err
}
