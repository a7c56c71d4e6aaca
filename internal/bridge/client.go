// Package bridge обмен строковыми командами с прошивкой платы по последовательному
// порту: хостовый клиент и виртуальная прошивка поверх device.Device.
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"pico-faultsim/internal/metrics"
	"pico-faultsim/internal/models"
)

const (
	// DefaultSettle пауза между отправкой команды и чтением ответа
	DefaultSettle = 500 * time.Millisecond
	// DefaultTimeout сколько ждать строку ответа после паузы
	DefaultTimeout = 2 * time.Second
)

// ErrTimeout прошивка не ответила за отведенное время
var ErrTimeout = errors.New("bridge: response timeout")

// DefaultCommands набор проверок платы
var DefaultCommands = []string{"LED", "ADC", "SLEEP", "ECHO hello"}

// Client хостовая сторона моста
type Client struct {
	rw      io.ReadWriter
	settle  time.Duration
	timeout time.Duration
	sleep   func(time.Duration)
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	pending []byte
}

// ClientOption настройка клиента
type ClientOption func(*Client)

// WithSettle пауза перед чтением ответа
func WithSettle(d time.Duration) ClientOption { return func(c *Client) { c.settle = d } }

// WithTimeout ожидание строки ответа
func WithTimeout(d time.Duration) ClientOption { return func(c *Client) { c.timeout = d } }

// WithClientSleeper подменяет паузу
func WithClientSleeper(sleep func(time.Duration)) ClientOption {
	return func(c *Client) { c.sleep = sleep }
}

// WithClientLogger логгер
func WithClientLogger(l *slog.Logger) ClientOption { return func(c *Client) { c.logger = l } }

// NewClient создает клиента поверх открытого порта
func NewClient(rw io.ReadWriter, opts ...ClientOption) *Client {
	c := &Client{
		rw:      rw,
		settle:  DefaultSettle,
		timeout: DefaultTimeout,
		sleep:   time.Sleep,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send отправляет команду и возвращает строку ответа без перевода строки
func (c *Client) Send(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	command := commandName(cmd)
	if _, err := io.WriteString(c.rw, cmd+"\n"); err != nil {
		metrics.BridgeCommands.WithLabelValues("host", command, "error").Inc()
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}
	c.sleep(c.settle)

	line, err := c.readLine(c.now().Add(c.timeout))
	if err != nil {
		metrics.BridgeCommands.WithLabelValues("host", command, "error").Inc()
		return "", fmt.Errorf("read response to %q: %w", cmd, err)
	}
	metrics.BridgeCommands.WithLabelValues("host", command, "success").Inc()
	c.logger.Debug("bridge response", "command", cmd, "response", line)
	return line, nil
}

// readLine последовательный порт с таймаутом чтения возвращает (0, nil),
// поэтому срок ожидания проверяется здесь
func (c *Client) readLine(deadline time.Time) (string, error) {
	if dl, ok := c.rw.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = dl.SetReadDeadline(deadline)
		defer dl.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, 128)
	for {
		if i := bytes.IndexByte(c.pending, '\n'); i >= 0 {
			line := string(c.pending[:i])
			c.pending = c.pending[i+1:]
			return strings.TrimSpace(line), nil
		}
		if c.now().After(deadline) {
			return "", ErrTimeout
		}
		n, err := c.rw.Read(buf)
		c.pending = append(c.pending, buf[:n]...)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return "", ErrTimeout
			}
			if errors.Is(err, io.EOF) && len(c.pending) > 0 {
				line := string(c.pending)
				c.pending = nil
				return strings.TrimSpace(line), nil
			}
			return "", err
		}
	}
}

// RunAll выполняет команды по очереди. Ошибка одной команды попадает в ее результат
// и не прерывает остальные; отмена контекста проверяется между командами.
func (c *Client) RunAll(ctx context.Context, commands ...string) []models.BridgeResult {
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	results := make([]models.BridgeResult, 0, len(commands))
	for _, cmd := range commands {
		if err := ctx.Err(); err != nil {
			results = append(results, models.BridgeResult{Command: cmd, Error: err.Error()})
			continue
		}
		resp, err := c.Send(cmd)
		result := models.BridgeResult{Command: cmd, Response: resp}
		if err != nil {
			result.Error = err.Error()
			c.logger.Warn("bridge command failed", "command", cmd, "error", err)
		}
		results = append(results, result)
	}
	return results
}

func commandName(line string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch name {
	case cmdLED, cmdADC, cmdSleep, cmdEcho:
		return name
	}
	return "other"
}
