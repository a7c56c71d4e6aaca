package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"pico-faultsim/internal/device"
	"pico-faultsim/internal/metrics"
)

const (
	cmdLED   = "LED"
	cmdADC   = "ADC"
	cmdSleep = "SLEEP"
	cmdEcho  = "ECHO"

	// BlinkCount сколько раз прошивка переключает светодиод по команде LED
	BlinkCount = 3
	// BlinkInterval пауза между переключениями
	BlinkInterval = 300 * time.Millisecond
	// SleepDuration длительность команды SLEEP
	SleepDuration = time.Second

	// UnknownCommand ответ на нераспознанную команду
	UnknownCommand = "ERR unknown command"
)

// Responder виртуальная прошивка: читает команды построчно и отвечает одной строкой.
// Неисправности устройства видны в ответах.
type Responder struct {
	dev    *device.Device
	sleep  func(time.Duration)
	logger *slog.Logger
}

// ResponderOption настройка прошивки
type ResponderOption func(*Responder)

// WithResponderSleeper подменяет паузы LED и SLEEP
func WithResponderSleeper(sleep func(time.Duration)) ResponderOption {
	return func(r *Responder) { r.sleep = sleep }
}

// WithResponderLogger логгер
func WithResponderLogger(l *slog.Logger) ResponderOption {
	return func(r *Responder) { r.logger = l }
}

// NewResponder создает прошивку поверх устройства
func NewResponder(dev *device.Device, opts ...ResponderOption) *Responder {
	r := &Responder{
		dev:    dev,
		sleep:  time.Sleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle обрабатывает одну команду
func (r *Responder) Handle(line string) string {
	line = strings.TrimSpace(line)
	name, arg, _ := strings.Cut(line, " ")

	var resp string
	switch {
	case line == cmdLED:
		for i := 0; i < BlinkCount; i++ {
			r.dev.ToggleLED()
			r.sleep(BlinkInterval)
		}
		resp = "LED OK"
	case line == cmdADC:
		resp = fmt.Sprintf("ADC: %d", r.dev.ReadAnalog())
	case line == cmdSleep:
		r.sleep(SleepDuration)
		resp = "SLEEP OK"
	case name == cmdEcho:
		resp = "ECHO: " + arg
	default:
		metrics.BridgeCommands.WithLabelValues("device", "other", "error").Inc()
		r.logger.Warn("unknown bridge command", "line", line)
		return UnknownCommand
	}
	metrics.BridgeCommands.WithLabelValues("device", name, "success").Inc()
	return resp
}

// Serve цикл прошивки до закрытия потока. Блокирующее чтение контекстом не
// прерывается: чтобы остановить цикл, закройте соединение.
func (r *Responder) Serve(ctx context.Context, rw io.ReadWriter) error {
	scanner := bufio.NewScanner(rw)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := io.WriteString(rw, r.Handle(line)+"\n"); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}
