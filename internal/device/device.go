// Package device собирает виртуальную периферию платы в одно устройство.
// Устройство единственный владелец состояния своей периферии и своего генератора
// случайных чисел, поэтому разные экземпляры полностью независимы.
package device

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"pico-faultsim/internal/fault"
	"pico-faultsim/internal/models"
	"pico-faultsim/internal/peripheral"
)

const (
	// MetricPower имя метрики потребляемого тока
	MetricPower = "power_mA"

	// DefaultPowerMA ток исправной платы
	DefaultPowerMA = 50
	// DefaultHighCurrentMA ток при неисправности HighCurrent без параметра value
	DefaultHighCurrentMA = 200

	ledName = "LED25"
	gp0Name = "GP0"
	usbName = "USB"
	adcID   = 26
)

// Device виртуальная плата: светодиод, GPIO, канал АЦП, флаг USB и метрики
type Device struct {
	LED *peripheral.Pin
	GP0 *peripheral.Pin
	ADC *peripheral.AnalogChannel
	USB *peripheral.ConnectivityFlag

	metrics     map[string]float64
	powerFaults []fault.Spec

	rng      fault.Rand
	recorder fault.Recorder
	logger   *slog.Logger
	sleep    func(time.Duration)
	lenient  bool
}

// Option настройка устройства
type Option func(*Device)

// WithRecorder задает получателя событий неисправностей
func WithRecorder(r fault.Recorder) Option {
	return func(d *Device) { d.recorder = r }
}

// WithLogger задает логгер
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) { d.logger = l }
}

// WithSleeper подменяет блокирующее ожидание Delay-неисправности
func WithSleeper(sleep func(time.Duration)) Option {
	return func(d *Device) { d.sleep = sleep }
}

// WithLenientKinds разрешает подключать типы, которые периферия не интерпретирует
func WithLenientKinds(lenient bool) Option {
	return func(d *Device) { d.lenient = lenient }
}

// New создает устройство с собственным генератором, инициализированным seed
func New(seed int64, opts ...Option) *Device {
	d := &Device{
		metrics:  map[string]float64{MetricPower: DefaultPowerMA},
		rng:      fault.NewRand(seed),
		recorder: fault.Discard,
		logger:   slog.Default(),
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}

	env := peripheral.Env{
		Rand:     d.rng,
		Recorder: d.recorder,
		Logger:   d.logger,
		Lenient:  d.lenient,
	}
	d.LED = peripheral.NewPin(ledName, env)
	d.GP0 = peripheral.NewPin(gp0Name, env)
	d.ADC = peripheral.NewAnalogChannel(adcID, env)
	d.USB = peripheral.NewConnectivityFlag(usbName, env)
	return d
}

// AddFault подключает неисправность к выбранной периферии
func (d *Device) AddFault(target Target, s fault.Spec) error {
	var err error
	switch target {
	case TargetLED:
		err = d.LED.AddFault(s)
	case TargetGP0:
		err = d.GP0.AddFault(s)
	case TargetADC:
		err = d.ADC.AddFault(s)
	case TargetUSB:
		err = d.USB.AddFault(s)
	case TargetPower:
		err = d.addPowerFault(s)
	default:
		return fmt.Errorf("%w: unknown fault target %s", fault.ErrConfiguration, target)
	}
	if err != nil {
		return fmt.Errorf("attach %s fault to %s: %w", s.Kind, target, err)
	}
	d.logger.Debug("fault attached", "target", target.String(), "kind", s.Kind.String(),
		"probability", s.Probability)
	return nil
}

func (d *Device) addPowerFault(s fault.Spec) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Kind != fault.HighCurrent {
		if !d.lenient {
			return fmt.Errorf("%w: power rail does not support fault kind %s", fault.ErrConfiguration, s.Kind)
		}
		d.logger.Warn("fault kind not interpreted by peripheral, ignoring",
			"peripheral", "power", "kind", s.Kind.String())
	}
	s.Params = s.Params.Clone()
	d.powerFaults = append(d.powerFaults, s)
	return nil
}

// Toggle переключает вывод. Сработавшая Delay-неисправность блокирует вызов,
// ожидание не прерывается.
func (d *Device) Toggle(pin *peripheral.Pin) {
	if delay := pin.PendingDelay(); delay > 0 {
		d.logger.Debug("toggle delayed", "pin", pin.Name(), "delay", delay)
		d.sleep(delay)
	}
	prev := pin.Read()
	var next uint8
	if prev == 0 {
		next = 1
	}
	pin.Write(next)
}

// ToggleLED переключает светодиод и возвращает наблюдаемое состояние
func (d *Device) ToggleLED() uint8 {
	d.Toggle(d.LED)
	return d.LED.Read()
}

// ReadAnalog читает канал АЦП
func (d *Device) ReadAnalog() uint16 {
	return d.ADC.ReadU16()
}

// CheckConnectivity применяет неисправности USB и возвращает состояние подключения
func (d *Device) CheckConnectivity() bool {
	d.USB.ApplyFaults()
	return d.USB.Connected()
}

// CheckPower применяет неисправности питания и возвращает ток в мА
func (d *Device) CheckPower() float64 {
	for _, f := range d.powerFaults {
		if f.Kind != fault.HighCurrent || !f.Trigger(d.rng) {
			continue
		}
		before := d.metrics[MetricPower]
		d.metrics[MetricPower] = f.Params.Float("value", DefaultHighCurrentMA)
		d.recorder.Record(fault.Event{
			Peripheral: "power", Kind: f.Kind, Op: "check",
			Before: before, After: d.metrics[MetricPower],
		})
	}
	return d.metrics[MetricPower]
}

// Metrics копия метрик устройства
func (d *Device) Metrics() map[string]float64 {
	return maps.Clone(d.metrics)
}

// FaultCount число подключенных неисправностей
func (d *Device) FaultCount() int {
	return len(d.LED.Faults()) + len(d.GP0.Faults()) + len(d.ADC.Faults()) +
		len(d.USB.Faults()) + len(d.powerFaults)
}

// SmokeResult результат дымового прогона
type SmokeResult struct {
	LEDStates    models.Bits        `json:"led_states"`
	ADC          uint16             `json:"adc"`
	USBConnected bool               `json:"usb_connected"`
	Metrics      map[string]float64 `json:"metrics"`
}

// RunScenario фиксированная последовательность для дымового теста:
// два переключения, одно чтение АЦП, проверка USB и проверка питания
func (d *Device) RunScenario() SmokeResult {
	d.logger.Info("Starting device scenario run", "faults", d.FaultCount())

	res := SmokeResult{}
	for i := 0; i < 2; i++ {
		state := d.ToggleLED()
		res.LEDStates = append(res.LEDStates, state)
		d.logger.Info("LED toggled", "state", state)
	}

	res.ADC = d.ReadAnalog()
	d.logger.Info("ADC read", "value", res.ADC)

	res.USBConnected = d.CheckConnectivity()
	d.logger.Info("USB checked", "connected", res.USBConnected)

	d.CheckPower()
	res.Metrics = d.Metrics()
	d.logger.Info("Metrics collected", "power_mA", res.Metrics[MetricPower])

	return res
}
