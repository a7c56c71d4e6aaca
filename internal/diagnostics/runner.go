// Package diagnostics прогоняет сценарии неисправностей на виртуальном устройстве,
// собирает наблюдения, передает их детектору и сверяет внедренное с обнаруженным.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pico-faultsim/internal/analytics"
	"pico-faultsim/internal/device"
	"pico-faultsim/internal/fault"
	"pico-faultsim/internal/logging"
	"pico-faultsim/internal/metrics"
	"pico-faultsim/internal/models"
	"pico-faultsim/internal/scenario"
)

// DefaultRounds число раундов, если ни сценарий, ни вызывающий его не задали
const DefaultRounds = 5

// Sink получатель готовых отчетов
type Sink interface {
	StoreReport(report models.Report) error
}

// Runner цикл диагностики
type Runner struct {
	detector *analytics.Detector
	seed     int64
	rounds   int
	workers  int
	lenient  bool
	recorder fault.Recorder
	events   *logging.EventLog
	sinks    []Sink
	logger   *slog.Logger
	sleep    func(time.Duration)
	now      func() time.Time
}

// Option настройка Runner
type Option func(*Runner)

// WithSeed seed генератора каждого устройства
func WithSeed(seed int64) Option { return func(r *Runner) { r.seed = seed } }

// WithRounds число раундов по умолчанию
func WithRounds(n int) Option { return func(r *Runner) { r.rounds = n } }

// WithWorkers число сценариев, выполняемых параллельно
func WithWorkers(n int) Option { return func(r *Runner) { r.workers = n } }

// WithLenientKinds см. device.WithLenientKinds
func WithLenientKinds(lenient bool) Option { return func(r *Runner) { r.lenient = lenient } }

// WithRecorder общий получатель событий неисправностей
func WithRecorder(rec fault.Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// WithEventLog JSONL-журнал событий с именем сценария
func WithEventLog(el *logging.EventLog) Option { return func(r *Runner) { r.events = el } }

// WithSink добавляет получателя отчетов
func WithSink(s Sink) Option { return func(r *Runner) { r.sinks = append(r.sinks, s) } }

// WithLogger логгер
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithSleeper подменяет ожидание Delay-неисправностей
func WithSleeper(sleep func(time.Duration)) Option { return func(r *Runner) { r.sleep = sleep } }

// NewRunner создает цикл диагностики
func NewRunner(detector *analytics.Detector, opts ...Option) *Runner {
	r := &Runner{
		detector: detector,
		rounds:   DefaultRounds,
		workers:  1,
		recorder: fault.Discard,
		logger:   slog.Default(),
		sleep:    time.Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

// Sample наблюдения одного раунда
type Sample struct {
	LED     uint8
	ADC     uint16
	USB     bool
	PowerMA float64
}

// SampleRound один раунд: переключение LED, чтение АЦП, проверка USB и питания
func SampleRound(d *device.Device) Sample {
	return Sample{
		LED:     d.ToggleLED(),
		ADC:     d.ReadAnalog(),
		USB:     d.CheckConnectivity(),
		PowerMA: d.CheckPower(),
	}
}

// NewDevice создает устройство со своим генератором и подключает неисправности сценария
func (r *Runner) NewDevice(s *scenario.Scenario) (*device.Device, error) {
	d := device.New(r.seed,
		device.WithRecorder(fault.Tee(r.recorder, r.events.Scoped(s.Name))),
		device.WithLogger(r.logger.With("scenario", s.Name)),
		device.WithSleeper(r.sleep),
		device.WithLenientKinds(r.lenient),
	)
	if err := s.Apply(d); err != nil {
		return nil, err
	}
	for _, inj := range s.Faults {
		if !inj.Spec.Enabled {
			continue
		}
		metrics.FaultsInjected.WithLabelValues(inj.Target.String(), inj.Spec.Kind.String()).Inc()
	}
	return d, nil
}

// Rounds число раундов для сценария
func (r *Runner) Rounds(s *scenario.Scenario) int {
	if s.Rounds > 0 {
		return s.Rounds
	}
	return r.rounds
}

// Run прогоняет сценарий с его числом раундов
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (models.Report, error) {
	return r.RunN(ctx, s, r.Rounds(s))
}

// RunN прогоняет сценарий заданное число раундов. Отмена контекста проверяется
// между раундами; начатая задержка досыпается до конца.
func (r *Runner) RunN(ctx context.Context, s *scenario.Scenario, rounds int) (models.Report, error) {
	if rounds < 1 {
		return models.Report{}, fmt.Errorf("%w: scenario %q needs at least one round, got %d",
			fault.ErrConfiguration, s.Name, rounds)
	}
	start := r.now()

	d, err := r.NewDevice(s)
	if err != nil {
		return models.Report{}, err
	}

	metrics.ActiveDevices.Inc()
	defer metrics.ActiveDevices.Dec()

	obs := analytics.Observations{
		ADC: make([]uint16, 0, rounds),
		LED: make([]uint8, 0, rounds),
		USB: make([]bool, 0, rounds),
	}
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return models.Report{}, fmt.Errorf("scenario %q interrupted after %d rounds: %w", s.Name, i, err)
		}
		sample := SampleRound(d)
		obs.ADC = append(obs.ADC, sample.ADC)
		obs.LED = append(obs.LED, sample.LED)
		obs.USB = append(obs.USB, sample.USB)
		metrics.ADCReading.Observe(float64(sample.ADC))
	}

	labels, err := r.detector.Analyze(obs)
	if err != nil {
		return models.Report{}, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	detected := make([]string, len(labels))
	for i, l := range labels {
		detected[i] = string(l)
		metrics.FaultsDetected.WithLabelValues(s.Name, string(l)).Inc()
	}

	injected := InjectedCount(s)
	status := DeriveStatus(injected, detected)
	elapsed := r.now().Sub(start)

	report := models.Report{
		RunID:          uuid.NewString(),
		Scenario:       s.Name,
		Seed:           r.seed,
		Rounds:         rounds,
		InjectedFaults: injected,
		DetectedLabels: detected,
		Status:         status,
		Observations: models.Observations{
			ADC: obs.ADC,
			LED: obs.LED,
			USB: obs.USB,
		},
		Final: models.FinalState{
			DriftAccumulator: d.ADC.DriftAccumulator(),
			USBConnected:     d.USB.Connected(),
			Metrics:          d.Metrics(),
		},
		Timestamp: start,
		Duration:  elapsed.Seconds(),
	}

	metrics.ScenarioRuns.WithLabelValues(s.Name, status.String()).Inc()
	metrics.ScenarioDuration.Observe(elapsed.Seconds())
	r.logger.Info("scenario finished",
		"scenario", s.Name,
		"rounds", rounds,
		"injected", injected,
		"detected", detected,
		"status", status.String(),
	)

	r.publish(report)
	return report, nil
}

// RunAll прогоняет сценарии параллельно; у каждого свое устройство.
// Отчеты возвращаются в порядке сценариев.
func (r *Runner) RunAll(ctx context.Context, scenarios []*scenario.Scenario) ([]models.Report, error) {
	reports := make([]models.Report, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, s := range scenarios {
		g.Go(func() error {
			report, err := r.Run(gctx, s)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *Runner) publish(report models.Report) {
	for _, sink := range r.sinks {
		if err := sink.StoreReport(report); err != nil {
			metrics.RedisOperations.WithLabelValues("store_report", "error").Inc()
			r.logger.Warn("failed to store report", "scenario", report.Scenario, "error", err)
			continue
		}
		metrics.RedisOperations.WithLabelValues("store_report", "success").Inc()
	}
}

// InjectedCount число включенных неисправностей сценария
func InjectedCount(s *scenario.Scenario) int {
	n := 0
	for _, inj := range s.Faults {
		if inj.Spec.Enabled {
			n++
		}
	}
	return n
}

// DeriveStatus сверяет внедренное с обнаруженным.
// StatusUnknown не возвращается: три ветки покрывают все комбинации.
func DeriveStatus(injected int, detected []string) models.Status {
	switch {
	case len(detected) > 0:
		return models.StatusFaultDetected
	case injected == 0:
		return models.StatusAllNormal
	default:
		return models.StatusFaultMissed
	}
}

// Stats параметры цикла для /stats
func (r *Runner) Stats() map[string]interface{} {
	return map[string]interface{}{
		"seed":         r.seed,
		"rounds":       r.rounds,
		"workers":      r.workers,
		"strict_kinds": !r.lenient,
		"report_sinks": len(r.sinks),
		"detector":     r.detector.Stats(),
	}
}
