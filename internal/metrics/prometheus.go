package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pico-faultsim/internal/fault"
)

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultsim_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "faultsim_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// FaultsInjected неисправности, подключенные к периферии
	FaultsInjected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultsim_faults_injected_total",
			Help: "Total number of faults attached to peripherals",
		},
		[]string{"target", "kind"},
	)

	// FaultsTriggered сработавшие неисправности
	FaultsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultsim_faults_triggered_total",
			Help: "Total number of fault triggers per peripheral",
		},
		[]string{"peripheral", "kind"},
	)

	// FaultsDetected обнаруженные детектором неисправности
	FaultsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultsim_faults_detected_total",
			Help: "Total number of fault labels produced by the detector",
		},
		[]string{"scenario", "label"},
	)

	// ScenarioRuns прогоны сценариев по статусу
	ScenarioRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultsim_scenario_runs_total",
			Help: "Total number of diagnostic runs by status",
		},
		[]string{"scenario", "status"},
	)

	// ScenarioDuration длительность прогона
	ScenarioDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faultsim_scenario_duration_seconds",
			Help:    "Diagnostic run duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	// DriftAccumulator последнее значение накопленного дрейфа
	DriftAccumulator = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "faultsim_drift_accumulator",
			Help: "Last observed drift accumulator value",
		},
		[]string{"peripheral"},
	)

	// ADCReading распределение показаний АЦП
	ADCReading = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "faultsim_adc_reading",
			Help:    "Observed 16-bit ADC readings",
			Buckets: prometheus.LinearBuckets(0, 4096, 17),
		},
	)

	// DelaySeconds суммарное время, проведенное в Delay-неисправностях
	DelaySeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "faultsim_delay_seconds_total",
			Help: "Total time spent blocked by delay faults",
		},
	)

	// ActiveDevices устройства, которые сейчас проходят диагностику
	ActiveDevices = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "faultsim_active_devices",
			Help: "Number of virtual devices currently running diagnostics",
		},
	)

	// RedisOperations операции с Redis
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultsim_redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	// BridgeCommands команды, отправленные прошивке
	BridgeCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "faultsim_bridge_commands_total",
			Help: "Total number of commands exchanged over the device bridge",
		},
		[]string{"side", "command", "status"},
	)
)

// Recorder переводит события неисправностей в метрики
type Recorder struct{}

// Record реализует fault.Recorder
func (Recorder) Record(e fault.Event) {
	FaultsTriggered.WithLabelValues(e.Peripheral, e.Kind.String()).Inc()
	switch e.Kind {
	case fault.Delay:
		DelaySeconds.Add(e.After)
	case fault.Drift:
		DriftAccumulator.WithLabelValues(e.Peripheral).Set(e.After - e.Before)
	}
}
