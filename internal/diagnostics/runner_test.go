package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pico-faultsim/internal/analytics"
	"pico-faultsim/internal/device"
	"pico-faultsim/internal/fault"
	"pico-faultsim/internal/logging"
	"pico-faultsim/internal/models"
	"pico-faultsim/internal/peripheral"
	"pico-faultsim/internal/scenario"
)

type memorySink struct {
	mu      sync.Mutex
	reports []models.Report
	err     error
}

func (m *memorySink) StoreReport(r models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

func newTestRunner(opts ...Option) *Runner {
	base := []Option{
		WithSeed(42),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithSleeper(func(time.Duration) {}),
	}
	return NewRunner(analytics.NewDetector(analytics.DefaultThresholds()), append(base, opts...)...)
}

func mustLoad(t *testing.T, name string) *scenario.Scenario {
	t.Helper()
	s, err := scenario.Load(name)
	require.NoError(t, err)
	return s
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		injected int
		detected []string
		want     models.Status
	}{
		{"nothing", 0, nil, models.StatusAllNormal},
		{"missed", 2, nil, models.StatusFaultMissed},
		{"detected", 1, []string{"LED stuck"}, models.StatusFaultDetected},
		{"false positive still detected", 0, []string{"ADC noisy"}, models.StatusFaultDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.injected, tt.detected))
		})
	}
}

func TestAdcDrift_AccumulatorPerRound(t *testing.T) {
	r := newTestRunner()
	d, err := r.NewDevice(mustLoad(t, "adc_drift"))
	require.NoError(t, err)

	var last Sample
	for k := 1; k <= 5; k++ {
		last = SampleRound(d)
		assert.Equal(t, int32(200*k), d.ADC.DriftAccumulator(), "round %d", k)
	}
	assert.GreaterOrEqual(t, int(last.ADC), peripheral.DefaultBaseline+1000)
}

func TestAdcDrift_FiveRoundsBelowMeanThreshold(t *testing.T) {
	r := newTestRunner()
	report, err := r.Run(context.Background(), mustLoad(t, "adc_drift"))
	require.NoError(t, err)

	assert.Equal(t, DefaultRounds, report.Rounds)
	assert.Equal(t, int32(1000), report.Final.DriftAccumulator)
	assert.Equal(t, uint16(peripheral.DefaultBaseline+1000), report.Observations.ADC[4])
	// среднее смещение 600 < 5000, разброс ~283 < 1500
	assert.Empty(t, report.DetectedLabels)
	assert.Equal(t, models.StatusFaultMissed, report.Status)
	assert.Equal(t, 1, report.InjectedFaults)
}

func TestAdcDrift_LongWindowCaughtAsSpread(t *testing.T) {
	r := newTestRunner()
	report, err := r.RunN(context.Background(), mustLoad(t, "adc_drift"), 50)
	require.NoError(t, err)

	assert.Equal(t, int32(200*50), report.Final.DriftAccumulator)
	// линейный рост дает разброс больше порога шума раньше, чем среднее уходит на 5000
	assert.Equal(t, []string{string(analytics.LabelADCNoisy)}, report.DetectedLabels)
	assert.Equal(t, models.StatusFaultDetected, report.Status)
}

func TestConstantOffsetDetectedAsDrift(t *testing.T) {
	list, err := scenario.Parse([]byte(`
name: adc_offset
faults:
  - target: adc
    kind: offset
    params: {offset: 6000}
`))
	require.NoError(t, err)

	report, err := newTestRunner().Run(context.Background(), list[0])
	require.NoError(t, err)
	assert.Equal(t, []string{string(analytics.LabelADCDrift)}, report.DetectedLabels)
	assert.Equal(t, models.StatusFaultDetected, report.Status)
}

func TestNoFaults_AllNormal(t *testing.T) {
	r := newTestRunner()
	report, err := r.Run(context.Background(), mustLoad(t, "no_faults"))
	require.NoError(t, err)

	assert.Equal(t, 5, report.Rounds)
	assert.Empty(t, report.DetectedLabels)
	assert.Equal(t, models.StatusAllNormal, report.Status)
	assert.Equal(t, models.Bits{1, 0, 1, 0, 1}, report.Observations.LED)
	assert.True(t, report.Final.USBConnected)
	assert.Equal(t, float64(device.DefaultPowerMA), report.Final.Metrics[device.MetricPower])
	assert.NotEmpty(t, report.RunID)
}

func TestLedStuckHigh(t *testing.T) {
	r := newTestRunner()
	report, err := r.Run(context.Background(), mustLoad(t, "led_stuck_high"))
	require.NoError(t, err)
	assert.Equal(t, models.Bits{1, 1, 1, 1, 1}, report.Observations.LED)
	assert.Equal(t, []string{string(analytics.LabelLEDStuck)}, report.DetectedLabels)
	assert.Equal(t, models.StatusFaultDetected, report.Status)
}

func TestUsbDisconnect(t *testing.T) {
	r := newTestRunner()
	report, err := r.Run(context.Background(), mustLoad(t, "usb_disconnect"))
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false, false}, report.Observations.USB)
	assert.Equal(t, []string{string(analytics.LabelUSBDisconnect)}, report.DetectedLabels)
}

func TestAdcNoisyAndLedDelay(t *testing.T) {
	var slept []time.Duration
	r := newTestRunner(WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	report, err := r.RunN(context.Background(), mustLoad(t, "adc_noisy_and_led_delay"), 400)
	require.NoError(t, err)

	assert.Equal(t, []string{string(analytics.LabelADCNoisy)}, report.DetectedLabels)
	assert.Len(t, slept, 400)
	assert.Equal(t, 500*time.Millisecond, slept[0])
	assert.Equal(t, 2, report.InjectedFaults)
}

func TestDisabledFaultsAreNotInjected(t *testing.T) {
	list, err := scenario.Parse([]byte(`
name: disabled
faults:
  - target: led
    kind: stuck
    enabled: false
`))
	require.NoError(t, err)

	report, err := newTestRunner().Run(context.Background(), list[0])
	require.NoError(t, err)
	assert.Zero(t, report.InjectedFaults)
	assert.Equal(t, models.StatusAllNormal, report.Status)
}

func TestMissedFault(t *testing.T) {
	list, err := scenario.Parse([]byte(`
name: power_only
faults:
  - target: power
    kind: high_current
    params: {value: 450}
`))
	require.NoError(t, err)

	report, err := newTestRunner().Run(context.Background(), list[0])
	require.NoError(t, err)
	assert.Equal(t, models.StatusFaultMissed, report.Status)
	assert.Equal(t, 450.0, report.Final.Metrics[device.MetricPower])
}

func TestRunN_RejectsZeroRounds(t *testing.T) {
	_, err := newTestRunner().RunN(context.Background(), mustLoad(t, "no_faults"), 0)
	require.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRunner().Run(ctx, mustLoad(t, "no_faults"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_Reproducible(t *testing.T) {
	s := mustLoad(t, "adc_noisy_and_led_delay")
	a, err := newTestRunner().RunN(context.Background(), s, 30)
	require.NoError(t, err)
	b, err := newTestRunner().RunN(context.Background(), s, 30)
	require.NoError(t, err)
	assert.Equal(t, a.Observations, b.Observations)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunAll(t *testing.T) {
	sink := &memorySink{}
	r := newTestRunner(WithWorkers(3), WithSink(sink))

	c, err := scenario.Builtin()
	require.NoError(t, err)
	all, err := c.Select()
	require.NoError(t, err)

	reports, err := r.RunAll(context.Background(), all)
	require.NoError(t, err)
	require.Len(t, reports, len(all))
	for i, s := range all {
		assert.Equal(t, s.Name, reports[i].Scenario)
	}
	assert.Len(t, sink.reports, len(all))

	byName := map[string]models.Report{}
	for _, rep := range reports {
		byName[rep.Scenario] = rep
	}
	assert.Equal(t, models.StatusAllNormal, byName["no_faults"].Status)
	assert.Equal(t, models.StatusFaultDetected, byName["adc_drift"].Status)
	assert.Equal(t, models.StatusFaultDetected, byName["led_stuck_high"].Status)
	assert.Equal(t, models.StatusFaultDetected, byName["usb_disconnect"].Status)
}

func TestRunAll_PropagatesConfigErrors(t *testing.T) {
	list, err := scenario.Parse([]byte("name: bad\nfaults:\n  - target: usb\n    kind: drift\n"))
	require.NoError(t, err)
	_, err = newTestRunner().RunAll(context.Background(), list)
	require.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestLenientRunner(t *testing.T) {
	list, err := scenario.Parse([]byte("name: lenient\nfaults:\n  - target: usb\n    kind: drift\n"))
	require.NoError(t, err)
	report, err := newTestRunner(WithLenientKinds(true)).Run(context.Background(), list[0])
	require.NoError(t, err)
	assert.Equal(t, models.StatusFaultMissed, report.Status)
}

func TestSinkErrorDoesNotFailRun(t *testing.T) {
	sink := &memorySink{err: errors.New("redis down")}
	_, err := newTestRunner(WithSink(sink)).Run(context.Background(), mustLoad(t, "no_faults"))
	require.NoError(t, err)
}

func TestEventLogCarriesScenario(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRunner(WithEventLog(logging.NewEventLog(&buf)))
	_, err := r.Run(context.Background(), mustLoad(t, "usb_disconnect"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"scenario":"usb_disconnect"`)
	assert.Contains(t, buf.String(), `"kind":"disconnect"`)
}

func TestStats(t *testing.T) {
	stats := newTestRunner(WithRounds(7)).Stats()
	assert.Equal(t, 7, stats["rounds"])
	assert.Equal(t, int64(42), stats["seed"])
}
