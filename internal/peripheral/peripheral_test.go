package peripheral

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pico-faultsim/internal/fault"
)

type eventLog struct{ events []fault.Event }

func (l *eventLog) Record(e fault.Event) { l.events = append(l.events, e) }

func testEnv(seed int64) (Env, *eventLog) {
	log := &eventLog{}
	return Env{Rand: fault.NewRand(seed), Recorder: log}, log
}

func TestPin_NoFaults(t *testing.T) {
	env, _ := testEnv(1)
	p := NewPin("LED25", env)
	assert.Equal(t, uint8(0), p.Read())
	p.Write(5)
	assert.Equal(t, uint8(1), p.Read(), "non-zero writes normalise to 1")
	p.Write(0)
	assert.Equal(t, uint8(0), p.Read())
}

func TestPin_Stuck(t *testing.T) {
	env, log := testEnv(1)
	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Stuck, 1.0, fault.Params{"value": 0})))

	p.Write(1)
	assert.Equal(t, uint8(0), p.State(), "write overwrites logical state with the stuck value")
	assert.Equal(t, uint8(0), p.Read())

	require.Len(t, log.events, 2)
	assert.Equal(t, "write", log.events[0].Op)
	assert.Equal(t, fault.Stuck, log.events[0].Kind)
	assert.Equal(t, "read", log.events[1].Op)
}

func TestPin_StuckDefaultsHigh(t *testing.T) {
	env, _ := testEnv(1)
	p := NewPin("GP0", env)
	require.NoError(t, p.AddFault(fault.New(fault.Stuck, 1.0, nil)))
	assert.Equal(t, uint8(1), p.Read())
	assert.Equal(t, uint8(0), p.State(), "read does not touch logical state")
}

func TestPin_FirstTriggerWins(t *testing.T) {
	env, log := testEnv(3)
	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Stuck, 1.0, fault.Params{"value": 1})))
	require.NoError(t, p.AddFault(fault.New(fault.Flip, 1.0, nil)))

	for i := 0; i < 10; i++ {
		assert.Equal(t, uint8(1), p.Read())
	}
	assert.Equal(t, uint8(0), p.State(), "flip behind a firing stuck fault is never evaluated")
	for _, e := range log.events {
		assert.Equal(t, fault.Stuck, e.Kind)
	}
}

func TestPin_SkipsNonTriggering(t *testing.T) {
	env, _ := testEnv(3)
	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Stuck, 0.0, fault.Params{"value": 1})))
	require.NoError(t, p.AddFault(fault.New(fault.Flip, 1.0, nil)))

	assert.Equal(t, uint8(1), p.Read())
	assert.Equal(t, uint8(0), p.Read())
	assert.Equal(t, uint8(1), p.Read())
}

func TestPin_Intermittent(t *testing.T) {
	env, _ := testEnv(11)
	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Intermittent, 1.0, fault.Params{
		"p_on": 0.5, "value_on": 1, "value_off": 0,
	})))

	ones := 0
	const n = 4000
	for i := 0; i < n; i++ {
		ones += int(p.Read())
	}
	assert.InDelta(t, 0.5, float64(ones)/n, 0.05)
	assert.Equal(t, uint8(0), p.State(), "intermittent ignores stored state")
}

func TestPin_IntermittentAlwaysOn(t *testing.T) {
	env, _ := testEnv(11)
	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Intermittent, 1.0, fault.Params{"p_on": 1.0})))
	for i := 0; i < 20; i++ {
		assert.Equal(t, uint8(1), p.Read())
	}
}

func TestPin_DelayOnlyAffectsToggle(t *testing.T) {
	env, log := testEnv(1)
	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Delay, 1.0, fault.Params{"delay_s": 0.25})))

	p.Write(1)
	assert.Equal(t, uint8(1), p.Read())
	assert.Empty(t, log.events)

	assert.Equal(t, 250*time.Millisecond, p.PendingDelay())
	require.Len(t, log.events, 1)
	assert.Equal(t, fault.Delay, log.events[0].Kind)
	assert.Equal(t, 0.25, log.events[0].After)
}

func TestPin_DelayDefault(t *testing.T) {
	env, _ := testEnv(1)
	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Delay, 1.0, nil)))
	assert.Equal(t, DefaultDelay, p.PendingDelay())

	q := NewPin("GP0", env)
	assert.Zero(t, q.PendingDelay())
}

func TestPin_RejectsAnalogKinds(t *testing.T) {
	env, _ := testEnv(1)
	p := NewPin("LED25", env)
	err := p.AddFault(fault.New(fault.Drift, 1.0, nil))
	require.ErrorIs(t, err, fault.ErrConfiguration)
	assert.Empty(t, p.Faults())
}

func TestPin_LenientWarnsAndIgnores(t *testing.T) {
	var buf bytes.Buffer
	env, _ := testEnv(1)
	env.Lenient = true
	env.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	p := NewPin("LED25", env)
	require.NoError(t, p.AddFault(fault.New(fault.Drift, 1.0, nil)))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "kind=drift")

	p.Write(1)
	assert.Equal(t, uint8(1), p.Read())
}

func TestAddFault_RejectsBadProbability(t *testing.T) {
	env, _ := testEnv(1)
	a := NewAnalogChannel(26, env)
	require.ErrorIs(t, a.AddFault(fault.New(fault.Noisy, 1.2, nil)), fault.ErrConfiguration)
	require.ErrorIs(t, a.AddFault(fault.New(fault.Noisy, -1, nil)), fault.ErrConfiguration)
}

func TestAddFault_RejectsOutOfRangeParams(t *testing.T) {
	tests := []struct {
		name   string
		kind   fault.Kind
		params fault.Params
	}{
		{"huge amplitude", fault.Noisy, fault.Params{"amplitude": 5e18}},
		{"negative amplitude", fault.Noisy, fault.Params{"amplitude": -1}},
		{"step beyond int32", fault.Drift, fault.Params{"step": 3e9}},
		{"offset beyond int32", fault.Offset, fault.Params{"offset": 1e10}},
		{"infinite brownout", fault.Brownout, fault.Params{"value": math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := testEnv(1)
			a := NewAnalogChannel(26, env)
			require.ErrorIs(t, a.AddFault(fault.New(tt.kind, 1.0, tt.params)), fault.ErrConfiguration)
			assert.Empty(t, a.Faults())
			assert.Equal(t, uint16(DefaultBaseline), a.ReadU16())
		})
	}
}

func TestAnalog_NoisyFullAmplitude(t *testing.T) {
	env, _ := testEnv(3)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Noisy, 1.0, fault.Params{"amplitude": 65535})))
	assert.NotPanics(t, func() {
		for i := 0; i < 200; i++ {
			a.ReadU16()
		}
	})
}

func TestAnalog_DriftSaturates(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Drift, 1.0, fault.Params{"step": math.MaxInt32})))

	prev := a.DriftAccumulator()
	for i := 0; i < 5; i++ {
		assert.Equal(t, uint16(MaxReading), a.ReadU16())
		acc := a.DriftAccumulator()
		assert.GreaterOrEqual(t, acc, prev, "read %d", i)
		prev = acc
	}
	assert.Equal(t, int32(math.MaxInt32), prev)
}

func TestAddFault_ClonesParams(t *testing.T) {
	env, _ := testEnv(1)
	a := NewAnalogChannel(26, env)
	params := fault.Params{"offset": 100}
	require.NoError(t, a.AddFault(fault.New(fault.Offset, 1.0, params)))
	params["offset"] = 9000
	assert.Equal(t, uint16(DefaultBaseline+100), a.ReadU16())
}

func TestAnalog_Baseline(t *testing.T) {
	env, _ := testEnv(1)
	a := NewAnalogChannel(26, env)
	assert.Equal(t, "ADC26", a.Name())
	for i := 0; i < 5; i++ {
		assert.Equal(t, uint16(DefaultBaseline), a.ReadU16())
	}
}

func TestAnalog_Stuck(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Stuck, 1.0, fault.Params{"value": 40000})))
	for i := 0; i < 10; i++ {
		assert.Equal(t, uint16(40000), a.ReadU16())
	}
}

func TestAnalog_StuckWithoutValueKeepsRunningValue(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Offset, 1.0, fault.Params{"offset": 10})))
	require.NoError(t, a.AddFault(fault.New(fault.Stuck, 1.0, nil)))
	assert.Equal(t, uint16(DefaultBaseline+10), a.ReadU16())
}

func TestAnalog_StuckOverridesEarlierFaults(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Noisy, 1.0, fault.Params{"amplitude": 3000})))
	require.NoError(t, a.AddFault(fault.New(fault.Drift, 1.0, fault.Params{"step": 100})))
	require.NoError(t, a.AddFault(fault.New(fault.Stuck, 1.0, fault.Params{"value": 1234})))
	for i := 0; i < 10; i++ {
		assert.Equal(t, uint16(1234), a.ReadU16())
	}
}

func TestAnalog_StuckThenNoisyIsOrderDependent(t *testing.T) {
	env, _ := testEnv(5)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Stuck, 1.0, fault.Params{"value": 40000})))
	require.NoError(t, a.AddFault(fault.New(fault.Noisy, 1.0, fault.Params{"amplitude": 500})))

	distinct := map[uint16]bool{}
	for i := 0; i < 100; i++ {
		v := a.ReadU16()
		assert.GreaterOrEqual(t, v, uint16(39500))
		assert.LessOrEqual(t, v, uint16(40500))
		distinct[v] = true
	}
	assert.Greater(t, len(distinct), 1, "noise after stuck must perturb the forced value")
}

func TestAnalog_DriftAccumulates(t *testing.T) {
	env, log := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Drift, 1.0, fault.Params{"step": 200})))

	for k := 1; k <= 5; k++ {
		v := a.ReadU16()
		assert.Equal(t, int32(200*k), a.DriftAccumulator())
		assert.Equal(t, uint16(DefaultBaseline+200*k), v)
	}
	require.Len(t, log.events, 5)
	assert.Equal(t, float64(DefaultBaseline+1000), log.events[4].After)
}

func TestAnalog_DriftDefaultStep(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Drift, 1.0, nil)))
	a.ReadU16()
	a.ReadU16()
	assert.Equal(t, int32(100), a.DriftAccumulator())
}

func TestAnalog_Offset(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Offset, 1.0, nil)))
	assert.Equal(t, uint16(DefaultBaseline+2000), a.ReadU16())
}

func TestAnalog_Brownout(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Offset, 1.0, fault.Params{"offset": 100})))
	require.NoError(t, a.AddFault(fault.New(fault.Brownout, 1.0, nil)))
	assert.Equal(t, uint16(5000), a.ReadU16())
}

func TestAnalog_NoisyWithinAmplitude(t *testing.T) {
	env, _ := testEnv(9)
	a := NewAnalogChannel(26, env)
	require.NoError(t, a.AddFault(fault.New(fault.Noisy, 1.0, fault.Params{"amplitude": 3000})))
	for i := 0; i < 500; i++ {
		v := int(a.ReadU16())
		assert.GreaterOrEqual(t, v, DefaultBaseline-3000)
		assert.LessOrEqual(t, v, DefaultBaseline+3000)
	}
}

func TestAnalog_Clamp(t *testing.T) {
	tests := []struct {
		name   string
		params fault.Params
		want   uint16
	}{
		{"upper", fault.Params{"offset": 40000}, MaxReading},
		{"lower", fault.Params{"offset": -40000}, 0},
		{"exact top", fault.Params{"offset": MaxReading - DefaultBaseline}, MaxReading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := testEnv(0)
			a := NewAnalogChannel(26, env)
			require.NoError(t, a.AddFault(fault.New(fault.Offset, 1.0, tt.params)))
			assert.Equal(t, tt.want, a.ReadU16())
		})
	}
}

func TestAnalog_RejectsDigitalKinds(t *testing.T) {
	env, _ := testEnv(0)
	a := NewAnalogChannel(26, env)
	require.ErrorIs(t, a.AddFault(fault.New(fault.Flip, 1.0, nil)), fault.ErrConfiguration)
	require.ErrorIs(t, a.AddFault(fault.New(fault.Disconnect, 1.0, nil)), fault.ErrConfiguration)
}

func TestConnectivity_DisconnectSticks(t *testing.T) {
	env, log := testEnv(2)
	c := NewConnectivityFlag("USB", env)
	assert.True(t, c.Connected())
	require.NoError(t, c.AddFault(fault.New(fault.Disconnect, 1.0, nil)))

	c.ApplyFaults()
	assert.False(t, c.Connected())
	for i := 0; i < 5; i++ {
		c.ApplyFaults()
		assert.False(t, c.Connected())
	}
	require.Len(t, log.events, 6)
	assert.Equal(t, 1.0, log.events[0].Before)
	assert.Equal(t, 0.0, log.events[1].Before)
}

func TestConnectivity_NeverTriggers(t *testing.T) {
	env, _ := testEnv(2)
	c := NewConnectivityFlag("USB", env)
	require.NoError(t, c.AddFault(fault.New(fault.Disconnect, 0.0, nil)))
	for i := 0; i < 100; i++ {
		c.ApplyFaults()
	}
	assert.True(t, c.Connected())
}

func TestConnectivity_LenientUnknownIsNoop(t *testing.T) {
	env, _ := testEnv(2)
	env.Lenient = true
	env.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	c := NewConnectivityFlag("USB", env)
	require.NoError(t, c.AddFault(fault.New(fault.Noisy, 1.0, nil)))
	c.ApplyFaults()
	assert.True(t, c.Connected())
	assert.Len(t, c.Faults(), 1)
}
