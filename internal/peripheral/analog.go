package peripheral

import (
	"fmt"
	"math"

	"pico-faultsim/internal/fault"
)

const (
	// DefaultBaseline показание исправного канала (середина 16-битной шкалы)
	DefaultBaseline = 32768
	// MaxReading верхняя граница 16-битного показания
	MaxReading = 65535

	defaultAmplitude = 1000
	defaultOffset    = 2000
	defaultDriftStep = 50
	defaultBrownout  = 5000
)

// AnalogKinds типы неисправностей, которые интерпретирует канал АЦП
var AnalogKinds = []fault.Kind{fault.Noisy, fault.Offset, fault.Drift, fault.Stuck, fault.Brownout}

// AnalogChannel канал АЦП. Неисправности аддитивные: применяются все сработавшие по порядку.
type AnalogChannel struct {
	name     string
	baseline uint16
	drift    int32
	faults   faultList
	env      Env
}

// NewAnalogChannel создает канал с базовым показанием 32768
func NewAnalogChannel(id int, env Env) *AnalogChannel {
	name := fmt.Sprintf("ADC%d", id)
	return &AnalogChannel{
		name:     name,
		baseline: DefaultBaseline,
		faults:   faultList{owner: name, supported: kindSet(AnalogKinds...)},
		env:      env.withDefaults(),
	}
}

// Name имя канала
func (a *AnalogChannel) Name() string { return a.name }

// DriftAccumulator накопленный дрейф
func (a *AnalogChannel) DriftAccumulator() int32 { return a.drift }

// AddFault подключает неисправность в конец списка
func (a *AnalogChannel) AddFault(s fault.Spec) error { return a.faults.add(a.env, s) }

// Faults копия списка неисправностей
func (a *AnalogChannel) Faults() []fault.Spec { return a.faults.list() }

// ReadU16 возвращает показание после всех сработавших неисправностей, ограниченное [0, 65535]
func (a *AnalogChannel) ReadU16() uint16 {
	val := int64(a.baseline)
	for _, f := range a.faults.specs {
		if !a.faults.supported[f.Kind] || !f.Trigger(a.env.Rand) {
			continue
		}
		before := val
		switch f.Kind {
		case fault.Noisy:
			amp := int64(f.Params.Int("amplitude", defaultAmplitude))
			val += int64(a.env.Rand.IntN(int(2*amp+1))) - amp
		case fault.Offset:
			val += int64(f.Params.Int("offset", defaultOffset))
		case fault.Drift:
			a.drift = addSaturated(a.drift, int64(f.Params.Int("step", defaultDriftStep)))
			val += int64(a.drift)
		case fault.Stuck:
			if f.Params.Has("value") {
				val = int64(f.Params.Int("value", 0))
			}
		case fault.Brownout:
			val = int64(f.Params.Int("value", defaultBrownout))
		}
		a.env.Recorder.Record(fault.Event{
			Peripheral: a.name, Kind: f.Kind, Op: "read",
			Before: float64(before), After: float64(val),
		})
	}
	return clampU16(val)
}

// addSaturated прибавляет шаг к накопителю без переполнения int32
func addSaturated(acc int32, step int64) int32 {
	v := int64(acc) + step
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

func clampU16(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > MaxReading {
		return MaxReading
	}
	return uint16(v)
}
