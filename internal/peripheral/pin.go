package peripheral

import (
	"time"

	"pico-faultsim/internal/fault"
)

// DefaultDelay задержка переключения, если delay_s не задан
const DefaultDelay = 500 * time.Millisecond

// PinKinds типы неисправностей, которые интерпретирует цифровой вывод
var PinKinds = []fault.Kind{fault.Stuck, fault.Flip, fault.Intermittent, fault.Delay}

// Pin цифровой вывод. Неисправности принудительные: побеждает первая сработавшая.
type Pin struct {
	name   string
	state  uint8
	faults faultList
	env    Env
}

// NewPin создает вывод в состоянии 0
func NewPin(name string, env Env) *Pin {
	return &Pin{
		name:   name,
		faults: faultList{owner: name, supported: kindSet(PinKinds...)},
		env:    env.withDefaults(),
	}
}

// Name имя вывода
func (p *Pin) Name() string { return p.name }

// State внутреннее логическое состояние без учета неисправностей
func (p *Pin) State() uint8 { return p.state }

// AddFault подключает неисправность в конец списка
func (p *Pin) AddFault(s fault.Spec) error { return p.faults.add(p.env, s) }

// Faults копия списка неисправностей
func (p *Pin) Faults() []fault.Spec { return p.faults.list() }

// applyFaults возвращает принудительное значение первой сработавшей неисправности.
// Delay здесь не учитывается, его проверяет только переключение.
func (p *Pin) applyFaults() (uint8, fault.Kind, bool) {
	for _, f := range p.faults.specs {
		switch f.Kind {
		case fault.Stuck, fault.Flip, fault.Intermittent:
		default:
			continue
		}
		if !f.Trigger(p.env.Rand) {
			continue
		}
		switch f.Kind {
		case fault.Stuck:
			return bit(f.Params.Int("value", 1)), f.Kind, true
		case fault.Flip:
			p.state ^= 1
			return p.state, f.Kind, true
		case fault.Intermittent:
			if p.env.Rand.Float64() < f.Params.Float("p_on", 0.5) {
				return bit(f.Params.Int("value_on", 1)), f.Kind, true
			}
			return bit(f.Params.Int("value_off", 0)), f.Kind, true
		}
	}
	return 0, fault.KindUnknown, false
}

// Write записывает значение; любое ненулевое значение считается 1
func (p *Pin) Write(v uint8) {
	before := p.state
	if forced, kind, ok := p.applyFaults(); ok {
		p.state = forced
		p.env.Recorder.Record(fault.Event{
			Peripheral: p.name, Kind: kind, Op: "write",
			Before: float64(before), After: float64(forced),
		})
		return
	}
	p.state = bit(int(v))
}

// Read возвращает наблюдаемое значение вывода
func (p *Pin) Read() uint8 {
	before := p.state
	if forced, kind, ok := p.applyFaults(); ok {
		p.env.Recorder.Record(fault.Event{
			Peripheral: p.name, Kind: kind, Op: "read",
			Before: float64(before), After: float64(forced),
		})
		return forced
	}
	return p.state
}

// PendingDelay суммарная задержка сработавших Delay-неисправностей
func (p *Pin) PendingDelay() time.Duration {
	var total time.Duration
	for _, f := range p.faults.specs {
		if f.Kind != fault.Delay || !f.Trigger(p.env.Rand) {
			continue
		}
		d := DefaultDelay
		if f.Params.Has("delay_s") {
			d = time.Duration(f.Params.Float("delay_s", 0) * float64(time.Second))
		}
		if d < 0 {
			d = 0
		}
		total += d
		p.env.Recorder.Record(fault.Event{
			Peripheral: p.name, Kind: fault.Delay, Op: "toggle",
			Before: 0, After: d.Seconds(),
		})
	}
	return total
}

func bit(v int) uint8 {
	if v != 0 {
		return 1
	}
	return 0
}
