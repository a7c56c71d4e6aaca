package peripheral

import "pico-faultsim/internal/fault"

// ConnectivityKinds типы неисправностей флага подключения
var ConnectivityKinds = []fault.Kind{fault.Disconnect}

// ConnectivityFlag флаг USB-подключения. После отключения не восстанавливается.
type ConnectivityFlag struct {
	name      string
	connected bool
	faults    faultList
	env       Env
}

// NewConnectivityFlag создает подключенный флаг
func NewConnectivityFlag(name string, env Env) *ConnectivityFlag {
	return &ConnectivityFlag{
		name:      name,
		connected: true,
		faults:    faultList{owner: name, supported: kindSet(ConnectivityKinds...)},
		env:       env.withDefaults(),
	}
}

// Name имя флага
func (c *ConnectivityFlag) Name() string { return c.name }

// Connected текущее состояние
func (c *ConnectivityFlag) Connected() bool { return c.connected }

// AddFault подключает неисправность в конец списка
func (c *ConnectivityFlag) AddFault(s fault.Spec) error { return c.faults.add(c.env, s) }

// Faults копия списка неисправностей
func (c *ConnectivityFlag) Faults() []fault.Spec { return c.faults.list() }

// ApplyFaults вычисляет неисправности по порядку
func (c *ConnectivityFlag) ApplyFaults() {
	for _, f := range c.faults.specs {
		if f.Kind != fault.Disconnect || !f.Trigger(c.env.Rand) {
			continue
		}
		before := c.connected
		c.connected = false
		c.env.Recorder.Record(fault.Event{
			Peripheral: c.name, Kind: f.Kind, Op: "check",
			Before: boolValue(before), After: 0,
		})
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
