package device

import (
	"fmt"
	"strings"

	"pico-faultsim/internal/fault"
)

// Target периферия, которой адресуется неисправность
type Target int

const (
	TargetUnknown Target = iota
	TargetLED
	TargetGP0
	TargetADC
	TargetUSB
	TargetPower
)

var targetNames = map[Target]string{
	TargetLED:   "led",
	TargetGP0:   "gp0",
	TargetADC:   "adc",
	TargetUSB:   "usb",
	TargetPower: "power",
}

// Targets все адресуемые цели
func Targets() []Target {
	return []Target{TargetLED, TargetGP0, TargetADC, TargetUSB, TargetPower}
}

// String имя цели в сценариях
func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("target(%d)", int(t))
}

// ParseTarget разбирает имя цели; неизвестная цель является ошибкой конфигурации
func ParseTarget(s string) (Target, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range targetNames {
		if n == name {
			return t, nil
		}
	}
	return TargetUnknown, fmt.Errorf("%w: unknown fault target %q", fault.ErrConfiguration, s)
}

// MarshalText реализует encoding.TextMarshaler
func (t Target) MarshalText() ([]byte, error) {
	if _, ok := targetNames[t]; !ok {
		return nil, fmt.Errorf("%w: cannot marshal %s", fault.ErrConfiguration, t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
