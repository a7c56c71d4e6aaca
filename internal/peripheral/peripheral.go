// Package peripheral моделирует периферию микроконтроллера: цифровой вывод,
// канал АЦП и флаг USB-подключения. Каждое обращение проходит через список
// подключенных неисправностей.
package peripheral

import (
	"fmt"
	"log/slog"

	"pico-faultsim/internal/fault"
)

// Env зависимости периферии, которыми владеет устройство
type Env struct {
	Rand     fault.Rand
	Recorder fault.Recorder
	Logger   *slog.Logger

	// Lenient принимает типы неисправностей, которые периферия не интерпретирует.
	// Такие неисправности становятся no-op с предупреждением в логе.
	Lenient bool
}

func (e Env) withDefaults() Env {
	if e.Rand == nil {
		e.Rand = fault.NewRand(0)
	}
	if e.Recorder == nil {
		e.Recorder = fault.Discard
	}
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	return e
}

// faultList упорядоченный список неисправностей одной периферии
type faultList struct {
	owner     string
	supported map[fault.Kind]bool
	specs     []fault.Spec
}

func (l *faultList) add(env Env, s fault.Spec) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%s: %w", l.owner, err)
	}
	if !l.supported[s.Kind] {
		if !env.Lenient {
			return fmt.Errorf("%w: %s does not support fault kind %s", fault.ErrConfiguration, l.owner, s.Kind)
		}
		env.Logger.Warn("fault kind not interpreted by peripheral, ignoring",
			"peripheral", l.owner, "kind", s.Kind.String())
	}
	s.Params = s.Params.Clone()
	l.specs = append(l.specs, s)
	return nil
}

func (l *faultList) list() []fault.Spec {
	out := make([]fault.Spec, len(l.specs))
	copy(out, l.specs)
	return out
}

func kindSet(kinds ...fault.Kind) map[fault.Kind]bool {
	m := make(map[fault.Kind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}
