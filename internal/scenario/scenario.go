// Package scenario описывает именованные наборы неисправностей и их загрузку из YAML.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pico-faultsim/internal/device"
	"pico-faultsim/internal/fault"
)

var validate = validator.New()

// Injection неисправность, адресованная конкретной периферии
type Injection struct {
	Target device.Target `json:"target"`
	Spec   fault.Spec    `json:"spec"`
}

// injectionYAML сырое представление; probability и enabled по умолчанию 1.0 и true
type injectionYAML struct {
	Target      string       `yaml:"target"`
	Kind        string       `yaml:"kind"`
	Probability *float64     `yaml:"probability"`
	Enabled     *bool        `yaml:"enabled"`
	Params      fault.Params `yaml:"params,omitempty"`
}

// UnmarshalYAML разбирает и проверяет одну неисправность
func (i *Injection) UnmarshalYAML(value *yaml.Node) error {
	var raw injectionYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}

	target, err := device.ParseTarget(raw.Target)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	kind, err := fault.ParseKind(raw.Kind)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	spec := fault.New(kind, 1.0, raw.Params)
	if raw.Probability != nil {
		spec.Probability = *raw.Probability
	}
	if raw.Enabled != nil {
		spec.Enabled = *raw.Enabled
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	i.Target = target
	i.Spec = spec
	return nil
}

// MarshalYAML обратное преобразование
func (i Injection) MarshalYAML() (interface{}, error) {
	p := i.Spec.Probability
	e := i.Spec.Enabled
	return injectionYAML{
		Target:      i.Target.String(),
		Kind:        i.Spec.Kind.String(),
		Probability: &p,
		Enabled:     &e,
		Params:      i.Spec.Params,
	}, nil
}

// Scenario именованный набор неисправностей
type Scenario struct {
	Name        string      `json:"name" yaml:"name" validate:"required"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Rounds      int         `json:"rounds,omitempty" yaml:"rounds,omitempty" validate:"gte=0"`
	Faults      []Injection `json:"faults" yaml:"faults"`
}

// Validate проверяет сценарий целиком
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: scenario %q: %v", fault.ErrConfiguration, s.Name, err)
	}
	for idx, inj := range s.Faults {
		if inj.Target == device.TargetUnknown {
			return fmt.Errorf("%w: scenario %q fault %d: missing target", fault.ErrConfiguration, s.Name, idx)
		}
		if err := inj.Spec.Validate(); err != nil {
			return fmt.Errorf("scenario %q fault %d: %w", s.Name, idx, err)
		}
	}
	return nil
}

// Apply подключает все неисправности сценария к устройству
func (s *Scenario) Apply(d *device.Device) error {
	for idx, inj := range s.Faults {
		if err := d.AddFault(inj.Target, inj.Spec); err != nil {
			return fmt.Errorf("scenario %q fault %d: %w", s.Name, idx, err)
		}
	}
	return nil
}

// Parse читает один или несколько YAML-документов со сценариями
func Parse(data []byte) ([]*Scenario, error) {
	var out []*Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var s Scenario
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse scenario: %w", err)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no scenarios in document", fault.ErrConfiguration)
	}
	return out, nil
}
