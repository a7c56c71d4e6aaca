// Package fault описывает внедряемые неисправности периферии и решение о срабатывании.
package fault

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"
)

// ErrConfiguration оборачивает все ошибки конфигурации неисправностей
var ErrConfiguration = errors.New("configuration error")

var validate = validator.New()

// Rand источник случайных чисел, которым владеет устройство
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand создает детерминированный генератор из одного целого seed
func NewRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Params параметры неисправности
type Params map[string]float64

// Float возвращает параметр или значение по умолчанию
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int возвращает параметр, округленный до целого
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(math.Round(v))
	}
	return def
}

// Has сообщает, задан ли параметр
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Clone копирует параметры
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Spec описание одной неисправности. После подключения к периферии не изменяется.
type Spec struct {
	Kind        Kind    `json:"kind" yaml:"kind"`
	Probability float64 `json:"probability" yaml:"probability" validate:"gte=0,lte=1"`
	Params      Params  `json:"params,omitempty" yaml:"params,omitempty"`
	Enabled     bool    `json:"enabled" yaml:"enabled"`
}

// New создает включенную неисправность
func New(kind Kind, probability float64, params Params) Spec {
	return Spec{
		Kind:        kind,
		Probability: probability,
		Params:      params,
		Enabled:     true,
	}
}

// paramRange допустимые границы параметра
type paramRange struct{ min, max float64 }

// paramLimits границы известных параметров. Значения вне них переполняют
// целочисленную арифметику периферии.
var paramLimits = map[string]paramRange{
	"amplitude": {0, 65535},
	"offset":    {math.MinInt32, math.MaxInt32},
	"step":      {math.MinInt32, math.MaxInt32},
	"value":     {math.MinInt32, math.MaxInt32},
	"value_on":  {math.MinInt32, math.MaxInt32},
	"value_off": {math.MinInt32, math.MaxInt32},
	"p_on":      {0, 1},
	"delay_s":   {0, 3600},
}

// Validate проверяет тип, вероятность и параметры
func (s Spec) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: unknown fault kind %s", ErrConfiguration, s.Kind)
	}
	if math.IsNaN(s.Probability) {
		return fmt.Errorf("%w: %s probability is NaN", ErrConfiguration, s.Kind)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s probability %v outside [0,1]: %v", ErrConfiguration, s.Kind, s.Probability, err)
	}
	return s.Params.validate(s.Kind)
}

func (p Params) validate(kind Kind) error {
	for key, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s param %s is not finite", ErrConfiguration, kind, key)
		}
		lim, ok := paramLimits[key]
		if !ok {
			continue
		}
		if v < lim.min || v > lim.max {
			return fmt.Errorf("%w: %s param %s=%v outside [%v,%v]", ErrConfiguration, kind, key, v, lim.min, lim.max)
		}
	}
	return nil
}

// Trigger испытание Бернулли на каждом обращении. Состояния не хранит.
// Вероятность 0 не срабатывает никогда, 1 срабатывает всегда.
func (s Spec) Trigger(r Rand) bool {
	if !s.Enabled || s.Probability <= 0 {
		return false
	}
	return r.Float64() <= s.Probability
}
