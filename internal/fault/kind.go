package fault

import (
	"fmt"
	"strings"
)

// Kind тип неисправности
type Kind int

const (
	// KindUnknown нулевое значение, в конфигурации недопустимо
	KindUnknown Kind = iota
	Stuck
	Noisy
	Drift
	Intermittent
	Delay
	Disconnect
	HighCurrent
	Offset
	Brownout
	Flip
)

var kindNames = map[Kind]string{
	Stuck:        "stuck",
	Noisy:        "noisy",
	Drift:        "drift",
	Intermittent: "intermittent",
	Delay:        "delay",
	Disconnect:   "disconnect",
	HighCurrent:  "high_current",
	Offset:       "offset",
	Brownout:     "brownout",
	Flip:         "flip",
}

// Kinds возвращает все известные типы неисправностей
func Kinds() []Kind {
	return []Kind{Stuck, Noisy, Drift, Intermittent, Delay, Disconnect, HighCurrent, Offset, Brownout, Flip}
}

// String возвращает имя типа в конфигурационном виде
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid сообщает, входит ли тип в закрытый набор
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind разбирает имя типа неисправности (регистр не важен, "-" == "_")
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: unknown fault kind %q", ErrConfiguration, s)
}

// MarshalText реализует encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: cannot marshal %s", ErrConfiguration, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler (используется yaml и json)
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
