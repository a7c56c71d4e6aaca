package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status итог сравнения внедренных и обнаруженных неисправностей
type Status int

const (
	// StatusUnknown нулевое значение: прогон еще не оценен
	StatusUnknown Status = iota
	StatusAllNormal
	StatusFaultDetected
	StatusFaultMissed
)

var statusNames = map[Status]string{
	StatusUnknown:       "UNKNOWN",
	StatusAllNormal:     "ALL_NORMAL",
	StatusFaultDetected: "FAULT_DETECTED",
	StatusFaultMissed:   "FAULT_MISSED",
}

// String имя статуса
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

// MarshalJSON статус как строка
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON разбирает строковый статус
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st, n := range statusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", name)
}

// Report отчет диагностики по одному сценарию
type Report struct {
	RunID          string       `json:"run_id"`
	Scenario       string       `json:"scenario"`
	Seed           int64        `json:"seed"`
	Rounds         int          `json:"rounds"`
	InjectedFaults int          `json:"injected_fault_count"`
	DetectedLabels []string     `json:"detected_labels"`
	Status         Status       `json:"status"`
	Observations   Observations `json:"observations"`
	Final          FinalState   `json:"final"`
	Timestamp      time.Time    `json:"timestamp"`
	Duration       float64      `json:"duration_seconds"`
}

// Observations наблюдения прогона в виде для JSON
type Observations struct {
	ADC []uint16 `json:"adc"`
	LED Bits     `json:"led"`
	USB []bool   `json:"usb"`
}

// FinalState состояние устройства после прогона
type FinalState struct {
	DriftAccumulator int32              `json:"drift_accumulator"`
	USBConnected     bool               `json:"usb_connected"`
	Metrics          map[string]float64 `json:"metrics"`
}

// BridgeResult ответ прошивки на одну команду
type BridgeResult struct {
	Command  string `json:"command"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Bits последовательность логических уровней. В JSON массив чисел, а не base64.
type Bits []uint8

// MarshalJSON реализует json.Marshaler
func (b Bits) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	levels := make([]int, len(b))
	for i, v := range b {
		levels[i] = int(v)
	}
	return json.Marshal(levels)
}

// UnmarshalJSON реализует json.Unmarshaler
func (b *Bits) UnmarshalJSON(data []byte) error {
	var levels []int
	if err := json.Unmarshal(data, &levels); err != nil {
		return err
	}
	if levels == nil {
		*b = nil
		return nil
	}
	out := make(Bits, len(levels))
	for i, v := range levels {
		if v != 0 && v != 1 {
			return fmt.Errorf("invalid logic level %d at index %d", v, i)
		}
		out[i] = uint8(v)
	}
	*b = out
	return nil
}
