package analytics

import (
	"errors"
	"math"
)

// Label метка обнаруженной неисправности
type Label string

const (
	LabelADCNoisy      Label = "ADC noisy"
	LabelADCDrift      Label = "ADC drift/offset"
	LabelLEDStuck      Label = "LED stuck"
	LabelUSBDisconnect Label = "USB disconnect"
)

// ErrNoSamples последовательность наблюдений пуста
var ErrNoSamples = errors.New("no samples to analyze")

// Thresholds фиксированные эвристические пороги. Это не статистический тест:
// пороги откалиброваны под базовое показание 32768.
type Thresholds struct {
	Baseline    float64 `json:"baseline" yaml:"baseline" validate:"gte=0,lte=65535"`
	NoiseStdDev float64 `json:"noise_stddev" yaml:"noise_stddev" validate:"gt=0"`
	OffsetLimit float64 `json:"offset_limit" yaml:"offset_limit" validate:"gt=0"`
}

// DefaultThresholds пороги по умолчанию
func DefaultThresholds() Thresholds {
	return Thresholds{
		Baseline:    32768,
		NoiseStdDev: 1500,
		OffsetLimit: 5000,
	}
}

// Observations наблюдения, собранные за прогон диагностики
type Observations struct {
	ADC []uint16 `json:"adc"`
	LED []uint8  `json:"led"`
	USB []bool   `json:"usb"`
}

// Len число раундов (по самой длинной последовательности)
func (o Observations) Len() int {
	return max(len(o.ADC), len(o.LED), len(o.USB))
}

// Detector классификатор наблюдений. Без состояния.
type Detector struct {
	thresholds Thresholds
}

// NewDetector создает детектор с заданными порогами
func NewDetector(th Thresholds) *Detector {
	return &Detector{thresholds: th}
}

// Thresholds текущие пороги
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// DetectADC шум проверяется раньше смещения; пустой вход дает "нет неисправности"
func (d *Detector) DetectADC(values []uint16) (Label, bool) {
	if len(values) == 0 {
		return "", false
	}
	samples := make([]float64, len(values))
	for i, v := range values {
		samples[i] = float64(v)
	}
	avg := calculateAverage(samples)
	std := calculateStdDev(samples, avg)

	if std > d.thresholds.NoiseStdDev {
		return LabelADCNoisy, true
	}
	if math.Abs(avg-d.thresholds.Baseline) > d.thresholds.OffsetLimit {
		return LabelADCDrift, true
	}
	return "", false
}

// DetectLED все наблюдения одинаковы -> светодиод залип.
// Последовательность из одного элемента тоже считается залипшей.
func (d *Detector) DetectLED(states []uint8) (Label, bool) {
	if len(states) == 0 {
		return "", false
	}
	for _, s := range states[1:] {
		if s != states[0] {
			return "", false
		}
	}
	return LabelLEDStuck, true
}

// DetectUSB хотя бы одно наблюдение "отключено" -> обрыв USB
func (d *Detector) DetectUSB(states []bool) (Label, bool) {
	for _, connected := range states {
		if !connected {
			return LabelUSBDisconnect, true
		}
	}
	return "", false
}

// Analyze применяет все детекторы; порядок меток: ADC, LED, USB
func (d *Detector) Analyze(obs Observations) ([]Label, error) {
	if obs.Len() == 0 {
		return nil, ErrNoSamples
	}
	var labels []Label
	if l, ok := d.DetectADC(obs.ADC); ok {
		labels = append(labels, l)
	}
	if l, ok := d.DetectLED(obs.LED); ok {
		labels = append(labels, l)
	}
	if l, ok := d.DetectUSB(obs.USB); ok {
		labels = append(labels, l)
	}
	return labels, nil
}

// Stats параметры детектора для /stats
func (d *Detector) Stats() map[string]interface{} {
	return map[string]interface{}{
		"baseline":     d.thresholds.Baseline,
		"noise_stddev": d.thresholds.NoiseStdDev,
		"offset_limit": d.thresholds.OffsetLimit,
	}
}

var defaultDetector = NewDetector(DefaultThresholds())

// DetectADCFault детектор АЦП с порогами по умолчанию
func DetectADCFault(values []uint16) (Label, bool) { return defaultDetector.DetectADC(values) }

// DetectLEDFault детектор светодиода
func DetectLEDFault(states []uint8) (Label, bool) { return defaultDetector.DetectLED(states) }

// DetectUSBFault детектор USB
func DetectUSBFault(states []bool) (Label, bool) { return defaultDetector.DetectUSB(states) }

// calculateAverage вычисляет среднее значение
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev вычисляет стандартное отклонение генеральной совокупности
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
