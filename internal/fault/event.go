package fault

// Event запись о сработавшей неисправности
type Event struct {
	Peripheral string  `json:"peripheral"`
	Kind       Kind    `json:"kind"`
	Op         string  `json:"op"`
	Before     float64 `json:"before"`
	After      float64 `json:"after"`
}

// Recorder получатель событий неисправностей
type Recorder interface {
	Record(Event)
}

// RecorderFunc адаптер функции к Recorder
type RecorderFunc func(Event)

// Record реализует Recorder
func (f RecorderFunc) Record(e Event) { f(e) }

// Discard отбрасывает события
var Discard Recorder = RecorderFunc(func(Event) {})

type tee []Recorder

func (t tee) Record(e Event) {
	for _, r := range t {
		r.Record(e)
	}
}

// Tee рассылает каждое событие всем получателям, nil пропускаются
func Tee(recorders ...Recorder) Recorder {
	out := make(tee, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
