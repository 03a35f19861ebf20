package tracker

import (
	"fmt"

	ts "github.com/samuelfneumann/goforce/timestep"
	"github.com/samuelfneumann/goforce/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// Trace is a single recorded episode. States holds every observation
// of the episode, including the first and last, so that
// len(States) == len(Actions) + 1 == len(Rewards) + 1.
type Trace struct {
	Episode  int
	States   [][]float64
	Actions  [][]float64
	Rewards  []float64
	Terminal bool
}

// Return is the discounted return of the traced episode from its
// first state
func (t Trace) Return(discount float64) float64 {
	return floatutils.DiscountedSum(t.Rewards, discount)
}

// Recorder is an ActionTracker which records the full interaction of
// an agent with its environment over whole episodes. Every frequency
// episodes, starting at episode start, the episode is recorded as a
// Trace. At most maxTraces Traces are kept, the oldest being dropped
// first. A non-positive maxTraces keeps every Trace.
type Recorder struct {
	frequency int
	start     int
	maxTraces int

	episode   int
	recording bool
	current   Trace
	traces    []Trace

	// filename returns the file each Trace is saved to
	filename func() string
}

// NewRecorder returns a new Recorder
func NewRecorder(frequency, start, maxTraces int,
	filename func() string) (*Recorder, error) {
	if frequency <= 0 {
		return nil, fmt.Errorf("newRecorder: frequency must be positive")
	}
	if start < 0 {
		return nil, fmt.Errorf("newRecorder: start must be non-negative")
	}

	return &Recorder{
		frequency: frequency,
		start:     start,
		maxTraces: maxTraces,
		episode:   -1,
		filename:  filename,
	}, nil
}

// Track records the observation and reward of a TimeStep
func (r *Recorder) Track(t ts.TimeStep) {
	if t.First() {
		r.episode++
		r.recording = r.episode >= r.start &&
			(r.episode-r.start)%r.frequency == 0
		r.current = Trace{Episode: r.episode}
	}
	if !r.recording {
		return
	}

	r.current.States = append(r.current.States, vector(t.Observation))
	if !t.First() {
		r.current.Rewards = append(r.current.Rewards, t.Reward)
	}

	if t.Last() {
		r.current.Terminal = t.EndType() != ts.Timeout
		r.traces = append(r.traces, r.current)
		if r.maxTraces > 0 && len(r.traces) > r.maxTraces {
			r.traces = r.traces[len(r.traces)-r.maxTraces:]
		}
		r.recording = false
	}
}

// TrackAction records the action taken in the current episode
func (r *Recorder) TrackAction(action mat.Vector) {
	if r.recording {
		r.current.Actions = append(r.current.Actions, vector(action))
	}
}

// Traces returns the recorded Traces
func (r *Recorder) Traces() []Trace {
	return append([]Trace(nil), r.traces...)
}

// Save saves each recorded Trace to its own file
func (r *Recorder) Save() error {
	for _, trace := range r.traces {
		if err := save(r.filename(), trace); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// LoadTrace loads a Trace saved by a Recorder
func LoadTrace(filename string) (Trace, error) {
	var trace Trace
	if err := load(filename, &trace); err != nil {
		return Trace{}, fmt.Errorf("loadTrace: %v", err)
	}
	return trace, nil
}

func vector(v mat.Vector) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
