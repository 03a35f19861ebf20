package tracker

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	ts "github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

// episode returns the TimeSteps of an episode of length n with
// reward i on the i-th step
func episode(n int, end ts.EndType) []ts.TimeStep {
	steps := make([]ts.TimeStep, n+1)
	for i := range steps {
		obs := mat.NewVecDense(1, []float64{float64(i)})
		switch i {
		case 0:
			steps[i] = ts.New(ts.First, 0, 1, obs, i)
		case n:
			steps[i] = ts.New(ts.Last, float64(i), 1, obs, i)
			steps[i].SetEnd(end)
		default:
			steps[i] = ts.New(ts.Mid, float64(i), 1, obs, i)
		}
	}
	return steps
}

func TestReturn(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "return.bin")
	r := NewReturn(filename)

	for _, n := range []int{3, 4} {
		for _, step := range episode(n, ts.Timeout) {
			r.Track(step)
		}
	}

	// Unfinished episodes are not saved
	for _, step := range episode(5, ts.Timeout)[:3] {
		r.Track(step)
	}

	want := []float64{6, 10}
	if !reflect.DeepEqual(r.Returns(), want) {
		t.Errorf("returns: want(%v) have(%v)", want, r.Returns())
	}

	if err := r.Save(); err != nil {
		t.Fatal(err)
	}
	data, err := LoadData(filename)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(data, want) {
		t.Errorf("loadData: want(%v) have(%v)", want, data)
	}
}

func TestReturnNonSequential(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("track: expected panic on non-sequential timesteps")
		}
	}()

	r := NewReturn("")
	steps := episode(3, ts.Timeout)
	r.Track(steps[0])
	r.Track(steps[2])
}

func TestEpisodeLength(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "length.bin")
	e := NewEpisodeLength(filename)
	for _, n := range []int{2, 7} {
		for _, step := range episode(n, ts.TerminalStateReached) {
			e.Track(step)
		}
	}

	if err := e.Save(); err != nil {
		t.Fatal(err)
	}
	data, err := LoadData(filename)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{2, 7}; !reflect.DeepEqual(data, want) {
		t.Errorf("loadData: want(%v) have(%v)", want, data)
	}

	if _, err := LoadData(filename + ".missing"); err == nil {
		t.Error("loadData: expected error on missing file")
	}
}

func TestRecorder(t *testing.T) {
	dir := t.TempDir()
	i := 0
	filename := func() string {
		i++
		return filepath.Join(dir, "trace"+string(rune('0'+i))+".bin")
	}

	// Record every second episode from the second, keeping one trace
	r, err := NewRecorder(2, 1, 1, filename)
	if err != nil {
		t.Fatal(err)
	}

	for ep := 0; ep < 5; ep++ {
		end := ts.Timeout
		if ep == 3 {
			end = ts.TerminalStateReached
		}
		steps := episode(3, end)
		r.Track(steps[0])
		for _, step := range steps[1:] {
			r.TrackAction(mat.NewVecDense(1, []float64{-float64(step.Number)}))
			r.Track(step)
		}
	}

	traces := r.Traces()
	if len(traces) != 1 {
		t.Fatalf("traces: want(1) have(%v)", len(traces))
	}
	trace := traces[0]
	if trace.Episode != 3 || !trace.Terminal {
		t.Errorf("trace: want episode 3 terminal, have episode %v "+
			"terminal %v", trace.Episode, trace.Terminal)
	}
	if want := [][]float64{{-1}, {-2}, {-3}}; !reflect.DeepEqual(
		trace.Actions, want) {
		t.Errorf("actions: want(%v) have(%v)", want, trace.Actions)
	}
	if want := []float64{1, 2, 3}; !reflect.DeepEqual(trace.Rewards, want) {
		t.Errorf("rewards: want(%v) have(%v)", want, trace.Rewards)
	}
	if len(trace.States) != 4 {
		t.Errorf("states: want(4) have(%v)", len(trace.States))
	}

	if err := r.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadTrace(filepath.Join(dir, "trace1.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, trace) {
		t.Errorf("loadTrace: want(%v) have(%v)", trace, loaded)
	}
}

func TestNewRecorderErrors(t *testing.T) {
	if _, err := NewRecorder(0, 0, 0, nil); err == nil {
		t.Error("newRecorder: expected error on zero frequency")
	}
	if _, err := NewRecorder(1, -1, 0, nil); err == nil {
		t.Error("newRecorder: expected error on negative start")
	}
}

func TestTraceReturn(t *testing.T) {
	trace := Trace{Rewards: []float64{1, 2, 4}}
	if have := trace.Return(0.5); have != 3 {
		t.Errorf("discounted: want(3) have(%v)", have)
	}
	if have := trace.Return(1); have != 7 {
		t.Errorf("undiscounted: want(7) have(%v)", have)
	}
}

func TestSaveWriteError(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}

	r := NewReturn("/dev/full")
	for _, step := range episode(2, ts.Timeout) {
		r.Track(step)
	}
	if err := r.Save(); err == nil {
		t.Error("save: expected an error when data cannot be written")
	}
}
