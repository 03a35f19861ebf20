package checkpointer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samuelfneumann/goforce/spec"
	ts "github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

type weights struct {
	w map[string][][]float64
}

func (w *weights) Weights() map[string][][]float64 { return w.w }

func (w *weights) SetWeights(v map[string][][]float64) error {
	w.w = v
	return nil
}

func TestFilenameEnumerator(t *testing.T) {
	next := FilenameEnumerator(2, "dir/agent", ".bin")
	for _, want := range []string{"dir/agent-3.bin", "dir/agent-4.bin"} {
		if have := next(); have != want {
			t.Errorf("filename: want(%v) have(%v)", want, have)
		}
	}
}

func TestSaveLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "agent.bin")
	w := &weights{map[string][][]float64{"actor": {{1, 2}, {3}}}}

	if err := Save(w, filename); err != nil {
		t.Fatal(err)
	}

	restored := &weights{}
	if err := Load(restored, filename); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(restored.w, w.w) {
		t.Errorf("load: want(%v) have(%v)", w.w, restored.w)
	}
}

func TestSaveWriteError(t *testing.T) {
	w := &weights{w: map[string][][]float64{"actor": {{1, 2, 3}}}}

	missing := filepath.Join(t.TempDir(), "missing", "agent.bin")
	if err := Save(w, missing); err == nil {
		t.Error("save: expected an error for a missing directory")
	}

	// Writes to /dev/full fail with ENOSPC
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	if err := Save(w, "/dev/full"); err == nil {
		t.Error("save: expected an error when the checkpoint cannot be " +
			"written")
	}
}

func TestNStep(t *testing.T) {
	obs := mat.NewVecDense(1, nil)
	mid := ts.New(ts.Mid, 0, 1, obs, 1)
	last := ts.New(ts.Last, 0, 1, obs, 2)

	tests := []struct {
		unit  Unit
		steps []ts.TimeStep
		want  int
	}{
		{Timesteps, []ts.TimeStep{mid, mid, mid, last}, 2},
		{Episodes, []ts.TimeStep{mid, last, mid, last, last, last}, 2},
	}

	for _, test := range tests {
		dir := t.TempDir()
		w := &weights{map[string][][]float64{"critic": {{0}}}}
		c, err := NewNStep(2, test.unit, w, 0,
			FilenameEnumerator(0, filepath.Join(dir, "agent"), Extension))
		if err != nil {
			t.Fatal(err)
		}

		for _, step := range test.steps {
			if err := c.Checkpoint(step); err != nil {
				t.Fatal(err)
			}
		}

		files, _ := filepath.Glob(filepath.Join(dir, "*"+Extension))
		if len(files) != test.want {
			t.Errorf("%v: want(%v) checkpoints have(%v)", test.unit,
				test.want, len(files))
		}
	}
}

func TestFromSpec(t *testing.T) {
	root := t.TempDir()
	s := spec.New("directory", "saved", "filename", "dpg", "frequency", 1.0,
		"unit", "timesteps", "max_checkpoints", 2.0)

	w := &weights{map[string][][]float64{"actor": {{0}}}}
	c, err := FromSpec(s, w, root)
	if err != nil {
		t.Fatal(err)
	}

	step := ts.New(ts.Mid, 0, 1, mat.NewVecDense(1, nil), 1)
	for i := 0; i < 5; i++ {
		if err := c.Checkpoint(step); err != nil {
			t.Fatal(err)
		}
	}

	for name, exists := range map[string]bool{
		"dpg-3.bin": false, "dpg-4.bin": true, "dpg-5.bin": true,
	} {
		_, err := os.Stat(filepath.Join(root, "saved", name))
		if (err == nil) != exists {
			t.Errorf("%v: want exists(%v)", name, exists)
		}
	}

	if _, err := FromSpec(spec.New("unit", "updates"), w, root); err == nil {
		t.Error("fromSpec: expected error on unknown unit")
	}
	if _, err := FromSpec(spec.New("frequency", 0.0), w, root); err == nil {
		t.Error("fromSpec: expected error on zero frequency")
	}
}
