package expreplay

import (
	"testing"

	"github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
)

func transition(i float64) timestep.Transition {
	return timestep.Transition{
		State:     mat.NewVecDense(2, []float64{i, i}),
		Action:    mat.NewVecDense(1, []float64{-i}),
		Reward:    i,
		Discount:  0.9,
		NextState: mat.NewVecDense(2, []float64{i + 1, i + 1}),
	}
}

func TestSampleErrors(t *testing.T) {
	buffer, err := New(NewUniformSelector(2, 1), 3, 5, 2, 1, false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := buffer.Sample(); !IsEmptyBuffer(err) {
		t.Errorf("empty: want empty buffer error, have(%v)", err)
	}

	buffer.Add(transition(0))
	if _, err := buffer.Sample(); !IsInsufficientSamples(err) {
		t.Errorf("insufficient: want insufficient samples error, have(%v)",
			err)
	}

	buffer.Add(transition(1))
	buffer.Add(transition(2))
	batch, err := buffer.Sample()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Size() != 2 || len(batch.State) != 4 || len(batch.Action) != 2 {
		t.Errorf("unexpected batch shape: %+v", batch)
	}
	if batch.NextAction != nil {
		t.Error("next actions returned but not stored")
	}

	for i := 0; i < batch.Size(); i++ {
		r := batch.Reward[i]
		if batch.State[2*i] != r || batch.Action[i] != -r ||
			batch.NextState[2*i] != r+1 {
			t.Errorf("batch row %v is inconsistent: %+v", i, batch)
		}
	}
}

func TestFifoEviction(t *testing.T) {
	buffer, err := New(NewFifoSelector(3), 1, 3, 2, 1, false)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if err := buffer.Add(transition(float64(i))); err != nil {
			t.Fatal(err)
		}
	}

	if c := buffer.Capacity(); c != 3 {
		t.Errorf("capacity: want(3) have(%v)", c)
	}

	batch, err := buffer.Sample()
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 3, 4}
	for i := range want {
		if batch.Reward[i] != want[i] {
			t.Errorf("oldest first: want(%v) have(%v)", want, batch.Reward)
			break
		}
	}
}

func TestAddInvalid(t *testing.T) {
	buffer, err := New(NewUniformSelector(1, 1), 1, 2, 2, 1, true)
	if err != nil {
		t.Fatal(err)
	}

	if err := buffer.Add(transition(0)); err == nil {
		t.Error("expected an error for a missing next action")
	}

	tr := transition(0)
	tr.State = mat.NewVecDense(3, nil)
	if err := buffer.Add(tr); err == nil {
		t.Error("expected an error for an invalid state size")
	}

	if buffer.Capacity() != 0 {
		t.Error("invalid transitions were added to the buffer")
	}
}

func TestConfig(t *testing.T) {
	if err := NewConfig(10, 20, 1).Validate(); err == nil {
		t.Error("expected an error for batch size > capacity")
	}
	if err := (Config{Type: "prioritized", Capacity: 10, BatchSize: 1,
		MinCapacity: 1}).Validate(); err == nil {
		t.Error("expected an error for an unknown memory type")
	}

	buffer, err := NewConfig(10, 4, 4).Create(2, 1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if buffer.BatchSize() != 4 || buffer.MaxCapacity() != 10 ||
		buffer.MinCapacity() != 4 {
		t.Errorf("unexpected buffer %v", buffer)
	}

	s := NewConfig(10, 4, 4).Spec()
	if typ, _ := s.Get("type"); typ != Replay {
		t.Errorf("spec: want type(%v) have(%v)", Replay, typ)
	}
	if capacity, _ := s.Get("capacity"); capacity != 10 {
		t.Errorf("spec: want capacity(10) have(%v)", capacity)
	}
}
