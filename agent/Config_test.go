package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/samuelfneumann/goforce/environment"
)

const testType Type = "test"

type testConfig struct {
	A int
	B string
	C float64
}

func (t testConfig) CreateAgent(environment.Environment, uint64) (Agent,
	error) {
	return nil, errors.New("not implemented")
}
func (t testConfig) ValidAgent(Agent) bool { return false }
func (t testConfig) Validate() error       { return nil }
func (t testConfig) Type() Type            { return testType }

type testConfigList struct {
	A []int
	B []string
}

func (t testConfigList) Config() Config { return testConfig{C: 0.5} }
func (t testConfigList) Type() Type     { return testType }
func (t testConfigList) NumFields() int { return 2 }
func (t testConfigList) Len() int       { return Len(t) }

func TestConfigAt(t *testing.T) {
	list := testConfigList{A: []int{1, 2}, B: []string{"x", "y", "z"}}
	if n := list.Len(); n != 6 {
		t.Fatalf("len: want(6) have(%v)", n)
	}

	want := []testConfig{
		{1, "x", 0.5}, {1, "y", 0.5}, {1, "z", 0.5},
		{2, "x", 0.5}, {2, "y", 0.5}, {2, "z", 0.5},
	}
	for i := range want {
		if c := ConfigAt(i, list).(testConfig); c != want[i] {
			t.Errorf("config %v: want(%v) have(%v)", i, want[i], c)
		}
	}

	// Indices wrap around
	if c := ConfigAt(7, list).(testConfig); c != want[1] {
		t.Errorf("config 7: want(%v) have(%v)", want[1], c)
	}
}

func TestTypedConfigList(t *testing.T) {
	list := testConfigList{A: []int{1, 2}, B: []string{"x"}}
	data, err := json.Marshal(NewTypedConfigList(list))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var typed TypedConfigList
	if err := json.Unmarshal(data, &typed); err == nil {
		t.Error("unregistered type: expected an error")
	}

	Register(testType, testConfigList{})
	if !Registered(testType) {
		t.Fatal("type was not registered")
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if typed.Type != testType || typed.Len() != 2 {
		t.Errorf("decoded: type(%v) len(%v)", typed.Type, typed.Len())
	}
	if c := typed.At(1).(testConfig); c.A != 2 || c.B != "x" {
		t.Errorf("config 1: have(%v)", c)
	}
}

func TestDeprecated(t *testing.T) {
	err := Deprecated("DPG", "critic_network", "critic")
	want := "DPG argument critic_network is deprecated, use critic instead"
	if err.Error() != want {
		t.Errorf("message: \n\twant(%v) \n\thave(%v)", want, err)
	}

	wrapped := errors.Join(errors.New("new"), err)
	if !IsDeprecated(wrapped) {
		t.Error("wrapped deprecation error was not detected")
	}
	if IsDeprecated(ErrTemporarilyBroken) {
		t.Error("temporarily broken is not a deprecation error")
	}
}
