package dpg

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/samuelfneumann/goforce/agent"
	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/preprocessing"
	"github.com/samuelfneumann/goforce/solver"
	"github.com/samuelfneumann/goforce/spec"
	"github.com/samuelfneumann/goforce/tensorspec"
)

func newTestConfig() Config {
	states := tensorspec.NewBoundedFloat(-1, 1, 2)
	actions := tensorspec.NewBoundedFloat(-2, 2, 1)
	return NewConfig(&states, &actions, 1000, 16)
}

func TestDeprecatedArguments(t *testing.T) {
	estimate := true
	c := newTestConfig()
	c.EstimateTerminal = &estimate
	c.BatchSize = 0 // Deprecation is reported before other errors

	err := c.Validate()
	if !agent.IsDeprecated(err) {
		t.Fatalf("estimate_terminal: want deprecation error, have(%v)", err)
	}
	want := "DPG argument estimate_terminal is deprecated, use " +
		"predict_terminal_values instead"
	if err.Error() != want {
		t.Errorf("estimate_terminal: \n\twant(%v) \n\thave(%v)", want, err)
	}

	c = newTestConfig()
	critic := network.NewAutoConfig()
	c.CriticNetwork = &critic
	c.Memory = 0

	err = c.Validate()
	want = "DPG argument critic_network is deprecated, use critic instead"
	if !agent.IsDeprecated(err) || err.Error() != want {
		t.Errorf("critic_network: \n\twant(%v) \n\thave(%v)", want, err)
	}

	if _, err := New(nil, c, 1); !agent.IsDeprecated(err) {
		t.Errorf("new: want deprecation error, have(%v)", err)
	}
}

func TestRecurrentPolicy(t *testing.T) {
	c := newTestConfig()
	c.Network = network.Config{Layers: []network.LayerConfig{
		{Type: "lstm", Size: 8, Bias: true},
	}}

	if err := c.Validate(); !errors.Is(err, agent.ErrTemporarilyBroken) {
		t.Errorf("want(ErrTemporarilyBroken) have(%v)", err)
	}
	if err := newTestConfig().Validate(); err != nil {
		t.Errorf("feed forward: unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	intActions := tensorspec.New(tensorspec.Int, 1)
	intActions.NumValues = 3

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"memory", func(c *Config) { c.Memory = c.BatchSize + c.Horizon }},
		{"horizon", func(c *Config) { c.Horizon = 0 }},
		{"learning rate", func(c *Config) { c.LearningRate = 0 }},
		{"discount", func(c *Config) { c.Discount = 1.5 }},
		{"start updating", func(c *Config) { c.StartUpdating = 1 }},
		{"update frequency", func(c *Config) { c.UpdateFrequency = -2 }},
		{"exploration", func(c *Config) { c.Exploration = -0.1 }},
		{"variable noise", func(c *Config) { c.VariableNoise = -0.1 }},
		{"l2", func(c *Config) { c.L2Regularization = -1 }},
		{"entropy", func(c *Config) { c.EntropyRegularization = -1 }},
		{"parallel", func(c *Config) { c.ParallelInteractions = 0 }},
		{"tau", func(c *Config) { c.Tau = 0 }},
		{"target interval", func(c *Config) { c.TargetUpdateInterval = 0 }},
		{"critic weight", func(c *Config) {
			c.CriticOptimizer = NewCriticWeight(0)
		}},
		{"int actions", func(c *Config) { c.Actions = &intActions }},
		{"preprocessing", func(c *Config) { c.Preprocessing = "unknown" }},
	}

	for _, test := range tests {
		c := newTestConfig()
		test.modify(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%v: expected an error", test.name)
		}
	}
}

func TestDefaults(t *testing.T) {
	c := newTestConfig()
	if c.LearningRate != 1e-3 || c.Discount != 0.99 || c.Horizon != 1 {
		t.Errorf("learning rate, discount, horizon: have(%v, %v, %v)",
			c.LearningRate, c.Discount, c.Horizon)
	}
	if !c.Network.Auto || !c.Critic.Auto {
		t.Error("networks should default to auto")
	}
	if c.CriticOptimizer.Weight != 1.0 || c.CriticOptimizer.Solver != nil {
		t.Errorf("critic optimizer: want(1.0) have(%v)", c.CriticOptimizer)
	}
	if !c.UseBetaDistribution {
		t.Error("use_beta_distribution should default to true")
	}
	if c.Preprocessing != preprocessing.LinearNormalization {
		t.Errorf("preprocessing: have(%v)", c.Preprocessing)
	}
	if c.Frequency() != c.BatchSize || c.Start() != c.BatchSize {
		t.Errorf("update frequency and start: want(%v) have(%v, %v)",
			c.BatchSize, c.Frequency(), c.Start())
	}
}

func TestSpec(t *testing.T) {
	s := newTestConfig().Spec()

	keys := []string{
		"agent", "states", "actions", "memory", "batch_size",
		"max_episode_timesteps", "network", "use_beta_distribution",
		"update_frequency", "start_updating", "learning_rate", "horizon",
		"discount", "predict_terminal_values", "critic", "critic_optimizer",
		"preprocessing", "exploration", "variable_noise",
		"l2_regularization", "entropy_regularization",
		"parallel_interactions", "config", "saver", "summarizer", "recorder",
	}
	if !reflect.DeepEqual(s.Keys(), keys) {
		t.Errorf("keys: \n\twant(%v) \n\thave(%v)", keys, s.Keys())
	}

	values := map[string]interface{}{
		"agent":                 "dpg",
		"memory":                1000,
		"batch_size":            16,
		"max_episode_timesteps": nil,
		"network":               "auto",
		"update_frequency":      "batch_size",
		"start_updating":        nil,
		"learning_rate":         1e-3,
		"critic":                "auto",
		"critic_optimizer":      1.0,
		"preprocessing":         "linear_normalization",
		"parallel_interactions": 1,
		"saver":                 nil,
	}
	for key, want := range values {
		if have, _ := s.Get(key); !reflect.DeepEqual(have, want) {
			t.Errorf("%v: want(%v) have(%v)", key, want, have)
		}
	}

	states, ok := s.Sub("states")
	if !ok {
		t.Fatal("states: want a specification dictionary")
	}
	want := spec.New("type", "float", "shape", []int{2}, "min_value", -1.0,
		"max_value", 1.0)
	if !states.Equal(want) {
		t.Errorf("states: want(%v) have(%v)", want, states)
	}

	// The flat specification serializes in option order
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded := spec.New()
	if err := json.Unmarshal(data, decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded.Keys(), keys) {
		t.Errorf("json keys: have(%v)", decoded.Keys())
	}
}

func TestComponents(t *testing.T) {
	c := newTestConfig()
	components := c.Components()

	want := spec.New(
		"policy", spec.New(
			"type", "parametrized_distributions",
			"network", "auto",
			"temperature", 0.0,
			"use_beta_distribution", true,
		),
		"memory", spec.New("type", "replay", "capacity", 1000),
		"update", spec.New("unit", "timesteps", "batch_size", 16),
		"optimizer", spec.New("type", "adam", "learning_rate", 1e-3),
		"objective", "deterministic_policy_gradient",
		"reward_estimation", spec.New(
			"horizon", 1,
			"discount", 0.99,
			"predict_horizon_values", "late",
			"estimate_advantage", false,
			"predict_action_values", true,
			"predict_terminal_values", false,
		),
		"baseline", spec.New(
			"type", "parametrized_distributions",
			"network", "auto",
		),
		"baseline_optimizer", 1.0,
		"baseline_objective", spec.New("type", "value", "value", "action"),
	)
	if !components.Equal(want) {
		t.Errorf("components: \n\twant(%v) \n\thave(%v)", want, components)
	}

	c.UpdateFrequency = 4
	c.StartUpdating = 100
	update, _ := c.Components().Sub("update")
	wantUpdate := spec.New("unit", "timesteps", "batch_size", 16,
		"frequency", 4, "start", 100)
	if !update.Equal(wantUpdate) {
		t.Errorf("update: \n\twant(%v) \n\thave(%v)", wantUpdate, update)
	}
}

func TestConfigJSON(t *testing.T) {
	data := []byte(`{
		"memory": 500,
		"batch_size": 8,
		"network": [{"size": 16, "activation": "tanh"}],
		"critic_optimizer": 0.5,
		"exploration": 0.1
	}`)

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Memory != 500 || c.BatchSize != 8 || c.Exploration != 0.1 {
		t.Errorf("options not decoded: %+v", c)
	}
	if c.CriticOptimizer.Weight != 0.5 {
		t.Errorf("critic optimizer: want(0.5) have(%v)", c.CriticOptimizer)
	}
	if len(c.Network.Layers) != 1 || c.Network.Layers[0].Size != 16 {
		t.Errorf("network: have(%+v)", c.Network)
	}

	// Missing options keep their defaults
	if c.LearningRate != DefaultLearningRate || !c.Critic.Auto ||
		c.Discount != DefaultDiscount || c.Tau != DefaultTau {
		t.Errorf("defaults not kept: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	deprecated := []byte(`{"memory": 500, "batch_size": 8,
		"estimate_terminal": false}`)
	if err := json.Unmarshal(deprecated, &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := c.Validate(); !agent.IsDeprecated(err) {
		t.Errorf("estimate_terminal: want deprecation error, have(%v)", err)
	}
}

func TestCriticOptimizerJSON(t *testing.T) {
	s, err := solver.NewDefaultAdam(0.01, 1)
	if err != nil {
		t.Fatalf("could not create solver: %v", err)
	}

	data, err := json.Marshal(NewCriticSolver(s))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var c CriticOptimizer
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Solver == nil || c.Solver.Type != solver.Adam {
		t.Fatalf("solver: want(Adam) have(%v)", c.Solver)
	}
	if c.LossWeight() != 1.0 {
		t.Errorf("loss weight: want(1.0) have(%v)", c.LossWeight())
	}
	if _, ok := c.Spec().(*spec.Dict); !ok {
		t.Errorf("spec: want a specification dictionary, have(%T)", c.Spec())
	}

	if err := json.Unmarshal([]byte(`"adam"`), &c); err == nil {
		t.Error("string: expected an error")
	}
}

func TestConfigList(t *testing.T) {
	list := newConfigList(newTestConfig())
	list.LearningRate = []float64{1e-3, 1e-4}
	list.Horizon = []int{1, 3, 5}

	if n := list.Len(); n != 6 {
		t.Fatalf("len: want(6) have(%v)", n)
	}

	// The last swept field varies fastest
	c := agent.ConfigAt(1, list).(Config)
	if c.LearningRate != 1e-3 || c.Horizon != 3 {
		t.Errorf("config 1: have(%v, %v)", c.LearningRate, c.Horizon)
	}
	c = agent.ConfigAt(4, list).(Config)
	if c.LearningRate != 1e-4 || c.Horizon != 3 {
		t.Errorf("config 4: have(%v, %v)", c.LearningRate, c.Horizon)
	}
	if c.Memory != 1000 || c.BatchSize != 16 {
		t.Errorf("unswept fields changed: %+v", c)
	}

	typed := agent.NewTypedConfigList(list)
	data, err := json.Marshal(typed)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded agent.TypedConfigList
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != agent.DPG || decoded.Len() != 6 {
		t.Errorf("decoded: type(%v) len(%v)", decoded.Type, decoded.Len())
	}
	if c := decoded.At(5).(Config); c.LearningRate != 1e-4 || c.Horizon != 5 {
		t.Errorf("decoded config 5: have(%v, %v)", c.LearningRate, c.Horizon)
	}

	var partial ConfigList
	if err := json.Unmarshal([]byte(`{"memory": [100], "batch_size": [4],
		"exploration": [0, 0.1]}`), &partial); err != nil {
		t.Fatalf("partial: %v", err)
	}
	if partial.Len() != 2 {
		t.Errorf("partial: want(2) have(%v)", partial.Len())
	}
	if c := agent.ConfigAt(1, partial).(Config); c.Exploration != 0.1 ||
		c.Discount != DefaultDiscount {
		t.Errorf("partial config 1: %+v", c)
	}

	if err := json.Unmarshal([]byte(`{"horizon": []}`),
		&partial); err == nil {
		t.Error("empty field: expected an error")
	}
}

func TestUpdateFrequencyJSON(t *testing.T) {
	tests := []struct {
		data      string
		want      UpdateFrequency
		frequency int
	}{
		{`"batch_size"`, EveryBatch, 16},
		{`"never"`, Never, 0},
		{`4`, 4, 4},
	}

	for _, test := range tests {
		c := newTestConfig()
		data := []byte(`{"memory": 1000, "batch_size": 16, ` +
			`"update_frequency": ` + test.data + `}`)
		if err := json.Unmarshal(data, &c); err != nil {
			t.Fatalf("%v: unmarshal: %v", test.data, err)
		}
		if c.UpdateFrequency != test.want {
			t.Errorf("%v: want(%v) have(%v)", test.data, test.want,
				c.UpdateFrequency)
		}
		if c.Frequency() != test.frequency {
			t.Errorf("%v: frequency want(%v) have(%v)", test.data,
				test.frequency, c.Frequency())
		}
		if err := c.Validate(); err != nil {
			t.Errorf("%v: validate: %v", test.data, err)
		}
	}

	for _, bad := range []string{`"sometimes"`, `0`, `-3`, `true`} {
		var u UpdateFrequency
		if err := json.Unmarshal([]byte(bad), &u); err == nil {
			t.Errorf("%v: expected an error", bad)
		}
	}

	c := newTestConfig()
	c.UpdateFrequency = Never
	update, _ := c.Components().Sub("update")
	if f, ok := update.Get("frequency"); !ok || f != "never" {
		t.Errorf("components: want(never) have(%v)", f)
	}
}

func TestSpecRoundTrip(t *testing.T) {
	c := newTestConfig()
	c.UpdateFrequency = Never
	data, err := json.Marshal(c.Spec())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Config
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if decoded.Actions == nil || !decoded.Actions.Bounded() ||
		*decoded.Actions.MinValue != -2 || *decoded.Actions.MaxValue != 2 {
		t.Errorf("actions: want(bounded [-2, 2]) have(%+v)", decoded.Actions)
	}
	if !reflect.DeepEqual(decoded.States, c.States) {
		t.Errorf("states: want(%+v) have(%+v)", c.States, decoded.States)
	}
	if decoded.UpdateFrequency != Never {
		t.Errorf("update frequency: want(never) have(%v)",
			decoded.UpdateFrequency)
	}
	if err := decoded.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}
