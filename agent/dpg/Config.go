package dpg

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/samuelfneumann/goforce/agent"
	"github.com/samuelfneumann/goforce/environment"
	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/preprocessing"
	"github.com/samuelfneumann/goforce/solver"
	"github.com/samuelfneumann/goforce/spec"
	"github.com/samuelfneumann/goforce/tensorspec"
)

// Name of the agent in deprecation errors
const name = "DPG"

// Defaults of the keyword options of a DPG agent
const (
	DefaultLearningRate         = 1e-3
	DefaultHorizon              = 1
	DefaultDiscount             = 0.99
	DefaultCriticWeight         = 1.0
	DefaultParallelInteractions = 1
	DefaultTau                  = 1.0
	DefaultTargetUpdateInterval = 1
)

func init() {
	// Register ConfigList type so that it can be typed using
	// agent.TypedConfigList to help with serialization/deserialization.
	agent.Register(agent.DPG, ConfigList{})
	agent.Register(agent.DDPG, ConfigList{})
}

// Config implements a configuration for a DPG agent. Each field
// corresponds to a keyword option of the agent.
type Config struct {
	// States and Actions describe the environment. Nil values are
	// taken from the environment when the agent is created.
	States  *tensorspec.TensorSpec `json:"states,omitempty"`
	Actions *tensorspec.TensorSpec `json:"actions,omitempty"`

	Memory              int `json:"memory"` // Replay memory capacity
	BatchSize           int `json:"batch_size"`
	MaxEpisodeTimesteps int `json:"max_episode_timesteps"` // 0 = unlimited

	Network             network.Config `json:"network"`
	UseBetaDistribution bool           `json:"use_beta_distribution"`

	// UpdateFrequency is the number of timesteps between updates.
	// StartUpdating is the number of timesteps before the first update,
	// 0 meaning the batch size.
	UpdateFrequency UpdateFrequency `json:"update_frequency"`
	StartUpdating   int             `json:"start_updating"`
	LearningRate    float64         `json:"learning_rate"`

	// Reward estimation
	Horizon               int     `json:"horizon"`
	Discount              float64 `json:"discount"`
	PredictTerminalValues bool    `json:"predict_terminal_values"`

	Critic          network.Config  `json:"critic"`
	CriticOptimizer CriticOptimizer `json:"critic_optimizer"`

	Preprocessing preprocessing.Type `json:"preprocessing"`

	Exploration   float64 `json:"exploration"`
	VariableNoise float64 `json:"variable_noise"`

	L2Regularization float64 `json:"l2_regularization"`

	// EntropyRegularization is accepted for compatibility. The policy
	// is deterministic, so it has no entropy to regularize.
	EntropyRegularization float64 `json:"entropy_regularization"`

	ParallelInteractions int `json:"parallel_interactions"`

	AgentConfig *spec.Dict `json:"config"`
	Saver       *spec.Dict `json:"saver"`
	Summarizer  *spec.Dict `json:"summarizer"`
	Recorder    *spec.Dict `json:"recorder"`

	// Target networks: every TargetUpdateInterval updates, target
	// weights are Polyak averaged towards the learned weights with
	// constant Tau. The defaults keep the targets equal to the learned
	// networks.
	Tau                  float64 `json:"tau"`
	TargetUpdateInterval int     `json:"target_update_interval"`

	// Deprecated arguments, which must be nil
	EstimateTerminal *bool           `json:"estimate_terminal,omitempty"`
	CriticNetwork    *network.Config `json:"critic_network,omitempty"`
}

// NewConfig returns a new Config with every option other than the
// argument ones set to its default
func NewConfig(states, actions *tensorspec.TensorSpec, memory,
	batchSize int) Config {
	return Config{
		States:               states,
		Actions:              actions,
		Memory:               memory,
		BatchSize:            batchSize,
		Network:              network.NewAutoConfig(),
		UseBetaDistribution:  true,
		LearningRate:         DefaultLearningRate,
		Horizon:              DefaultHorizon,
		Discount:             DefaultDiscount,
		Critic:               network.NewAutoConfig(),
		CriticOptimizer:      NewCriticWeight(DefaultCriticWeight),
		Preprocessing:        preprocessing.LinearNormalization,
		ParallelInteractions: DefaultParallelInteractions,
		Tau:                  DefaultTau,
		TargetUpdateInterval: DefaultTargetUpdateInterval,
	}
}

// DefaultConfig returns a Config with every option set to its
// default. The memory and batch size, which have no defaults, are
// left zero.
func DefaultConfig() Config {
	return NewConfig(nil, nil, 0, 0)
}

// UnmarshalJSON implements the json.Unmarshaler interface. Options
// missing from data keep their defaults.
func (c *Config) UnmarshalJSON(data []byte) error {
	type config Config
	decoded := config(DefaultConfig())
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	*c = Config(decoded)
	return nil
}

// Type returns the type of the configuration
func (c Config) Type() agent.Type {
	return agent.DPG
}

// ValidAgent returns whether the agent is valid for the configuration.
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*DPG)
	return ok
}

// Frequency returns the number of timesteps between updates, or 0 if
// the agent never updates
func (c Config) Frequency() int {
	switch c.UpdateFrequency {
	case EveryBatch:
		return c.BatchSize
	case Never:
		return 0
	}
	return int(c.UpdateFrequency)
}

// Start returns the number of timesteps before the first update
func (c Config) Start() int {
	if c.StartUpdating == 0 {
		return c.BatchSize
	}
	return c.StartUpdating
}

// Validate checks a Config to ensure it is a valid configuration of a
// DPG agent. Deprecated arguments are reported before anything else.
func (c Config) Validate() error {
	if c.EstimateTerminal != nil {
		return agent.Deprecated(name, "estimate_terminal",
			"predict_terminal_values")
	}
	if c.CriticNetwork != nil {
		return agent.Deprecated(name, "critic_network", "critic")
	}

	if c.Network.Recurrent() || c.Critic.Recurrent() {
		return fmt.Errorf("validate: recurrent policies are %w",
			agent.ErrTemporarilyBroken)
	}

	if c.States != nil {
		if err := c.States.Validate(); err != nil {
			return fmt.Errorf("validate: states: %v", err)
		}
	}
	if c.Actions != nil {
		if err := validateActions(*c.Actions); err != nil {
			return err
		}
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("validate: batch size must be positive "+
			"\n\thave(%v)", c.BatchSize)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("validate: horizon must be at least 1 "+
			"\n\thave(%v)", c.Horizon)
	}
	if min := c.BatchSize + c.Horizon + 1; c.Memory < min {
		return fmt.Errorf("validate: memory must be at least batch size "+
			"+ horizon + 1 \n\twant(>=%v) \n\thave(%v)", min, c.Memory)
	}
	if c.MaxEpisodeTimesteps < 0 {
		return fmt.Errorf("validate: max episode timesteps must be "+
			"non-negative \n\thave(%v)", c.MaxEpisodeTimesteps)
	}
	if c.UpdateFrequency < Never {
		return fmt.Errorf("validate: update frequency must be positive, "+
			"%q or %q \n\thave(%v)", batchSizeFrequency, neverFrequency,
			int(c.UpdateFrequency))
	}
	if c.StartUpdating != 0 && c.StartUpdating < c.BatchSize {
		return fmt.Errorf("validate: start updating must be at least the "+
			"batch size \n\twant(>=%v) \n\thave(%v)", c.BatchSize,
			c.StartUpdating)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive "+
			"\n\thave(%v)", c.LearningRate)
	}
	if c.Discount < 0 || c.Discount > 1 {
		return fmt.Errorf("validate: discount must be in [0, 1] "+
			"\n\thave(%v)", c.Discount)
	}

	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("validate: network: %v", err)
	}
	if err := c.Critic.Validate(); err != nil {
		return fmt.Errorf("validate: critic: %v", err)
	}
	if err := c.CriticOptimizer.Validate(); err != nil {
		return fmt.Errorf("validate: critic optimizer: %v", err)
	}
	if err := c.Preprocessing.Validate(); err != nil {
		return fmt.Errorf("validate: preprocessing: %v", err)
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"exploration", c.Exploration},
		{"variable noise", c.VariableNoise},
		{"l2 regularization", c.L2Regularization},
		{"entropy regularization", c.EntropyRegularization},
	}
	for _, option := range nonNegative {
		if option.value < 0 {
			return fmt.Errorf("validate: %v must be non-negative "+
				"\n\thave(%v)", option.name, option.value)
		}
	}

	if c.ParallelInteractions < 1 {
		return fmt.Errorf("validate: parallel interactions must be at "+
			"least 1 \n\thave(%v)", c.ParallelInteractions)
	}

	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] \n\thave(%v)",
			c.Tau)
	}
	if c.TargetUpdateInterval < 1 {
		return fmt.Errorf("validate: target networks must be updated at "+
			"positive intervals \n\twant(>0) \n\thave(%v)",
			c.TargetUpdateInterval)
	}

	return nil
}

// validateActions returns an error if actions cannot be selected by a
// DPG agent, which requires a single float action
func validateActions(actions tensorspec.TensorSpec) error {
	if err := actions.Validate(); err != nil {
		return fmt.Errorf("validate: actions: %v", err)
	}
	if actions.Type != tensorspec.Float {
		return fmt.Errorf("validate: actions must be float \n\thave(%v)",
			actions.Type)
	}
	return nil
}

// Spec returns the flat specification of the agent: every keyword
// option, in order
func (c Config) Spec() *spec.Dict {
	return spec.New(
		"agent", string(agent.DPG),
		"states", tensorSpec(c.States),
		"actions", tensorSpec(c.Actions),
		"memory", c.Memory,
		"batch_size", c.BatchSize,
		"max_episode_timesteps", orNil(c.MaxEpisodeTimesteps),
		"network", c.Network.Spec(),
		"use_beta_distribution", c.UseBetaDistribution,
		"update_frequency", c.UpdateFrequency.Spec(),
		"start_updating", orNil(c.StartUpdating),
		"learning_rate", c.LearningRate,
		"horizon", c.Horizon,
		"discount", c.Discount,
		"predict_terminal_values", c.PredictTerminalValues,
		"critic", c.Critic.Spec(),
		"critic_optimizer", c.CriticOptimizer.Spec(),
		"preprocessing", preprocessingSpec(c.Preprocessing),
		"exploration", c.Exploration,
		"variable_noise", c.VariableNoise,
		"l2_regularization", c.L2Regularization,
		"entropy_regularization", c.EntropyRegularization,
		"parallel_interactions", c.ParallelInteractions,
		"config", dict(c.AgentConfig),
		"saver", dict(c.Saver),
		"summarizer", dict(c.Summarizer),
		"recorder", dict(c.Recorder),
	)
}

// Components returns the nested specifications of the modules that
// make up the agent
func (c Config) Components() *spec.Dict {
	policy := spec.New(
		"type", "parametrized_distributions",
		"network", c.Network.Spec(),
		"temperature", 0.0,
		"use_beta_distribution", c.UseBetaDistribution,
	)

	memory := spec.New("type", "replay", "capacity", c.Memory)

	update := spec.New("unit", "timesteps", "batch_size", c.BatchSize)
	if c.UpdateFrequency != EveryBatch {
		update.Set("frequency", c.UpdateFrequency.Spec())
	}
	if c.StartUpdating != 0 {
		update.Set("start", c.StartUpdating)
	}

	optimizer := spec.New("type", "adam", "learning_rate", c.LearningRate)

	rewardEstimation := spec.New(
		"horizon", c.Horizon,
		"discount", c.Discount,
		"predict_horizon_values", "late",
		"estimate_advantage", false,
		"predict_action_values", true,
		"predict_terminal_values", c.PredictTerminalValues,
	)

	baseline := spec.New(
		"type", "parametrized_distributions",
		"network", c.Critic.Spec(),
	)

	return spec.New(
		"policy", policy,
		"memory", memory,
		"update", update,
		"optimizer", optimizer,
		"objective", "deterministic_policy_gradient",
		"reward_estimation", rewardEstimation,
		"baseline", baseline,
		"baseline_optimizer", c.CriticOptimizer.Spec(),
		"baseline_objective", spec.New("type", "value", "value", "action"),
	)
}

// SaverSpec returns the specification of the agent's checkpointer
func (c Config) SaverSpec() *spec.Dict { return c.Saver }

// SummarizerSpec returns the specification of the agent's summarizer
func (c Config) SummarizerSpec() *spec.Dict { return c.Summarizer }

// RecorderSpec returns the specification of the agent's recorder
func (c Config) RecorderSpec() *spec.Dict { return c.Recorder }

func tensorSpec(t *tensorspec.TensorSpec) interface{} {
	if t == nil {
		return nil
	}
	return t.Spec()
}

func preprocessingSpec(t preprocessing.Type) interface{} {
	if t == preprocessing.None || t == "" {
		return nil
	}
	return string(t)
}

func dict(d *spec.Dict) interface{} {
	if d == nil {
		return nil
	}
	return d
}

func orNil(i int) interface{} {
	if i == 0 {
		return nil
	}
	return i
}

// CreateAgent creates a new DPG agent based on the configuration.
// States and actions which the Config does not describe are taken
// from the environment.
func (c Config) CreateAgent(e environment.Environment,
	seed uint64) (agent.Agent, error) {
	if c.States == nil {
		states := tensorspec.FromEnvironment(e.ObservationSpec())
		c.States = &states
	}
	if c.Actions == nil {
		actions := tensorspec.FromEnvironment(e.ActionSpec())
		c.Actions = &actions
	}

	return New(e, c, seed)
}

const (
	batchSizeFrequency = "batch_size"
	neverFrequency     = "never"
)

// UpdateFrequency is the number of timesteps between updates. In JSON
// it is a positive number, "batch_size" or "never".
type UpdateFrequency int

const (
	// EveryBatch updates once every batch size timesteps
	EveryBatch UpdateFrequency = 0

	// Never disables updates
	Never UpdateFrequency = -1
)

// Spec returns the specification value of the UpdateFrequency
func (u UpdateFrequency) Spec() interface{} {
	switch u {
	case EveryBatch:
		return batchSizeFrequency
	case Never:
		return neverFrequency
	}
	return int(u)
}

// MarshalJSON implements the json.Marshaler interface
func (u UpdateFrequency) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Spec())
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (u *UpdateFrequency) UnmarshalJSON(data []byte) error {
	var frequency int
	if err := json.Unmarshal(data, &frequency); err == nil {
		if frequency < 1 {
			return fmt.Errorf("unmarshalJSON: update frequency must be "+
				"positive \n\thave(%v)", frequency)
		}
		*u = UpdateFrequency(frequency)
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("unmarshalJSON: update frequency must be a "+
			"number or a string: %v", err)
	}
	switch name {
	case batchSizeFrequency:
		*u = EveryBatch
	case neverFrequency:
		*u = Never
	default:
		return fmt.Errorf("unmarshalJSON: unknown update frequency %q", name)
	}
	return nil
}

// CriticOptimizer is either a weight on the critic loss, in which case
// the critic is trained with a copy of the actor's optimizer, or the
// optimizer of the critic itself. In JSON, a weight is a number and an
// optimizer is a solver object.
type CriticOptimizer struct {
	Weight float64
	Solver *solver.Solver
}

// NewCriticWeight returns a CriticOptimizer which weighs the critic
// loss by weight
func NewCriticWeight(weight float64) CriticOptimizer {
	return CriticOptimizer{Weight: weight}
}

// NewCriticSolver returns a CriticOptimizer which trains the critic
// with s
func NewCriticSolver(s *solver.Solver) CriticOptimizer {
	return CriticOptimizer{Weight: 1.0, Solver: s}
}

// Validate returns an error if the CriticOptimizer is invalid
func (c CriticOptimizer) Validate() error {
	if c.Solver == nil && c.Weight <= 0 {
		return fmt.Errorf("validate: critic loss weight must be positive "+
			"\n\thave(%v)", c.Weight)
	}
	return nil
}

// LossWeight returns the weight of the critic loss
func (c CriticOptimizer) LossWeight() float64 {
	if c.Solver != nil {
		return 1.0
	}
	return c.Weight
}

// Create returns the solver of the critic given the solver of the
// actor
func (c CriticOptimizer) Create(actor *solver.Solver) (*solver.Solver,
	error) {
	if c.Solver != nil {
		return c.Solver.Clone()
	}
	return actor.Clone()
}

// Spec returns the specification value of the CriticOptimizer: the
// loss weight or the optimizer specification
func (c CriticOptimizer) Spec() interface{} {
	if c.Solver == nil {
		return c.Weight
	}

	data, err := json.Marshal(c.Solver)
	if err != nil {
		panic(fmt.Sprintf("spec: could not marshal solver: %v", err))
	}
	d := spec.New()
	if err := json.Unmarshal(data, d); err != nil {
		panic(fmt.Sprintf("spec: could not unmarshal solver: %v", err))
	}
	return d
}

// MarshalJSON implements the json.Marshaler interface
func (c CriticOptimizer) MarshalJSON() ([]byte, error) {
	if c.Solver == nil {
		return json.Marshal(c.Weight)
	}
	return json.Marshal(c.Solver)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (c *CriticOptimizer) UnmarshalJSON(data []byte) error {
	var weight float64
	if err := json.Unmarshal(data, &weight); err == nil {
		*c = NewCriticWeight(weight)
		return nil
	}

	s := &solver.Solver{}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshalJSON: critic optimizer must be a "+
			"weight or a solver: %v", err)
	}
	*c = NewCriticSolver(s)
	return nil
}

// ConfigList implements a list of Config's in a more efficient manner
// than simply using a slice of Config's. Each field holds the values
// of the Config option of the same name which are swept over.
type ConfigList struct {
	Memory              []int `json:"memory"`
	BatchSize           []int `json:"batch_size"`
	MaxEpisodeTimesteps []int `json:"max_episode_timesteps"`

	Network             []network.Config `json:"network"`
	UseBetaDistribution []bool           `json:"use_beta_distribution"`

	UpdateFrequency []UpdateFrequency `json:"update_frequency"`
	StartUpdating   []int             `json:"start_updating"`
	LearningRate    []float64         `json:"learning_rate"`

	Horizon               []int     `json:"horizon"`
	Discount              []float64 `json:"discount"`
	PredictTerminalValues []bool    `json:"predict_terminal_values"`

	Critic          []network.Config  `json:"critic"`
	CriticOptimizer []CriticOptimizer `json:"critic_optimizer"`

	Preprocessing []preprocessing.Type `json:"preprocessing"`

	Exploration   []float64 `json:"exploration"`
	VariableNoise []float64 `json:"variable_noise"`

	L2Regularization      []float64 `json:"l2_regularization"`
	EntropyRegularization []float64 `json:"entropy_regularization"`

	ParallelInteractions []int `json:"parallel_interactions"`

	AgentConfig []*spec.Dict `json:"config"`
	Saver       []*spec.Dict `json:"saver"`
	Summarizer  []*spec.Dict `json:"summarizer"`
	Recorder    []*spec.Dict `json:"recorder"`

	Tau                  []float64 `json:"tau"`
	TargetUpdateInterval []int     `json:"target_update_interval"`

	EstimateTerminal []*bool           `json:"estimate_terminal"`
	CriticNetwork    []*network.Config `json:"critic_network"`
}

// NewConfigList returns a new ConfigList holding the single Config c
// as an agent.TypedConfigList. Because the returned value is a
// TypedList, it can safely be JSON serialized and deserialized
// without specifying what the type of the ConfigList is.
func NewConfigList(c Config) agent.TypedConfigList {
	return agent.NewTypedConfigList(newConfigList(c))
}

// newConfigList returns a ConfigList whose fields each hold the single
// value of the corresponding field of c
func newConfigList(c Config) ConfigList {
	list := ConfigList{}
	listValue := reflect.ValueOf(&list).Elem()
	configValue := reflect.ValueOf(c)

	for i := 0; i < listValue.NumField(); i++ {
		field := listValue.Field(i)
		value := configValue.FieldByName(listValue.Type().Field(i).Name)
		single := reflect.MakeSlice(field.Type(), 1, 1)
		single.Index(0).Set(value)
		field.Set(single)
	}
	return list
}

// UnmarshalJSON implements the json.Unmarshaler interface. Options
// missing from data are a single default value.
func (c *ConfigList) UnmarshalJSON(data []byte) error {
	type configList ConfigList
	decoded := configList(newConfigList(DefaultConfig()))
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	list := ConfigList(decoded)
	listValue := reflect.ValueOf(list)
	for i := 0; i < listValue.NumField(); i++ {
		if listValue.Field(i).Len() == 0 {
			return errors.New("unmarshalJSON: field " +
				listValue.Type().Field(i).Name + " has no values")
		}
	}

	*c = list
	return nil
}

// Type returns the type of Config stored in the list
func (c ConfigList) Type() agent.Type {
	return c.Config().Type()
}

// NumFields returns the number of settable fields in a Config
func (c ConfigList) NumFields() int {
	rValue := reflect.ValueOf(c)
	return rValue.NumField()
}

// Config returns a default Config of the same type as that stored
// by the ConfigList
func (c ConfigList) Config() agent.Config {
	return DefaultConfig()
}

// Len returns the number of Config's in the list
func (c ConfigList) Len() int {
	return agent.Len(c)
}
