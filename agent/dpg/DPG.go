// Package dpg implements the deterministic policy gradient agent,
// DPG, also known as DDPG when target networks are used.
package dpg

import (
	"fmt"
	"os"

	"github.com/samuelfneumann/goforce/agent"
	"github.com/samuelfneumann/goforce/environment"
	"github.com/samuelfneumann/goforce/expreplay"
	"github.com/samuelfneumann/goforce/network"
	"github.com/samuelfneumann/goforce/policy"
	"github.com/samuelfneumann/goforce/preprocessing"
	"github.com/samuelfneumann/goforce/solver"
	"github.com/samuelfneumann/goforce/tensorspec"
	ts "github.com/samuelfneumann/goforce/timestep"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// stateName is the name of the single state in state dictionaries
const stateName = "state"

// DPG implements the deterministic policy gradient algorithm. A
// deterministic actor μ(s) is trained by gradient ascent on the value
// of its actions under an action-value critic Q(s, a), which is
// trained by regression to n-step returns bootstrapped with the target
// networks:
//
//	y = Σ_{k<n} γ^k r_{t+k+1} + γ^n Q'(s_{t+n}, μ'(s_{t+n}))
type DPG struct {
	config Config

	head       policy.ActionHead
	preprocess preprocessing.Preprocessor
	behaviour  *policy.Deterministic

	// Critic training graph: mean squared error to the update targets
	critic        network.NeuralNet
	criticStates  *G.Node
	criticActions *G.Node
	criticTargets *G.Node
	criticVM      G.VM
	criticSolver  *solver.Solver

	// Actor training graph: the actor's actions are fed to a copy of
	// the critic, whose mean prediction is maximized
	actor       network.NeuralNet
	actorCritic network.NeuralNet
	actorStates *G.Node
	actorVM     G.VM
	actorSolver *solver.Solver

	// Target graph: Q'(s', μ'(s'))
	targetActor  network.NeuralNet
	targetCritic network.NeuralNet
	targetStates *G.Node
	targetVM     G.VM

	// Target net updates
	tau                  float64
	targetUpdateInterval int
	gradientSteps        int

	value       *policy.ActorCriticValue
	actionValue *policy.ActionValue

	replay    expreplay.ExperienceReplayer
	buffers   []*buffer // One per parallel interaction
	batchSize int

	// Update schedule, in timesteps
	timesteps  int
	lastUpdate int
	frequency  int
	start      int

	stateFeatures  int
	actionFeatures int

	eval bool
}

// New creates and returns a new DPG agent. The States and Actions of
// the config must be set.
func New(env environment.Environment, config Config,
	seed uint64) (*DPG, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.States == nil || config.Actions == nil {
		return nil, fmt.Errorf("new: states and actions must be specified")
	}
	if len(config.Actions.Shape) > 1 {
		return nil, fmt.Errorf("new: actions must be at most "+
			"1-dimensional \n\thave(%v)", config.Actions.Shape)
	}

	stateFeatures := config.States.Size()
	actionFeatures := config.Actions.Size()
	batchSize := config.BatchSize
	head := policy.NewActionHead(*config.Actions, config.UseBetaDistribution)

	preprocess, err := config.Preprocessing.Create(env.ObservationSpec())
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	d := &DPG{
		config:               config,
		head:                 head,
		preprocess:           preprocess,
		tau:                  config.Tau,
		targetUpdateInterval: config.TargetUpdateInterval,
		batchSize:            batchSize,
		frequency:            config.Frequency(),
		start:                config.Start(),
		stateFeatures:        stateFeatures,
		actionFeatures:       actionFeatures,
	}

	if err := d.newCriticGraph(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := d.newActorGraph(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if err := d.newTargetGraph(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	// Solvers. Losses are averaged over the batch, so solvers use a
	// batch size of 1.
	d.actorSolver, err = solver.NewDefaultAdam(config.LearningRate, 1)
	if err != nil {
		return nil, fmt.Errorf("new: could not create actor solver: %v", err)
	}
	d.criticSolver, err = config.CriticOptimizer.Create(d.actorSolver)
	if err != nil {
		return nil, fmt.Errorf("new: could not create critic solver: %v",
			err)
	}

	// Behaviour policy
	d.behaviour, err = policy.NewDeterministic("policy", d.actor, head,
		config.Exploration, config.VariableNoise, seed)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}

	// Value functions
	states := tensorspec.NewDict()
	states.Set(stateName, *config.States)
	actions := tensorspec.NewDict()
	actions.Set("action", *config.Actions)
	base := policy.NewStateValue("baseline", config.L2Regularization, states,
		nil, actions)
	d.value, err = policy.NewActorCriticValue(base, d.actor, d.critic, head,
		preprocess)
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	// Experience replay
	replayConfig := expreplay.NewConfig(config.Memory, batchSize, batchSize)
	d.replay, err = replayConfig.Create(stateFeatures, actionFeatures, seed)
	if err != nil {
		msg := "new: could not create experience replay buffer: %v"
		return nil, fmt.Errorf(msg, err)
	}

	d.buffers = make([]*buffer, config.ParallelInteractions)
	for i := range d.buffers {
		d.buffers[i] = newBuffer(config.Horizon, config.Discount,
			config.PredictTerminalValues)
	}

	return d, nil
}

// newMatrix adds a new (rows, cols) input matrix to g
func newMatrix(g *G.ExprGraph, name string, rows, cols int) *G.Node {
	return G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(rows, cols),
		G.WithName(name),
		G.WithInit(G.Zeroes()),
	)
}

// newCriticGraph creates the graph which trains the critic
func (d *DPG) newCriticGraph() error {
	g := G.NewGraph()
	d.criticStates = newMatrix(g, "states", d.batchSize, d.stateFeatures)
	d.criticActions = newMatrix(g, "actions", d.batchSize, d.actionFeatures)
	d.criticTargets = newMatrix(g, "targets", d.batchSize, 1)

	critic, err := d.config.Critic.NewMLPFromInput(
		[]*G.Node{d.criticStates, d.criticActions}, 1, g, "critic")
	if err != nil {
		return fmt.Errorf("newCriticGraph: could not create critic: %v", err)
	}
	d.critic = critic

	d.actionValue, err = policy.NewActionValue("critic", critic,
		d.stateFeatures, d.actionFeatures, d.config.L2Regularization)
	if err != nil {
		return fmt.Errorf("newCriticGraph: %v", err)
	}

	// Compute the mean squared error to the update targets
	loss := G.Must(G.Sub(critic.Prediction(), d.criticTargets))
	loss = G.Must(G.Square(loss))
	loss = G.Must(G.Mean(loss))
	weight := d.config.CriticOptimizer.LossWeight()
	if weight != 1.0 {
		loss = G.Must(G.Mul(loss, G.NewConstant(weight)))
	}

	l2, err := d.actionValue.L2Loss(critic.Learnables())
	if err != nil {
		return fmt.Errorf("newCriticGraph: %v", err)
	}
	if l2 != nil {
		loss = G.Must(G.Add(loss, l2))
	}

	if _, err := G.Grad(loss, critic.Learnables()...); err != nil {
		return fmt.Errorf("newCriticGraph: could not compute gradient: %v",
			err)
	}
	d.criticVM = G.NewTapeMachine(g, G.BindDualValues(critic.Learnables()...))

	return nil
}

// newActorGraph creates the graph which trains the actor
func (d *DPG) newActorGraph() error {
	g := G.NewGraph()
	d.actorStates = newMatrix(g, "states", d.batchSize, d.stateFeatures)

	actor, err := d.config.Network.NewMLPFromInput(
		[]*G.Node{d.actorStates}, d.actionFeatures, g, "actor")
	if err != nil {
		return fmt.Errorf("newActorGraph: could not create actor: %v", err)
	}
	d.actor = actor

	action, err := d.head.Apply(actor.Prediction())
	if err != nil {
		return fmt.Errorf("newActorGraph: %v", err)
	}

	d.actorCritic, err = d.critic.CloneWithInputTo(1,
		[]*G.Node{d.actorStates, action}, g, "critic")
	if err != nil {
		return fmt.Errorf("newActorGraph: could not copy critic: %v", err)
	}

	// Maximize Q(s, μ(s)) by minimizing its negation
	loss := G.Must(G.Mean(d.actorCritic.Prediction()))
	loss = G.Must(G.Neg(loss))

	module := policy.Module{Name: "actor",
		L2Regularization: d.config.L2Regularization}
	l2, err := module.L2Loss(actor.Learnables())
	if err != nil {
		return fmt.Errorf("newActorGraph: %v", err)
	}
	if l2 != nil {
		loss = G.Must(G.Add(loss, l2))
	}

	if _, err := G.Grad(loss, actor.Learnables()...); err != nil {
		return fmt.Errorf("newActorGraph: could not compute gradient: %v",
			err)
	}
	d.actorVM = G.NewTapeMachine(g, G.BindDualValues(actor.Learnables()...))

	return nil
}

// newTargetGraph creates the graph which computes the values of next
// states under the target networks
func (d *DPG) newTargetGraph() error {
	g := G.NewGraph()
	d.targetStates = newMatrix(g, "nextStates", d.batchSize, d.stateFeatures)

	var err error
	d.targetActor, err = d.actor.CloneWithInputTo(1,
		[]*G.Node{d.targetStates}, g, "targetActor")
	if err != nil {
		return fmt.Errorf("newTargetGraph: could not create target actor: %v",
			err)
	}

	action, err := d.head.Apply(d.targetActor.Prediction())
	if err != nil {
		return fmt.Errorf("newTargetGraph: %v", err)
	}

	d.targetCritic, err = d.critic.CloneWithInputTo(1,
		[]*G.Node{d.targetStates, action}, g, "targetCritic")
	if err != nil {
		return fmt.Errorf("newTargetGraph: could not create target "+
			"critic: %v", err)
	}
	d.targetVM = G.NewTapeMachine(g)

	return nil
}

// Parallel returns the number of parallel interactions
func (d *DPG) Parallel() int {
	return len(d.buffers)
}

// ObserveFirst observes and records the first episodic timestep
func (d *DPG) ObserveFirst(t ts.TimeStep) error {
	return d.ObserveFirstAt(0, t)
}

// ObserveFirstAt observes and records the first episodic timestep of
// the parallel interaction
func (d *DPG) ObserveFirstAt(parallel int, t ts.TimeStep) error {
	if parallel < 0 || parallel >= len(d.buffers) {
		return fmt.Errorf("observeFirstAt: invalid parallel interaction %v",
			parallel)
	}
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n",
			t.Number)
	}
	d.buffers[parallel].start(d.preprocess.Preprocess(t.Observation))
	return nil
}

// Observe observes and records any timestep other than the first
// timestep
func (d *DPG) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	return d.ObserveAt(0, action, nextStep)
}

// ObserveAt observes and records any timestep other than the first
// timestep of the parallel interaction. The resulting transitions are
// added to the replay memory once their n-step returns are complete.
// Nothing is recorded in evaluation mode.
func (d *DPG) ObserveAt(parallel int, action mat.Vector,
	nextStep ts.TimeStep) error {
	if parallel < 0 || parallel >= len(d.buffers) {
		return fmt.Errorf("observeAt: invalid parallel interaction %v",
			parallel)
	}
	if action.Len() != d.actionFeatures {
		return fmt.Errorf("observeAt: invalid action size \n\twant(%v) "+
			"\n\thave(%v)", d.actionFeatures, action.Len())
	}
	if max := d.config.MaxEpisodeTimesteps; max > 0 && nextStep.Number > max {
		return fmt.Errorf("observeAt: episode exceeded the maximum of %v "+
			"timesteps", max)
	}
	if d.eval {
		return nil
	}

	b := d.buffers[parallel]
	if !b.started() {
		return fmt.Errorf("observeAt: ObserveFirst must be called at the " +
			"start of each episode")
	}

	a := mat.NewVecDense(action.Len(), nil)
	a.CopyVec(action)
	nextState := d.preprocess.Preprocess(nextStep.Observation)

	for _, t := range b.add(a, nextStep, nextState) {
		if err := d.replay.Add(t); err != nil {
			return fmt.Errorf("observeAt: %v", err)
		}
	}
	d.timesteps++

	return nil
}

// Step updates the weights of the Agent's networks if an update is
// scheduled at the current timestep
func (d *DPG) Step() error {
	if d.eval || d.frequency == 0 || d.timesteps < d.start ||
		d.timesteps-d.lastUpdate < d.frequency {
		return nil
	}
	d.lastUpdate = d.timesteps

	return d.update()
}

// update performs a single update of the critic, the actor and the
// target networks on a batch sampled from the replay memory
func (d *DPG) update() error {
	// Don't update if replay buffer is empty or has insufficient
	// samples to sample
	batch, err := d.replay.Sample()
	if expreplay.IsEmptyBuffer(err) || expreplay.IsInsufficientSamples(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	targets, err := d.targets(batch)
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}

	// Critic update
	if err := let(d.criticStates, batch.State); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if err := let(d.criticActions, batch.Action); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if err := let(d.criticTargets, targets); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if err := d.criticVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run critic: %v", err)
	}
	if err := d.criticSolver.Step(d.critic.Model()); err != nil {
		return fmt.Errorf("update: could not step critic solver: %v", err)
	}
	d.criticVM.Reset()

	// Actor update, through the updated critic
	if err := d.actorCritic.Set(d.critic); err != nil {
		return fmt.Errorf("update: could not copy critic: %v", err)
	}
	if err := let(d.actorStates, batch.State); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if err := d.actorVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run actor: %v", err)
	}
	if err := d.actorSolver.Step(d.actor.Model()); err != nil {
		return fmt.Errorf("update: could not step actor solver: %v", err)
	}
	d.actorVM.Reset()
	d.gradientSteps++

	// Update the target networks
	if d.gradientSteps%d.targetUpdateInterval == 0 {
		if err := d.updateTargets(); err != nil {
			return fmt.Errorf("update: %v", err)
		}
	}

	if err := d.behaviour.Sync(d.actor); err != nil {
		return fmt.Errorf("update: could not sync behaviour policy: %v", err)
	}
	return nil
}

// targets returns the update targets of the critic for a batch
func (d *DPG) targets(batch expreplay.Batch) ([]float64, error) {
	if err := let(d.targetStates, batch.NextState); err != nil {
		return nil, fmt.Errorf("targets: %v", err)
	}
	if err := d.targetVM.RunAll(); err != nil {
		return nil, fmt.Errorf("targets: %v", err)
	}
	nextValues := d.targetCritic.Output().Data().([]float64)

	targets := make([]float64, len(batch.Reward))
	for i := range targets {
		targets[i] = batch.Reward[i] + batch.Discount[i]*nextValues[i]
	}
	d.targetVM.Reset()

	return targets, nil
}

func (d *DPG) updateTargets() error {
	if d.tau == 1.0 {
		if err := d.targetActor.Set(d.actor); err != nil {
			return fmt.Errorf("updateTargets: %v", err)
		}
		if err := d.targetCritic.Set(d.critic); err != nil {
			return fmt.Errorf("updateTargets: %v", err)
		}
		return nil
	}

	if err := d.targetActor.Polyak(d.actor, d.tau); err != nil {
		return fmt.Errorf("updateTargets: %v", err)
	}
	if err := d.targetCritic.Polyak(d.critic, d.tau); err != nil {
		return fmt.Errorf("updateTargets: %v", err)
	}
	return nil
}

// let sets the value of a matrix input node
func let(node *G.Node, backing []float64) error {
	value := tensor.New(
		tensor.WithShape(node.Shape().Clone()...),
		tensor.WithBacking(backing),
	)
	if err := G.Let(node, value); err != nil {
		return fmt.Errorf("could not set %v: %v", node.Name(), err)
	}
	return nil
}

// SelectAction returns the action selected by the behaviour policy.
// In evaluation mode, actions are selected without exploration.
func (d *DPG) SelectAction(t ts.TimeStep) *mat.VecDense {
	state := d.preprocess.Preprocess(t.Observation)
	action, err := d.behaviour.Act(state.RawVector().Data)
	if err != nil {
		panic(fmt.Sprintf("selectAction: %v", err))
	}
	return mat.NewVecDense(len(action), action)
}

// StateValue returns the values of a batch of states under the current
// actor and critic. States are those of the environment, before
// preprocessing.
func (d *DPG) StateValue(states *tensorspec.TensorDict,
	horizons tensor.Tensor, internals,
	auxiliaries *tensorspec.TensorDict) ([]float64, error) {
	return d.value.StateValue(states, horizons, internals, auxiliaries)
}

// PastHorizon returns the number of past timesteps of states which the
// agent's state value requires
func (d *DPG) PastHorizon() int {
	return d.value.PastHorizon()
}

// ActionValue returns the value of taking the environment action in
// the environment state
func (d *DPG) ActionValue(state, action mat.Vector) (float64, error) {
	s := d.preprocess.Preprocess(state)
	a := mat.NewVecDense(action.Len(), nil)
	a.CopyVec(action)

	values, err := d.actionValue.ActionValue(s.RawVector().Data,
		a.RawVector().Data)
	if err != nil {
		return 0, err
	}
	return values[0], nil
}

// TdError calculates the TD error generated by the learner on some
// transition:
//
//	r + γ Q(s', μ(s')) - Q(s, a)
func (d *DPG) TdError(t ts.Transition) float64 {
	actionValue, err := d.ActionValue(t.State, t.Action)
	if err != nil {
		panic(fmt.Sprintf("tdError: %v", err))
	}

	nextState := tensorspec.NewTensorDict()
	nextState.Set(stateName, tensor.New(
		tensor.WithShape(1, d.stateFeatures),
		tensor.WithBacking(append([]float64{}, t.NextState.RawVector().Data...)),
	))
	nextValue, err := d.StateValue(nextState, policy.NewHorizons(1), nil, nil)
	if err != nil {
		panic(fmt.Sprintf("tdError: %v", err))
	}

	return t.Reward + t.Discount*nextValue[0] - actionValue
}

// Weights returns the weights of all networks of the agent
func (d *DPG) Weights() map[string][][]float64 {
	return map[string][][]float64{
		"actor":        d.actor.Weights(),
		"critic":       d.critic.Weights(),
		"targetActor":  d.targetActor.Weights(),
		"targetCritic": d.targetCritic.Weights(),
	}
}

// SetWeights sets the weights of all networks of the agent
func (d *DPG) SetWeights(weights map[string][][]float64) error {
	nets := map[string]network.NeuralNet{
		"actor":        d.actor,
		"critic":       d.critic,
		"targetActor":  d.targetActor,
		"targetCritic": d.targetCritic,
	}
	for name, net := range nets {
		w, ok := weights[name]
		if !ok {
			return fmt.Errorf("setWeights: missing weights of %v", name)
		}
		if err := net.SetWeights(w); err != nil {
			return fmt.Errorf("setWeights: %v: %v", name, err)
		}
	}

	if err := d.behaviour.Sync(d.actor); err != nil {
		return fmt.Errorf("setWeights: %v", err)
	}
	return nil
}

// Config returns the Config of the agent
func (d *DPG) Config() Config {
	return d.config
}

// Eval sets the agent into evaluation mode
func (d *DPG) Eval() {
	d.eval = true
	d.behaviour.Eval()
}

// Train sets the agent into training mode
func (d *DPG) Train() {
	d.eval = false
	d.behaviour.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (d *DPG) IsEval() bool {
	return d.eval
}

// EndEpisode performs cleanup at the end of an episode
func (d *DPG) EndEpisode() {}

// Close closes the agent's VMs
func (d *DPG) Close() error {
	closers := []interface{ Close() error }{
		d.criticVM, d.actorVM, d.targetVM, d.behaviour, d.value,
		d.actionValue,
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ agent.Closer          = &DPG{}
	_ agent.ParallelLearner = &DPG{}
	_ agent.TdErrorer       = &DPG{}
	_ agent.Weighter        = &DPG{}
	_ policy.StateValuer    = &DPG{}
)
