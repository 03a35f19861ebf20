// Package expreplay implements experience replay memories. Transitions
// are stored in a fixed capacity buffer; once the buffer is full, the
// oldest transition is evicted to make room for each new one.
package expreplay

import (
	"fmt"

	"github.com/samuelfneumann/goforce/timestep"
)

// ExperienceReplayer implements an experience replay buffer
type ExperienceReplayer interface {
	// Add adds a transition to the buffer
	Add(t timestep.Transition) error

	// Sample samples a batch of experience from the buffer
	Sample() (Batch, error)

	// Capacity returns the current number of samples in the buffer
	Capacity() int

	// MaxCapacity returns the maximum allowable samples in the buffer
	MaxCapacity() int

	// MinCapacity returns the number of samples required to be in
	// the buffer before the buffer can be sampled
	MinCapacity() int

	// BatchSize returns the number of samples returned by Sample()
	BatchSize() int
}

// Batch is a batch of transitions sampled from a buffer. Vector
// quantities are stored row-major, one row per transition.
type Batch struct {
	State      []float64
	Action     []float64
	Reward     []float64
	Discount   []float64
	NextState  []float64
	NextAction []float64 // nil unless the buffer stores next actions
}

// Size returns the number of transitions in the batch
func (b Batch) Size() int {
	return len(b.Reward)
}

// cache implements a concrete ExperienceReplayer as a ring buffer.
// Data is removed from the cache first-in-first-out, one transition at
// a time.
type cache struct {
	// includeNextAction denotes whether the next action in the SARSA
	// tuple should be stored and returned
	includeNextAction bool

	stateCache      []float64
	actionCache     []float64
	rewardCache     []float64
	discountCache   []float64
	nextStateCache  []float64
	nextActionCache []float64

	currentInUsePos int
	isFull          bool

	// Outlines how data is sampled
	sampler Selector

	minCapacity int
	maxCapacity int
	featureSize int
	actionSize  int
}

// New creates and returns a new ExperienceReplayer. The sampler
// parameter determines how data is sampled from the buffer. The
// featureSize and actionSize parameters define the size of the state
// and action vectors. The buffer may only be sampled once it holds at
// least minCapacity transitions, and holds at most maxCapacity
// transitions.
//
// Pixel observations should be flattened before adding to the buffer.
func New(sampler Selector, minCapacity, maxCapacity, featureSize,
	actionSize int, includeNextAction bool) (ExperienceReplayer, error) {
	if minCapacity <= 0 {
		return nil, fmt.Errorf("new: minCapacity must be > 0")
	}
	if maxCapacity < minCapacity {
		return nil, fmt.Errorf("new: maxCapacity (%v) must be >= "+
			"minCapacity (%v)", maxCapacity, minCapacity)
	}
	if maxCapacity < sampler.BatchSize() {
		return nil, fmt.Errorf("new: cannot have batch size(%v) > max "+
			"buffer capacity (%v)", sampler.BatchSize(), maxCapacity)
	}
	if featureSize <= 0 || actionSize <= 0 {
		return nil, fmt.Errorf("new: feature and action sizes must be > 0")
	}

	var nextActionCache []float64
	if includeNextAction {
		nextActionCache = make([]float64, maxCapacity*actionSize)
	}

	return &cache{
		includeNextAction: includeNextAction,

		stateCache:      make([]float64, maxCapacity*featureSize),
		actionCache:     make([]float64, maxCapacity*actionSize),
		rewardCache:     make([]float64, maxCapacity),
		discountCache:   make([]float64, maxCapacity),
		nextStateCache:  make([]float64, maxCapacity*featureSize),
		nextActionCache: nextActionCache,

		sampler: sampler,

		minCapacity: minCapacity,
		maxCapacity: maxCapacity,
		featureSize: featureSize,
		actionSize:  actionSize,
	}, nil
}

// String returns the string representation of the cache
func (c *cache) String() string {
	return fmt.Sprintf("{Replay Buffer | Capacity: %v/%v | Batch Size: %v}",
		c.Capacity(), c.MaxCapacity(), c.BatchSize())
}

// BatchSize returns the number of samples sampled using Sample() -
// a.k.a the batch size
func (c *cache) BatchSize() int {
	return c.sampler.BatchSize()
}

// insertOrder returns the indices of the oldest n transitions in the
// buffer, from oldest to newest
func (c *cache) insertOrder(n int) []int {
	if n > c.Capacity() {
		n = c.Capacity()
	}

	start := 0
	if c.isFull {
		start = c.currentInUsePos
	}

	order := make([]int, n)
	for i := range order {
		order[i] = (start + i) % c.maxCapacity
	}
	return order
}

// Sample samples and returns a batch of transitions from the replay
// buffer.
func (c *cache) Sample() (Batch, error) {
	if c.Capacity() == 0 {
		return Batch{}, &Error{Op: "sample", Err: ErrEmpty}
	}
	if c.Capacity() < c.MinCapacity() {
		return Batch{}, &Error{Op: "sample", Err: ErrInsufficientSamples}
	}

	indices := c.sampler.choose(c)

	batch := Batch{
		State:     make([]float64, len(indices)*c.featureSize),
		NextState: make([]float64, len(indices)*c.featureSize),
		Action:    make([]float64, len(indices)*c.actionSize),
		Reward:    make([]float64, len(indices)),
		Discount:  make([]float64, len(indices)),
	}
	if c.includeNextAction {
		batch.NextAction = make([]float64, len(indices)*c.actionSize)
	}

	for i, index := range indices {
		copyRow(batch.State, c.stateCache, i, index, c.featureSize)
		copyRow(batch.NextState, c.nextStateCache, i, index, c.featureSize)
		copyRow(batch.Action, c.actionCache, i, index, c.actionSize)
		if c.includeNextAction {
			copyRow(batch.NextAction, c.nextActionCache, i, index,
				c.actionSize)
		}

		batch.Reward[i] = c.rewardCache[index]
		batch.Discount[i] = c.discountCache[index]
	}

	return batch, nil
}

// copyRow copies row src of the row-major matrix from into row dst of
// the row-major matrix to
func copyRow(to, from []float64, dst, src, size int) {
	copy(to[dst*size:(dst+1)*size], from[src*size:(src+1)*size])
}

// Capacity returns the current number of elements in the cache that
// are available for sampling
func (c *cache) Capacity() int {
	if c.isFull {
		return c.maxCapacity
	}
	return c.currentInUsePos
}

// MaxCapacity returns the maximum number of elements that are allowed
// in the cache
func (c *cache) MaxCapacity() int {
	return c.maxCapacity
}

// MinCapacity returns the minimum number of elements required in the
// cache before sampling is allowed
func (c *cache) MinCapacity() int {
	return c.minCapacity
}

// Add adds a transition to the cache, evicting the oldest transition
// if the cache is full
func (c *cache) Add(t timestep.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\thave(%v)",
			c.featureSize, t.State.Len())
	}
	if t.Action.Len() != c.actionSize {
		return fmt.Errorf("add: invalid action size \n\twant(%v)\n\thave(%v)",
			c.actionSize, t.Action.Len())
	}
	if c.includeNextAction && (t.NextAction == nil ||
		t.NextAction.Len() != c.actionSize) {
		return fmt.Errorf("add: invalid next action")
	}

	index := c.currentInUsePos

	copyRow(c.stateCache, t.State.RawVector().Data, index, 0, c.featureSize)
	copyRow(c.nextStateCache, t.NextState.RawVector().Data, index, 0,
		c.featureSize)
	copyRow(c.actionCache, t.Action.RawVector().Data, index, 0, c.actionSize)
	if c.includeNextAction {
		copyRow(c.nextActionCache, t.NextAction.RawVector().Data, index, 0,
			c.actionSize)
	}

	c.rewardCache[index] = t.Reward
	c.discountCache[index] = t.Discount

	c.currentInUsePos = (c.currentInUsePos + 1) % c.maxCapacity
	if c.currentInUsePos == 0 {
		c.isFull = true
	}
	return nil
}
