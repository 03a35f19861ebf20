package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samuelfneumann/goforce/initwfn"
	"github.com/samuelfneumann/goforce/spec"
	G "gorgonia.org/gorgonia"
)

// Auto is the name of the automatically configured network
const Auto = "auto"

// Default architecture of an automatically configured network
const (
	AutoSize  = 64
	AutoDepth = 2
)

// ErrRecurrent is returned when validating a Config with recurrent
// layers, which carry internal state between timesteps
var ErrRecurrent = errors.New("recurrent layers are not supported")

var recurrentTypes = map[string]bool{"rnn": true, "lstm": true, "gru": true}

// LayerConfig describes a single hidden dense layer
type LayerConfig struct {
	Type       string
	Size       int
	Bias       bool
	Activation *Activation
}

// Config describes the hidden layers of a feed forward network. A
// Config either describes an automatically configured network, or an
// explicit list of dense layers. In JSON, an automatic configuration
// is the string "auto" and an explicit configuration is a list of
// layers:
//
//	[{"type": "dense", "size": 32, "activation": "tanh"}, ...]
type Config struct {
	Auto   bool
	Layers []LayerConfig
	Init   *initwfn.InitWFn
}

// NewAutoConfig returns a Config describing an automatically
// configured network
func NewAutoConfig() Config {
	return Config{Auto: true}
}

// NewConfig returns a Config with dense layers of the given sizes, all
// using bias units and the given activation
func NewConfig(act *Activation, sizes ...int) Config {
	layers := make([]LayerConfig, len(sizes))
	for i := range sizes {
		layers[i] = LayerConfig{Type: "dense", Size: sizes[i], Bias: true,
			Activation: act}
	}
	return Config{Layers: layers}
}

// Resolve returns the hidden layer sizes, bias usage and activations
// that the Config describes
func (c Config) Resolve() ([]int, []bool, []*Activation) {
	layers := c.Layers
	if c.Auto {
		layers = NewConfig(ReLU(), repeat(AutoSize, AutoDepth)...).Layers
	}

	sizes := make([]int, len(layers))
	biases := make([]bool, len(layers))
	acts := make([]*Activation, len(layers))
	for i, layer := range layers {
		sizes[i] = layer.Size
		biases[i] = layer.Bias
		acts[i] = layer.Activation
		if acts[i] == nil {
			acts[i] = ReLU()
		}
	}
	return sizes, biases, acts
}

// Validate returns an error if the Config is invalid
func (c Config) Validate() error {
	if c.Auto {
		if len(c.Layers) != 0 {
			return fmt.Errorf("validate: auto network cannot list layers")
		}
		return nil
	}

	for i, layer := range c.Layers {
		if recurrentTypes[layer.Type] {
			return fmt.Errorf("validate: layer %v: %w", i, ErrRecurrent)
		}
		if layer.Type != "dense" {
			return fmt.Errorf("validate: layer %v: unsupported layer type %q",
				i, layer.Type)
		}
		if layer.Size <= 0 {
			return fmt.Errorf("validate: layer %v: size must be positive", i)
		}
	}
	return nil
}

// Recurrent returns whether the Config has recurrent layers
func (c Config) Recurrent() bool {
	for _, layer := range c.Layers {
		if recurrentTypes[layer.Type] {
			return true
		}
	}
	return false
}

// initWFn returns the weight initializer of the Config
func (c Config) initWFn() G.InitWFn {
	if c.Init == nil {
		return initwfn.Default().InitWFn()
	}
	return c.Init.InitWFn()
}

// NewMLP returns a new MLP described by the Config with its own input
// node of shape (batch, features)
func (c Config) NewMLP(features, batch, outputs int,
	g *G.ExprGraph) (NeuralNet, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newMLP: %v", err)
	}
	sizes, biases, acts := c.Resolve()
	return NewMLP(features, batch, outputs, g, sizes, biases, c.initWFn(),
		acts)
}

// NewMLPFromInput returns a new MLP described by the Config that takes
// the concatenation of inputs as input
func (c Config) NewMLPFromInput(inputs []*G.Node, outputs int,
	g *G.ExprGraph, prefix string) (NeuralNet, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newMLPFromInput: %v", err)
	}
	sizes, biases, acts := c.Resolve()
	return NewMLPFromInput(inputs, outputs, g, sizes, biases, c.initWFn(),
		acts, prefix)
}

// Spec returns the specification value of the Config: the string
// "auto" or a list of layer specifications
func (c Config) Spec() interface{} {
	if c.Auto {
		return Auto
	}

	layers := make([]interface{}, len(c.Layers))
	for i, layer := range c.Layers {
		act := "relu"
		if layer.Activation != nil {
			act = layer.Activation.String()
		}
		layers[i] = spec.New(
			"type", layer.Type,
			"size", layer.Size,
			"bias", layer.Bias,
			"activation", act,
		)
	}
	return layers
}

// MarshalJSON implements the json.Marshaler interface
func (c Config) MarshalJSON() ([]byte, error) {
	if c.Init != nil {
		return json.Marshal(struct {
			Layers interface{}
			Init   *initwfn.InitWFn
		}{c.Spec(), c.Init})
	}
	return json.Marshal(c.Spec())
}

type layerJSON struct {
	Type       string      `json:"type"`
	Size       int         `json:"size"`
	Bias       *bool       `json:"bias"`
	Activation *Activation `json:"activation"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. Accepted
// forms are "auto", a list of layers, or an object with a Layers field
// holding either of these and an optional Init field.
func (c *Config) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		if name != Auto {
			return fmt.Errorf("unmarshalJSON: unknown network %q", name)
		}
		*c = NewAutoConfig()
		return nil
	}

	var layers []layerJSON
	if err := json.Unmarshal(data, &layers); err == nil {
		*c = Config{Layers: make([]LayerConfig, len(layers))}
		for i, layer := range layers {
			c.Layers[i] = LayerConfig{
				Type:       layer.Type,
				Size:       layer.Size,
				Bias:       layer.Bias == nil || *layer.Bias,
				Activation: layer.Activation,
			}
			if c.Layers[i].Type == "" {
				c.Layers[i].Type = "dense"
			}
		}
		if err := c.Validate(); err != nil && !errors.Is(err, ErrRecurrent) {
			return err
		}
		return nil
	}

	var wrapped struct {
		Layers json.RawMessage
		Init   *initwfn.InitWFn
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	if len(wrapped.Layers) == 0 {
		return fmt.Errorf("unmarshalJSON: missing network layers")
	}
	if err := c.UnmarshalJSON(wrapped.Layers); err != nil {
		return err
	}
	c.Init = wrapped.Init
	return nil
}

func repeat(value, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = value
	}
	return out
}
