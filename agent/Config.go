package agent

import (
	"fmt"
	"reflect"

	"github.com/samuelfneumann/goforce/environment"
	"github.com/samuelfneumann/goforce/spec"
)

// Config represents a configuration for creating an agent
type Config interface {
	// CreateAgent creates the agent that the config describes
	CreateAgent(env environment.Environment, seed uint64) (Agent, error)

	// ValidAgent returns whether the argument agent is valid for the
	// Config
	ValidAgent(Agent) bool

	// Validate returns an error describing whether or not the
	// configuration is valid or not.
	Validate() error

	// Type returns the type of agent constructed by the Config
	Type() Type
}

// Monitored is a Config which also describes how the agent it creates
// should be checkpointed (saver), how its performance should be
// summarized (summarizer) and how its interaction should be recorded
// (recorder). A nil specification disables the corresponding feature.
type Monitored interface {
	Config
	SaverSpec() *spec.Dict
	SummarizerSpec() *spec.Dict
	RecorderSpec() *spec.Dict
}

// ConfigList implements functionality for storing a list of Configs
// in a compact way. Each exported field of a ConfigList is a slice of
// values for the Config field of the same name, and the list holds one
// Config for every combination of field values. Config fields without
// a corresponding ConfigList field keep the value they have in the
// Config returned by the ConfigList's Config method.
type ConfigList interface {
	// Config returns the Config which holds the values of fields that
	// are not swept over by the list
	Config() Config

	// Type returns the type of agent constructed by the list's Configs
	Type() Type

	// NumFields returns the number of swept fields
	NumFields() int

	// Len returns the number of Configs in the list
	Len() int
}

// Len returns the number of Configs stored by a ConfigList, which is
// the product of the lengths of its fields
func Len(list ConfigList) int {
	value := reflect.ValueOf(list)
	n := 1
	for i := 0; i < value.NumField(); i++ {
		n *= value.Field(i).Len()
	}
	return n
}

// ConfigAt returns the Config at index i in the ConfigList. Indices
// wrap around, so that ConfigAt(i) == ConfigAt(i + list.Len()). The
// last field of the list varies fastest.
func ConfigAt(i int, list ConfigList) Config {
	if list.Len() == 0 {
		panic("configAt: empty config list")
	}
	i %= list.Len()

	listValue := reflect.ValueOf(list)
	config := reflect.New(reflect.TypeOf(list.Config())).Elem()
	config.Set(reflect.ValueOf(list.Config()))

	for field := listValue.NumField() - 1; field >= 0; field-- {
		values := listValue.Field(field)
		name := listValue.Type().Field(field).Name

		target := config.FieldByName(name)
		if !target.IsValid() || !target.CanSet() {
			panic(fmt.Sprintf("configAt: config %T has no field %v",
				list.Config(), name))
		}
		target.Set(values.Index(i % values.Len()))
		i /= values.Len()
	}

	return config.Interface().(Config)
}
