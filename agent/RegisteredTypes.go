package agent

import (
	"fmt"
	"reflect"
)

// Type represents a specific type of an agent Config.
// Config's with this type can create Agents of the corresponding type.
type Type string

const (
	// DPG is a deterministic policy gradient agent with MLP actor and
	// critic
	DPG Type = "dpg"

	// DDPG is an alias of DPG
	DDPG Type = "ddpg"
)

// Registered types with the package. Once a Type has been registered
// with this map, a ConfigList with that type can be created.
//
// No Type's are registered with this package upon initialization.
// Each separate package is in charge of registering its Type with
// the package separately to avoid circular imports.
var registeredTypes = make(map[Type]reflect.Type)

// Register registers an agent's Type with a concrete ConfigList type
// so that upon deserialization of a TypedConfigList, ConfigLists of
// type agentType are deserialized into the concrete type of configs.
func Register(agentType Type, configs ConfigList) {
	registeredTypes[agentType] = reflect.TypeOf(configs)
}

// Registered returns whether a ConfigList type has been registered
// for the agent Type
func Registered(agentType Type) bool {
	_, ok := registeredTypes[agentType]
	return ok
}

func lookup(agentType Type) (reflect.Type, error) {
	ty, ok := registeredTypes[agentType]
	if !ok {
		return nil, fmt.Errorf("no config list registered for agent type %q",
			agentType)
	}
	return ty, nil
}
