package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// TypedConfigList implements functionality for typing a ConfigList.
// In this way, a ConfigList can explicitly have its type stored so
// that when deserializing the ConfigList, we can deserialize it into
// its concrete type without knowing beforehand or declaring beforehand
// a variable of its concrete type.
type TypedConfigList struct {
	Type
	ConfigList
}

// NewTypedConfigList types the argument ConfigList and returns it
// as a TypedConfigList which explicitly holds its Type.
func NewTypedConfigList(c ConfigList) TypedConfigList {
	return TypedConfigList{Type: c.Type(), ConfigList: c}
}

// MarshalJSON implements the json.Marshaler interface
func (t TypedConfigList) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       Type
		ConfigList ConfigList
	}{t.Type, t.ConfigList})
}

// UnmarshalJSON implements the json.Unmarshaller interface
func (t *TypedConfigList) UnmarshalJSON(data []byte) error {
	configs, typeName, err := unmarshalConfigList(data, "Type",
		"ConfigList")
	if err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	t.Type = typeName
	t.ConfigList = configs

	return nil
}

// unmarshalConfigList uses reflection to unmarshall a ConfigList into
// its concrete type. Both the ConfigList and its Type are returned.
func unmarshalConfigList(data []byte, typeJsonField,
	valueJsonField string) (ConfigList, Type, error) {
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", err
	}

	var typeName Type
	if err := json.Unmarshal(m[typeJsonField], &typeName); err != nil {
		return nil, "", fmt.Errorf("could not read field %v: %v",
			typeJsonField, err)
	}

	ty, err := lookup(typeName)
	if err != nil {
		return nil, "", err
	}
	value := reflect.New(ty)

	raw, ok := m[valueJsonField]
	if !ok {
		return nil, "", fmt.Errorf("missing field %v", valueJsonField)
	}
	if err := json.Unmarshal(raw, value.Interface()); err != nil {
		return nil, "", err
	}

	return value.Elem().Interface().(ConfigList), typeName, nil
}

// At returns the Config at index i in the TypedConfigList
func (t TypedConfigList) At(i int) Config {
	return ConfigAt(i, t.ConfigList)
}
