package experiment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the experiment Config stored at path. The file is parsed
// as YAML first, falling back to JSON.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load: %v", err)
	}

	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("load: %v: %v", path, err)
	}
	return c, nil
}

// Parse parses and validates an experiment Config in YAML or JSON
func Parse(data []byte) (Config, error) {
	jsonData, err := toJSON(data)
	if err != nil {
		jsonData = data
	}

	var c Config
	if err := json.Unmarshal(jsonData, &c); err != nil {
		return Config{}, fmt.Errorf("parse: %v", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("parse: %v", err)
	}
	return c, nil
}

// toJSON converts a YAML document to JSON. Mapping keys keep their
// document order so that ordered specifications survive conversion.
func toJSON(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeJSON(&node, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(n *yaml.Node, buf *bytes.Buffer) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(n.Content[0], buf)

	case yaml.AliasNode:
		return writeJSON(n.Alias, buf)

	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(n.Content[i+1], buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(item, buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case yaml.ScalarNode:
		var value interface{}
		if err := n.Decode(&value); err != nil {
			return err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	}

	return fmt.Errorf("toJSON: unsupported YAML node at line %v", n.Line)
}
