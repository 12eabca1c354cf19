package config

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// KeepAlive is ollama.keep_alive. Files may write it as a number of seconds
// (-1 keeps the model loaded forever) or as a duration string such as "5m".
type KeepAlive string

// UnmarshalTOML implements toml.Unmarshaler.
func (k *KeepAlive) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case int64:
		*k = KeepAlive(strconv.FormatInt(val, 10))
	case float64:
		*k = KeepAlive(strconv.FormatFloat(val, 'f', -1, 64))
	case string:
		*k = KeepAlive(val)
	default:
		return fmt.Errorf("keep_alive must be a number or a duration string, got %T", v)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *KeepAlive) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("keep_alive must be a scalar (line %d)", node.Line)
	}
	*k = KeepAlive(node.Value)
	return nil
}

func (k KeepAlive) String() string {
	return string(k)
}
