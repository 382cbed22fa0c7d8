package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML renders cfg in the layout Load reads.
func (c Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
