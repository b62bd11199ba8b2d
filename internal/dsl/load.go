package dsl

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Load parses YAML bytes into Config, rejecting unknown fields, and
// validates the result.
func Load(data []byte) (*Config, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
