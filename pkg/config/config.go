// Package config loads YAML configuration files with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that check themselves after loading.
type Validator interface {
	Validate() error
}

// Load reads filename, expands ${VAR} references and decodes it over target. Fields absent from the
// file keep the values target already holds, so callers pass a struct filled with defaults.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return decode(filename, data, target)
}

// LoadOptional behaves like Load but treats a missing file as empty, leaving the defaults in target.
// The result is validated either way.
func LoadOptional[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return validate(target)
	case err != nil:
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	return decode(filename, data, target)
}

func decode[T any](filename string, data []byte, target *T) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return validate(target)
}

func validate[T any](target *T) error {
	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
