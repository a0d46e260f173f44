// Package mapping applies tenant-authored declarative rules to provider
// payloads, producing canonical catalog entities.
package mapping

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports a mapping configuration that cannot be used at
// all. It is fatal to the transform call that loaded it, unlike per-rule
// expression failures.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid mapping configuration: %s", e.Reason)
}

// Config is one tenant's parsed mapping rule set. Immutable for the duration
// of a transform.
type Config struct {
	Resources []Resource `yaml:"resources"`
}

// Resource binds a resource kind and an optional selector to a set of field
// expressions.
type Resource struct {
	Kind     string   `yaml:"kind"`
	Selector Selector `yaml:"selector"`
	Port     Port     `yaml:"port"`
}

type Selector struct {
	Query string `yaml:"query"`
}

type Port struct {
	Entity EntitySection `yaml:"entity"`
}

type EntitySection struct {
	Mappings Mappings `yaml:"mappings"`
}

// Mappings holds the jq expressions producing each entity field. Property
// values may instead carry a file content marker (see Mapper).
type Mappings struct {
	Identifier string            `yaml:"identifier"`
	Title      string            `yaml:"title"`
	Blueprint  string            `yaml:"blueprint"`
	Properties map[string]string `yaml:"properties"`
	Relations  map[string]string `yaml:"relations"`
}

// Parse decodes and validates a stored YAML rule set. Malformed
// configurations are rejected here, before any payload is touched.
func Parse(raw string) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal([]byte(raw), &config); err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	if config.Resources == nil {
		return nil, &ConfigurationError{Reason: "missing resources list"}
	}

	for i, resource := range config.Resources {
		if resource.Kind == "" {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("resource %d: missing kind", i),
			}
		}
	}

	return &config, nil
}
