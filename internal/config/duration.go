package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use either "1m30s" or a
// plain number of seconds.
type Duration struct {
	time.Duration
}

// Seconds returns a Duration of n seconds.
func Seconds(n float64) Duration {
	return Duration{Duration: time.Duration(n * float64(time.Second))}
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got yaml kind %d", node.Kind)
	}
	if node.Value == "" {
		d.Duration = 0
		return nil
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		d.Duration = time.Duration(secs * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", node.Value, err)
	}
	d.Duration = parsed
	return nil
}
