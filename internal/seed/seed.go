// Package seed provides the starting dataset: the built-in Jaipur network or
// a YAML file with the same layout.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kolekarsoham270-hash/bustracker/internal/transit"
)

//go:embed jaipur.yaml
var jaipur []byte

// Default returns the built-in dataset.
func Default() (transit.Seed, error) {
	return Parse(jaipur)
}

// Parse decodes and validates a YAML seed document.
func Parse(b []byte) (transit.Seed, error) {
	var s transit.Seed
	if err := yaml.Unmarshal(b, &s); err != nil {
		return transit.Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := s.Validate(); err != nil {
		return transit.Seed{}, fmt.Errorf("invalid seed: %w", err)
	}
	return s, nil
}

func LoadFile(path string) (transit.Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return transit.Seed{}, err
	}
	return Parse(b)
}
