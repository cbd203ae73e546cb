package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights are the coefficients of each sub-score in the global average.
type Weights struct {
	Pool         float64 `yaml:"pool"`
	Architecture float64 `yaml:"architecture"`
	Vegetation   float64 `yaml:"vegetation"`
	Surface      float64 `yaml:"surface"`
	Orientation  float64 `yaml:"orientation"`
	Context      float64 `yaml:"context"`
}

func DefaultWeights() Weights {
	return Weights{
		Pool:         3.0,
		Architecture: 1.5,
		Vegetation:   1.2,
		Surface:      1.0,
		Orientation:  1.0,
		Context:      0.8,
	}
}

// LoadWeights reads a YAML weights file. Keys missing from the file keep
// their default value; on error the defaults are returned with it.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	b, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read weights file: %w", err)
	}
	if err := yaml.Unmarshal(b, &w); err != nil {
		return DefaultWeights(), fmt.Errorf("unmarshal weights: %w", err)
	}
	if err := w.validate(); err != nil {
		return DefaultWeights(), err
	}
	return w, nil
}

func (w Weights) sum() float64 {
	return w.Pool + w.Architecture + w.Vegetation + w.Surface + w.Orientation + w.Context
}

func (w Weights) validate() error {
	for name, v := range map[string]float64{
		"pool": w.Pool, "architecture": w.Architecture, "vegetation": w.Vegetation,
		"surface": w.Surface, "orientation": w.Orientation, "context": w.Context,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	if w.sum() <= 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	return nil
}
