package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPricing holds per-1K-token rates in dollars.
type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Table maps provider to model to rates. Unknown models cost zero, so a
// partial table still produces a usable estimate.
type Table struct {
	Providers map[string]map[string]ModelPricing
}

// Load reads a pricing table from a YAML file keyed provider/model.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var providers map[string]map[string]ModelPricing
	if err := yaml.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &Table{Providers: providers}, nil
}

// Has reports whether the table carries rates for a model.
func (t *Table) Has(provider, model string) bool {
	if t == nil || t.Providers == nil {
		return false
	}
	_, ok := t.Providers[provider][model]
	return ok
}

// Cost estimates the dollar cost of a token count. Prices are per 1K tokens.
func (t *Table) Cost(provider, model string, inputTokens, outputTokens int) float64 {
	if t == nil || t.Providers == nil {
		return 0
	}
	p, ok := t.Providers[provider][model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}
