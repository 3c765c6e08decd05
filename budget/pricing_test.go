package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPricerLookupLongestPrefix(t *testing.T) {
	p := NewPricer()

	tests := []struct {
		name    string
		modelID string
		want    ModelPricing
	}{
		{"exact", "gpt-4o", ModelPricing{InputPer1M: 2.50, OutputPer1M: 10.00}},
		{"dated snapshot", "gpt-4o-2024-08-06", ModelPricing{InputPer1M: 2.50, OutputPer1M: 10.00}},
		{"longer prefix wins", "gpt-4o-mini-2024-07-18", ModelPricing{InputPer1M: 0.15, OutputPer1M: 0.60}},
		{"anthropic snapshot", "claude-3-5-haiku-20241022", ModelPricing{InputPer1M: 0.80, OutputPer1M: 4.00}},
		{"unknown falls back", "totally-new-model", defaultRates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Lookup(tt.modelID))
		})
	}
}

func TestPricerCost(t *testing.T) {
	p := NewPricer()

	// 1M prompt tokens at $2.50 plus 1M completion tokens at $10.00
	assert.InDelta(t, 12.50, p.Cost("gpt-4o", 1_000_000, 1_000_000), 1e-9)

	// small call
	assert.InDelta(t, 0.15*100/1e6+0.60*20/1e6, p.Cost("gpt-4o-mini", 100, 20), 1e-12)

	assert.Equal(t, 0.0, p.Cost("gpt-4o", 0, 0))
}

func TestPricerCustomCatalog(t *testing.T) {
	p := NewPricerWithCatalog(map[string]ModelPricing{
		"local": {InputPer1M: 0, OutputPer1M: 0},
	}, ModelPricing{InputPer1M: 1, OutputPer1M: 1})

	assert.Equal(t, 0.0, p.Cost("local-llama", 5000, 5000))
	assert.InDelta(t, 0.002, p.Cost("other", 1000, 1000), 1e-9)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))

	// exact count depends on the encoding, but a real sentence always
	// produces at least one token and fewer tokens than characters
	n := EstimateTokens("The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 44)
}

func TestEstimatePrompt(t *testing.T) {
	p := NewPricer()
	prompt := "Summarize the following document."

	cost := p.EstimatePrompt("gpt-4o-mini", prompt)
	assert.Greater(t, cost, 0.0)

	wanted := float64(EstimateTokens(prompt)) * 0.15 / 1e6
	assert.InDelta(t, wanted, cost, 1e-12)
}
