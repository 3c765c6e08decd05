package budget

import "strings"

// ModelPricing holds per-million-token rates in USD.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultCatalog maps model id prefixes to published rates. Lookup picks the
// longest matching prefix, so "gpt-4o-mini" wins over "gpt-4o" for
// "gpt-4o-mini-2024-07-18".
var defaultCatalog = map[string]ModelPricing{
	"gpt-4o":            {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":       {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4.1":           {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gpt-4.1-mini":      {InputPer1M: 0.40, OutputPer1M: 1.60},
	"gpt-4.1-nano":      {InputPer1M: 0.10, OutputPer1M: 0.40},
	"o3":                {InputPer1M: 2.00, OutputPer1M: 8.00},
	"o4-mini":           {InputPer1M: 1.10, OutputPer1M: 4.40},
	"claude-3-haiku":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"claude-3-5-haiku":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"claude-3-5-sonnet": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-7-sonnet": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-sonnet-4":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-opus-4":     {InputPer1M: 15.00, OutputPer1M: 75.00},
}

// defaultRates is used for model ids with no catalog entry. Deliberately on
// the expensive side so unknown models burn budget faster, not slower.
var defaultRates = ModelPricing{InputPer1M: 3.00, OutputPer1M: 15.00}

// Pricer converts token usage into USD cost.
type Pricer struct {
	catalog  map[string]ModelPricing
	fallback ModelPricing
}

// NewPricer returns a pricer over the built-in catalog.
func NewPricer() *Pricer {
	return NewPricerWithCatalog(defaultCatalog, defaultRates)
}

// NewPricerWithCatalog returns a pricer over a caller-supplied catalog. The
// catalog maps model id prefixes to rates; fallback covers everything else.
func NewPricerWithCatalog(catalog map[string]ModelPricing, fallback ModelPricing) *Pricer {
	c := make(map[string]ModelPricing, len(catalog))
	for k, v := range catalog {
		c[k] = v
	}
	return &Pricer{catalog: c, fallback: fallback}
}

// Lookup returns pricing for a model id by longest matching catalog prefix.
func (p *Pricer) Lookup(modelID string) ModelPricing {
	best := ""
	rates := p.fallback
	for prefix, r := range p.catalog {
		if strings.HasPrefix(modelID, prefix) && len(prefix) > len(best) {
			best = prefix
			rates = r
		}
	}
	return rates
}

// Cost returns the exact cost of a completed call from reported usage.
func (p *Pricer) Cost(modelID string, promptTokens, completionTokens int) float64 {
	r := p.Lookup(modelID)
	return float64(promptTokens)*r.InputPer1M/1e6 + float64(completionTokens)*r.OutputPer1M/1e6
}

// EstimatePrompt returns a best-effort cost for an attempt that reported no
// usage, counting the prompt side only.
func (p *Pricer) EstimatePrompt(modelID, prompt string) float64 {
	r := p.Lookup(modelID)
	return float64(EstimateTokens(prompt)) * r.InputPer1M / 1e6
}
