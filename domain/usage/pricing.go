package usage

import "strings"

// ModelPricing holds per-million-token prices for a model.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// PriceTable maps base model names to prices.
type PriceTable map[string]ModelPricing

// DefaultPricing covers the models the plans use.
var DefaultPricing = PriceTable{
	"claude-3-5-haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"claude-haiku-4-5":  {InputPerMTok: 1.00, OutputPerMTok: 5.00},
	"claude-3-5-sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-sonnet-4":   {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-sonnet-4-5": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-opus-4":     {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"claude-opus-4-1":   {InputPerMTok: 15.00, OutputPerMTok: 75.00},
}

// Lookup returns the pricing for a model, normalizing the name first.
func (t PriceTable) Lookup(model string) (ModelPricing, bool) {
	p, ok := t[t.Normalize(model)]
	return p, ok
}

// Normalize strips an 8-digit date suffix when the stripped name is known.
// e.g. "claude-3-5-haiku-20241022" -> "claude-3-5-haiku"
func (t PriceTable) Normalize(model string) string {
	if _, ok := t[model]; ok {
		return model
	}
	i := strings.LastIndexByte(model, '-')
	if i < 0 {
		return model
	}
	suffix := model[i+1:]
	if len(suffix) < 8 || strings.Trim(suffix, "0123456789") != "" {
		return model
	}
	if _, ok := t[model[:i]]; ok {
		return model[:i]
	}
	return model
}

// Cost estimates the currency cost of one exchange. Unknown models cost 0.
func (t PriceTable) Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := t.Lookup(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)*p.InputPerMTok/1_000_000 +
		float64(outputTokens)*p.OutputPerMTok/1_000_000
}
