package pricing

// Price holds the USD cost per one million tokens for a single model.
type Price struct {
	// Input is the price of prompt tokens.
	Input float64 `mapstructure:"input"`
	// Output is the price of generated tokens.
	Output float64 `mapstructure:"output"`
}

// Table maps model identifiers to their prices.
type Table map[string]Price

const tokensPerPrice = 1_000_000

// Default returns the built-in price table for the supported Gemini models.
// Prices change over time, so the table can be overridden via configuration.
func Default() Table {
	return Table{
		"gemini-2.5-pro":        {Input: 1.25, Output: 10.00},
		"gemini-2.5-flash":      {Input: 0.30, Output: 2.50},
		"gemini-2.5-flash-lite": {Input: 0.10, Output: 0.40},
		"gemini-2.0-flash":      {Input: 0.10, Output: 0.40},
	}
}

// Merge returns a copy of the table with the provided overrides applied.
// Unknown models are added, known ones are replaced.
func (t Table) Merge(overrides Table) Table {
	merged := make(Table, len(t)+len(overrides))
	for model, price := range t {
		merged[model] = price
	}

	for model, price := range overrides {
		merged[model] = price
	}

	return merged
}

// Lookup returns the price for the given model and whether it is known.
func (t Table) Lookup(model string) (Price, bool) {
	price, ok := t[model]
	return price, ok
}

// Estimate returns the USD cost of a single request against the given model.
// Unknown models cost zero so that a missing table entry never breaks a run.
func (t Table) Estimate(model string, promptTokens, outputTokens int) float64 {
	price, ok := t[model]
	if !ok {
		return 0
	}

	in := float64(promptTokens) * price.Input / tokensPerPrice
	out := float64(outputTokens) * price.Output / tokensPerPrice

	return in + out
}
