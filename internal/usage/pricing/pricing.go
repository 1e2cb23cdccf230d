// Package pricing turns raw consumption into (quantity, unit, unit cost)
// triples using the configured rate table. It holds no state.
package pricing

import (
	"sort"
	"strings"

	"github.com/smallbiznis/proppass/internal/config"
)

const (
	UnitTokens = "tokens"
	UnitBytes  = "bytes"
	UnitEmails = "emails"

	bytesPerMB = 1024 * 1024
)

type Quote struct {
	Quantity float64
	Unit     string
	UnitCost float64
	// Model is the rate-table entry actually used, which differs from the
	// requested model when the fallback applied.
	Model string
}

// AITokens blends prompt and completion rates into one per-token cost.
// Unknown models are priced at the cheapest known model.
func AITokens(cfg config.PricingConfig, model string, promptTokens, completionTokens int64) Quote {
	name, rate := resolveModel(cfg, model)
	total := promptTokens + completionTokens

	quote := Quote{Quantity: float64(total), Unit: UnitTokens, Model: name}
	if total <= 0 {
		return quote
	}
	quote.UnitCost = (rate.PromptRate*float64(promptTokens) + rate.CompletionRate*float64(completionTokens)) / float64(total)
	return quote
}

func Storage(cfg config.PricingConfig, bytes int64) Quote {
	return Quote{
		Quantity: float64(bytes),
		Unit:     UnitBytes,
		UnitCost: cfg.StoragePerMB / bytesPerMB,
	}
}

func Email(cfg config.PricingConfig) Quote {
	return Quote{Quantity: 1, Unit: UnitEmails, UnitCost: cfg.EmailRate}
}

func resolveModel(cfg config.PricingConfig, model string) (string, config.ModelRate) {
	key := strings.ToLower(strings.TrimSpace(model))
	if rate, ok := cfg.Models[key]; ok {
		return key, rate
	}
	return Cheapest(cfg)
}

// Cheapest returns the model with the lowest prompt+completion rate. Ties go
// to the lexically smallest name.
func Cheapest(cfg config.PricingConfig) (string, config.ModelRate) {
	names := make([]string, 0, len(cfg.Models))
	for name := range cfg.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		best     string
		bestRate config.ModelRate
		found    bool
	)
	for _, name := range names {
		rate := cfg.Models[name]
		if !found || rate.PromptRate+rate.CompletionRate < bestRate.PromptRate+bestRate.CompletionRate {
			best, bestRate, found = name, rate, true
		}
	}
	return best, bestRate
}
