package pricing

import (
	"testing"

	"github.com/smallbiznis/proppass/internal/config"
	"github.com/stretchr/testify/assert"
)

func testRates() config.PricingConfig {
	return config.PricingConfig{
		Models: map[string]config.ModelRate{
			"big":   {PromptRate: 0.01, CompletionRate: 0.03},
			"small": {PromptRate: 0.001, CompletionRate: 0.002},
			"alpha": {PromptRate: 0.002, CompletionRate: 0.001},
		},
		StoragePerMB: 2,
		EmailRate:    0.001,
	}
}

func TestAITokensBlendsRates(t *testing.T) {
	q := AITokens(testRates(), "BIG", 100, 300)

	assert.Equal(t, "big", q.Model)
	assert.Equal(t, UnitTokens, q.Unit)
	assert.Equal(t, 400.0, q.Quantity)
	// (0.01*100 + 0.03*300) / 400
	assert.InDelta(t, 0.025, q.UnitCost, 1e-12)
	assert.InDelta(t, 10.0, q.Quantity*q.UnitCost, 1e-9)
}

func TestAITokensZeroTotal(t *testing.T) {
	q := AITokens(testRates(), "big", 0, 0)
	assert.Zero(t, q.Quantity)
	assert.Zero(t, q.UnitCost)
}

func TestAITokensUnknownModelUsesCheapest(t *testing.T) {
	q := AITokens(testRates(), "mystery", 10, 0)
	// alpha and small both sum to 0.003; alpha sorts first.
	assert.Equal(t, "alpha", q.Model)
	assert.InDelta(t, 0.002, q.UnitCost, 1e-12)
}

func TestStorageAndEmail(t *testing.T) {
	s := Storage(testRates(), 1024*1024)
	assert.Equal(t, UnitBytes, s.Unit)
	assert.InDelta(t, 2.0, s.Quantity*s.UnitCost, 1e-9)

	e := Email(testRates())
	assert.Equal(t, 1.0, e.Quantity)
	assert.Equal(t, 0.001, e.UnitCost)
}
