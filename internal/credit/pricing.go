// Package credit implements the Credit Manager (§4.8 step 13c): it converts
// a turn's token usage into a credit cost against a process-wide pricing
// table and performs an atomic per-user debit (§5: balance check and
// decrement are a single read-modify-write).
package credit

import (
	"math"

	"github.com/legitimus-pro/esqueleto-gateway/internal/config"
)

// ModelRate is the per-1M-token USD pricing for one model (§9's numeric
// costs note: "exact token cost per model is approximate... externalize
// pricing to a configuration table rather than hard-code values").
type ModelRate struct {
	CostPer1MIn       float64
	CostPer1MInCached float64 // falls back to CostPer1MIn when zero
	CostPer1MOut      float64
}

// PricingTable is the process-wide, immutable-within-a-process-lifetime
// pricing table (§9).
type PricingTable struct {
	USDPerCredit float64
	Rates        map[string]ModelRate
}

// NewPricingTable builds a PricingTable from process configuration.
func NewPricingTable(cfg config.CreditConfig) PricingTable {
	rates := make(map[string]ModelRate, len(cfg.ModelRates))
	for model, r := range cfg.ModelRates {
		rates[model] = ModelRate{
			CostPer1MIn:       r.CostPer1MIn,
			CostPer1MInCached: r.CostPer1MInCached,
			CostPer1MOut:      r.CostPer1MOut,
		}
	}
	return PricingTable{USDPerCredit: cfg.USDPerCredit, Rates: rates}
}

const million = 1_000_000.0

// EstimateUSD computes the USD cost of one turn's token usage against the
// named model's rate. Returns (0, false) when the model or a required rate
// component is missing from the table.
func (t PricingTable) EstimateUSD(model string, inputTokens, cachedInputTokens, outputTokens int) (float64, bool) {
	rate, ok := t.Rates[model]
	if !ok {
		return 0, false
	}

	var total float64
	missing := false

	nonCached := inputTokens - cachedInputTokens
	if nonCached < 0 {
		nonCached = inputTokens
	}
	if nonCached > 0 {
		if rate.CostPer1MIn > 0 {
			total += (float64(nonCached) / million) * rate.CostPer1MIn
		} else {
			missing = true
		}
	}
	if cachedInputTokens > 0 {
		r := rate.CostPer1MInCached
		if r <= 0 {
			r = rate.CostPer1MIn
		}
		if r > 0 {
			total += (float64(cachedInputTokens) / million) * r
		} else {
			missing = true
		}
	}
	if outputTokens > 0 {
		if rate.CostPer1MOut > 0 {
			total += (float64(outputTokens) / million) * rate.CostPer1MOut
		} else {
			missing = true
		}
	}
	if missing {
		return 0, false
	}
	return total, true
}

// CreditsForUSD converts a USD cost into an integer credit charge (§9):
// max(1, ceil(costUSD / usdPerCredit)).
func (t PricingTable) CreditsForUSD(costUSD float64) int {
	if t.USDPerCredit <= 0 {
		return 1
	}
	credits := int(math.Ceil(costUSD / t.USDPerCredit))
	if credits < 1 {
		return 1
	}
	return credits
}
