package credit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTable() PricingTable {
	return PricingTable{
		USDPerCredit: 0.01,
		Rates: map[string]ModelRate{
			"gpt-5": {CostPer1MIn: 5, CostPer1MInCached: 1, CostPer1MOut: 15},
		},
	}
}

func TestEstimateUSDUnknownModel(t *testing.T) {
	_, ok := testTable().EstimateUSD("unknown-model", 1000, 0, 1000)
	require.False(t, ok)
}

func TestEstimateUSDComputesBlendedCost(t *testing.T) {
	cost, ok := testTable().EstimateUSD("gpt-5", 1_000_000, 200_000, 100_000)
	require.True(t, ok)
	// 800k non-cached @ $5/M = 4.00; 200k cached @ $1/M = 0.20; 100k out @ $15/M = 1.50
	require.InDelta(t, 5.70, cost, 1e-9)
}

func TestEstimateUSDCachedFallsBackToInRate(t *testing.T) {
	table := PricingTable{Rates: map[string]ModelRate{"m": {CostPer1MIn: 2}}}
	cost, ok := table.EstimateUSD("m", 0, 1_000_000, 0)
	require.True(t, ok)
	require.InDelta(t, 2.0, cost, 1e-9)
}

func TestCreditsForUSDRoundsUpWithFloor(t *testing.T) {
	table := PricingTable{USDPerCredit: 0.01}
	require.Equal(t, 1, table.CreditsForUSD(0))
	require.Equal(t, 1, table.CreditsForUSD(0.004))
	require.Equal(t, 1, table.CreditsForUSD(0.01))
	require.Equal(t, 2, table.CreditsForUSD(0.011))
	require.Equal(t, 100, table.CreditsForUSD(1.00))
}

func TestCostForFallsBackToOneCreditOnUnknownModel(t *testing.T) {
	credits, costUSD := costFor(testTable(), UsageRequest{Model: "unknown", InputTokens: 1000, OutputTokens: 1000})
	require.Equal(t, 1, credits)
	require.Equal(t, 0.0, costUSD)
}

func TestCostForKnownModel(t *testing.T) {
	credits, costUSD := costFor(testTable(), UsageRequest{Model: "gpt-5", InputTokens: 1_000_000, OutputTokens: 100_000})
	require.Greater(t, credits, 0)
	require.Greater(t, costUSD, 0.0)
}
