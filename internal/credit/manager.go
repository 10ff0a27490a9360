package credit

import (
	"context"

	"github.com/legitimus-pro/esqueleto-gateway/internal/turnerr"
)

// UsageRequest is the token usage a turn incurred, by model.
type UsageRequest struct {
	Model             string
	InputTokens       int
	CachedInputTokens int
	OutputTokens      int
}

// DebitRecord is the outcome of a successful debit (§4.8 step 13c).
type DebitRecord struct {
	Credits    int
	CostUSD    float64
	NewBalance int
}

// Manager performs atomic per-user credit checks and debits (§5: balance
// check and decrement are a single read-modify-write against the user
// record).
type Manager interface {
	// Balance returns the user's current credit balance.
	Balance(ctx context.Context, userID string) (int, error)
	// Debit computes the credit cost of usage from the pricing table and
	// atomically decrements the user's balance. Returns
	// turnerr.ErrInsufficientCredits if the balance cannot cover
	// the computed cost.
	Debit(ctx context.Context, userID, chatID string, usage UsageRequest) (DebitRecord, error)
}

// costFor resolves usage to a (credits, costUSD) pair against table. An
// unknown model or missing rate component falls back to CostFloor-style
// minimum billing rather than failing the debit outright: §9 treats
// pricing as approximate, not a hard precondition for billing to occur.
func costFor(table PricingTable, usage UsageRequest) (credits int, costUSD float64) {
	costUSD, ok := table.EstimateUSD(usage.Model, usage.InputTokens, usage.CachedInputTokens, usage.OutputTokens)
	if !ok {
		return 1, 0
	}
	return table.CreditsForUSD(costUSD), costUSD
}

// errInsufficientCredits returns the shared sentinel so callers can
// branch on turnerr.CodeOf/turnerr.Is.
func errInsufficientCredits() error {
	return turnerr.ErrInsufficientCredits
}
