package credit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgManager debits a Postgres-backed user_credits ledger inside a single
// transaction per turn, grounded on the teacher's transactional
// append-then-update pattern (AppendMessages in
// internal/persistence/databases/chat_store_postgres.go).
type pgManager struct {
	pool    *pgxpool.Pool
	pricing PricingTable
}

// NewPostgresManager builds a Manager backed by pool, pricing table rates.
func NewPostgresManager(pool *pgxpool.Pool, pricing PricingTable) Manager {
	return &pgManager{pool: pool, pricing: pricing}
}

func (m *pgManager) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	row := m.pool.QueryRow(ctx, `SELECT balance FROM user_credits WHERE user_id = $1`, userID)
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func (m *pgManager) Debit(ctx context.Context, userID, chatID string, usage UsageRequest) (DebitRecord, error) {
	credits, costUSD := costFor(m.pricing, usage)

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return DebitRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO user_credits (user_id, balance) VALUES ($1, 0)
ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return DebitRecord{}, err
	}

	var balance int
	row := tx.QueryRow(ctx, `SELECT balance FROM user_credits WHERE user_id = $1 FOR UPDATE`, userID)
	if err := row.Scan(&balance); err != nil {
		return DebitRecord{}, err
	}

	if balance < credits {
		return DebitRecord{}, errInsufficientCredits()
	}
	newBalance := balance - credits

	if _, err := tx.Exec(ctx, `UPDATE user_credits SET balance = $2 WHERE user_id = $1`, userID, newBalance); err != nil {
		return DebitRecord{}, err
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO credit_ledger (id, user_id, chat_id, credits, cost_usd, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`, uuid.NewString(), userID, chatID, credits, costUSD); err != nil {
		return DebitRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DebitRecord{}, err
	}
	return DebitRecord{Credits: credits, CostUSD: costUSD, NewBalance: newBalance}, nil
}
