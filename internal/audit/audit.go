// Package audit implements the Turn Usage audit trail named in the domain
// stack: an append-only analytical log of token/cost/credit per turn, fed
// from the Turn Orchestrator's step 13c, independent of the hot path (a
// failed audit write never fails or delays a turn).
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// TurnRecord is one completed turn's audit row.
type TurnRecord struct {
	Timestamp         time.Time
	UserID            string
	ChatID            string
	TenantID          string
	Model             string
	InputTokens       int
	CachedInputTokens int
	OutputTokens      int
	Credits           int
	CostUSD           float64
	FromCache         bool
}

// Trail appends turn records to ClickHouse. A nil *Trail (from a process
// with no ClickHouse DSN configured) is a valid no-op per the package's
// "independent of the hot path" contract.
type Trail struct {
	conn  clickhouse.Conn
	table string
}

// Config configures the audit trail's ClickHouse connection.
type Config struct {
	DSN      string
	Database string
	Table    string // defaults to "turn_usage"
}

// Open connects to ClickHouse and ensures the turn_usage table exists. An
// empty DSN returns (nil, nil): the orchestrator treats a nil *Trail as
// "audit disabled" rather than an error.
func Open(ctx context.Context, cfg Config) (*Trail, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if cfg.Database != "" {
		opts.Auth.Database = cfg.Database
	} else if opts.Auth.Database == "" {
		opts.Auth.Database = "default"
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "turn_usage"
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Exec(ctxTimeout, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			ts DateTime64(3),
			user_id String,
			chat_id String,
			tenant_id String,
			model String,
			input_tokens UInt32,
			cached_input_tokens UInt32,
			output_tokens UInt32,
			credits UInt32,
			cost_usd Float64,
			from_cache UInt8
		) ENGINE = MergeTree()
		ORDER BY (tenant_id, user_id, ts)
	`, table)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure turn_usage table: %w", err)
	}

	return &Trail{conn: conn, table: table}, nil
}

// Record appends one turn's audit row. Errors are the caller's to log and
// discard — the audit trail never blocks or fails a turn.
func (t *Trail) Record(ctx context.Context, r TurnRecord) error {
	if t == nil {
		return nil
	}
	batch, err := t.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", t.table))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	fromCache := uint8(0)
	if r.FromCache {
		fromCache = 1
	}
	if err := batch.Append(
		r.Timestamp,
		r.UserID,
		r.ChatID,
		r.TenantID,
		r.Model,
		uint32(r.InputTokens),
		uint32(r.CachedInputTokens),
		uint32(r.OutputTokens),
		uint32(r.Credits),
		r.CostUSD,
		fromCache,
	); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return batch.Send()
}

// Close releases the underlying ClickHouse connection.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	return t.conn.Close()
}
