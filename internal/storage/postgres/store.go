package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityVault/internal/model"
	"liquidityVault/internal/storage"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_snapshots (
	vault_address TEXT NOT NULL,
	snapshot_ts BIGINT NOT NULL,
	pool_address TEXT NOT NULL,
	lower_tick INTEGER NOT NULL,
	upper_tick INTEGER NOT NULL,
	total_supply NUMERIC NOT NULL,
	liquidity NUMERIC NOT NULL,
	underlying0 NUMERIC NOT NULL,
	underlying1 NUMERIC NOT NULL,
	manager_balance0 NUMERIC NOT NULL,
	manager_balance1 NUMERIC NOT NULL,
	protocol_balance0 NUMERIC NOT NULL,
	protocol_balance1 NUMERIC NOT NULL,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (vault_address, snapshot_ts)
);
CREATE TABLE IF NOT EXISTS vault_events (
	vault_address TEXT NOT NULL,
	seq BIGINT NOT NULL,
	kind TEXT NOT NULL,
	event_ts BIGINT NOT NULL,
	data JSONB,
	PRIMARY KEY (vault_address, seq)
);
CREATE TABLE IF NOT EXISTS vault_window_metrics (
	vault_address TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts TIMESTAMPTZ NOT NULL,
	window_end_ts TIMESTAMPTZ NOT NULL,
	mint_count BIGINT NOT NULL,
	burn_count BIGINT NOT NULL,
	rebalance_count BIGINT NOT NULL,
	fee0 NUMERIC NOT NULL,
	fee1 NUMERIC NOT NULL,
	manager_fee0 NUMERIC NOT NULL,
	manager_fee1 NUMERIC NOT NULL,
	share_price_open NUMERIC,
	share_price_close NUMERIC,
	apr NUMERIC,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (vault_address, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS report_state (
	name TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for snapshots, events and metrics.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.SnapshotWriter = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PutSnapshots upserts instance snapshots keyed by instance and timestamp.
func (s *Store) PutSnapshots(ctx context.Context, snaps []model.VaultSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snaps {
		body, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", snap.Vault, err)
		}
		batch.Queue(`
			INSERT INTO vault_snapshots (
				vault_address, snapshot_ts, pool_address, lower_tick, upper_tick, total_supply, liquidity,
				underlying0, underlying1, manager_balance0, manager_balance1, protocol_balance0, protocol_balance1,
				body, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
			ON CONFLICT (vault_address, snapshot_ts)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				lower_tick = EXCLUDED.lower_tick,
				upper_tick = EXCLUDED.upper_tick,
				total_supply = EXCLUDED.total_supply,
				liquidity = EXCLUDED.liquidity,
				underlying0 = EXCLUDED.underlying0,
				underlying1 = EXCLUDED.underlying1,
				manager_balance0 = EXCLUDED.manager_balance0,
				manager_balance1 = EXCLUDED.manager_balance1,
				protocol_balance0 = EXCLUDED.protocol_balance0,
				protocol_balance1 = EXCLUDED.protocol_balance1,
				body = EXCLUDED.body,
				updated_at = now()
		`,
			snap.Vault,
			snap.Timestamp,
			snap.Pool.Address,
			snap.LowerTick,
			snap.UpperTick,
			snap.TotalSupply,
			snap.Liquidity,
			snap.Underlying0,
			snap.Underlying1,
			snap.ManagerBalance0,
			snap.ManagerBalance1,
			snap.ProtocolBalance0,
			snap.ProtocolBalance1,
			body,
		)
	}
	return s.sendBatch(ctx, batch, len(snaps))
}

// InsertEvents stores journal events. Events already stored are skipped,
// so a journal can be loaded more than once.
func (s *Store) InsertEvents(ctx context.Context, events []model.VaultEventRecord) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		var data []byte
		if len(ev.Data) > 0 && string(ev.Data) != "null" {
			data = ev.Data
		}
		batch.Queue(`
			INSERT INTO vault_events (vault_address, seq, kind, event_ts, data)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (vault_address, seq) DO NOTHING
		`, ev.Vault, int64(ev.Seq), ev.Kind, ev.Timestamp, data)
	}
	return s.sendBatch(ctx, batch, len(events))
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.VaultWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO vault_window_metrics (
				vault_address, window_size_seconds, window_start_ts, window_end_ts,
				mint_count, burn_count, rebalance_count, fee0, fee1, manager_fee0, manager_fee1,
				share_price_open, share_price_close, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (vault_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				mint_count = EXCLUDED.mint_count,
				burn_count = EXCLUDED.burn_count,
				rebalance_count = EXCLUDED.rebalance_count,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				manager_fee0 = EXCLUDED.manager_fee0,
				manager_fee1 = EXCLUDED.manager_fee1,
				share_price_open = EXCLUDED.share_price_open,
				share_price_close = EXCLUDED.share_price_close,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.Vault,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.MintCount),
			int64(m.BurnCount),
			int64(m.RebalanceCount),
			m.Fee0,
			m.Fee1,
			m.ManagerFee0,
			m.ManagerFee1,
			m.SharePriceOpen,
			m.SharePriceClose,
			m.APR,
		)
	}
	return s.sendBatch(ctx, batch, len(metrics))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (int64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM report_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts int64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO report_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}
