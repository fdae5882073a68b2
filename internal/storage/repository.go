package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertValuationSQL = `INSERT INTO valuations (
        value,
        confidence,
        cv,
        source_count,
        reliable,
        degraded,
        from_cache,
        produced_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    ) RETURNING id;`

	listRecentValuationsSQL = `SELECT
        id,
        value,
        confidence,
        cv,
        source_count,
        reliable,
        degraded,
        from_cache,
        produced_at,
        created_at
    FROM valuations
    ORDER BY produced_at DESC
    LIMIT $1;`

	insertOfferEventSQL = `INSERT INTO offer_events (
        action,
        tx_hash,
        offer_sequence,
        sell_currency,
        buy_currency,
        sell_amount,
        buy_amount
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    ) RETURNING id;`

	listRecentOfferEventsSQL = `SELECT
        id,
        action,
        tx_hash,
        offer_sequence,
        sell_currency,
        buy_currency,
        sell_amount,
        buy_amount,
        created_at
    FROM offer_events
    ORDER BY created_at DESC
    LIMIT $1;`

	insertRunSummarySQL = `INSERT INTO run_summaries (
        started_at,
        ended_at,
        offers_created,
        offers_cancelled,
        last_offer_hash,
        error_count
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    ) RETURNING id;`
)

// ValuationStore persists aggregation results.
type ValuationStore interface {
	InsertValuation(ctx context.Context, record ValuationRecord) (int64, error)
	ListRecentValuations(ctx context.Context, limit int) ([]ValuationRecord, error)
}

// OfferEventStore persists offer lifecycle events.
type OfferEventStore interface {
	InsertOfferEvent(ctx context.Context, record OfferEventRecord) (int64, error)
	ListRecentOfferEvents(ctx context.Context, limit int) ([]OfferEventRecord, error)
}

// Store is the PostgreSQL-backed implementation.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InsertValuation records one aggregation result.
func (s *Store) InsertValuation(ctx context.Context, record ValuationRecord) (int64, error) {
	if s.pool == nil {
		return 0, ErrNotConfigured
	}

	var id int64
	err := s.pool.QueryRow(ctx, insertValuationSQL,
		record.Value,
		record.Confidence,
		record.CV,
		record.SourceCount,
		record.Reliable,
		record.Degraded,
		record.FromCache,
		record.ProducedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert valuation: %w", err)
	}
	return id, nil
}

// ListRecentValuations returns the newest valuations first.
func (s *Store) ListRecentValuations(ctx context.Context, limit int) ([]ValuationRecord, error) {
	if s.pool == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.pool.Query(ctx, listRecentValuationsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list valuations: %w", err)
	}
	defer rows.Close()

	var records []ValuationRecord
	for rows.Next() {
		var r ValuationRecord
		if err := rows.Scan(
			&r.ID,
			&r.Value,
			&r.Confidence,
			&r.CV,
			&r.SourceCount,
			&r.Reliable,
			&r.Degraded,
			&r.FromCache,
			&r.ProducedAt,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// InsertOfferEvent records one offer lifecycle action.
func (s *Store) InsertOfferEvent(ctx context.Context, record OfferEventRecord) (int64, error) {
	if s.pool == nil {
		return 0, ErrNotConfigured
	}

	var id int64
	err := s.pool.QueryRow(ctx, insertOfferEventSQL,
		record.Action,
		record.TxHash,
		record.OfferSequence,
		record.SellCurrency,
		record.BuyCurrency,
		record.SellAmount,
		record.BuyAmount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert offer event: %w", err)
	}
	return id, nil
}

// ListRecentOfferEvents returns the newest events first.
func (s *Store) ListRecentOfferEvents(ctx context.Context, limit int) ([]OfferEventRecord, error) {
	if s.pool == nil {
		return nil, ErrNotConfigured
	}

	rows, err := s.pool.Query(ctx, listRecentOfferEventsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list offer events: %w", err)
	}
	defer rows.Close()

	var records []OfferEventRecord
	for rows.Next() {
		var r OfferEventRecord
		if err := rows.Scan(
			&r.ID,
			&r.Action,
			&r.TxHash,
			&r.OfferSequence,
			&r.SellCurrency,
			&r.BuyCurrency,
			&r.SellAmount,
			&r.BuyAmount,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan offer event: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// InsertRunSummary records the shutdown snapshot of one run.
func (s *Store) InsertRunSummary(ctx context.Context, summary RunSummary) (int64, error) {
	if s.pool == nil {
		return 0, ErrNotConfigured
	}

	var id int64
	err := s.pool.QueryRow(ctx, insertRunSummarySQL,
		summary.StartedAt,
		summary.EndedAt,
		summary.OffersCreated,
		summary.OffersCancelled,
		summary.LastOfferHash,
		summary.ErrorCount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run summary: %w", err)
	}
	return id, nil
}

var (
	_ ValuationStore  = (*Store)(nil)
	_ OfferEventStore = (*Store)(nil)
)
