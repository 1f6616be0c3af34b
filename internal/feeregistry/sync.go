package feeregistry

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/arbitrage-core/arbitrage-core/internal/fixedpoint"
	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

// SyncSource loads a fresh fee table from an external system. It is the
// seam an external sync job drives Replace through; Postgres is the only
// implementation, but the registry itself never imports database/sql
// directly, keeping the read path free of any driver dependency.
type SyncSource interface {
	LoadFees(ctx context.Context) (venueFees map[market.Venue]VenueFee, withdrawals map[withdrawalKey]WithdrawalFee, err error)
}

// PostgresSource reads venue and withdrawal fee overrides from two flat
// tables (venue_fees, withdrawal_fees) an operator maintains out of band.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource wraps an already-open *sql.DB (opened with
// sql.Open("postgres", dsn), the lib/pq driver registered via this file's
// blank import).
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) LoadFees(ctx context.Context) (map[market.Venue]VenueFee, map[withdrawalKey]WithdrawalFee, error) {
	venueFees, err := s.loadVenueFees(ctx)
	if err != nil {
		return nil, nil, err
	}
	withdrawals, err := s.loadWithdrawalFees(ctx)
	if err != nil {
		return nil, nil, err
	}
	return venueFees, withdrawals, nil
}

func (s *PostgresSource) loadVenueFees(ctx context.Context) (map[market.Venue]VenueFee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT venue_id, taker_bps, maker_bps FROM venue_fees`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[market.Venue]VenueFee)
	for rows.Next() {
		var venueID uint16
		var fee VenueFee
		if err := rows.Scan(&venueID, &fee.TakerBPS, &fee.MakerBPS); err != nil {
			return nil, err
		}
		out[market.Venue(venueID)] = fee
	}
	return out, rows.Err()
}

func (s *PostgresSource) loadWithdrawalFees(ctx context.Context) (map[withdrawalKey]WithdrawalFee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT venue_id, symbol, fee, min_withdrawal, network FROM withdrawal_fees`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[withdrawalKey]WithdrawalFee)
	for rows.Next() {
		var venueID uint16
		var symbol string
		var feeDecimal, minDecimal float64
		var network string
		if err := rows.Scan(&venueID, &symbol, &feeDecimal, &minDecimal, &network); err != nil {
			return nil, err
		}
		key := withdrawalKey{Venue: market.Venue(venueID), Symbol: symbol}
		out[key] = WithdrawalFee{
			Fee:           fixedpoint.FromDecimal(feeDecimal),
			MinWithdrawal: fixedpoint.FromDecimal(minDecimal),
			Network:       network,
		}
	}
	return out, rows.Err()
}

// Sync pulls a fresh table from source and swaps it into r wholesale.
func Sync(ctx context.Context, r *Registry, source SyncSource) error {
	venueFees, withdrawals, err := source.LoadFees(ctx)
	if err != nil {
		return err
	}
	r.Replace(venueFees, withdrawals)
	return nil
}
