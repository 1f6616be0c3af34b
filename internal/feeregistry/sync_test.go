package feeregistry

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/arbitrage-core/arbitrage-core/internal/market"
)

func TestPostgresSourceLoadFees(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	venueRows := sqlmock.NewRows([]string{"venue_id", "taker_bps", "maker_bps"}).
		AddRow(uint16(market.VenueBinance), int32(8), int32(8))
	mock.ExpectQuery(`SELECT venue_id, taker_bps, maker_bps FROM venue_fees`).WillReturnRows(venueRows)

	withdrawalRows := sqlmock.NewRows([]string{"venue_id", "symbol", "fee", "min_withdrawal", "network"}).
		AddRow(uint16(market.VenueBinance), "BTC", 0.0005, 0.001, "BTC")
	mock.ExpectQuery(`SELECT venue_id, symbol, fee, min_withdrawal, network FROM withdrawal_fees`).WillReturnRows(withdrawalRows)

	source := NewPostgresSource(db)
	venueFees, withdrawals, err := source.LoadFees(context.Background())
	if err != nil {
		t.Fatalf("LoadFees: %v", err)
	}

	fee, ok := venueFees[market.VenueBinance]
	if !ok || fee.TakerBPS != 8 {
		t.Fatalf("unexpected venue fee: %+v ok=%v", fee, ok)
	}

	wf, ok := withdrawals[withdrawalKey{Venue: market.VenueBinance, Symbol: "BTC"}]
	if !ok || wf.Network != "BTC" {
		t.Fatalf("unexpected withdrawal fee: %+v ok=%v", wf, ok)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSyncReplacesRegistryContents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	venueRows := sqlmock.NewRows([]string{"venue_id", "taker_bps", "maker_bps"}).
		AddRow(uint16(market.VenueKraken), int32(22), int32(12))
	mock.ExpectQuery(`SELECT venue_id, taker_bps, maker_bps FROM venue_fees`).WillReturnRows(venueRows)
	mock.ExpectQuery(`SELECT venue_id, symbol, fee, min_withdrawal, network FROM withdrawal_fees`).
		WillReturnRows(sqlmock.NewRows([]string{"venue_id", "symbol", "fee", "min_withdrawal", "network"}))

	r := NewDefault()
	if err := Sync(context.Background(), r, NewPostgresSource(db)); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if fee := r.VenueFee(market.VenueKraken); fee.TakerBPS != 22 {
		t.Fatalf("expected overridden Kraken fee, got %+v", fee)
	}
	if fee := r.VenueFee(market.VenueBinance); fee.TakerBPS != 0 {
		t.Fatalf("Replace should drop unlisted venues, got %+v", fee)
	}
}
