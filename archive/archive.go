// Package archive persists correlated simulation snapshots to Postgres
// for operators who want raw history outside the engine's in-memory
// generators. The core never depends on this package; it is wired in
// only by main, and only when a connection string is configured.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/facis/simulation-service/correlation"
)

const schema = `
CREATE TABLE IF NOT EXISTS simulation_snapshots (
	timestamp                 TIMESTAMPTZ PRIMARY KEY,
	total_consumption_kw      DOUBLE PRECISION NOT NULL,
	total_generation_kw       DOUBLE PRECISION NOT NULL,
	net_grid_power_kw         DOUBLE PRECISION NOT NULL,
	self_consumption_ratio    DOUBLE PRECISION NOT NULL,
	current_cost_eur_per_hour DOUBLE PRECISION NOT NULL,
	pv_count                  INTEGER NOT NULL,
	meter_count               INTEGER NOT NULL,
	load_count                INTEGER NOT NULL
)`

// Archiver writes correlated snapshots to a Postgres table, upserting
// on timestamp so a re-run of the same simulated instant overwrites
// rather than duplicates.
type Archiver struct {
	db     *sql.DB
	logger *log.Logger
}

// NewArchiver opens a connection to connString and ensures the archive
// table exists. The caller owns the returned Archiver and must Close it.
func NewArchiver(connString string, logger *log.Logger) (*Archiver, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create schema: %w", err)
	}
	return &Archiver{db: db, logger: logger}, nil
}

// ArchiveSnapshot upserts one correlated snapshot.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, snap correlation.Snapshot) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO simulation_snapshots (
			timestamp, total_consumption_kw, total_generation_kw,
			net_grid_power_kw, self_consumption_ratio, current_cost_eur_per_hour,
			pv_count, meter_count, load_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (timestamp) DO UPDATE SET
			total_consumption_kw      = EXCLUDED.total_consumption_kw,
			total_generation_kw       = EXCLUDED.total_generation_kw,
			net_grid_power_kw         = EXCLUDED.net_grid_power_kw,
			self_consumption_ratio    = EXCLUDED.self_consumption_ratio,
			current_cost_eur_per_hour = EXCLUDED.current_cost_eur_per_hour,
			pv_count                  = EXCLUDED.pv_count,
			meter_count               = EXCLUDED.meter_count,
			load_count                = EXCLUDED.load_count
	`,
		snap.Timestamp,
		snap.Metrics.TotalConsumptionKw,
		snap.Metrics.TotalGenerationKw,
		snap.Metrics.NetGridPowerKw,
		snap.Metrics.SelfConsumptionRatio,
		snap.Metrics.CurrentCostEurPerHour,
		len(snap.PVReadings),
		len(snap.MeterReadings),
		len(snap.ConsumerLoads),
	)
	if err != nil {
		return fmt.Errorf("archive: upsert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}

	if a.logger != nil {
		a.logger.Printf("archived snapshot at %s", snap.Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

// Close releases the underlying database connection.
func (a *Archiver) Close() error {
	return a.db.Close()
}
