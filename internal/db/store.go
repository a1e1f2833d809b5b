package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/greywick-data/potionflow/internal/monitoring"
	"github.com/greywick-data/potionflow/internal/potion"
)

// ErrNotFound is returned when no snapshot or run exists yet.
var ErrNotFound = errors.New("not found")

// SaveSnapshot stores one fetched snapshot and returns its id.
func (db *DB) SaveSnapshot(ctx context.Context, snap *potion.Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, fetched_at, payload) VALUES (?, ?, ?)`,
		id, float64(snap.FetchedAt.UnixMilli())/1000, string(payload),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recently fetched snapshot and its id.
func (db *DB) LatestSnapshot(ctx context.Context) (string, *potion.Snapshot, error) {
	var id, payload string
	err := db.QueryRowContext(ctx,
		`SELECT snapshot_id, payload FROM snapshots ORDER BY fetched_at DESC, created_at DESC LIMIT 1`,
	).Scan(&id, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	var snap potion.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", id, err)
	}
	return id, &snap, nil
}

// SaveResults stores one pipeline run: the full payload for the API, and
// flattened drain/match rows for SQL-side inspection.
func (db *DB) SaveResults(ctx context.Context, snapshotID string, res *potion.Results) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			// ErrTxDone means the transaction already committed.
			monitoring.Logf("warning: failed to rollback transaction: %v", err)
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, snapshot_id, generated_at, payload) VALUES (?, ?, ?, ?)`,
		res.RunID, snapshotID, float64(res.GeneratedAt.UnixMilli())/1000, string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	drainStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO drain_events (
			run_id, cauldron_id, start_unix, end_unix,
			level_before, level_after, fill_rate_used, collected
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer drainStmt.Close()
	for _, d := range res.Drains {
		if _, err := drainStmt.ExecContext(ctx,
			res.RunID, d.CauldronID,
			float64(d.Start.UnixMilli())/1000, float64(d.End.UnixMilli())/1000,
			d.LevelBefore, d.LevelAfter, d.FillRateUsed, d.Collected,
		); err != nil {
			return fmt.Errorf("failed to insert drain event: %w", err)
		}
	}

	matchStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_results (
			run_id, cauldron_id, ticket_id, status, drain_end_unix, volume_delta, pct_diff
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer matchStmt.Close()
	for _, m := range res.Matches {
		var cauldronID, ticketID sql.NullString
		var drainEnd sql.NullFloat64
		if m.Drain != nil {
			cauldronID = sql.NullString{String: m.Drain.CauldronID, Valid: true}
			drainEnd = sql.NullFloat64{Float64: float64(m.Drain.End.UnixMilli()) / 1000, Valid: true}
		} else if m.Ticket != nil {
			cauldronID = sql.NullString{String: m.Ticket.CauldronID, Valid: true}
		}
		if m.Ticket != nil {
			ticketID = sql.NullString{String: m.Ticket.TicketID, Valid: true}
		}
		if _, err := matchStmt.ExecContext(ctx,
			res.RunID, cauldronID, ticketID, string(m.Status), drainEnd, m.VolumeDelta, m.PctDiff,
		); err != nil {
			return fmt.Errorf("failed to insert match result: %w", err)
		}
	}

	return tx.Commit()
}

// LatestResults returns the most recent pipeline run.
func (db *DB) LatestResults(ctx context.Context) (*potion.Results, error) {
	var payload string
	err := db.QueryRowContext(ctx,
		`SELECT payload FROM runs ORDER BY generated_at DESC, created_at DESC LIMIT 1`,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	var res potion.Results
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run payload: %w", err)
	}
	return &res, nil
}

// RunCount returns the number of stored runs.
func (db *DB) RunCount(ctx context.Context) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}
