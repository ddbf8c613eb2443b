package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// RunEntry is one row of the harvest run log.
type RunEntry struct {
	RunID       uuid.UUID  `json:"run_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Requests    int64      `json:"requests"`
	Campaigns   int        `json:"campaigns"`
	Ads         int        `json:"ads"`
	RowsLoaded  int64      `json:"rows_loaded"`
	Error       string     `json:"error,omitempty"`
}

// RunStats is the outcome recorded for a completed run.
type RunStats struct {
	Requests   int64
	Campaigns  int
	Ads        int
	RowsLoaded int64
}

// RunLog records harvest runs in <schema>.sync_log.
type RunLog struct {
	wh *Warehouse
}

// NewRunLog creates a RunLog over the warehouse.
func NewRunLog(wh *Warehouse) *RunLog {
	return &RunLog{wh: wh}
}

func (w *Warehouse) ensureRunLog(ctx context.Context) error {
	sql := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id       UUID PRIMARY KEY,
		status       TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		completed_at TIMESTAMPTZ,
		requests     BIGINT NOT NULL DEFAULT 0,
		campaigns    INT NOT NULL DEFAULT 0,
		ads          INT NOT NULL DEFAULT 0,
		rows_loaded  BIGINT NOT NULL DEFAULT 0,
		error        TEXT
	)`, w.qualify("sync_log"))
	if _, err := w.pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "warehouse: ensure run log")
	}
	return nil
}

// Start records the beginning of a harvest run and returns its ID.
func (r *RunLog) Start(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	sql := fmt.Sprintf(
		"INSERT INTO %s (run_id, status, started_at) VALUES ($1, 'running', now())",
		r.wh.qualify("sync_log"),
	)
	if _, err := r.wh.pool.Exec(ctx, sql, id); err != nil {
		return uuid.Nil, eris.Wrap(err, "runlog: start")
	}
	return id, nil
}

// Complete marks a run as finished with its statistics.
func (r *RunLog) Complete(ctx context.Context, id uuid.UUID, stats RunStats) error {
	sql := fmt.Sprintf(
		`UPDATE %s SET status = 'complete', completed_at = now(),
		 requests = $1, campaigns = $2, ads = $3, rows_loaded = $4
		 WHERE run_id = $5`,
		r.wh.qualify("sync_log"),
	)
	if _, err := r.wh.pool.Exec(ctx, sql, stats.Requests, stats.Campaigns, stats.Ads, stats.RowsLoaded, id); err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", id)
	}
	return nil
}

// Fail marks a run as failed with its error message.
func (r *RunLog) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	sql := fmt.Sprintf(
		"UPDATE %s SET status = 'failed', completed_at = now(), error = $1 WHERE run_id = $2",
		r.wh.qualify("sync_log"),
	)
	if _, err := r.wh.pool.Exec(ctx, sql, errMsg, id); err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", id)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (r *RunLog) Recent(ctx context.Context, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := fmt.Sprintf(
		`SELECT run_id, status, started_at, completed_at, requests, campaigns, ads, rows_loaded, error
		 FROM %s ORDER BY started_at DESC LIMIT $1`,
		r.wh.qualify("sync_log"),
	)
	rows, err := r.wh.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: recent")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var errStr *string
		if err := rows.Scan(&e.RunID, &e.Status, &e.StartedAt, &e.CompletedAt, &e.Requests, &e.Campaigns, &e.Ads, &e.RowsLoaded, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
