package store

import (
	"context"
	"fmt"

	"github.com/roach88/flowtree/internal/trace"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusDisposed  = "disposed"
	StatusFailed    = "failed"
)

// Run describes one stored tree execution.
type Run struct {
	ID       string `json:"id"`
	Flow     string `json:"flow"`
	Scenario string `json:"scenario,omitempty"`
	Status   string `json:"status"`
	Output   string `json:"output,omitempty"`
	Records  int    `json:"records"`
}

// WriteRun inserts a run. Uses ON CONFLICT(id) DO NOTHING for idempotency;
// use FinishRun to change the status of an existing run.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	status := run.Status
	if status == "" {
		status = StatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, flow, scenario, status, output)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Flow, run.Scenario, status, run.Output)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the final status and printable output of a run.
func (s *Store) FinishRun(ctx context.Context, id, status, output string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, output = ? WHERE id = ?
	`, status, output, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: unknown run %q", id)
	}
	return nil
}

// WriteRecord appends one trace record.
// Uses ON CONFLICT(run_id, seq) DO NOTHING - duplicate records are silently
// ignored. The run must exist (foreign key constraint).
func (s *Store) WriteRecord(ctx context.Context, r trace.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trace_records (run_id, seq, path, kind, detail, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		r.RunID,
		r.Seq,
		r.Path,
		string(r.Kind),
		r.Detail,
		marshalValue(r.Value, r.Detail),
	)
	if err != nil {
		return fmt.Errorf("write record %d: %w", r.Seq, err)
	}
	return nil
}
