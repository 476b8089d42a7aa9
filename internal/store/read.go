package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/flowtree/internal/trace"
)

// ReadRun retrieves a run by id, with its record count.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.flow, r.scenario, r.status, r.output,
		       (SELECT COUNT(*) FROM trace_records t WHERE t.run_id = r.id)
		FROM runs r
		WHERE r.id = ?
	`, id)

	var run Run
	if err := row.Scan(&run.ID, &run.Flow, &run.Scenario, &run.Status, &run.Output, &run.Records); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id.
//
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.flow, r.scenario, r.status, r.output,
		       (SELECT COUNT(*) FROM trace_records t WHERE t.run_id = r.id)
		FROM runs r
		ORDER BY r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Flow, &run.Scenario, &run.Status, &run.Output, &run.Records); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTrace returns the records of a run ordered by seq.
// The Value of each record is the stored JSON as a json.RawMessage.
//
// Returns an empty slice (not nil) if the run has no records.
func (s *Store) ReadTrace(ctx context.Context, runID string) ([]trace.Record, error) {
	return s.queryTrace(ctx, `
		SELECT run_id, seq, path, kind, detail, value
		FROM trace_records
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadTraceKind returns the records of one kind for a run, ordered by seq.
func (s *Store) ReadTraceKind(ctx context.Context, runID string, kind trace.Kind) ([]trace.Record, error) {
	return s.queryTrace(ctx, `
		SELECT run_id, seq, path, kind, detail, value
		FROM trace_records
		WHERE run_id = ? AND kind = ?
		ORDER BY seq ASC
	`, runID, string(kind))
}

func (s *Store) queryTrace(ctx context.Context, query string, args ...any) ([]trace.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	records := []trace.Record{}
	for rows.Next() {
		var (
			r     trace.Record
			kind  string
			value string
		)
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Path, &kind, &r.Detail, &value); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Kind = trace.Kind(kind)
		r.Value = json.RawMessage(value)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return records, nil
}
