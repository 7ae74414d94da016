package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning = "running"
	RunPassed  = "passed"
	RunFailed  = "failed"
)

// CheckRun is one execution of a suite against a provider.
type CheckRun struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider"`
	Suite      string     `json:"suite"`
	Status     string     `json:"status"`
	Passed     int        `json:"passed"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// CaseResult is the stored outcome of one suite case within a run.
type CaseResult struct {
	RunID    string        `json:"run_id"`
	CaseName string        `json:"case"`
	Passed   bool          `json:"passed"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}

// InsertRun records the start of a run.
func (db *DB) InsertRun(ctx context.Context, id, provider, suite string, startedAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO check_runs (id, provider, suite, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		id, provider, suite, startedAt.UTC(),
	)
	return err
}

// FinishRun stores the totals and final status of a run.
func (db *DB) FinishRun(ctx context.Context, id, status string, passed, failed int) error {
	_, err := db.ExecContext(ctx,
		`UPDATE check_runs SET status = ?, passed = ?, failed = ?, finished_at = ? WHERE id = ?`,
		status, passed, failed, time.Now().UTC(), id,
	)
	return err
}

// InsertCaseResult stores one case outcome.
func (db *DB) InsertCaseResult(ctx context.Context, r CaseResult) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO case_results (run_id, case_name, passed, exit_code, stdout, stderr, detail, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.CaseName, r.Passed, r.ExitCode, r.Stdout, r.Stderr, r.Detail, r.Duration.Milliseconds(),
	)
	return err
}

// RunsForProvider returns the most recent runs for provider, newest first.
func (db *DB) RunsForProvider(ctx context.Context, provider string, limit int) ([]CheckRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, provider, suite, status, passed, failed, started_at, finished_at FROM check_runs WHERE provider = ? ORDER BY started_at DESC LIMIT ?`,
		provider, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CheckRun
	for rows.Next() {
		var r CheckRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Provider, &r.Suite, &r.Status, &r.Passed, &r.Failed, &r.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CaseResults returns the case outcomes of a run in insertion order.
func (db *DB) CaseResults(ctx context.Context, runID string) ([]CaseResult, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, case_name, passed, exit_code, stdout, stderr, detail, duration_ms FROM case_results WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CaseResult
	for rows.Next() {
		var r CaseResult
		var stdout, stderr, detail sql.NullString
		var durationMS int64
		if err := rows.Scan(&r.RunID, &r.CaseName, &r.Passed, &r.ExitCode, &stdout, &stderr, &detail, &durationMS); err != nil {
			return nil, err
		}
		r.Stdout, r.Stderr, r.Detail = stdout.String, stderr.String, detail.String
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunStore is the subset of DB the checker records runs through.
type RunStore interface {
	ProviderByName(ctx context.Context, name string) (*RegisteredProvider, error)
	RecordProviderSuccess(ctx context.Context, name string) error
	RecordProviderFailure(ctx context.Context, name, errMsg string) error
	InsertRun(ctx context.Context, id, provider, suite string, startedAt time.Time) error
	FinishRun(ctx context.Context, id, status string, passed, failed int) error
	InsertCaseResult(ctx context.Context, r CaseResult) error
}

var _ RunStore = (*DB)(nil)

// PruneRuns deletes runs started before cutoff, keeping at least the keep most recent runs of
// each provider. Case results go with their run. Returns the number of runs deleted.
func (db *DB) PruneRuns(ctx context.Context, cutoff time.Time, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.ExecContext(ctx, `
		DELETE FROM check_runs WHERE started_at < ? AND id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY provider ORDER BY started_at DESC) AS rn FROM check_runs
			) WHERE rn <= ?
		)`, cutoff.UTC(), keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}
