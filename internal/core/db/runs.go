package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/logspec/internal/types"
)

// ErrRunNotFound indicates no filter run with the requested ID.
var ErrRunNotFound = errors.New("filter run not found")

// FilterRun summarizes one filter invocation. Neither rules nor records are kept.
type FilterRun struct {
	RunID         types.RunID  `db:"run_id"`
	LoadID        types.LoadID `db:"load_id"`
	RulesSource   string       `db:"rules_source"`
	Checksum      string       `db:"checksum"`
	Inference     string       `db:"inference"`
	RecordsSource string       `db:"records_source"`
	Total         int          `db:"total"`
	Matched       int          `db:"matched"`
	CreatedAt     time.Time    `db:"created_at"`
}

// RecordRun inserts run, assigning RunID and CreatedAt when unset.
func (q *Queries) RecordRun(run FilterRun) (FilterRun, error) {
	if run.Matched < 0 || run.Matched > run.Total {
		return FilterRun{}, fmt.Errorf("invalid run counts: matched %d of %d", run.Matched, run.Total)
	}
	if run.RunID == "" {
		run.RunID = types.NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := q.Exec("insert-filter-run",
		run.RunID, run.LoadID, run.RulesSource, run.Checksum, run.Inference,
		run.RecordsSource, run.Total, run.Matched, run.CreatedAt,
	)
	if err != nil {
		return FilterRun{}, fmt.Errorf("database error: %w", err)
	}
	return run, nil
}

// GetRun returns a single run by ID.
func (q *Queries) GetRun(id types.RunID) (FilterRun, error) {
	var run FilterRun
	err := q.Get("get-filter-run", &run, id)
	if errors.Is(err, sql.ErrNoRows) {
		return FilterRun{}, ErrRunNotFound
	}
	if err != nil {
		return FilterRun{}, fmt.Errorf("database error: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (q *Queries) ListRuns(limit int) ([]FilterRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []FilterRun{}
	if err := q.Select("list-filter-runs", &runs, limit); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return runs, nil
}
