package database

import (
	"context"
	"fmt"
	"time"
)

// Outcome is one recorded probe or caller-reported result.
type Outcome struct {
	Endpoint   string
	Live       bool
	Cause      string
	Latency    time.Duration
	Source     string
	RecordedAt time.Time
}

// Service handles database operations for the probe history
type Service struct {
	db *DB
}

// NewService creates a new database service
func NewService(db *DB) *Service {
	return &Service{db: db}
}

// RecordOutcome appends one probe or usage outcome to the history.
func (s *Service) RecordOutcome(ctx context.Context, o Outcome) error {
	recordedAt := o.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	query := `
		INSERT INTO probe_history (endpoint, live, cause, latency_ms, source, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		o.Endpoint, o.Live, o.Cause, o.Latency.Milliseconds(), o.Source,
		recordedAt.Format("2006-01-02 15:04:05"))
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// RecordBlacklistEvent appends one blacklist mutation to the audit trail.
func (s *Service) RecordBlacklistEvent(ctx context.Context, endpoint, reason string) error {
	query := `INSERT INTO blacklist_events (endpoint, reason) VALUES (?, ?)`

	_, err := s.db.ExecContext(ctx, query, endpoint, reason)
	if err != nil {
		return fmt.Errorf("failed to record blacklist event: %w", err)
	}
	return nil
}

// ConsecutiveFailures returns how many failures the endpoint has accumulated
// since its most recent success, looking at the newest limit rows.
func (s *Service) ConsecutiveFailures(ctx context.Context, endpoint string, limit int) (int, error) {
	query := `
		SELECT live FROM probe_history
		WHERE endpoint = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, endpoint, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var live bool
		if err := rows.Scan(&live); err != nil {
			return 0, fmt.Errorf("failed to scan history row: %w", err)
		}
		if live {
			break
		}
		count++
	}

	return count, rows.Err()
}

// CleanupOldRecords removes history rows older than maxAge and returns the
// number of probe records deleted.
func (s *Service) CleanupOldRecords(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Format("2006-01-02 15:04:05")

	result, err := s.db.ExecContext(ctx, `DELETE FROM probe_history WHERE recorded_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup probe history: %w", err)
	}
	removed, _ := result.RowsAffected()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM blacklist_events WHERE recorded_at < ?`, cutoff); err != nil {
		return removed, fmt.Errorf("failed to cleanup blacklist events: %w", err)
	}
	return removed, nil
}

// HistoryStats contains aggregate statistics over the probe history
type HistoryStats struct {
	Total   int            `json:"total"`
	Live    int            `json:"live"`
	ByCause map[string]int `json:"by_cause"`
}

// GetHistoryStats returns aggregate counts over the recorded history.
func (s *Service) GetHistoryStats(ctx context.Context) (HistoryStats, error) {
	var stats HistoryStats

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM probe_history").Scan(&stats.Total)
	if err != nil {
		return stats, fmt.Errorf("failed to count history rows: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM probe_history WHERE live = 1").Scan(&stats.Live)
	if err != nil {
		return stats, fmt.Errorf("failed to count live rows: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT cause, COUNT(*) FROM probe_history WHERE live = 0 GROUP BY cause")
	if err != nil {
		return stats, fmt.Errorf("failed to group failure causes: %w", err)
	}
	defer rows.Close()

	stats.ByCause = make(map[string]int)
	for rows.Next() {
		var cause string
		var count int
		if err := rows.Scan(&cause, &count); err != nil {
			return stats, fmt.Errorf("failed to scan cause row: %w", err)
		}
		stats.ByCause[cause] = count
	}

	return stats, rows.Err()
}
