package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Entry records one terminal job outcome. Failed and cancelled jobs carry a
// zero compressed size and ratio plus the error text.
type Entry struct {
	ID               int64         `json:"id"`
	JobID            string        `json:"job_id"`
	InputPath        string        `json:"input_path"`
	OutputPath       string        `json:"output_path"`
	PresetID         string        `json:"preset_id"`
	OriginalSize     int64         `json:"original_size"`
	CompressedSize   int64         `json:"compressed_size"`
	CompressionRatio float64       `json:"compression_ratio"`
	Duration         time.Duration `json:"duration"`
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`
	TargetSize       int64         `json:"target_size,omitempty"`
	CompletedAt      time.Time     `json:"completed_at"`
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	Limit       int
	FailedOnly  bool
	SuccessOnly bool
}

// Stats aggregates the history table.
type Stats struct {
	Total          int   `json:"total"`
	Succeeded      int   `json:"succeeded"`
	Failed         int   `json:"failed"`
	OriginalSize   int64 `json:"original_size"`
	CompressedSize int64 `json:"compressed_size"`
}

// AddItem appends entry. CompletedAt defaults to now.
func (s *Store) AddItem(ctx context.Context, entry Entry) error {
	if entry.JobID == "" {
		return errors.New("history entry requires a job id")
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO history_entries (
            job_id, input_path, output_path, preset_id, original_size,
            compressed_size, compression_ratio, duration_ms, success,
            error_message, target_size, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID,
		entry.InputPath,
		entry.OutputPath,
		entry.PresetID,
		entry.OriginalSize,
		entry.CompressedSize,
		entry.CompressionRatio,
		entry.Duration.Milliseconds(),
		boolToInt(entry.Success),
		nullableString(entry.Error),
		nullableInt(entry.TargetSize),
		entry.CompletedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, job_id, input_path, output_path, preset_id, original_size,
        compressed_size, compression_ratio, duration_ms, success, error_message,
        target_size, completed_at FROM history_entries`
	var args []any
	switch {
	case filter.FailedOnly:
		query += " WHERE success = 0"
	case filter.SuccessOnly:
		query += " WHERE success = 1"
	}
	query += " ORDER BY completed_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Stats summarizes every stored entry.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var stats Stats
	err := s.db.QueryRowContext(ctx, `SELECT
            COUNT(1),
            COALESCE(SUM(success), 0),
            COALESCE(SUM(CASE WHEN success = 1 THEN original_size ELSE 0 END), 0),
            COALESCE(SUM(compressed_size), 0)
        FROM history_entries`).Scan(&stats.Total, &stats.Succeeded, &stats.OriginalSize, &stats.CompressedSize)
	if err != nil {
		return Stats{}, fmt.Errorf("history stats: %w", err)
	}
	stats.Failed = stats.Total - stats.Succeeded
	return stats, nil
}

// Clear deletes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM history_entries")
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry      Entry
		durationMS int64
		success    int
		errMsg     sql.NullString
		targetSize sql.NullInt64
		completed  string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.JobID,
		&entry.InputPath,
		&entry.OutputPath,
		&entry.PresetID,
		&entry.OriginalSize,
		&entry.CompressedSize,
		&entry.CompressionRatio,
		&durationMS,
		&success,
		&errMsg,
		&targetSize,
		&completed,
	); err != nil {
		return Entry{}, fmt.Errorf("scan history entry: %w", err)
	}
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	entry.Success = success != 0
	entry.Error = errMsg.String
	entry.TargetSize = targetSize.Int64
	if ts, err := time.Parse(time.RFC3339Nano, completed); err == nil {
		entry.CompletedAt = ts
	}
	return entry, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
