package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ImportLogRepo struct {
	db *DB
}

var _ ImportLogRepository = (*ImportLogRepo)(nil)

func NewImportLogRepository(db *DB) *ImportLogRepo {
	return &ImportLogRepo{db: db}
}

// InsertImportLog appends one row; import logs are never updated.
func (r *ImportLogRepo) InsertImportLog(ctx context.Context, l ImportLog) error {
	query, args, err := r.db.sb.Insert("import_logs").SetMap(map[string]any{
		"run_id":        l.RunID,
		"source":        l.Source,
		"status":        l.Status,
		"fetched":       l.Fetched,
		"new_count":     l.New,
		"updated_count": l.Updated,
		"skipped":       l.Skipped,
		"errors":        l.Errors,
		"error_message": nullString(l.ErrorMessage),
		"duration_ms":   l.Duration.Milliseconds(),
		"started_at":    dbTime(l.StartedAt),
		"created_at":    dbTime(time.Now()),
	}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert import log: %w", err)
	}
	return nil
}

func (r *ImportLogRepo) ListImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	qb := r.db.sb.Select("id", "run_id", "source", "status", "fetched", "new_count", "updated_count",
		"skipped", "errors", "error_message", "duration_ms", "started_at", "created_at").
		From("import_logs").
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	var logs []ImportLog
	for rows.Next() {
		var (
			l          ImportLog
			errMessage sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&l.ID, &l.RunID, &l.Source, &l.Status, &l.Fetched, &l.New, &l.Updated,
			&l.Skipped, &l.Errors, &errMessage, &durationMS, &l.StartedAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", err)
		}
		l.ErrorMessage = errMessage.String
		l.Duration = time.Duration(durationMS) * time.Millisecond
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
