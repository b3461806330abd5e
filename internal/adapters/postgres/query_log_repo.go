package postgres

import (
	"context"
	"database/sql"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

// QueryLogRepo implements ports.QueryLogRepository.
type QueryLogRepo struct {
	db *DB
}

func NewQueryLogRepo(db *DB) *QueryLogRepo {
	return &QueryLogRepo{db: db}
}

func (r *QueryLogRepo) Insert(ctx context.Context, e *domain.QueryLogEntry) error {
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO query_log (mode, year, geography, unit_id, destinations, files, row_groups, bytes_read, duration_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		string(e.Selection.Mode), e.Selection.Year, string(e.Selection.Geography), e.Selection.ID,
		e.Destinations, e.Files, e.RowGroups, e.BytesRead, e.DurationMS, errText, e.CreatedAt,
	).Scan(&e.ID)
}

func (r *QueryLogRepo) Recent(ctx context.Context, limit int) ([]domain.QueryLogEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, mode, year, geography, unit_id, destinations, files, row_groups,
		       bytes_read, duration_ms, COALESCE(error, ''), created_at
		FROM query_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.QueryLogEntry{}
	for rows.Next() {
		var e domain.QueryLogEntry
		var mode, geography string
		if err := rows.Scan(
			&e.ID, &mode, &e.Selection.Year, &geography, &e.Selection.ID,
			&e.Destinations, &e.Files, &e.RowGroups, &e.BytesRead, &e.DurationMS, &e.Error, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Selection.Mode = domain.Mode(mode)
		e.Selection.Geography = domain.Geography(geography)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
