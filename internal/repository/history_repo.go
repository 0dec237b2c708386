package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"digital_microwave/internal/models"

	"github.com/google/uuid"
)

type HistorySQLite struct {
	db *sql.DB
}

func NewHistorySQLite(db *sql.DB) *HistorySQLite { return &HistorySQLite{db: db} }

// Ensure implementation of HistoryRepo interface at compile time.
var _ HistoryRepo = (*HistorySQLite)(nil)

// SQLite TIMESTAMP text format; used for writes and range bounds alike so
// comparisons stay lexicographic.
const sqliteTimeLayout = "2006-01-02 15:04:05"

const insertJobEventSQL = `
		INSERT INTO job_events (id, job_id, occurred_at, type, message, meta)
		VALUES (?, ?, ?, ?, ?, ?)
	`

// Append inserts a new event. If EventID or OccurredAt are empty, they’re set.
func (r *HistorySQLite) Append(ctx context.Context, e models.JobEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var jobID *string
	if e.JobID != "" {
		jobID = &e.JobID
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, insertJobEventSQL,
		e.EventID,
		jobID,
		e.OccurredAt.Format(sqliteTimeLayout),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Description,
		metaPtr,
	)
	return err
}

// List returns events filtered by [From, To] (inclusive), type and job,
// ordered by time ascending.
func (r *HistorySQLite) List(ctx context.Context, q HistoryQuery) ([]models.JobEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !q.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, q.From.UTC().Format(sqliteTimeLayout))
	}
	if !q.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, q.To.UTC().Format(sqliteTimeLayout))
	}
	if typ := strings.ToUpper(strings.TrimSpace(q.Type)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}
	if jobID := strings.TrimSpace(q.JobID); jobID != "" {
		conds = append(conds, "job_id = ?")
		args = append(args, jobID)
	}

	stmt := `SELECT id, job_id, occurred_at, type, message, meta FROM job_events`
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	stmt += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.JobEvent, 0, 64)
	for rows.Next() {
		var (
			ev      models.JobEvent
			jobID   sql.NullString
			metaStr sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &jobID, &ev.OccurredAt, &ev.Type, &ev.Description, &metaStr); err != nil {
			return nil, err
		}
		ev.JobID = jobID.String
		ev.OccurredAt = ev.OccurredAt.UTC()

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String // keep raw if malformed
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
