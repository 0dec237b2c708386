package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"digital_microwave/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestAppend_Success_WithDefaults(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewHistorySQLite(db)

	isUUID := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		return ok && len(s) == 36
	})
	isRecentTimestamp := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		ts, err := time.Parse(sqliteTimeLayout, s)
		if err != nil {
			return false
		}
		now := time.Now().UTC()
		return ts.After(now.Add(-5*time.Second)) && ts.Before(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO job_events (id, job_id, occurred_at, type, message, meta)")).
		WithArgs(isUUID, "job-1", isRecentTimestamp, "START", "job started", `{"potency":5}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.JobEvent{
		JobID:       "job-1",
		Type:        "  start ",
		Description: "job started",
		Metadata:    map[string]any{"potency": 5},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_KeepsGivenIDAndTimeAndNullsEmptyFields(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewHistorySQLite(db)

	at := time.Date(2025, 3, 4, 10, 20, 30, 0, time.FixedZone("UTC+2", 2*3600))

	mock.ExpectExec("INSERT INTO job_events").
		WithArgs("ev-1", nil, "2025-03-04 08:20:30", "CANCEL", "cancelled", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(ctx(t), models.JobEvent{
		EventID:     "ev-1",
		OccurredAt:  at,
		Type:        "cancel",
		Description: "cancelled",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestAppend_DBError(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewHistorySQLite(db)

	mock.ExpectExec("INSERT INTO job_events").
		WillReturnError(errors.New("down"))

	err := repo.Append(ctx(t), models.JobEvent{Type: "pause", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestList_NoFilters_And_MetadataParsing(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewHistorySQLite(db)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"time_left": 12})

	rows := sqlmock.NewRows([]string{"id", "job_id", "occurred_at", "type", "message", "meta"}).
		AddRow("1", "job-1", now, "START", "job started", string(js)).
		AddRow("2", nil, now.Add(time.Second), "CANCEL", "job cancelled", "{broken").
		AddRow("3", "job-1", now.Add(2*time.Second), "PAUSE", "job paused", nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, job_id, occurred_at, type, message, meta FROM job_events ORDER BY occurred_at ASC")).
		WillReturnRows(rows)

	got, err := repo.List(ctx(t), HistoryQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	meta, ok := got[0].Metadata.(map[string]any)
	if !ok || meta["time_left"] != float64(12) {
		t.Fatalf("metadata not parsed: %#v", got[0].Metadata)
	}
	if got[1].JobID != "" {
		t.Fatalf("expected empty job id for NULL, got %q", got[1].JobID)
	}
	if raw, ok := got[1].Metadata.(string); !ok || raw != "{broken" {
		t.Fatalf("malformed metadata should be kept raw, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != nil {
		t.Fatalf("expected nil metadata, got %#v", got[2].Metadata)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_AllFilters(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewHistorySQLite(db)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? AND job_id = ? ORDER BY occurred_at ASC")).
		WithArgs("2025-01-01 00:00:00", "2025-01-02 00:00:00", "COMPLETE", "job-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_id", "occurred_at", "type", "message", "meta"}))

	got, err := repo.List(ctx(t), HistoryQuery{From: from, To: to, Type: " complete ", JobID: "job-9"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no events, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestList_QueryError(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	repo := NewHistorySQLite(db)

	mock.ExpectQuery("SELECT id, job_id").WillReturnError(errors.New("locked"))

	if _, err := repo.List(ctx(t), HistoryQuery{}); err == nil {
		t.Fatalf("expected error")
	}
}
