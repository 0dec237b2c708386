package repository

import (
	"context"
	"database/sql"
	"time"

	"digital_microwave/internal/models"

	"github.com/spf13/afero"
)

// TemplateRepo loads and saves the template library and reads job
// documents given by path.
type TemplateRepo interface {
	ResolvePath(fileName string) (string, error)
	LoadTemplates(path string) ([]models.Template, error)
	SaveTemplates(path string, templates []models.Template) error
	TryResolveInputAsPath(raw string) (string, bool)
	ReadText(path string) (string, error)
}

// HistoryRepo is the append-only job event log.
type HistoryRepo interface {
	Append(ctx context.Context, e models.JobEvent) error
	List(ctx context.Context, q HistoryQuery) ([]models.JobEvent, error)
}

// HistoryQuery filters List. Zero values mean "no constraint".
type HistoryQuery struct {
	From  time.Time // inclusive
	To    time.Time // inclusive
	Type  string
	JobID string
}

type Repository struct {
	Templates TemplateRepo
	History   HistoryRepo
}

// NewRepository wires the template file store under dir and, when db is
// non-nil, the SQLite job history.
func NewRepository(db *sql.DB, fs afero.Fs, dir string) *Repository {
	r := &Repository{
		Templates: NewTemplateFile(fs, dir),
	}
	if db != nil {
		r.History = NewHistorySQLite(db)
	}
	return r
}
