// Package library keeps the ordered set of job templates. A Library is not
// safe for concurrent use; the controller guards it with its own lock.
package library

import (
	"iter"
	"slices"
	"strings"

	"digital_microwave/internal/apperror"
	"digital_microwave/internal/models"
	"digital_microwave/internal/validate"
)

const (
	msgNotDeletable = "cannot delete a pre-made template"
	msgNotFound     = "template not found"
)

type Library struct {
	items []models.Template
}

func New() *Library {
	return &Library{}
}

// LoadInitial replaces the contents with the persisted templates, in their
// stored order, followed by every built-in whose name is not already taken.
// Duplicate persisted names keep the first occurrence.
func (l *Library) LoadInitial(persisted, builtin []models.Template) {
	l.items = make([]models.Template, 0, len(persisted)+len(builtin))
	for _, src := range [][]models.Template{persisted, builtin} {
		for _, t := range src {
			if strings.TrimSpace(t.Name) == "" || l.indexOf(t.Name) >= 0 {
				continue
			}
			l.items = append(l.items, t)
		}
	}
}

// Filter yields templates whose name contains name (case-insensitive; empty
// matches all) and whose kind matches kind. The sequence reads the library
// lazily and can be ranged over more than once.
func (l *Library) Filter(name string, kind models.KindFilter) iter.Seq[models.Template] {
	needle := strings.ToLower(strings.TrimSpace(name))
	return func(yield func(models.Template) bool) {
		for _, t := range l.items {
			if !kind.Match(t.Kind) {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(t.Name), needle) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Find looks a template up by exact name (case-insensitive).
func (l *Library) Find(name string) (models.Template, bool) {
	if i := l.indexOf(name); i >= 0 {
		return l.items[i], true
	}
	return models.Template{}, false
}

// All returns a copy of every template in order.
func (l *Library) All() []models.Template {
	return slices.Clone(l.items)
}

func (l *Library) Len() int { return len(l.items) }

// Save inserts t, or replaces the entry with the same name in place.
func (l *Library) Save(t models.Template) error {
	if err := validate.Name(t.Name); err != nil {
		return err
	}
	t.Name = strings.TrimSpace(t.Name)
	if i := l.indexOf(t.Name); i >= 0 {
		l.items[i] = t
		return nil
	}
	l.items = append(l.items, t)
	return nil
}

// Delete removes the template named name if it is deletable.
func (l *Library) Delete(name string) error {
	i := l.indexOf(name)
	if i < 0 {
		return apperror.State(msgNotFound)
	}
	if !l.items[i].Deletable {
		return apperror.State(msgNotDeletable)
	}
	l.items = slices.Delete(l.items, i, i+1)
	return nil
}

func (l *Library) indexOf(name string) int {
	return slices.IndexFunc(l.items, func(t models.Template) bool {
		return models.SameName(t.Name, name)
	})
}
