package digital_microwave

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"digital_microwave/internal/models"
)

// ErrMalformedDocument marks input that is not a job document at all, as
// opposed to a document whose values fail validation.
var ErrMalformedDocument = errors.New("malformed job document")

// JobDocument is the job-description format accepted by Start and returned
// by Cancel.
type JobDocument struct {
	Name     string `json:"name,omitempty"`
	MealKind string `json:"meal_kind,omitempty"` // POPCORN | BEVERAGE | LEFTOVERS | MEAT | VEGETABLES | DEFROST
	Potency  int    `json:"potency"`             // 1..10
	TimeLeft int    `json:"time_left"`           // seconds, 1..120
}

// DecodeJobDocument parses a single JSON object. Unknown fields and
// trailing data are rejected.
func DecodeJobDocument(raw string) (JobDocument, error) {
	var doc JobDocument
	if strings.TrimSpace(raw) == "" {
		return doc, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return JobDocument{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return JobDocument{}, fmt.Errorf("%w: unexpected data after document", ErrMalformedDocument)
	}
	return doc, nil
}

// ToTemplate converts the document into an ad-hoc template. Values are not
// range-checked here.
func (d JobDocument) ToTemplate() (models.Template, error) {
	kind, err := models.ParseMealKind(d.MealKind)
	if err != nil {
		return models.Template{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return models.Template{
		Name:     strings.TrimSpace(d.Name),
		Kind:     kind,
		Potency:  d.Potency,
		Duration: d.TimeLeft,
	}, nil
}

// IsReference reports whether the document only names a template and
// expects the library to supply potency and time.
func (d JobDocument) IsReference() bool {
	return strings.TrimSpace(d.Name) != "" && d.Potency == 0 && d.TimeLeft == 0
}

// FromJob describes the current job; TimeLeft is the remaining time.
func FromJob(j models.Job) JobDocument {
	return JobDocument{
		Name:     j.Template.Name,
		MealKind: string(j.Template.Kind),
		Potency:  j.Template.Potency,
		TimeLeft: j.TimeLeft,
	}
}

// Encode renders the document as indented JSON.
func (d JobDocument) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
