// Package validate holds the pure checks applied before any device state
// changes. Each failure names the field and the violated bound.
package validate

import (
	"strconv"
	"strings"

	"digital_microwave/internal/apperror"
	"digital_microwave/internal/models"
)

// Field names reported in validation errors.
const (
	FieldPotency  = "potency"
	FieldTimeLeft = "time_left"
	FieldName     = "name"
)

// Potency checks p against [1, 10]. Zero means "not specified".
func Potency(p int) error {
	switch {
	case p == 0:
		return apperror.Validation(FieldPotency, "please specify a potency between 1 and 10")
	case p < models.MinPotency:
		return apperror.Validation(FieldPotency, "minimum is 1")
	case p > models.MaxPotency:
		return apperror.Validation(FieldPotency, "maximum is 10")
	}
	return nil
}

// Duration checks s (seconds) against [1, 120]. Zero means "not specified".
func Duration(s int) error {
	switch {
	case s == 0:
		return apperror.Validation(FieldTimeLeft, "please specify a duration between 1 second and 2 minutes")
	case s < models.MinDuration:
		return apperror.Validation(FieldTimeLeft, "minimum is 1 second")
	case s > models.MaxDuration:
		return apperror.Validation(FieldTimeLeft, "maximum is 2 minutes")
	}
	return nil
}

func Name(n string) error {
	if strings.TrimSpace(n) == "" {
		return apperror.Validation(FieldName, "please give the template a name")
	}
	return nil
}

// Template runs the name, duration and potency checks in that order.
func Template(t models.Template) error {
	if err := Name(t.Name); err != nil {
		return err
	}
	return Job(t)
}

// Job checks a template about to be loaded into the device. Ad-hoc jobs
// may be nameless.
func Job(t models.Template) error {
	if err := Duration(t.Duration); err != nil {
		return err
	}
	return Potency(t.Potency)
}

// ClockValue converts a wall-clock style "m:ss" value into seconds.
// A bare number is read as seconds. Minutes past the maximum duration are
// rejected; the rest of the range is left to Duration.
func ClockValue(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, apperror.Validation(FieldTimeLeft, "please specify a duration between 1 second and 2 minutes")
	}
	minPart, secPart, found := strings.Cut(v, ":")
	if !found {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return 0, apperror.Validation(FieldTimeLeft, "expected m:ss, got "+strconv.Quote(v))
		}
		return secs, nil
	}
	mins, err := strconv.Atoi(minPart)
	if err != nil || mins < 0 {
		return 0, apperror.Validation(FieldTimeLeft, "expected m:ss, got "+strconv.Quote(v))
	}
	if mins > models.MaxDuration/60 {
		return 0, apperror.Validation(FieldTimeLeft, "maximum is 2 minutes")
	}
	secs, err := strconv.Atoi(secPart)
	if err != nil || len(secPart) != 2 || secs < 0 || secs > 59 {
		return 0, apperror.Validation(FieldTimeLeft, "expected m:ss, got "+strconv.Quote(v))
	}
	return mins*60 + secs, nil
}
