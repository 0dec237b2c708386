package models

import (
	"fmt"
	"strings"
)

// Potency and duration bounds shared by templates and the current job.
const (
	MinPotency     = 1
	MaxPotency     = 10
	DefaultPotency = 8

	MinDuration     = 1   // seconds
	MaxDuration     = 120 // seconds (two minutes)
	DefaultDuration = 30  // seconds
)

// MealKind classifies a template. The set is closed.
type MealKind string

const (
	MealKindNone       MealKind = "" // ad-hoc jobs
	MealKindPopcorn    MealKind = "POPCORN"
	MealKindBeverage   MealKind = "BEVERAGE"
	MealKindLeftovers  MealKind = "LEFTOVERS"
	MealKindMeat       MealKind = "MEAT"
	MealKindVegetables MealKind = "VEGETABLES"
	MealKindDefrost    MealKind = "DEFROST"
)

var mealKinds = []MealKind{
	MealKindPopcorn,
	MealKindBeverage,
	MealKindLeftovers,
	MealKindMeat,
	MealKindVegetables,
	MealKindDefrost,
}

// MealKinds returns every known classification in display order.
func MealKinds() []MealKind {
	out := make([]MealKind, len(mealKinds))
	copy(out, mealKinds)
	return out
}

// ParseMealKind matches s case-insensitively against the known kinds.
// An empty string yields MealKindNone.
func ParseMealKind(s string) (MealKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return MealKindNone, nil
	}
	for _, k := range mealKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return MealKindNone, fmt.Errorf("unknown meal kind %q", s)
}

// KindFilter is an optional classification: AnyKind matches every template,
// OnlyKind(k) matches templates of kind k only.
type KindFilter struct {
	kind MealKind
	set  bool
}

// AnyKind matches all classifications, including MealKindNone.
var AnyKind = KindFilter{}

func OnlyKind(k MealKind) KindFilter {
	return KindFilter{kind: k, set: true}
}

// Kind returns the filtered kind and whether a kind is set at all.
func (f KindFilter) Kind() (MealKind, bool) { return f.kind, f.set }

func (f KindFilter) Match(k MealKind) bool {
	return !f.set || f.kind == k
}

// Template describes a heating job. Factory templates are not deletable.
type Template struct {
	Name      string   `json:"name"`
	Kind      MealKind `json:"meal_kind,omitempty"`
	Potency   int      `json:"potency"`
	Duration  int      `json:"time_left"` // seconds
	Deletable bool     `json:"can_delete"`
}

// SameName reports whether two template names identify the same entry.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
