package repository

import "digital_microwave/internal/models"

// DefaultTemplates returns the factory templates shipped with the device.
// They cannot be deleted.
func DefaultTemplates() []models.Template {
	return []models.Template{
		{Name: "Popcorn", Kind: models.MealKindPopcorn, Potency: 9, Duration: 120},
		{Name: "Milk", Kind: models.MealKindBeverage, Potency: 5, Duration: 60},
		{Name: "Coffee", Kind: models.MealKindBeverage, Potency: 7, Duration: 45},
		{Name: "Leftovers", Kind: models.MealKindLeftovers, Potency: 7, Duration: 90},
		{Name: "Steak", Kind: models.MealKindMeat, Potency: 8, Duration: 110},
		{Name: "Steamed vegetables", Kind: models.MealKindVegetables, Potency: 6, Duration: 100},
		{Name: "Defrost", Kind: models.MealKindDefrost, Potency: 3, Duration: 120},
	}
}
