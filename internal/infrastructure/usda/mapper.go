package usda

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
)

// FoodData Central nutrient IDs
const (
	NutrientIDEnergy         = 1008 // kcal, or kJ on some branded records
	NutrientIDEnergyKJ       = 1062
	NutrientIDEnergyAtwaterG = 2047
	NutrientIDEnergyAtwaterS = 2048
	NutrientIDProtein        = 1003
	NutrientIDCarbohydrate   = 1005
	NutrientIDTotalFat       = 1004
	NutrientIDFiber          = 1079
	NutrientIDSugars         = 2000
)

// mapFood converts one search hit into a per-serving candidate. Search
// results report nutrients per 100 g; branded foods carry a label serving
// size used for scaling.
func mapFood(food gjson.Result) *domain.Candidate {
	c := &domain.Candidate{
		ProductName: food.Get("description").String(),
		Brand:       firstNonEmpty(food.Get("brandName").String(), food.Get("brandOwner").String()),
		Category:    food.Get("foodCategory").String(),
		Barcode:     food.Get("gtinUpc").String(),
		SourceID:    domain.SourceUSDA,
	}
	applyNutrients(c, food.Get("foodNutrients").Array())

	serving := 0.0
	if size := food.Get("servingSize").Float(); size > 0 {
		if grams, ok := domain.ToGrams(size, food.Get("servingSizeUnit").String()); ok {
			serving = grams
		}
	}
	c.ScaleFrom100g(serving)
	return c
}

// applyNutrients fills the per-100 g values and completeness flags
func applyNutrients(c *domain.Candidate, nutrients []gjson.Result) {
	var kcal, kj, atwater float64
	var haveKcal, haveKJ, haveAtwater bool

	for _, n := range nutrients {
		id := n.Get("nutrientId")
		if !id.Exists() {
			id = n.Get("nutrient.id")
		}
		value := n.Get("value")
		if !value.Exists() {
			value = n.Get("amount")
		}
		if !value.Exists() {
			continue
		}
		v := value.Float()

		switch int(id.Int()) {
		case NutrientIDEnergy:
			if strings.EqualFold(n.Get("unitName").String(), "kJ") {
				kj, haveKJ = v, true
			} else {
				kcal, haveKcal = v, true
			}
		case NutrientIDEnergyKJ:
			kj, haveKJ = v, true
		case NutrientIDEnergyAtwaterG, NutrientIDEnergyAtwaterS:
			if !haveAtwater {
				atwater, haveAtwater = v, true
			}
		case NutrientIDProtein:
			c.ProteinG, c.Completeness.Protein = v, true
		case NutrientIDCarbohydrate:
			c.CarbsG, c.Completeness.Carbs = v, true
		case NutrientIDTotalFat:
			c.FatG, c.Completeness.Fat = v, true
		case NutrientIDFiber:
			c.FiberG, c.Completeness.Fiber = v, true
		case NutrientIDSugars:
			c.SugarG, c.Completeness.Sugar = v, true
		}
	}

	switch {
	case haveKcal:
		c.Calories, c.Completeness.Calories = kcal, true
	case haveAtwater:
		c.Calories, c.Completeness.Calories = atwater, true
	case haveKJ:
		c.Calories, c.Completeness.Calories = domain.KJToKcal(kj), true
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
