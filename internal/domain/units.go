package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Fixed conversion factors to grams. Volumes assume water density.
const (
	KJPerKcal     = 4.184
	gramsPerOz    = 28.3495
	gramsPerLb    = 453.592
	gramsPerFlOz  = 29.5735
	gramsPerLiter = 1000.0
	gramsPerCup   = 240.0
)

// KJToKcal converts kilojoules to kilocalories
func KJToKcal(kj float64) float64 {
	return kj / KJPerKcal
}

// ToGrams converts an amount in the given unit to grams. ok is false for unknown units.
func ToGrams(amount float64, unit string) (grams float64, ok bool) {
	switch strings.ToLower(strings.TrimSpace(strings.TrimSuffix(unit, "."))) {
	case "g", "gr", "gram", "grams", "grm", "gm":
		return amount, true
	case "mg", "milligram", "milligrams":
		return amount / 1000, true
	case "kg", "kilogram", "kilograms":
		return amount * 1000, true
	case "oz", "ounce", "ounces", "onz":
		return amount * gramsPerOz, true
	case "lb", "lbs", "pound", "pounds":
		return amount * gramsPerLb, true
	case "ml", "mlt", "milliliter", "milliliters", "millilitre", "millilitres":
		return amount, true
	case "cl":
		return amount * 10, true
	case "dl":
		return amount * 100, true
	case "l", "ltr", "liter", "liters", "litre", "litres":
		return amount * gramsPerLiter, true
	case "fl oz", "floz", "fl. oz", "fluid ounce", "fluid ounces":
		return amount * gramsPerFlOz, true
	case "cup", "cups":
		return amount * gramsPerCup, true
	}
	return 0, false
}

// servingRegex finds "<number> <unit>" pairs, e.g. "30 g", "1 cup (240 ml)", "12 fl oz"
var servingRegex = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(fl\.?\s*oz|mg|kg|g|gr|grams?|oz|ounces?|lbs?|pounds?|ml|cl|dl|l|liters?|litres?|cups?)\b`)

// ParseServingGrams extracts a gram weight from a free-text serving description.
// A metric amount in parentheses wins over the household measure before it.
func ParseServingGrams(s string) (float64, bool) {
	matches := servingRegex.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	best := matches[0]
	for _, m := range matches {
		switch strings.ToLower(m[2]) {
		case "g", "gr", "gram", "grams", "ml":
			best = m
		}
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(best[1], ",", "."), 64)
	if err != nil || amount <= 0 {
		return 0, false
	}
	unit := strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(best[2]), ".", "")), " ")
	return ToGrams(amount, unit)
}
