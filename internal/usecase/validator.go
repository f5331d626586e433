package usecase

import (
	"fmt"
	"math"

	"github.com/macrolens/nutriresolve/internal/domain"
)

// Admission bands. Candidates outside them are rejected, never clamped.
const (
	minDensityKcalPer100g = 1.0
	maxDensityKcalPer100g = 1000.0
	minMacroRatio         = 0.5
	maxMacroRatio         = 1.5
)

// IsPlausible reports whether a candidate describes physically possible food
func IsPlausible(c *domain.Candidate) bool {
	return Check(c) == nil
}

// Check runs the validation rules in order and returns the first failure
// wrapped in domain.ErrCandidateImplausible
func Check(c *domain.Candidate) error {
	if c == nil {
		return fmt.Errorf("%w: nil candidate", domain.ErrCandidateImplausible)
	}

	fields := []struct {
		name  string
		value float64
	}{
		{"servingGrams", c.ServingGrams},
		{"calories", c.Calories},
		{"protein", c.ProteinG},
		{"carbs", c.CarbsG},
		{"fat", c.FatG},
		{"fiber", c.FiberG},
		{"sugar", c.SugarG},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: non-finite %s (%g)", domain.ErrCandidateImplausible, f.name, f.value)
		}
		if f.value < 0 {
			return fmt.Errorf("%w: negative %s (%g)", domain.ErrCandidateImplausible, f.name, f.value)
		}
	}

	if density, ok := calorieDensity(c); ok {
		if density < minDensityKcalPer100g || density > maxDensityKcalPer100g {
			return fmt.Errorf("%w: calorie density %.1f kcal/100g outside [%g, %g]",
				domain.ErrCandidateImplausible, density, minDensityKcalPer100g, maxDensityKcalPer100g)
		}
	}

	if ratio, ok := macroRatio(c); ok {
		if ratio < minMacroRatio || ratio > maxMacroRatio {
			return fmt.Errorf("%w: macro/calorie ratio %.2f outside [%g, %g]",
				domain.ErrCandidateImplausible, ratio, minMacroRatio, maxMacroRatio)
		}
	}

	if c.IsNameOnly() {
		return fmt.Errorf("%w: no nutrition values", domain.ErrCandidateImplausible)
	}
	return nil
}

// calorieDensity is kcal per 100 g; only defined when calories and the portion are known
func calorieDensity(c *domain.Candidate) (float64, bool) {
	if c.Calories <= 0 || c.ServingGrams <= 0 {
		return 0, false
	}
	return c.Calories / c.ServingGrams * 100, true
}

// macroRatio is (4p+4c+9f)/calories; only defined when calories and all three macros are non-zero
func macroRatio(c *domain.Candidate) (float64, bool) {
	if c.Calories == 0 || c.ProteinG == 0 || c.CarbsG == 0 || c.FatG == 0 {
		return 0, false
	}
	return c.MacroCalories() / c.Calories, true
}
