package usecase

import (
	"math"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/matching"
)

// Trust tiers
const (
	trustTier1     = 1.0
	trustTier2     = 0.8
	trustCommunity = 0.6
	trustGeneric   = 0.5
	trustNameOnly  = 0.3
	trustUnknown   = 0.1
)

// sourceTrust encodes how far each source's nutrition numbers can be believed.
// Name-only lookup services are often right about identity and wrong about nutrition.
var sourceTrust = map[string]float64{
	domain.SourceUSDA:          trustTier1,
	domain.SourceNutritionix:   trustTier1,
	domain.SourceEdamam:        trustTier2,
	domain.SourceLocal:         trustTier2,
	domain.SourceOpenFoodFacts: trustCommunity,
	domain.SourceUPCItemDB:     trustGeneric,
	domain.SourceUPCDatabase:   trustNameOnly,
}

// Accuracy sub-scores: "very plausible" bands, tighter than the validator's
const (
	tightMinDensity     = 50.0
	tightMaxDensity     = 800.0
	tightMacroTolerance = 0.3

	accuracyDensityWeight = 0.3
	accuracyMacroWeight   = 0.3
	accuracyFieldsWeight  = 0.4
	trackedFields         = 8
)

// Combined score weights
const (
	combinedTrustWeight        = 0.4
	combinedAccuracyWeight     = 0.3
	combinedCompletenessWeight = 0.2
	combinedBonusWeight        = 0.1
)

// SourceTrust returns the static trust weight for a source; unknown sources get 0.1
func SourceTrust(sourceID string) float64 {
	if w, ok := sourceTrust[sourceID]; ok {
		return w
	}
	return trustUnknown
}

// AccuracyScore rewards very plausible density, macro/calorie agreement and filled-in fields
func AccuracyScore(c *domain.Candidate) float64 {
	score := 0.0

	if density, ok := calorieDensity(c); ok && density >= tightMinDensity && density <= tightMaxDensity {
		score += accuracyDensityWeight
	}
	if ratio, ok := macroRatio(c); ok && math.Abs(ratio-1) <= tightMacroTolerance {
		score += accuracyMacroWeight
	}

	filled := 0
	for _, v := range []float64{c.Calories, c.ProteinG, c.CarbsG, c.FatG, c.FiberG, c.SugarG} {
		if v != 0 {
			filled++
		}
	}
	if c.ProductName != "" {
		filled++
	}
	if c.Brand != "" {
		filled++
	}
	score += accuracyFieldsWeight * float64(filled) / trackedFields

	return clamp01(score)
}

// CompletenessFraction is the share of numeric fields the provider actually supplied
func CompletenessFraction(c *domain.Candidate) float64 {
	return float64(c.Completeness.Count()) / 6
}

// IdentityMatch measures how well the candidate echoes the query: 1 for an identical
// barcode, the token similarity of the product name for name queries
func IdentityMatch(c *domain.Candidate, q domain.Query) float64 {
	if q.IsBarcode() {
		if domain.BarcodesEqual(c.Barcode, q.Value) {
			return 1
		}
		return 0
	}
	if c.ProductName == "" {
		return 0
	}
	name := c.ProductName
	if c.Brand != "" {
		name = c.Brand + " " + name
	}
	return matching.Similarity(q.Value, name)
}

// QualityBonus is 0.4 for a name, 0.3 for a brand and up to 0.3 for the identity match
func QualityBonus(c *domain.Candidate, identity float64) float64 {
	bonus := 0.0
	if c.ProductName != "" {
		bonus += 0.4
	}
	if c.Brand != "" {
		bonus += 0.3
	}
	bonus += 0.3 * clamp01(identity)
	return clamp01(bonus)
}

// Score computes every score for one validated candidate
func Score(c *domain.Candidate, q domain.Query) domain.ScoredCandidate {
	trust := SourceTrust(c.SourceID)
	accuracy := AccuracyScore(c)
	completeness := CompletenessFraction(c)
	identity := IdentityMatch(c, q)
	bonus := QualityBonus(c, identity)

	return domain.ScoredCandidate{
		Candidate:        *c,
		AccuracyScore:    accuracy,
		ReliabilityScore: trust,
		Completeness:     completeness,
		QualityBonus:     bonus,
		IdentityMatch:    identity,
		CombinedScore: combinedTrustWeight*trust +
			combinedAccuracyWeight*accuracy +
			combinedCompletenessWeight*completeness +
			combinedBonusWeight*bonus,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
