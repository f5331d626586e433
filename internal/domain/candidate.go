package domain

// Source identifiers used for trust lookup
const (
	SourceUSDA          = "usda"
	SourceNutritionix   = "nutritionix"
	SourceEdamam        = "edamam"
	SourceLocal         = "local"
	SourceOpenFoodFacts = "openfoodfacts"
	SourceUPCItemDB     = "upcitemdb"
	SourceUPCDatabase   = "upcdatabase"
	SourceAI            = "ai"
)

// CompletenessFlags records which numeric fields a provider actually supplied
type CompletenessFlags struct {
	Calories bool `json:"calories"`
	Protein  bool `json:"protein"`
	Carbs    bool `json:"carbs"`
	Fat      bool `json:"fat"`
	Fiber    bool `json:"fiber"`
	Sugar    bool `json:"sugar"`
}

// Count returns how many of the six fields were supplied
func (f CompletenessFlags) Count() int {
	n := 0
	for _, b := range []bool{f.Calories, f.Protein, f.Carbs, f.Fat, f.Fiber, f.Sugar} {
		if b {
			n++
		}
	}
	return n
}

// Candidate is one provider's answer. Numbers are per serving.
type Candidate struct {
	ProductName  string            `json:"productName"`
	Brand        string            `json:"brand,omitempty"`
	Category     string            `json:"category,omitempty"`
	Barcode      string            `json:"barcode,omitempty"`
	ServingGrams float64           `json:"servingGrams"`
	Calories     float64           `json:"calories"`
	ProteinG     float64           `json:"proteinG"`
	CarbsG       float64           `json:"carbsG"`
	FatG         float64           `json:"fatG"`
	FiberG       float64           `json:"fiberG"`
	SugarG       float64           `json:"sugarG"`
	SourceID     string            `json:"sourceId"`
	Completeness CompletenessFlags `json:"completeness"`
}

// MacroCalories is the Atwater estimate 4p + 4c + 9f
func (c *Candidate) MacroCalories() float64 {
	return 4*c.ProteinG + 4*c.CarbsG + 9*c.FatG
}

// HasMacros reports whether any of protein/carbs/fat is non-zero
func (c *Candidate) HasMacros() bool {
	return c.ProteinG != 0 || c.CarbsG != 0 || c.FatG != 0
}

// IsNameOnly is true when the product was identified but no nutrition is known
func (c *Candidate) IsNameOnly() bool {
	return c.Calories == 0 && !c.HasMacros()
}

// ReconstructCalories fills missing calories from macros. Returns true when it did.
func (c *Candidate) ReconstructCalories() bool {
	if c.Calories != 0 || !c.HasMacros() {
		return false
	}
	c.Calories = c.MacroCalories()
	return true
}

// ScaleFrom100g converts per-100g values to per-serving values for the given portion
func (c *Candidate) ScaleFrom100g(servingGrams float64) {
	if servingGrams <= 0 {
		servingGrams = 100
	}
	factor := servingGrams / 100
	c.ServingGrams = servingGrams
	c.Calories *= factor
	c.ProteinG *= factor
	c.CarbsG *= factor
	c.FatG *= factor
	c.FiberG *= factor
	c.SugarG *= factor
}

// ScoredCandidate is a validated candidate with its scores
type ScoredCandidate struct {
	Candidate        Candidate `json:"candidate"`
	AccuracyScore    float64   `json:"accuracyScore"`
	ReliabilityScore float64   `json:"reliabilityScore"`
	Completeness     float64   `json:"completeness"`
	QualityBonus     float64   `json:"qualityBonus"`
	IdentityMatch    float64   `json:"identityMatch"`
	CombinedScore    float64   `json:"combinedScore"`
}
