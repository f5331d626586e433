package domain

// Origin tells where the chosen candidate came from
type Origin string

const (
	OriginConsensus  Origin = "consensus"
	OriginBestSingle Origin = "best-single"
	OriginAIFallback Origin = "ai-fallback"
	OriginUnresolved Origin = "unresolved"
)

// Extraction methods reported for AI-derived results
const (
	ExtractionJSON         = "json"
	ExtractionEmbeddedJSON = "embedded-json"
	ExtractionRegex        = "regex"
)

// ResolutionResult is the single answer returned to the caller
type ResolutionResult struct {
	Query         string     `json:"query"`
	Candidate     *Candidate `json:"candidate,omitempty"`
	Origin        Origin     `json:"origin"`
	Confidence    float64    `json:"confidence"`
	Agreeing      []string   `json:"agreeing,omitempty"`
	Extraction    string     `json:"extraction,omitempty"`
	LowConfidence bool       `json:"lowConfidence,omitempty"`
}

// Unresolved builds the typed empty result
func Unresolved(key string) *ResolutionResult {
	return &ResolutionResult{Query: key, Origin: OriginUnresolved}
}

// IsResolved reports whether a candidate was chosen
func (r *ResolutionResult) IsResolved() bool {
	return r != nil && r.Origin != OriginUnresolved && r.Candidate != nil
}
