package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/logging"
)

// Confidence assigned per extraction path
const (
	confidenceJSON         = 0.6
	confidenceEmbeddedJSON = 0.55
	confidenceRegex        = 0.35

	defaultFallbackTimeout = 15 * time.Second
	unknownMarker          = "UNKNOWN"
)

const promptText = `You are a nutrition database assistant.
Identify the food product below and report its nutrition facts for one serving.

Product name: {{.Name}}
{{if .Barcode}}Barcode: {{.Barcode}}
{{end}}
Respond with ONLY a JSON object, without prose or code fences, using exactly these keys:
{"product_name": string, "brand": string, "serving_grams": number, "calories": number, "protein_g": number, "carbs_g": number, "fat_g": number, "fiber_g": number, "sugar_g": number}
Use null for any value you do not know.
If you cannot identify the product or are not confident in the numbers, respond with the single word {{.Marker}}.
`

var promptTemplate = template.Must(template.New("prompt").Parse(promptText))

// refusalRegex matches the ways a model says it does not know
var refusalRegex = regexp.MustCompile(`(?i)(cannot|can't|can not|unable to|not able to)\s+(identify|determine|find|provide)|not confident|not sure|i (do not|don't) know|no (reliable )?(nutrition(al)? )?information`)

var codeFenceRegex = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// numberRegex pulls the leading number out of values like "12 g" or "150kcal"
var numberRegex = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// field aliases accepted in model JSON, in lookup order
var (
	nameKeys     = []string{"product_name", "name", "productName", "product"}
	brandKeys    = []string{"brand", "brand_name", "manufacturer"}
	servingKeys  = []string{"serving_grams", "serving_size_g", "servingGrams", "serving_g", "serving_size"}
	caloriesKeys = []string{"calories", "kcal", "energy_kcal", "energy", "calories_kcal"}
	proteinKeys  = []string{"protein_g", "protein", "proteins"}
	carbsKeys    = []string{"carbs_g", "carbohydrates_g", "carbohydrates", "carbs", "carbohydrate"}
	fatKeys      = []string{"fat_g", "fat", "total_fat", "total_fat_g", "fats"}
	fiberKeys    = []string{"fiber_g", "fiber", "fibre", "fibre_g", "dietary_fiber"}
	sugarKeys    = []string{"sugar_g", "sugars", "sugar", "sugars_g"}
)

const num = `(\d+(?:\.\d+)?)`

// Regex field patterns, tried in order. Label-with-separator first so that
// "protein: 12 g, carbs: 20 g" never reads the carbs value as protein.
// A second capture group, when present, marks the value as kilojoules.
var (
	caloriesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:calories|energy|kcal)\s*(?:[:=]|is)\s*` + num + kjSuffix),
		regexp.MustCompile(`(?i)` + num + `\s*(?:kcal|calories|cals?)\b`),
		regexp.MustCompile(`(?i)\b(?:calories|energy|kcal)\s+` + num + kjSuffix),
	}
	proteinPatterns = fieldPatterns(`protein`, `\s*g(?:rams?)?\s+(?:of\s+)?protein`)
	carbsPatterns   = fieldPatterns(`(?:carbohydrates?|carbs)`, `\s*g(?:rams?)?\s+(?:of\s+)?(?:carbohydrates?|carbs)`)
	fatPatterns     = fieldPatterns(`(?:total\s+)?fat`, `\s*g(?:rams?)?\s+(?:of\s+)?(?:total\s+)?fat\b`)
	fiberPatterns   = fieldPatterns(`(?:dietary\s+)?fib(?:er|re)`, `\s*g(?:rams?)?\s+(?:of\s+)?(?:dietary\s+)?fib(?:er|re)`)
	sugarPatterns   = fieldPatterns(`sugars?`, `\s*g(?:rams?)?\s+(?:of\s+)?sugars?`)
	servingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)serving(?:\s+size)?\s*(?:[:=]|is)\s*` + num + `\s*g\b`),
		regexp.MustCompile(`(?i)per\s+(?:serving\s+(?:of\s+)?)?` + num + `\s*g\b`),
	}
)

const kjSuffix = `\s*(kj\b|kilojoules?\b)?`

// fatQualifier matches text ending in a fat sub-total label like "saturated "
var fatQualifier = regexp.MustCompile(`(?i)\b(?:saturated|sat\.?|trans|(?:mono|poly)?unsaturated)[\s-]*$`)

func fieldPatterns(label, unitThenLabel string) []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b` + label + `\s*(?:[:=]|is)\s*` + num),
		regexp.MustCompile(`(?i)` + num + unitThenLabel),
		regexp.MustCompile(`(?i)\b` + label + `\s+` + num),
	}
}

// FallbackResult is what the AI analyzer produced
type FallbackResult struct {
	Candidate     *domain.Candidate
	Extraction    string
	Confidence    float64
	LowConfidence bool
}

// Fallback asks a text-completion model for nutrition facts when no structured
// source produced a usable candidate
type Fallback struct {
	completer domain.Completer
	timeout   time.Duration
}

// NewFallback wraps a completer; timeout <= 0 uses the default
func NewFallback(completer domain.Completer, timeout time.Duration) *Fallback {
	if timeout <= 0 {
		timeout = defaultFallbackTimeout
	}
	return &Fallback{completer: completer, timeout: timeout}
}

// Analyze sends one prompt and parses the reply. Errors are always one of
// ErrAIFallbackRefused, ErrAIFallbackUnparseable or ErrProviderUnavailable.
func (f *Fallback) Analyze(ctx context.Context, name, barcode string) (*FallbackResult, error) {
	prompt, err := BuildPrompt(name, barcode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAIFallbackUnparseable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	entry := logging.Log.WithFields(logrus.Fields{"name": name, "barcode": barcode})
	entry.Info("[AI] requesting fallback analysis")

	reply, err := f.completer.Complete(ctx, prompt)
	if err != nil {
		entry.WithError(err).Warn("[AI] completion failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	result, err := ParseCompletion(reply, name)
	if err != nil {
		entry.WithError(err).Info("[AI] no usable answer")
		return nil, err
	}
	if barcode != "" && result.Candidate.Barcode == "" {
		result.Candidate.Barcode = barcode
	}

	entry.WithFields(logrus.Fields{
		"extraction": result.Extraction,
		"calories":   result.Candidate.Calories,
	}).Info("[AI] fallback produced a candidate")
	return result, nil
}

// BuildPrompt renders the completion request for a product
func BuildPrompt(name, barcode string) (string, error) {
	var sb strings.Builder
	err := promptTemplate.Execute(&sb, struct {
		Name, Barcode, Marker string
	}{Name: name, Barcode: barcode, Marker: unknownMarker})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ParseCompletion turns a model reply into a validated candidate. It tries a clean
// JSON object, then an object embedded in prose, then per-field regexes.
// fallbackName is used when the reply does not name the product.
func ParseCompletion(reply, fallbackName string) (*FallbackResult, error) {
	text := stripCodeFence(strings.TrimSpace(reply))

	if isRefusal(text) {
		return nil, fmt.Errorf("%w: %q", domain.ErrAIFallbackRefused, truncate(text, 80))
	}

	var (
		candidate  *domain.Candidate
		extraction string
		confidence float64
	)
	switch obj, ok := ExtractJSONObject(text); {
	case ok && obj == text:
		candidate, extraction, confidence = candidateFromJSON(obj), domain.ExtractionJSON, confidenceJSON
	case ok:
		candidate, extraction, confidence = candidateFromJSON(obj), domain.ExtractionEmbeddedJSON, confidenceEmbeddedJSON
	default:
		candidate, extraction, confidence = candidateFromText(text), domain.ExtractionRegex, confidenceRegex
	}

	if candidate.ProductName == "" {
		candidate.ProductName = fallbackName
	}
	candidate.SourceID = domain.SourceAI
	candidate.ReconstructCalories()

	if candidate.IsNameOnly() {
		return nil, fmt.Errorf("%w: no nutrition values in %s reply", domain.ErrAIFallbackUnparseable, extraction)
	}
	if err := Check(candidate); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAIFallbackUnparseable, err)
	}

	return &FallbackResult{
		Candidate:     candidate,
		Extraction:    extraction,
		Confidence:    confidence,
		LowConfidence: extraction == domain.ExtractionRegex,
	}, nil
}

func isRefusal(text string) bool {
	bare := strings.Trim(strings.TrimSpace(text), "\"'.!` ")
	switch strings.ToLower(bare) {
	case "", "unknown", "null", "none", "n/a":
		return true
	}
	return refusalRegex.MatchString(text)
}

func stripCodeFence(text string) string {
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func candidateFromJSON(obj string) *domain.Candidate {
	root := gjson.Parse(obj)
	c := &domain.Candidate{
		ProductName: jsonString(root, nameKeys),
		Brand:       jsonString(root, brandKeys),
	}
	c.ServingGrams, _ = jsonNumber(root, servingKeys)
	c.Calories, c.Completeness.Calories = jsonNumber(root, caloriesKeys)
	c.ProteinG, c.Completeness.Protein = jsonNumber(root, proteinKeys)
	c.CarbsG, c.Completeness.Carbs = jsonNumber(root, carbsKeys)
	c.FatG, c.Completeness.Fat = jsonNumber(root, fatKeys)
	c.FiberG, c.Completeness.Fiber = jsonNumber(root, fiberKeys)
	c.SugarG, c.Completeness.Sugar = jsonNumber(root, sugarKeys)
	return c
}

func jsonString(root gjson.Result, keys []string) string {
	for _, k := range keys {
		if v := root.Get(k); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			if strings.EqualFold(strings.TrimSpace(v.Str), unknownMarker) {
				continue
			}
			return strings.TrimSpace(v.Str)
		}
	}
	return ""
}

// jsonNumber accepts numbers and numeric strings ("12 g"); null and missing are absent
func jsonNumber(root gjson.Result, keys []string) (float64, bool) {
	for _, k := range keys {
		v := root.Get(k)
		switch v.Type {
		case gjson.Number:
			return v.Float(), true
		case gjson.String:
			if m := numberRegex.FindString(v.Str); m != "" {
				if f, err := strconv.ParseFloat(m, 64); err == nil {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func candidateFromText(text string) *domain.Candidate {
	c := &domain.Candidate{}
	c.ServingGrams, _ = firstMatch(text, servingPatterns, nil)
	c.Calories, c.Completeness.Calories = firstMatch(text, caloriesPatterns, nil)
	c.ProteinG, c.Completeness.Protein = firstMatch(text, proteinPatterns, nil)
	c.CarbsG, c.Completeness.Carbs = firstMatch(text, carbsPatterns, nil)
	c.FatG, c.Completeness.Fat = firstMatch(text, fatPatterns, fatQualifier)
	c.FiberG, c.Completeness.Fiber = firstMatch(text, fiberPatterns, nil)
	c.SugarG, c.Completeness.Sugar = firstMatch(text, sugarPatterns, nil)
	return c
}

// firstMatch returns the first value the patterns capture, skipping matches whose
// preceding text matches skip. A kilojoule value is only used when no pattern
// yields one in kcal.
func firstMatch(text string, patterns []*regexp.Regexp, skip *regexp.Regexp) (float64, bool) {
	kj, haveKJ := 0.0, false
	for _, re := range patterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if skip != nil && skip.MatchString(text[:loc[0]]) {
				continue
			}
			f, err := strconv.ParseFloat(text[loc[2]:loc[3]], 64)
			if err != nil {
				continue
			}
			if len(loc) > 4 && loc[4] >= 0 {
				if !haveKJ {
					kj, haveKJ = f, true
				}
				continue
			}
			return f, true
		}
	}
	if haveKJ {
		return domain.KJToKcal(kj), true
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
