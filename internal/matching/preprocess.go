package matching

import (
	"regexp"
	"strings"

	"github.com/macrolens/nutriresolve/internal/logging"
)

const maxSearchTextLen = 100

var (
	// "128 fl oz", "12 oz", "1.5 liter", "2 lb", "500 ml", "100 grams"
	sizeQuantityPattern = regexp.MustCompile(`(?i)\b\d+\.?\d*\s*(fl\s*)?oz\b|\b\d+\.?\d*\s*(fl\s*)?ounces?\b|\b\d+\.?\d*\s*lbs?\b|\b\d+\.?\d*\s*pounds?\b|\b\d+\.?\d*\s*ml\b|\b\d+\.?\d*\s*liters?\b|\b\d+\.?\d*\s*gallons?\b|\b\d+\.?\d*\s*kg\b|\b\d+\.?\d*\s*grams?\b|\b\d+\.?\d*\s*g\b`)

	// "12 pack", "pack of 6", "6-pack", "24 count", "6 ct"
	packCountPattern = regexp.MustCompile(`(?i)\b\d+[-\s]*(pack|pk|count|ct)\b|\bpack\s*of\s*\d+\b|\b\d+\s*cans?\b|\b\d+\s*bottles?\b|\b\d+\s*bars?\b|\b\d+\s*pieces?\b`)

	// numbers left dangling at either end: ", 128" or "12 -"
	standaloneNumberPattern = regexp.MustCompile(`[,\-]\s*\d+\.?\d*\s*$|^\d+\.?\d*\s*[,\-]`)

	lonePunctPattern     = regexp.MustCompile(`\s+[,\-;:]+\s+`)
	trailingPunctPattern = regexp.MustCompile(`[,\-;:]+\s*$`)
	leadingPunctPattern  = regexp.MustCompile(`^\s*[,\-;:]+`)
)

// noiseWords carry no information about what the product is
var noiseWords = toSet(
	"value", "family", "bonus", "new", "improved", "premium", "select",
	"choice", "quality", "best", "great", "delicious", "tasty", "favorite",
	"special",
	"size", "large", "medium", "small", "mini", "jumbo", "giant", "big",
	"single", "double", "triple",
	"package", "box", "bag", "bottle", "can", "jar", "tub", "carton",
	"sleeve", "pouch", "roll", "tube",
	"food", "item", "product", "brand",
)

// Preprocessor turns retail product names into search text for food databases
type Preprocessor struct{}

// NewPreprocessor creates a preprocessor
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// SearchText strips sizes, pack counts and marketing noise from a product
// name, prepends the brand when it is missing, and caps the result length.
func (p *Preprocessor) SearchText(productName, brand string) string {
	if productName == "" {
		return ""
	}

	cleaned := sizeQuantityPattern.ReplaceAllString(productName, " ")
	cleaned = packCountPattern.ReplaceAllString(cleaned, " ")
	cleaned = standaloneNumberPattern.ReplaceAllString(cleaned, " ")
	cleaned = removeNoiseWords(cleaned)
	cleaned = cleanOrphanedPunctuation(cleaned)
	cleaned = strings.TrimSpace(spacesRegex.ReplaceAllString(cleaned, " "))

	if brand != "" && !strings.Contains(strings.ToLower(cleaned), strings.ToLower(brand)) {
		cleaned = strings.TrimSpace(brand + " " + cleaned)
	}

	if len(cleaned) > maxSearchTextLen {
		cleaned = cleaned[:maxSearchTextLen]
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxSearchTextLen/2 {
			cleaned = cleaned[:lastSpace]
		}
	}

	logging.Log.Debugf("[PREPROCESS] %q -> %q", productName, cleaned)
	return cleaned
}

func removeNoiseWords(s string) string {
	var kept []string
	for _, word := range strings.Fields(strings.ToLower(s)) {
		if !noiseWords[strings.Trim(word, ",.!?;:-'\"")] {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}

func cleanOrphanedPunctuation(s string) string {
	result := lonePunctPattern.ReplaceAllString(s, " ")
	result = trailingPunctPattern.ReplaceAllString(result, "")
	return leadingPunctPattern.ReplaceAllString(result, "")
}
