// Package matching scores how well a free-text product name matches a
// candidate description. It ranks search hits inside providers and gives
// the scorer a name-identity signal.
package matching

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/macrolens/nutriresolve/internal/logging"
)

var (
	punctuationRegex = regexp.MustCompile(`[^\w\s]`)
	sizeInNameRegex  = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:fl\s*oz|oz|lbs?|ml|l|liters?|g|grams?|kg|ct|count|pack)\b`)
	spacesRegex      = regexp.MustCompile(`\s+`)
)

// Score bonuses, applied on top of the token score
const (
	brandMatchBonus      = 25.0
	substringMatchBonus  = 10.0
	brandedDataBonus     = 10.0
	surveyDataBonus      = 5.0
	foundationDataBonus  = 3.0
	baseScoreMultiplier  = 70.0
	defaultMinConfidence = 40.0
)

// ErrLowConfidence is returned alongside the best match when it scores under the threshold
var ErrLowConfidence = errors.New("best match below confidence threshold")

// ErrNoItems is returned when there is nothing to match against
var ErrNoItems = errors.New("no items to match")

// Config tunes the matcher
type Config struct {
	MinConfidence     float64 // 0-100, default 40
	EnableFuzzy       bool
	FuzzyEditDistance int // default 1
}

// Item is one searchable entry (a USDA food, a provider hit)
type Item struct {
	Description string
	DataType    string
}

// Match is the best item found for a query
type Match struct {
	Index         int
	Description   string
	Score         float64
	MatchedTokens []string
}

// Matcher ranks items against a product name
type Matcher struct {
	minConfidence     float64
	enableFuzzy       bool
	fuzzyEditDistance int
}

// NewMatcher creates a matcher, filling in defaults for zero values
func NewMatcher(cfg Config) *Matcher {
	threshold := cfg.MinConfidence
	if threshold <= 0 {
		threshold = defaultMinConfidence
	}
	dist := cfg.FuzzyEditDistance
	if dist <= 0 {
		dist = 1
	}
	return &Matcher{
		minConfidence:     threshold,
		enableFuzzy:       cfg.EnableFuzzy,
		fuzzyEditDistance: dist,
	}
}

// BestMatch returns the highest scoring item. Ties keep the earlier item, so
// provider relevance order breaks them. A match under the threshold is still
// returned, together with ErrLowConfidence.
func (m *Matcher) BestMatch(ctx context.Context, name, brand string, items []Item) (*Match, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	var best *Match
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score, matched := m.Score(name, brand, item.Description, item.DataType)
		logging.Log.WithFields(logrus.Fields{
			"candidate": item.Description,
			"dataType":  item.DataType,
			"score":     score,
			"matched":   matched,
		}).Trace("[MATCH] scored")

		if best == nil || score > best.Score {
			best = &Match{Index: i, Description: item.Description, Score: score, MatchedTokens: matched}
		}
	}

	if best.Score < m.minConfidence {
		return best, ErrLowConfidence
	}
	return best, nil
}

// Score computes a 0-100 similarity between a product name and a description:
// weighted coverage of the name's tokens (60%), coverage of the description's
// tokens (20%) and Jaccard overlap (20%), scaled to 70, plus bonuses for brand,
// substring containment and the USDA data type.
func (m *Matcher) Score(name, brand, description, dataType string) (float64, []string) {
	cleaned := cleanForMatching(name)
	nameTokens := tokenize(cleaned)
	descTokens := tokenize(description)
	if len(nameTokens) == 0 || len(descTokens) == 0 {
		return 0, nil
	}

	descSet := make(map[string]bool, len(descTokens))
	for _, t := range descTokens {
		descSet[t] = true
	}

	var totalWeight, matchedWeight float64
	var matched []string
	seen := make(map[string]bool)
	exact := 0
	for _, t := range nameTokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		w := tokenWeight(t)
		totalWeight += w

		if descSet[t] {
			matchedWeight += w
			matched = append(matched, t)
			exact++
			continue
		}
		if !m.enableFuzzy {
			continue
		}
		for _, d := range descTokens {
			if fuzzyTokenMatch(t, d, m.fuzzyEditDistance) {
				matchedWeight += w * fuzzyWeightFactor
				matched = append(matched, t+"~"+d)
				exact++
				break
			}
		}
	}

	nameCoverage := matchedWeight / totalWeight
	descMatched, _ := intersection(descTokens, nameTokens)
	descCoverage := float64(descMatched) / float64(len(descSet))
	jaccard := float64(exact) / float64(union(nameTokens, descTokens))
	if jaccard > 1 {
		jaccard = 1
	}

	score := (nameCoverage*0.60 + descCoverage*0.20 + jaccard*0.20) * baseScoreMultiplier

	nameLower := strings.ToLower(cleaned)
	descLower := strings.ToLower(description)
	if brand != "" && strings.Contains(descLower, strings.ToLower(brand)) {
		score += brandMatchBonus
	}
	if len(nameLower) > 3 && (strings.Contains(descLower, nameLower) || strings.Contains(nameLower, descLower)) {
		score += substringMatchBonus
	}
	score += dataTypeBonus(dataType)

	if score > 100 {
		score = 100
	}
	return score, matched
}

// Similarity is a 0-1 name similarity using a fuzzy matcher with default
// settings. Equal names (after tokenizing) score 1.
func Similarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if strings.Join(ta, " ") == strings.Join(tb, " ") {
		return 1
	}
	score, _ := defaultMatcher.Score(a, "", b, "")
	return score / 100
}

var defaultMatcher = NewMatcher(Config{EnableFuzzy: true})

func dataTypeBonus(dataType string) float64 {
	switch {
	case strings.EqualFold(dataType, "Branded"):
		return brandedDataBonus
	case strings.HasPrefix(strings.ToLower(dataType), "survey"):
		return surveyDataBonus
	case strings.EqualFold(dataType, "Foundation"):
		return foundationDataBonus
	}
	return 0
}

// cleanForMatching keeps the part before the first comma and strips sizes
func cleanForMatching(name string) string {
	if idx := strings.Index(name, ","); idx > 0 {
		name = name[:idx]
	}
	name = sizeInNameRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(spacesRegex.ReplaceAllString(name, " "))
}

// tokenize lowercases, strips punctuation and drops stop words, one-letter
// tokens and pure numbers
func tokenize(s string) []string {
	cleaned := punctuationRegex.ReplaceAllString(strings.ToLower(s), " ")

	var tokens []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 1 || stopWords[word] || isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// fuzzyTokenMatch allows small typos in tokens of four or more characters
func fuzzyTokenMatch(a, b string, threshold int) bool {
	if a == b {
		return true
	}
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	diff := len(a) - len(b)
	if diff < 0 {
		diff = -diff
	}
	if diff > threshold {
		return false
	}
	return levenshteinDistance(a, b) <= threshold
}

// levenshteinDistance is the two-row edit distance
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

// intersection counts distinct tokens of b that also occur in a
func intersection(a, b []string) (int, []string) {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	var matched []string
	seen := make(map[string]bool)
	for _, t := range b {
		if set[t] && !seen[t] {
			matched = append(matched, t)
			seen[t] = true
		}
	}
	return len(matched), matched
}

func union(a, b []string) int {
	set := make(map[string]bool, len(a)+len(b))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		set[t] = true
	}
	return len(set)
}
