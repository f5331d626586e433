package matching

// Token weight categories for scoring
const (
	weightFood        = 3.0 // milk, chicken, bread
	weightDescriptive = 2.0 // whole, skim, organic
	weightDefault     = 1.0
	fuzzyWeightFactor = 0.8
)

// foodTerms are the nouns that decide what a product is
var foodTerms = toSet(
	// proteins
	"chicken", "beef", "pork", "fish", "salmon", "turkey", "tuna", "bacon",
	"sausage", "steak", "ham", "shrimp", "tofu",
	// dairy
	"milk", "cheese", "yogurt", "butter", "cream", "egg", "eggs", "cheddar",
	"mozzarella",
	// grains
	"bread", "rice", "pasta", "cereal", "oats", "oat", "granola", "flour",
	"noodles", "tortilla", "bagel",
	// produce
	"apple", "banana", "orange", "tomato", "potato", "onion", "carrot",
	"broccoli", "spinach", "strawberry", "blueberry", "grape", "lemon",
	"avocado", "corn", "beans", "peanut", "almond",
	// drinks
	"juice", "soda", "cola", "coffee", "tea", "water", "lemonade", "smoothie",
	// snacks
	"chips", "crackers", "cookies", "cookie", "candy", "chocolate", "cake",
	"bar", "bars", "pie", "brownie", "popcorn", "pretzels",
	// sauces
	"ketchup", "mustard", "mayonnaise", "sauce", "salsa", "dressing", "syrup",
	"honey", "jam", "spread",
	// prepared
	"pizza", "burger", "sandwich", "soup", "salad", "burrito", "taco", "wrap",
)

// descriptiveTerms narrow a product down within its kind
var descriptiveTerms = toSet(
	"whole", "skim", "reduced", "fat", "low", "nonfat", "organic", "natural",
	"fresh", "frozen", "canned", "dried", "raw", "cooked", "grilled", "baked",
	"fried", "roasted", "smoked",
	"vanilla", "plain", "flavored", "original", "classic", "sweet", "spicy",
	"salted", "unsalted", "unsweetened", "sweetened", "light", "lite", "diet",
	"zero", "sugar", "greek", "dark",
	"white", "brown", "boneless", "skinless", "lean",
	"protein", "fiber", "gluten", "free",
)

// stopWords are dropped before comparing: grammar words, units, packaging
var stopWords = toSet(
	"a", "an", "the", "and", "or", "of", "in", "on", "at", "to", "for",
	"with", "by", "from", "is", "it", "as",
	"oz", "fl", "lb", "lbs", "ml", "gallon", "quart", "pint", "liter",
	"liters", "gram", "grams", "kg", "ounce", "ounces", "cup", "cups",
	"tbsp", "tsp",
	"pack", "packs", "count", "ct", "pk", "box", "bag", "bottle", "bottles",
	"can", "cans", "carton", "container", "pouch", "jar", "tub",
	"size", "value", "family", "each", "per", "serving", "servings", "new",
	"improved", "product",
)

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// tokenWeight returns the importance of a token for coverage scoring.
// Food terms win over descriptive ones ("milk" in "milk chocolate" is still food).
func tokenWeight(token string) float64 {
	switch {
	case foodTerms[token]:
		return weightFood
	case descriptiveTerms[token]:
		return weightDescriptive
	default:
		return weightDefault
	}
}
