package matching

import (
	"strings"
	"testing"
)

func TestSearchText(t *testing.T) {
	p := NewPreprocessor()

	testCases := []struct {
		name        string
		productName string
		brand       string
		want        string
	}{
		{"removes size in fl oz", "Coca-Cola, 12 fl oz", "", "coca-cola"},
		{"removes size in oz", "Cheerios Cereal, 18 oz", "", "cheerios cereal"},
		{"removes pack count", "Coca-Cola Soda Pop, 6 pack", "", "coca-cola soda pop"},
		{"removes lb weight", "Tyson Chicken Breasts, 2.5 lb", "", "tyson chicken breasts"},
		{"prepends brand when not in name", "Whole Milk, Vitamin D", "Great Value", "Great Value whole milk, vitamin d"},
		{"removes marketing terms", "Premium Select Quality Chicken Breast", "", "chicken breast"},
		{"removes count notation", "Eggs, Large, 12 count", "", "eggs"},
		{"removes ct abbreviation", "Granola Bars, 6 ct", "", "granola bars"},
		{"removes ml measurement", "Yogurt Drink, 500 ml", "", "yogurt drink"},
		{"handles liter measurement", "Sparkling Water, 2 liters", "", "sparkling water"},
		{"handles grams measurement", "Chocolate Bar, 100 grams", "", "chocolate bar"},
		{"preserves food descriptors", "Organic Whole Grain Bread", "", "organic whole grain bread"},
		{"handles normalized query text", "great value whole milk 128 fl oz", "", "whole milk"},
		{"handles empty product name", "", "", ""},
		{"ignores brand without product name", "", "Coca-Cola", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.SearchText(tc.productName, tc.brand); got != tc.want {
				t.Errorf("SearchText(%q, %q) = %q, want %q", tc.productName, tc.brand, got, tc.want)
			}
		})
	}
}

func TestSearchText_LongInput(t *testing.T) {
	p := NewPreprocessor()
	longName := strings.Repeat("Organic Natural Farm Raised Grass Fed ", 6) + "Chicken Breast"

	if got := p.SearchText(longName, ""); len(got) > maxSearchTextLen {
		t.Errorf("result length = %d, want <= %d", len(got), maxSearchTextLen)
	}
}

func TestRemoveNoiseWords(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"value brand chicken", "chicken"},
		{"premium select milk", "milk"},
		{"family size box cereal", "cereal"},
		{"", ""},
		{"chicken breast", "chicken breast"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := removeNoiseWords(tc.input); got != tc.want {
				t.Errorf("removeNoiseWords(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestCleanOrphanedPunctuation(t *testing.T) {
	testCases := []struct {
		input string
		want  string
	}{
		{"milk , cheese", "milk cheese"},
		{", milk", " milk"},
		{"milk,", "milk"},
		{"milk - cheese", "milk cheese"},
		{"milk", "milk"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := cleanOrphanedPunctuation(tc.input); got != tc.want {
				t.Errorf("cleanOrphanedPunctuation(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
