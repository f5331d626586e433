package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// QueryKind distinguishes barcode lookups from free-text product names
type QueryKind string

const (
	KindBarcode     QueryKind = "barcode"
	KindProductName QueryKind = "name"
)

// Query is what the caller asks to resolve
type Query struct {
	Kind  QueryKind `json:"kind"`
	Value string    `json:"value"`
}

var (
	nonDigitRegex       = regexp.MustCompile(`[^0-9]`)
	namePunctRegex      = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// BarcodeQuery builds a barcode query
func BarcodeQuery(code string) Query {
	return Query{Kind: KindBarcode, Value: code}
}

// NameQuery builds a product-name query
func NameQuery(name string) Query {
	return Query{Kind: KindProductName, Value: name}
}

// ParseQueryKind maps user input ("barcode", "upc", "name", ...) to a QueryKind
func ParseQueryKind(s string) (QueryKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "barcode", "upc", "ean", "gtin":
		return KindBarcode, nil
	case "name", "product", "productname", "product_name":
		return KindProductName, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidQuery, s)
}

// Normalize returns the canonical form used for dispatch and cache keys.
// Barcodes keep digits only. Names are stripped of diacritics, lowercased,
// punctuation-free and whitespace-collapsed.
func (q Query) Normalize() (Query, error) {
	var value string
	switch q.Kind {
	case KindBarcode:
		value = NormalizeBarcode(q.Value)
	case KindProductName:
		value = NormalizeName(q.Value)
	default:
		return Query{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidQuery, q.Kind)
	}
	if value == "" {
		return Query{}, fmt.Errorf("%w: empty %s", ErrInvalidQuery, q.Kind)
	}
	return Query{Kind: q.Kind, Value: value}, nil
}

// Key is the cache key of an already-normalized query
func (q Query) Key() string {
	return string(q.Kind) + ":" + q.Value
}

// IsBarcode reports whether this is a barcode query
func (q Query) IsBarcode() bool {
	return q.Kind == KindBarcode
}

// NormalizeBarcode drops everything but digits
func NormalizeBarcode(s string) string {
	return nonDigitRegex.ReplaceAllString(s, "")
}

// NormalizeName folds a product name for comparison and caching
func NormalizeName(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	result := strings.ToLower(folded)
	result = namePunctRegex.ReplaceAllString(result, " ")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// BarcodesEqual compares two barcodes ignoring formatting and leading zeros
// (UPC-A vs EAN-13 vs GTIN-14 renderings of the same code).
func BarcodesEqual(a, b string) bool {
	a = strings.TrimLeft(NormalizeBarcode(a), "0")
	b = strings.TrimLeft(NormalizeBarcode(b), "0")
	return a != "" && a == b
}
