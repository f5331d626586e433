// Package openfoodfacts adapts the Open Food Facts product and search APIs.
package openfoodfacts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/httpx"
	"github.com/macrolens/nutriresolve/internal/matching"
)

const (
	DefaultBaseURL = "https://world.openfoodfacts.org"

	searchPageSize = "10"
	productFields  = "code,product_name,product_name_en,generic_name,brands,categories,serving_size,serving_quantity,nutriments"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryMax   int
	RatePerSec float64
	Burst      int
}

type Provider struct {
	client       *httpx.Client
	baseURL      string
	matcher      *matching.Matcher
	preprocessor *matching.Preprocessor
}

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{
		client: httpx.NewClient(domain.SourceOpenFoodFacts, httpx.Options{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.RetryMax,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		matcher:      matching.NewMatcher(matching.Config{EnableFuzzy: true}),
		preprocessor: matching.NewPreprocessor(),
	}
}

func (p *Provider) Name() string {
	return domain.SourceOpenFoodFacts
}

func (p *Provider) Supports(kind domain.QueryKind) bool {
	return kind == domain.KindBarcode || kind == domain.KindProductName
}

func (p *Provider) Lookup(ctx context.Context, q domain.Query) *domain.Candidate {
	var (
		c   *domain.Candidate
		err error
	)
	if q.IsBarcode() {
		c, err = p.product(ctx, q.Value)
	} else {
		c, err = p.search(ctx, q.Value)
	}
	if err != nil {
		httpx.LogFailure(p.Name(), q, err)
		return nil
	}
	return c
}

func (p *Provider) product(ctx context.Context, code string) (*domain.Candidate, error) {
	reqURL := fmt.Sprintf("%s/api/v2/product/%s.json?fields=%s", p.baseURL, url.PathEscape(code), productFields)
	body, err := p.client.GetJSON(ctx, reqURL, nil)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	if root.Get("status").Int() != 1 || !root.Get("product").Exists() {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, root.Get("status_verbose").String())
	}

	c := mapProduct(root.Get("product"))
	if c.Barcode == "" {
		c.Barcode = code
	}
	return c, nil
}

func (p *Provider) search(ctx context.Context, name string) (*domain.Candidate, error) {
	text := p.preprocessor.SearchText(name, "")
	if text == "" {
		text = name
	}
	params := url.Values{}
	params.Set("search_terms", text)
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", searchPageSize)
	params.Set("fields", productFields)

	body, err := p.client.GetJSON(ctx, p.baseURL+"/cgi/search.pl?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	products := gjson.GetBytes(body, "products")
	if !products.Exists() {
		return nil, fmt.Errorf("%w: missing products array", domain.ErrProviderMalformed)
	}
	list := products.Array()

	items := make([]matching.Item, len(list))
	for i, product := range list {
		items[i] = matching.Item{Description: strings.TrimSpace(product.Get("brands").String() + " " + productName(product))}
	}
	match, err := p.matcher.BestMatch(ctx, name, "", items)
	switch {
	case errors.Is(err, matching.ErrNoItems):
		return nil, domain.ErrProductNotFound
	case errors.Is(err, matching.ErrLowConfidence):
		return nil, fmt.Errorf("%w: best match %q scored %.1f", domain.ErrProductNotFound, match.Description, match.Score)
	case err != nil:
		return nil, err
	}
	return mapProduct(list[match.Index]), nil
}

// mapProduct converts an OFF product. Per-100 g values (kJ as fallback
// for energy) are scaled to the labelled serving; products that only carry
// per-serving values are taken as is.
func mapProduct(product gjson.Result) *domain.Candidate {
	nutriments := product.Get("nutriments")
	serving := servingGrams(product)

	c := readNutriments(nutriments, "_100g")
	if c.Completeness.Count() > 0 {
		c.ScaleFrom100g(serving)
	} else {
		c = readNutriments(nutriments, "_serving")
		c.ServingGrams = serving
	}

	c.ProductName = productName(product)
	c.Brand = firstBrand(product.Get("brands").String())
	c.Category = lastCategory(product.Get("categories").String())
	c.Barcode = product.Get("code").String()
	c.SourceID = domain.SourceOpenFoodFacts
	return c
}

func readNutriments(n gjson.Result, suffix string) *domain.Candidate {
	c := &domain.Candidate{}
	if kcal, ok := number(n, "energy-kcal"+suffix); ok {
		c.Calories, c.Completeness.Calories = kcal, true
	} else if kj, ok := number(n, "energy-kj"+suffix); ok {
		c.Calories, c.Completeness.Calories = domain.KJToKcal(kj), true
	} else if kj, ok := number(n, "energy"+suffix); ok {
		// plain "energy" is always kJ
		c.Calories, c.Completeness.Calories = domain.KJToKcal(kj), true
	}
	c.ProteinG, c.Completeness.Protein = number(n, "proteins"+suffix)
	c.CarbsG, c.Completeness.Carbs = number(n, "carbohydrates"+suffix)
	c.FatG, c.Completeness.Fat = number(n, "fat"+suffix)
	c.FiberG, c.Completeness.Fiber = number(n, "fiber"+suffix)
	c.SugarG, c.Completeness.Sugar = number(n, "sugars"+suffix)
	return c
}

// servingGrams prefers serving_quantity and falls back to parsing serving_size
func servingGrams(product gjson.Result) float64 {
	if q, ok := number(product, "serving_quantity"); ok && q > 0 {
		return q
	}
	if grams, ok := domain.ParseServingGrams(product.Get("serving_size").String()); ok {
		return grams
	}
	return 0
}

// productName walks the usual name fields in order of preference
func productName(product gjson.Result) string {
	for _, field := range []string{"product_name", "product_name_en", "generic_name"} {
		if name := strings.TrimSpace(product.Get(field).String()); name != "" {
			return name
		}
	}
	return ""
}

func firstBrand(brands string) string {
	brand, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(brand)
}

// lastCategory returns the most specific entry of the comma-separated list
func lastCategory(categories string) string {
	parts := strings.Split(categories, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

// number reads numeric values that OFF sometimes serializes as strings.
// Non-finite values count as missing.
func number(obj gjson.Result, field string) (float64, bool) {
	v := obj.Get(field)
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
