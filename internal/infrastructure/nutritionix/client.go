// Package nutritionix adapts the Nutritionix track API. Values are reported
// per serving, with the serving weight in grams when known.
package nutritionix

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/httpx"
	"github.com/macrolens/nutriresolve/internal/matching"
)

const DefaultBaseURL = "https://trackapi.nutritionix.com"

// Config configures the Nutritionix adapter
type Config struct {
	AppID      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RetryMax   int
	RatePerSec float64
	Burst      int
}

// Provider looks products up in Nutritionix
type Provider struct {
	client       *httpx.Client
	headers      map[string]string
	baseURL      string
	preprocessor *matching.Preprocessor
}

// New creates a Nutritionix provider
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{
		client: httpx.NewClient(domain.SourceNutritionix, httpx.Options{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.RetryMax,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}),
		headers: map[string]string{
			"x-app-id":  cfg.AppID,
			"x-app-key": cfg.APIKey,
		},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		preprocessor: matching.NewPreprocessor(),
	}
}

func (p *Provider) Name() string {
	return domain.SourceNutritionix
}

func (p *Provider) Supports(kind domain.QueryKind) bool {
	return kind == domain.KindBarcode || kind == domain.KindProductName
}

// Lookup queries search/item for barcodes and natural/nutrients for names
func (p *Provider) Lookup(ctx context.Context, q domain.Query) *domain.Candidate {
	var (
		body []byte
		err  error
	)
	if q.IsBarcode() {
		body, err = p.client.GetJSON(ctx, p.baseURL+"/v2/search/item?upc="+url.QueryEscape(q.Value), p.headers)
	} else {
		text := p.preprocessor.SearchText(q.Value, "")
		if text == "" {
			text = q.Value
		}
		body, err = p.client.PostJSON(ctx, p.baseURL+"/v2/natural/nutrients", p.headers, map[string]string{"query": text})
	}
	if err == nil {
		var c *domain.Candidate
		if c, err = mapFirstFood(body); err == nil {
			if q.IsBarcode() && c.Barcode == "" {
				c.Barcode = q.Value
			}
			return c
		}
	}

	httpx.LogFailure(p.Name(), q, err)
	return nil
}

// mapFirstFood reads foods[0]; nf_* values are already per serving
func mapFirstFood(body []byte) (*domain.Candidate, error) {
	foods := gjson.GetBytes(body, "foods")
	if !foods.Exists() {
		return nil, fmt.Errorf("%w: missing foods array", domain.ErrProviderMalformed)
	}
	food := foods.Get("0")
	if !food.Exists() {
		return nil, domain.ErrProductNotFound
	}

	c := &domain.Candidate{
		ProductName:  food.Get("food_name").String(),
		Brand:        food.Get("brand_name").String(),
		Barcode:      food.Get("upc").String(),
		ServingGrams: food.Get("serving_weight_grams").Float(),
		SourceID:     domain.SourceNutritionix,
	}
	c.Calories, c.Completeness.Calories = number(food, "nf_calories")
	c.ProteinG, c.Completeness.Protein = number(food, "nf_protein")
	c.CarbsG, c.Completeness.Carbs = number(food, "nf_total_carbohydrate")
	c.FatG, c.Completeness.Fat = number(food, "nf_total_fat")
	c.FiberG, c.Completeness.Fiber = number(food, "nf_dietary_fiber")
	c.SugarG, c.Completeness.Sugar = number(food, "nf_sugars")

	if c.ServingGrams == 0 {
		// branded items often omit the weight but keep "1 bar (40 g)" style units
		desc := food.Get("serving_qty").String() + " " + food.Get("serving_unit").String()
		if grams, ok := domain.ParseServingGrams(desc); ok {
			c.ServingGrams = grams
		}
	}
	return c, nil
}

// number reads a nullable numeric field, reporting whether it was supplied
func number(food gjson.Result, field string) (float64, bool) {
	v := food.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return 0, false
	}
	return v.Float(), true
}
