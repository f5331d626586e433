// Package edamam adapts the Edamam food database parser. Nutrients are
// reported per 100 g and scaled by the product's "Serving" measure.
package edamam

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

const DefaultBaseURL = "https://api.edamam.com"

type Config struct {
	AppID      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RetryMax   int
	RatePerSec float64
	Burst      int
}

type Provider struct {
	client       *httpx.Client
	appID        string
	appKey       string
	baseURL      string
	preprocessor *matching.Preprocessor
}

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{
		client: httpx.NewClient(domain.SourceEdamam, httpx.Options{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.RetryMax,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}),
		appID:        cfg.AppID,
		appKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		preprocessor: matching.NewPreprocessor(),
	}
}

func (p *Provider) Name() string {
	return domain.SourceEdamam
}

func (p *Provider) Supports(kind domain.QueryKind) bool {
	return kind == domain.KindBarcode || kind == domain.KindProductName
}

func (p *Provider) Lookup(ctx context.Context, q domain.Query) *domain.Candidate {
	params := url.Values{}
	params.Set("app_id", p.appID)
	params.Set("app_key", p.appKey)
	if q.IsBarcode() {
		params.Set("upc", q.Value)
	} else {
		text := p.preprocessor.SearchText(q.Value, "")
		if text == "" {
			text = q.Value
		}
		params.Set("ingr", text)
	}

	body, err := p.client.GetJSON(ctx, p.baseURL+"/api/food-database/v2/parser?"+params.Encode(), nil)
	if err == nil {
		var c *domain.Candidate
		if c, err = mapParserResponse(body); err == nil {
			if q.IsBarcode() {
				c.Barcode = q.Value
			}
			return c
		}
	}

	httpx.LogFailure(p.Name(), q, err)
	return nil
}

// mapParserResponse prefers the exact "parsed" food and falls back to the first hint
func mapParserResponse(body []byte) (*domain.Candidate, error) {
	root := gjson.ParseBytes(body)
	if !root.Get("parsed").Exists() && !root.Get("hints").Exists() {
		return nil, fmt.Errorf("%w: neither parsed nor hints present", domain.ErrProviderMalformed)
	}

	food := root.Get("parsed.0.food")
	if !food.Exists() {
		food = root.Get("hints.0.food")
	}
	if !food.Exists() {
		return nil, domain.ErrProductNotFound
	}

	c := &domain.Candidate{
		ProductName: food.Get("label").String(),
		Brand:       food.Get("brand").String(),
		Category:    food.Get("category").String(),
		SourceID:    domain.SourceEdamam,
	}
	nutrients := food.Get("nutrients")
	c.Calories, c.Completeness.Calories = number(nutrients, "ENERC_KCAL")
	c.ProteinG, c.Completeness.Protein = number(nutrients, "PROCNT")
	c.CarbsG, c.Completeness.Carbs = number(nutrients, "CHOCDF")
	c.FatG, c.Completeness.Fat = number(nutrients, "FAT")
	c.FiberG, c.Completeness.Fiber = number(nutrients, "FIBTG")
	c.SugarG, c.Completeness.Sugar = number(nutrients, "SUGAR")

	c.ScaleFrom100g(servingWeight(root, food.Get("foodId").String()))
	return c, nil
}

// servingWeight finds the gram weight of the "Serving" measure for foodID.
// Returns 0 when the product has none.
func servingWeight(root gjson.Result, foodID string) float64 {
	for _, hint := range root.Get("hints").Array() {
		if foodID != "" && hint.Get("food.foodId").String() != foodID {
			continue
		}
		for _, m := range hint.Get("measures").Array() {
			if strings.EqualFold(m.Get("label").String(), "Serving") {
				return m.Get("weight").Float()
			}
		}
		return 0
	}
	return 0
}

func number(obj gjson.Result, field string) (float64, bool) {
	v := obj.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return 0, false
	}
	return v.Float(), true
}
