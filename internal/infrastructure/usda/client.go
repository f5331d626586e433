package usda

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/httpx"
	"github.com/macrolens/nutriresolve/internal/logging"
	"github.com/macrolens/nutriresolve/internal/matching"
)

const (
	DefaultBaseURL = "https://api.nal.usda.gov/fdc"

	// USDA allows 1000 requests per hour
	defaultRatePerSec = 0.278
	defaultBurst      = 10

	searchPageSize = "10"
)

// Config configures the FoodData Central adapter
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RetryMax   int
	RatePerSec float64
	Burst      int
	// MinMatchScore is the token matcher threshold for name searches (0-100)
	MinMatchScore float64
}

// Provider looks products up in USDA FoodData Central
type Provider struct {
	client       *httpx.Client
	apiKey       string
	baseURL      string
	matcher      *matching.Matcher
	preprocessor *matching.Preprocessor
}

// New creates a USDA provider
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = defaultRatePerSec
		cfg.Burst = defaultBurst
	}

	return &Provider{
		client: httpx.NewClient(domain.SourceUSDA, httpx.Options{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.RetryMax,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		matcher: matching.NewMatcher(matching.Config{
			MinConfidence:     cfg.MinMatchScore,
			EnableFuzzy:       true,
			FuzzyEditDistance: 1,
		}),
		preprocessor: matching.NewPreprocessor(),
	}
}

// Name returns the source ID
func (p *Provider) Name() string {
	return domain.SourceUSDA
}

// Supports reports the query kinds this provider can answer
func (p *Provider) Supports(kind domain.QueryKind) bool {
	return kind == domain.KindBarcode || kind == domain.KindProductName
}

// Lookup searches FoodData Central. Any failure yields nil.
func (p *Provider) Lookup(ctx context.Context, q domain.Query) *domain.Candidate {
	candidate, err := p.lookup(ctx, q)
	if err != nil {
		httpx.LogFailure(p.Name(), q, err)
		return nil
	}
	return candidate
}

func (p *Provider) lookup(ctx context.Context, q domain.Query) (*domain.Candidate, error) {
	if q.IsBarcode() {
		foods, err := p.searchFoods(ctx, q.Value, "Branded")
		if err != nil {
			return nil, err
		}
		for _, food := range foods {
			if domain.BarcodesEqual(food.Get("gtinUpc").String(), q.Value) {
				return mapFood(food), nil
			}
		}
		return nil, fmt.Errorf("%w: no food with gtin %s", domain.ErrProductNotFound, q.Value)
	}

	text := p.preprocessor.SearchText(q.Value, "")
	if text == "" {
		text = q.Value
	}
	foods, err := p.searchFoods(ctx, text, "Survey (FNDDS),Foundation,Branded")
	if err != nil {
		return nil, err
	}

	items := make([]matching.Item, len(foods))
	for i, food := range foods {
		items[i] = matching.Item{
			Description: strings.TrimSpace(food.Get("brandOwner").String() + " " + food.Get("description").String()),
			DataType:    food.Get("dataType").String(),
		}
	}
	match, err := p.matcher.BestMatch(ctx, q.Value, "", items)
	if err != nil {
		if errors.Is(err, matching.ErrLowConfidence) {
			return nil, fmt.Errorf("%w: best match %q scored %.1f", domain.ErrProductNotFound, match.Description, match.Score)
		}
		return nil, err
	}

	logging.Log.WithFields(logrus.Fields{
		"query": q.Value,
		"match": match.Description,
		"score": match.Score,
	}).Debug("[USDA] matched")
	return mapFood(foods[match.Index]), nil
}

// searchFoods calls /v1/foods/search and returns the foods array
func (p *Provider) searchFoods(ctx context.Context, query, dataTypes string) ([]gjson.Result, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("api_key", p.apiKey)
	params.Set("dataType", dataTypes)
	params.Set("pageSize", searchPageSize)

	body, err := p.client.GetJSON(ctx, p.baseURL+"/v1/foods/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	foods := gjson.GetBytes(body, "foods")
	if !foods.Exists() {
		return nil, fmt.Errorf("%w: missing foods array", domain.ErrProviderMalformed)
	}
	list := foods.Array()
	if len(list) == 0 {
		return nil, domain.ErrProductNotFound
	}
	return list, nil
}
