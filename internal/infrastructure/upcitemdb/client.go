// Package upcitemdb adapts the UPCitemdb lookup API. It identifies products
// but carries no nutrition, so candidates are name-only.
package upcitemdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/httpx"
)

const (
	DefaultBaseURL = "https://api.upcitemdb.com"

	// trial plan: 100 requests per day, 6 per minute
	defaultRatePerSec = 0.1
)

type Config struct {
	APIKey     string // empty uses the trial endpoint
	BaseURL    string
	Timeout    time.Duration
	RetryMax   int
	RatePerSec float64
	Burst      int
}

type Provider struct {
	client  *httpx.Client
	baseURL string
	headers map[string]string
	path    string
}

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = defaultRatePerSec
	}

	p := &Provider{
		client: httpx.NewClient(domain.SourceUPCItemDB, httpx.Options{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.RetryMax,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		path:    "/prod/trial/lookup",
	}
	if cfg.APIKey != "" {
		p.path = "/prod/v1/lookup"
		p.headers = map[string]string{"user_key": cfg.APIKey, "key_type": "3scale"}
	}
	return p
}

func (p *Provider) Name() string {
	return domain.SourceUPCItemDB
}

// Supports only barcodes
func (p *Provider) Supports(kind domain.QueryKind) bool {
	return kind == domain.KindBarcode
}

func (p *Provider) Lookup(ctx context.Context, q domain.Query) *domain.Candidate {
	c, err := p.lookup(ctx, q.Value)
	if err != nil {
		httpx.LogFailure(p.Name(), q, err)
		return nil
	}
	return c
}

func (p *Provider) lookup(ctx context.Context, code string) (*domain.Candidate, error) {
	body, err := p.client.GetJSON(ctx, p.baseURL+p.path+"?upc="+url.QueryEscape(code), p.headers)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(body)
	if status := root.Get("code").String(); status != "OK" {
		return nil, fmt.Errorf("%w: code %q", domain.ErrProductNotFound, status)
	}
	item := root.Get("items.0")
	if !item.Exists() || item.Get("title").String() == "" {
		return nil, domain.ErrProductNotFound
	}

	barcode := item.Get("upc").String()
	if barcode == "" {
		barcode = item.Get("ean").String()
	}
	return &domain.Candidate{
		ProductName: strings.TrimSpace(item.Get("title").String()),
		Brand:       strings.TrimSpace(item.Get("brand").String()),
		Category:    item.Get("category").String(),
		Barcode:     barcode,
		SourceID:    domain.SourceUPCItemDB,
	}, nil
}
