// Package upcdatabase adapts UPCDatabase.org, a barcode-to-name service
// with no nutrition data.
package upcdatabase

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

const DefaultBaseURL = "https://api.upcdatabase.org"

type Config struct {
	APIKey     string
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
}

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{
		client: httpx.NewClient(domain.SourceUPCDatabase, httpx.Options{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.RetryMax,
			RatePerSec: cfg.RatePerSec,
			Burst:      cfg.Burst,
		}),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: map[string]string{"Authorization": "Bearer " + cfg.APIKey},
	}
}

func (p *Provider) Name() string {
	return domain.SourceUPCDatabase
}

func (p *Provider) Supports(kind domain.QueryKind) bool {
	return kind == domain.KindBarcode
}

func (p *Provider) Lookup(ctx context.Context, q domain.Query) *domain.Candidate {
	body, err := p.client.GetJSON(ctx, p.baseURL+"/product/"+url.PathEscape(q.Value), p.headers)
	if err == nil {
		var c *domain.Candidate
		if c, err = mapProduct(body, q.Value); err == nil {
			return c
		}
	}
	httpx.LogFailure(p.Name(), q, err)
	return nil
}

func mapProduct(body []byte, code string) (*domain.Candidate, error) {
	root := gjson.ParseBytes(body)
	if !root.Get("success").Bool() {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, root.Get("error.message").String())
	}

	name := strings.TrimSpace(root.Get("title").String())
	if name == "" {
		name = strings.TrimSpace(root.Get("description").String())
	}
	if name == "" {
		return nil, domain.ErrProductNotFound
	}

	barcode := root.Get("barcode").String()
	if barcode == "" {
		barcode = code
	}
	return &domain.Candidate{
		ProductName: name,
		Brand:       strings.TrimSpace(root.Get("brand").String()),
		Category:    root.Get("category").String(),
		Barcode:     barcode,
		SourceID:    domain.SourceUPCDatabase,
	}, nil
}
