package upcitemdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/nutriresolve/internal/domain"
)

func newTestProvider(t *testing.T, apiKey string, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{APIKey: apiKey, BaseURL: server.URL, Timeout: time.Second, RatePerSec: -1})
}

func TestLookup_IdentityOnly(t *testing.T) {
	p := newTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prod/trial/lookup", r.URL.Path)
		assert.Equal(t, "012000161155", r.URL.Query().Get("upc"))
		_, _ = w.Write([]byte(`{"code": "OK", "total": 1, "items": [{
			"ean": "0012000161155",
			"title": "Pepsi Cola 12 oz Can ",
			"upc": "012000161155",
			"brand": "Pepsi",
			"category": "Food, Beverages & Tobacco > Beverages > Soda"
		}]}`))
	})

	c := p.Lookup(context.Background(), domain.BarcodeQuery("012000161155"))

	require.NotNil(t, c)
	assert.Equal(t, "Pepsi Cola 12 oz Can", c.ProductName)
	assert.Equal(t, "Pepsi", c.Brand)
	assert.Equal(t, "012000161155", c.Barcode)
	assert.Equal(t, domain.SourceUPCItemDB, c.SourceID)
	assert.True(t, c.IsNameOnly())
	assert.Equal(t, 0, c.Completeness.Count())
}

func TestLookup_PaidPlanHeaders(t *testing.T) {
	p := newTestProvider(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prod/v1/lookup", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("user_key"))
		assert.Equal(t, "3scale", r.Header.Get("key_type"))
		_, _ = w.Write([]byte(`{"code": "OK", "items": [{"title": "Thing", "ean": "4006381333931"}]}`))
	})

	c := p.Lookup(context.Background(), domain.BarcodeQuery("4006381333931"))
	require.NotNil(t, c)
	assert.Equal(t, "4006381333931", c.Barcode)
}

func TestLookup_NotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"no items", http.StatusOK, `{"code": "OK", "total": 0, "items": []}`},
		{"invalid upc", http.StatusBadRequest, `{"code": "INVALID_UPC"}`},
		{"error code", http.StatusOK, `{"code": "EXCEED_LIMIT"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			assert.Nil(t, p.Lookup(context.Background(), domain.BarcodeQuery("1")))
		})
	}
}

func TestSupports(t *testing.T) {
	p := New(Config{})
	assert.True(t, p.Supports(domain.KindBarcode))
	assert.False(t, p.Supports(domain.KindProductName))
}
