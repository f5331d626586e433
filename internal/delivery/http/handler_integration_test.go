package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/nutriresolve/config"
	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/logging"
	"github.com/macrolens/nutriresolve/internal/usecase"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logging.Log.SetOutput(&strings.Builder{})
	os.Exit(m.Run())
}

// fakeResolver answers from a fixed map keyed by "kind:value" of the raw query
type fakeResolver struct {
	mu          sync.Mutex
	results     map[string]*domain.ResolutionResult
	err         error
	queries     []domain.Query
	invalidated []domain.Query
	cleared     int
	stats       usecase.Stats
}

func (f *fakeResolver) Resolve(ctx context.Context, q domain.Query) (*domain.ResolutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	nq, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if r, ok := f.results[nq.Key()]; ok {
		return r, nil
	}
	return domain.Unresolved(nq.Key()), nil
}

func (f *fakeResolver) Invalidate(ctx context.Context, q domain.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := q.Normalize(); err != nil {
		return err
	}
	f.invalidated = append(f.invalidated, q)
	return nil
}

func (f *fakeResolver) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeResolver) Stats() usecase.Stats {
	return f.stats
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"},
		},
	}
}

func setupTestRouter(resolver Resolver) *gin.Engine {
	return SetupRouter(testConfig(), NewHandler(resolver))
}

func chipsResult() *domain.ResolutionResult {
	return &domain.ResolutionResult{
		Query: "barcode:0028400090858",
		Candidate: &domain.Candidate{
			ProductName:  "Classic Potato Chips",
			Brand:        "Lay's",
			Barcode:      "0028400090858",
			ServingGrams: 28,
			Calories:     160,
			ProteinG:     2,
			CarbsG:       15,
			FatG:         10,
			SourceID:     domain.SourceOpenFoodFacts,
		},
		Origin:     domain.OriginConsensus,
		Confidence: 0.95,
		Agreeing:   []string{domain.SourceOpenFoodFacts, domain.SourceUPCItemDB},
	}
}

func newFake() *fakeResolver {
	return &fakeResolver{results: map[string]*domain.ResolutionResult{
		"barcode:0028400090858": chipsResult(),
	}}
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		w := serve(setupTestRouter(nil), http.MethodGet, "/health", "")

		require.Equal(t, http.StatusOK, w.Code)
		body := decode[map[string]any](t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "nutriresolve", body["service"])
		assert.Equal(t, Version, body["version"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(nil)
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			if w := serve(router, method, "/health", ""); w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOrigin domain.Origin
		wantError  string
	}{
		{
			name:       "resolved barcode",
			body:       `{"kind":"barcode","value":"0028400090858"}`,
			wantStatus: http.StatusOK,
			wantOrigin: domain.OriginConsensus,
		},
		{
			name:       "kind alias and formatted barcode",
			body:       `{"kind":"upc","value":"0 28400-09085 8"}`,
			wantStatus: http.StatusOK,
			wantOrigin: domain.OriginConsensus,
		},
		{
			name:       "unknown product is unresolved, not an error",
			body:       `{"kind":"name","value":"mystery snack"}`,
			wantStatus: http.StatusOK,
			wantOrigin: domain.OriginUnresolved,
		},
		{
			name:       "unknown kind",
			body:       `{"kind":"photo","value":"x"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_query",
		},
		{
			name:       "value without digits",
			body:       `{"kind":"barcode","value":"abc"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_query",
		},
		{
			name:       "missing value",
			body:       `{"kind":"barcode"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "malformed json",
			body:       `{"kind":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(setupTestRouter(newFake()), http.MethodPost, "/api/v1/nutrition/resolve", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("Status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decode[ErrorResponse](t, w).Error)
				return
			}
			got := decode[domain.ResolutionResult](t, w)
			assert.Equal(t, tt.wantOrigin, got.Origin)
		})
	}
}

func TestResolveEndpoint_ReturnsCandidate(t *testing.T) {
	w := serve(setupTestRouter(newFake()), http.MethodPost, "/api/v1/nutrition/resolve",
		`{"kind":"barcode","value":"0028400090858"}`)
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[domain.ResolutionResult](t, w)
	require.NotNil(t, got.Candidate)
	assert.Equal(t, "Classic Potato Chips", got.Candidate.ProductName)
	assert.Equal(t, 160.0, got.Candidate.Calories)
	assert.Equal(t, 0.95, got.Confidence)
	assert.ElementsMatch(t, []string{domain.SourceOpenFoodFacts, domain.SourceUPCItemDB}, got.Agreeing)
}

func TestBarcodeEndpoint(t *testing.T) {
	fake := newFake()
	router := setupTestRouter(fake)

	w := serve(router, http.MethodGet, "/api/v1/nutrition/barcode/0028400090858", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OriginConsensus, decode[domain.ResolutionResult](t, w).Origin)

	require.Len(t, fake.queries, 1)
	assert.Equal(t, domain.BarcodeQuery("0028400090858"), fake.queries[0])
}

func TestSearchEndpoint(t *testing.T) {
	t.Run("passes the name through", func(t *testing.T) {
		fake := newFake()
		w := serve(setupTestRouter(fake), http.MethodGet, "/api/v1/nutrition/search?name=Greek+Yogurt", "")

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, fake.queries, 1)
		assert.Equal(t, domain.NameQuery("Greek Yogurt"), fake.queries[0])
	})

	t.Run("missing name is a bad request", func(t *testing.T) {
		w := serve(setupTestRouter(newFake()), http.MethodGet, "/api/v1/nutrition/search", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestResolverErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"cancelled", context.Canceled, http.StatusGatewayTimeout, "timeout"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.err = tt.err
			w := serve(setupTestRouter(fake), http.MethodGet, "/api/v1/nutrition/barcode/123", "")

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotContains(t, body.Message, "disk on fire")
		})
	}
}

func TestCacheEndpoints(t *testing.T) {
	t.Run("clear all", func(t *testing.T) {
		fake := newFake()
		w := serve(setupTestRouter(fake), http.MethodDelete, "/api/v1/cache", "")

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, 1, fake.cleared)
	})

	t.Run("invalidate one entry", func(t *testing.T) {
		fake := newFake()
		w := serve(setupTestRouter(fake), http.MethodDelete, "/api/v1/cache/entry",
			`{"kind":"barcode","value":"0028400090858"}`)

		assert.Equal(t, http.StatusNoContent, w.Code)
		require.Len(t, fake.invalidated, 1)
		assert.Equal(t, domain.BarcodeQuery("0028400090858"), fake.invalidated[0])
	})

	t.Run("invalidate rejects a bad query", func(t *testing.T) {
		fake := newFake()
		w := serve(setupTestRouter(fake), http.MethodDelete, "/api/v1/cache/entry",
			`{"kind":"name","value":"!!!"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, fake.invalidated)
	})
}

func TestStatsEndpoint(t *testing.T) {
	fake := newFake()
	fake.stats = usecase.Stats{
		Entries:     2,
		CacheHits:   5,
		CacheMisses: 3,
		SourceHits:  map[string]int64{domain.SourceUSDA: 3},
		SourceWins:  map[string]int64{domain.SourceUSDA: 2},
		Origins:     map[string]int64{string(domain.OriginConsensus): 2},
	}

	w := serve(setupTestRouter(fake), http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[usecase.Stats](t, w)
	assert.Equal(t, fake.stats, got)
}

func TestUnconfiguredResolver(t *testing.T) {
	router := setupTestRouter(nil)

	paths := []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/nutrition/resolve", `{"kind":"barcode","value":"1"}`},
		{http.MethodGet, "/api/v1/nutrition/barcode/1", ""},
		{http.MethodGet, "/api/v1/nutrition/search?name=x", ""},
		{http.MethodDelete, "/api/v1/cache", ""},
		{http.MethodGet, "/api/v1/stats", ""},
	}
	for _, p := range paths {
		w := serve(router, p.method, p.path, p.body)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: Status = %d, want %d", p.method, p.path, w.Code, http.StatusServiceUnavailable)
		}
	}
}

func TestRoutes_NotFound(t *testing.T) {
	router := setupTestRouter(newFake())

	incorrect := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/nutrition/resolve"},
		{http.MethodPost, "/api/nutrition/resolve"},
		{http.MethodGet, "/nutrition/search"},
		{http.MethodPost, "/api/v1/stats"},
	}
	for _, r := range incorrect {
		if w := serve(router, r.method, r.path, ""); w.Code != http.StatusNotFound {
			t.Errorf("%s %s: Status = %d, want %d", r.method, r.path, w.Code, http.StatusNotFound)
		}
	}
}

func TestCORSIntegration(t *testing.T) {
	router := setupTestRouter(newFake())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nutrition/barcode/0028400090858", nil)
	req.Header.Set("Origin", "chrome-extension://abcdefghijklmnop")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chrome-extension://abcdefghijklmnop", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitIntegration(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.PerIP = 2
	router := SetupRouter(cfg, NewHandler(newFake()))

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/stats", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/api/v1/stats", "").Code)

	// health sits outside the limited group
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "").Code)
}

func TestJSONResponses(t *testing.T) {
	router := setupTestRouter(newFake())
	for _, path := range []string{"/health", "/api/v1/stats", "/api/v1/nutrition/barcode/1"} {
		t.Run(path, func(t *testing.T) {
			w := serve(router, http.MethodGet, path, "")
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.True(t, json.Valid(w.Body.Bytes()))
		})
	}
}
