package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/macrolens/nutriresolve/internal/domain"
)

func TestGetJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nutriresolve/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "secret", r.Header.Get("x-app-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient("test", Options{Timeout: time.Second})
	body, err := client.GetJSON(context.Background(), server.URL, map[string]string{"x-app-key": "secret"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestPostJSON_SendsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"query":"apple"}`, string(b))
		_, _ = w.Write([]byte(`{"foods":[]}`))
	}))
	defer server.Close()

	client := NewClient("test", Options{})
	_, err := client.PostJSON(context.Background(), server.URL, nil, map[string]string{"query": "apple"})
	require.NoError(t, err)
}

func TestGetJSON_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{}`, domain.ErrProductNotFound},
		{"server error", http.StatusInternalServerError, `{}`, domain.ErrProviderUnavailable},
		{"unauthorized", http.StatusUnauthorized, `{}`, domain.ErrProviderUnavailable},
		{"html body", http.StatusOK, `<html>oops</html>`, domain.ErrProviderMalformed},
		{"truncated json", http.StatusOK, `{"foods":[`, domain.ErrProviderMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient("test", Options{RetryMax: 0})
			_, err := client.GetJSON(context.Background(), server.URL, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetJSON_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":1}`))
	}))
	defer server.Close()

	client := NewClient("test", Options{RetryMax: 2})
	_, err := client.GetJSON(context.Background(), server.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestGetJSON_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient("test", Options{})
	_, err := client.GetJSON(ctx, server.URL, nil)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	limiter.Allow() // drain the only token

	client := NewClientWithDoer("test", http.DefaultClient, limiter)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.GetJSON(ctx, "http://127.0.0.1:1", nil)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, NewLimiter(0, 0).Limit())
	l := NewLimiter(2, 0)
	assert.Equal(t, rate.Limit(2), l.Limit())
	assert.Equal(t, 1, l.Burst())
}
