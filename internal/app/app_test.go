package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/nutriresolve/config"
	"github.com/macrolens/nutriresolve/internal/domain"
)

var datasetPath = filepath.Join("..", "infrastructure", "dataset", "testdata", "foods.json")

// localOnlyConfig disables every remote source so tests never leave the process
func localOnlyConfig() *config.Config {
	return &config.Config{
		Log:   config.LogConfig{Level: "error", Format: "text"},
		Cache: config.CacheConfig{Type: "memory", TTL: time.Hour, AITTL: time.Minute, MaxEntries: 10},
		Resolver: config.ResolverConfig{
			Deadline:        time.Second,
			ProviderTimeout: 500 * time.Millisecond,
			Tolerance:       0.15,
			EarlyExitScore:  0.8,
			EarlyExitTrust:  0.8,
		},
		Dataset: config.DatasetConfig{Path: datasetPath, Timeout: time.Second},
		AI:      config.AIConfig{Provider: "none", Timeout: 2 * time.Second},
	}
}

func TestProviders(t *testing.T) {
	t.Run("enabled sources in registration order", func(t *testing.T) {
		cfg := localOnlyConfig()
		cfg.Providers.USDA = config.ProviderConfig{Enabled: true, APIKey: "k", Timeout: 3 * time.Second}
		cfg.Providers.OpenFoodFacts = config.ProviderConfig{Enabled: true, Timeout: 2 * time.Second}
		cfg.Providers.UPCDatabase = config.ProviderConfig{Enabled: true, APIKey: "k", Timeout: time.Second}

		entries, err := Providers(context.Background(), cfg)
		require.NoError(t, err)

		var names []string
		for _, e := range entries {
			names = append(names, e.Provider.Name())
		}
		assert.Equal(t, []string{domain.SourceUSDA, domain.SourceOpenFoodFacts, domain.SourceUPCDatabase, domain.SourceLocal}, names)
		assert.Equal(t, 3*time.Second, entries[0].Timeout)
		assert.Equal(t, time.Second, entries[2].Timeout)
		assert.Zero(t, entries[3].Timeout)
	})

	t.Run("nothing enabled", func(t *testing.T) {
		cfg := localOnlyConfig()
		cfg.Dataset.Path = ""

		_, err := Providers(context.Background(), cfg)
		assert.Error(t, err)
	})

	t.Run("missing dataset file", func(t *testing.T) {
		cfg := localOnlyConfig()
		cfg.Dataset.Path = filepath.Join(t.TempDir(), "missing.json")

		_, err := Providers(context.Background(), cfg)
		assert.ErrorContains(t, err, "failed to load dataset")
	})
}

func TestResolverConfig(t *testing.T) {
	cfg := localOnlyConfig()
	got := ResolverConfig(cfg)

	assert.Equal(t, time.Second, got.Deadline)
	assert.Equal(t, 500*time.Millisecond, got.ProviderTimeout)
	assert.Equal(t, 0.15, got.Tolerance)
	assert.Equal(t, time.Hour, got.CacheTTL)
	assert.Equal(t, time.Minute, got.AICacheTTL)
	assert.Equal(t, 2*time.Second, got.FallbackTimeout)
}

func TestBuild_ResolvesFromLocalDataset(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, localOnlyConfig())
	require.NoError(t, err)
	defer a.Close(ctx)

	result, err := a.Resolver.Resolve(ctx, domain.BarcodeQuery("0-12345-67890-5"))
	require.NoError(t, err)
	require.True(t, result.IsResolved())
	assert.Equal(t, domain.OriginBestSingle, result.Origin)
	assert.Equal(t, "Sea Salt Potato Chips", result.Candidate.ProductName)
	assert.Equal(t, []string{domain.SourceLocal}, result.Agreeing)
	assert.Equal(t, 1, a.Cache.Size())

	// a name-only entry with no AI configured stays unresolved and uncached
	result, err = a.Resolver.Resolve(ctx, domain.BarcodeQuery("4006381333931"))
	require.NoError(t, err)
	assert.Equal(t, domain.OriginUnresolved, result.Origin)
	assert.Equal(t, 1, a.Cache.Size())
}

func TestBuild_RejectsBadLogLevel(t *testing.T) {
	cfg := localOnlyConfig()
	cfg.Log.Level = "loud"

	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}
