// Package app assembles the resolver and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/macrolens/nutriresolve/config"
	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/ai"
	"github.com/macrolens/nutriresolve/internal/infrastructure/cache"
	"github.com/macrolens/nutriresolve/internal/infrastructure/dataset"
	"github.com/macrolens/nutriresolve/internal/infrastructure/edamam"
	"github.com/macrolens/nutriresolve/internal/infrastructure/nutritionix"
	"github.com/macrolens/nutriresolve/internal/infrastructure/openfoodfacts"
	"github.com/macrolens/nutriresolve/internal/infrastructure/telemetry"
	"github.com/macrolens/nutriresolve/internal/infrastructure/upcdatabase"
	"github.com/macrolens/nutriresolve/internal/infrastructure/upcitemdb"
	"github.com/macrolens/nutriresolve/internal/infrastructure/usda"
	"github.com/macrolens/nutriresolve/internal/logging"
	"github.com/macrolens/nutriresolve/internal/usecase"
)

// App is a fully wired resolution engine
type App struct {
	Resolver *usecase.Resolver
	Cache    *cache.MemoryCache

	shutdown telemetry.Shutdown
}

// Close flushes telemetry
func (a *App) Close(ctx context.Context) error {
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown(ctx)
}

// Build applies logging settings, starts telemetry and wires the resolver
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	format := cfg.Log.Format
	if format == "" && cfg.Server.Environment == "production" {
		format = "json"
	}
	if err := logging.SetFormat(format); err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}

	entries, err := Providers(ctx, cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	var completer domain.Completer
	if cfg.AI.Enabled() {
		completer, err = ai.NewCompleter(ctx, ai.Config{
			Provider:    cfg.AI.Provider,
			Endpoint:    cfg.AI.Endpoint,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("failed to create AI completer: %w", err)
		}
	}

	memoryCache := cache.NewMemoryCache(cache.WithMaxEntries(cfg.Cache.MaxEntries))
	resolver := usecase.NewResolver(entries, memoryCache, completer, ResolverConfig(cfg))

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Provider.Name())
	}
	logging.Log.WithFields(logrus.Fields{
		"providers": names,
		"ai":        cfg.AI.Enabled(),
		"cacheTTL":  cfg.Cache.TTL.String(),
		"deadline":  cfg.Resolver.Deadline.String(),
	}).Info("[APP] resolver ready")

	return &App{Resolver: resolver, Cache: memoryCache, shutdown: shutdown}, nil
}

// ResolverConfig maps the config file sections onto usecase.Config
func ResolverConfig(cfg *config.Config) usecase.Config {
	return usecase.Config{
		Deadline:        cfg.Resolver.Deadline,
		ProviderTimeout: cfg.Resolver.ProviderTimeout,
		Tolerance:       cfg.Resolver.Tolerance,
		EarlyExitScore:  cfg.Resolver.EarlyExitScore,
		EarlyExitTrust:  cfg.Resolver.EarlyExitTrust,
		CacheTTL:        cfg.Cache.TTL,
		AICacheTTL:      cfg.Cache.AITTL,
		FallbackTimeout: cfg.AI.Timeout,
	}
}

// Providers builds one entry per enabled source, plus the local dataset when configured
func Providers(ctx context.Context, cfg *config.Config) ([]usecase.ProviderEntry, error) {
	p := cfg.Providers
	var entries []usecase.ProviderEntry
	add := func(pc config.ProviderConfig, provider domain.Provider) {
		entries = append(entries, usecase.ProviderEntry{Provider: provider, Timeout: pc.Timeout})
	}

	if p.USDA.Enabled {
		add(p.USDA, usda.New(usda.Config{
			APIKey:     p.USDA.APIKey,
			BaseURL:    p.USDA.BaseURL,
			Timeout:    p.USDA.Timeout,
			RetryMax:   p.USDA.Retries,
			RatePerSec: p.USDA.RatePerSec,
			Burst:      p.USDA.Burst,
		}))
	}
	if p.Nutritionix.Enabled {
		add(p.Nutritionix, nutritionix.New(nutritionix.Config{
			AppID:      p.Nutritionix.AppID,
			APIKey:     p.Nutritionix.APIKey,
			BaseURL:    p.Nutritionix.BaseURL,
			Timeout:    p.Nutritionix.Timeout,
			RetryMax:   p.Nutritionix.Retries,
			RatePerSec: p.Nutritionix.RatePerSec,
			Burst:      p.Nutritionix.Burst,
		}))
	}
	if p.Edamam.Enabled {
		add(p.Edamam, edamam.New(edamam.Config{
			AppID:      p.Edamam.AppID,
			APIKey:     p.Edamam.APIKey,
			BaseURL:    p.Edamam.BaseURL,
			Timeout:    p.Edamam.Timeout,
			RetryMax:   p.Edamam.Retries,
			RatePerSec: p.Edamam.RatePerSec,
			Burst:      p.Edamam.Burst,
		}))
	}
	if p.OpenFoodFacts.Enabled {
		add(p.OpenFoodFacts, openfoodfacts.New(openfoodfacts.Config{
			BaseURL:    p.OpenFoodFacts.BaseURL,
			Timeout:    p.OpenFoodFacts.Timeout,
			RetryMax:   p.OpenFoodFacts.Retries,
			RatePerSec: p.OpenFoodFacts.RatePerSec,
			Burst:      p.OpenFoodFacts.Burst,
		}))
	}
	if p.UPCItemDB.Enabled {
		add(p.UPCItemDB, upcitemdb.New(upcitemdb.Config{
			APIKey:     p.UPCItemDB.APIKey,
			BaseURL:    p.UPCItemDB.BaseURL,
			Timeout:    p.UPCItemDB.Timeout,
			RetryMax:   p.UPCItemDB.Retries,
			RatePerSec: p.UPCItemDB.RatePerSec,
			Burst:      p.UPCItemDB.Burst,
		}))
	}
	if p.UPCDatabase.Enabled {
		add(p.UPCDatabase, upcdatabase.New(upcdatabase.Config{
			APIKey:     p.UPCDatabase.APIKey,
			BaseURL:    p.UPCDatabase.BaseURL,
			Timeout:    p.UPCDatabase.Timeout,
			RetryMax:   p.UPCDatabase.Retries,
			RatePerSec: p.UPCDatabase.RatePerSec,
			Burst:      p.UPCDatabase.Burst,
		}))
	}

	local, err := localDataset(ctx, cfg.Dataset)
	if err != nil {
		return nil, err
	}
	if local != nil {
		// the local table answers in memory, so it gets no timeout of its own
		entries = append(entries, usecase.ProviderEntry{Provider: local})
	}

	if len(entries) == 0 {
		return nil, errors.New("no providers enabled")
	}
	return entries, nil
}

// localDataset loads the bundled food table. It returns nil when none is configured.
func localDataset(ctx context.Context, cfg config.DatasetConfig) (*dataset.Provider, error) {
	var src dataset.Source
	switch {
	case cfg.Path != "":
		src = dataset.NewFileSource(cfg.Path)
	case cfg.S3Bucket != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		src = dataset.NewS3Source(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Key)
	default:
		return nil, nil
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	table, err := dataset.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return dataset.NewProvider(table), nil
}
