package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NUTRIRESOLVE_SERVER_PORT
const EnvPrefix = "NUTRIRESOLVE"

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	AI        AIConfig        `mapstructure:"ai"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	// AllowedOrigins accepts exact origins and prefix wildcards ("chrome-extension://*").
	// Wildcard matches get CORS headers without Allow-Credentials; "*" suits development.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig controls logrus output
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"; empty picks by environment
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type       string        `mapstructure:"type"` // only "memory"
	TTL        time.Duration `mapstructure:"ttl"`
	AITTL      time.Duration `mapstructure:"ai_ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// ResolverConfig tunes the provider race
type ResolverConfig struct {
	Deadline        time.Duration `mapstructure:"deadline"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	Tolerance       float64       `mapstructure:"tolerance"`
	EarlyExitScore  float64       `mapstructure:"early_exit_score"`
	EarlyExitTrust  float64       `mapstructure:"early_exit_trust"`
}

// ProviderConfig is shared by every external source
type ProviderConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	AppID      string        `mapstructure:"app_id"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	RatePerSec float64       `mapstructure:"rate_per_sec"` // 0 = provider default
	Burst      int           `mapstructure:"burst"`
}

// ProvidersConfig lists the external sources
type ProvidersConfig struct {
	USDA          ProviderConfig `mapstructure:"usda"`
	Nutritionix   ProviderConfig `mapstructure:"nutritionix"`
	Edamam        ProviderConfig `mapstructure:"edamam"`
	OpenFoodFacts ProviderConfig `mapstructure:"openfoodfacts"`
	UPCItemDB     ProviderConfig `mapstructure:"upcitemdb"`
	UPCDatabase   ProviderConfig `mapstructure:"upcdatabase"`
}

// DatasetConfig locates the bundled food table: a local file or an S3 object
type DatasetConfig struct {
	Path     string        `mapstructure:"path"`
	S3Bucket string        `mapstructure:"s3_bucket"`
	S3Key    string        `mapstructure:"s3_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AIConfig configures the completion endpoint used by the fallback
type AIConfig struct {
	Provider    string        `mapstructure:"provider"` // "", "none", "openai", "ollama", "bedrock"
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether an AI provider is configured
func (c AIConfig) Enabled() bool {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	return p != "" && p != "none"
}

// TelemetryConfig configures OTLP export
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
	ServiceName string `mapstructure:"service_name"`
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	return LoadFrom(viper.New(), "")
}

// LoadFrom loads configuration into v, which may already carry bound CLI flags.
// configFile overrides the search path when non-empty.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/nutriresolve/")
	}

	// Environment variable settings
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default,
// even an empty one, for AutomaticEnv to reach it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.ai_ttl", "6h")
	v.SetDefault("cache.max_entries", 10000)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	v.SetDefault("resolver.deadline", "8s")
	v.SetDefault("resolver.provider_timeout", "5s")
	v.SetDefault("resolver.tolerance", 0.15)
	v.SetDefault("resolver.early_exit_score", 0.8)
	v.SetDefault("resolver.early_exit_trust", 0.8)

	providerDefaults(v, "usda", true, "https://api.nal.usda.gov/fdc", "5s")
	providerDefaults(v, "nutritionix", false, "https://trackapi.nutritionix.com", "4s")
	providerDefaults(v, "edamam", false, "https://api.edamam.com", "4s")
	providerDefaults(v, "openfoodfacts", true, "https://world.openfoodfacts.org", "4s")
	providerDefaults(v, "upcitemdb", true, "https://api.upcitemdb.com", "3s")
	providerDefaults(v, "upcdatabase", false, "https://api.upcdatabase.org", "3s")

	v.SetDefault("dataset.path", "")
	v.SetDefault("dataset.s3_bucket", "")
	v.SetDefault("dataset.s3_key", "")
	v.SetDefault("dataset.timeout", "30s")

	v.SetDefault("ai.provider", "none")
	v.SetDefault("ai.endpoint", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.max_tokens", 512)
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("ai.timeout", "15s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", "nutriresolve")
}

func providerDefaults(v *viper.Viper, name string, enabled bool, baseURL, timeout string) {
	prefix := "providers." + name + "."
	v.SetDefault(prefix+"enabled", enabled)
	v.SetDefault(prefix+"base_url", baseURL)
	v.SetDefault(prefix+"api_key", "")
	v.SetDefault(prefix+"app_id", "")
	v.SetDefault(prefix+"timeout", timeout)
	v.SetDefault(prefix+"retries", 1)
	v.SetDefault(prefix+"rate_per_sec", 0.0)
	v.SetDefault(prefix+"burst", 0)
}

// validate validates the configuration
func validate(config *Config) error {
	p := config.Providers
	if p.USDA.Enabled && p.USDA.APIKey == "" {
		return fmt.Errorf("USDA API key is required (set %s_PROVIDERS_USDA_API_KEY)", EnvPrefix)
	}
	if p.Nutritionix.Enabled && (p.Nutritionix.AppID == "" || p.Nutritionix.APIKey == "") {
		return fmt.Errorf("nutritionix requires app_id and api_key")
	}
	if p.Edamam.Enabled && (p.Edamam.AppID == "" || p.Edamam.APIKey == "") {
		return fmt.Errorf("edamam requires app_id and api_key")
	}
	if p.UPCDatabase.Enabled && p.UPCDatabase.APIKey == "" {
		return fmt.Errorf("upcdatabase requires api_key")
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}
	if config.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache max_entries must not be negative")
	}

	if t := config.Resolver.Tolerance; t <= 0 || t >= 1 {
		return fmt.Errorf("resolver tolerance must be in (0, 1), got: %g", t)
	}

	if config.Dataset.Path != "" && config.Dataset.S3Bucket != "" {
		return fmt.Errorf("dataset path and s3_bucket are mutually exclusive")
	}
	if (config.Dataset.S3Bucket == "") != (config.Dataset.S3Key == "") {
		return fmt.Errorf("dataset s3_bucket and s3_key must be set together")
	}

	switch strings.ToLower(config.AI.Provider) {
	case "", "none", "ollama", "bedrock":
	case "openai":
		if config.AI.APIKey == "" {
			return fmt.Errorf("AI API key is required for provider openai (set %s_AI_API_KEY)", EnvPrefix)
		}
	default:
		return fmt.Errorf("ai provider must be one of none, openai, ollama, bedrock; got: %s", config.AI.Provider)
	}

	switch strings.ToLower(config.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}

// loadEnvFile reads KEY=VALUE lines from ./.env into the process environment.
// A missing file is fine; variables already set are never overridden.
func loadEnvFile() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
