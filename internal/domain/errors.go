package domain

import "errors"

var (
	// ErrInvalidQuery is returned when a query normalizes to an empty value
	ErrInvalidQuery = errors.New("invalid query")

	// ErrProviderUnavailable covers transport errors, timeouts and non-2xx responses
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderMalformed is returned when a provider body cannot be parsed
	ErrProviderMalformed = errors.New("provider response malformed")

	// ErrProductNotFound is returned when a provider answers but knows nothing about the product
	ErrProductNotFound = errors.New("product not found")

	// ErrCandidateImplausible is returned when a candidate fails validation
	ErrCandidateImplausible = errors.New("candidate implausible")

	// ErrNoCandidates is returned when no candidate survived validation
	ErrNoCandidates = errors.New("no plausible candidates")

	// ErrAIFallbackRefused is returned when the model declined to answer
	ErrAIFallbackRefused = errors.New("ai fallback refused")

	// ErrAIFallbackUnparseable is returned when no usable field could be extracted
	ErrAIFallbackUnparseable = errors.New("ai fallback response unparseable")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheCorrupt is returned when a cache entry cannot be decoded
	ErrCacheCorrupt = errors.New("cache entry corrupt")
)
