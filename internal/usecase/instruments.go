package usecase

import (
	"go.opentelemetry.io/otel/metric"
)

// instruments are the resolver's metrics. Creation errors are ignored: the
// meter still hands back a usable no-op instrument.
type instruments struct {
	resolutions      metric.Int64Counter
	cacheLookups     metric.Int64Counter
	providerCalls    metric.Int64Counter
	providerDuration metric.Float64Histogram
	resolveDuration  metric.Float64Histogram
	aiFallbacks      metric.Int64Counter
}

func newInstruments(meter metric.Meter) instruments {
	var in instruments
	in.resolutions, _ = meter.Int64Counter("resolutions_total",
		metric.WithDescription("Resolutions completed, by origin"))
	in.cacheLookups, _ = meter.Int64Counter("cache_lookups_total",
		metric.WithDescription("Result cache lookups, by outcome"))
	in.providerCalls, _ = meter.Int64Counter("provider_calls_total",
		metric.WithDescription("Provider lookups, by source and outcome"))
	in.providerDuration, _ = meter.Float64Histogram("provider_duration_seconds",
		metric.WithDescription("Time for a provider lookup to settle in seconds"))
	in.resolveDuration, _ = meter.Float64Histogram("resolve_duration_seconds",
		metric.WithDescription("End-to-end resolution time for cache misses in seconds"))
	in.aiFallbacks, _ = meter.Int64Counter("ai_fallbacks_total",
		metric.WithDescription("AI fallback invocations, by outcome"))
	return in
}
