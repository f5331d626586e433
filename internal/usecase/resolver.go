package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/macrolens/nutriresolve/internal/domain"
	"github.com/macrolens/nutriresolve/internal/infrastructure/telemetry"
	"github.com/macrolens/nutriresolve/internal/logging"
)

// ProviderEntry registers a provider with its per-call timeout
type ProviderEntry struct {
	Provider domain.Provider
	Timeout  time.Duration
}

// Config holds the race and caching parameters
type Config struct {
	Deadline        time.Duration // overall budget for the provider race
	ProviderTimeout time.Duration // used when an entry has no timeout of its own
	Tolerance       float64       // relative calorie agreement for consensus
	EarlyExitScore  float64
	EarlyExitTrust  float64
	CacheTTL        time.Duration
	AICacheTTL      time.Duration
	FallbackTimeout time.Duration
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Deadline:        8 * time.Second,
		ProviderTimeout: 5 * time.Second,
		Tolerance:       DefaultTolerance,
		EarlyExitScore:  0.8,
		EarlyExitTrust:  0.8,
		CacheTTL:        24 * time.Hour,
		AICacheTTL:      6 * time.Hour,
		FallbackTimeout: defaultFallbackTimeout,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Deadline <= 0 {
		c.Deadline = def.Deadline
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = def.ProviderTimeout
	}
	if c.Tolerance <= 0 {
		c.Tolerance = def.Tolerance
	}
	if c.EarlyExitScore <= 0 {
		c.EarlyExitScore = def.EarlyExitScore
	}
	if c.EarlyExitTrust <= 0 {
		c.EarlyExitTrust = def.EarlyExitTrust
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = def.CacheTTL
	}
	if c.AICacheTTL <= 0 {
		c.AICacheTTL = def.AICacheTTL
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = def.FallbackTimeout
	}
	return c
}

// Resolver turns a query into one nutrition answer: cache, provider race,
// validation, consensus and AI fallback
type Resolver struct {
	providers []ProviderEntry
	cache     domain.ResultCache
	fallback  *Fallback
	cfg       Config

	group  singleflight.Group
	stats  *statsCollector
	tracer trace.Tracer
	inst   instruments
}

// NewResolver wires a resolver. completer may be nil, which disables the AI fallback.
func NewResolver(providers []ProviderEntry, cache domain.ResultCache, completer domain.Completer, cfg Config) *Resolver {
	cfg = cfg.withDefaults()

	r := &Resolver{
		providers: providers,
		cache:     cache,
		cfg:       cfg,
		stats:     newStatsCollector(),
		tracer:    otel.Tracer(telemetry.InstrumentationName),
		inst:      newInstruments(otel.Meter(telemetry.InstrumentationName)),
	}
	if completer != nil {
		r.fallback = NewFallback(completer, cfg.FallbackTimeout)
	}
	return r
}

// providerResult is what a provider goroutine reports back
type providerResult struct {
	source    string
	trust     float64
	candidate *domain.Candidate
	panicked  bool
}

// nameHint is a product name seen during the race, usable for the AI fallback
type nameHint struct {
	name  string
	brand string
	trust float64
}

// raceOutcome is what the collecting phase produced
type raceOutcome struct {
	scored    []domain.ScoredCandidate
	hints     []nameHint
	earlyExit bool
	timedOut  bool
}

// Resolve returns the best available answer for q. The only error is
// domain.ErrInvalidQuery; every other failure is an unresolved result.
func (r *Resolver) Resolve(ctx context.Context, q domain.Query) (*domain.ResolutionResult, error) {
	nq, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	key := nq.Key()

	if cached, ok := r.cached(ctx, key); ok {
		return cached, nil
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		return r.resolve(ctx, q, nq), nil
	})
	return v.(*domain.ResolutionResult), nil
}

func (r *Resolver) cached(ctx context.Context, key string) (*domain.ResolutionResult, bool) {
	result, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		r.stats.cacheHit()
		r.inst.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "hit")))
		logging.Log.WithField("query", key).Debug("[RESOLVE] cache hit")
		return result, true
	case errors.Is(err, domain.ErrCacheCorrupt):
		logging.Log.WithError(err).WithField("query", key).Warn("[RESOLVE] dropping corrupt cache entry")
	case !errors.Is(err, domain.ErrCacheMiss):
		logging.Log.WithError(err).WithField("query", key).Warn("[RESOLVE] cache read failed")
	}
	r.stats.cacheMiss()
	r.inst.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "miss")))
	return nil, false
}

// resolve runs one uncached resolution. raw is the caller's query before
// normalization and is only used to phrase the AI prompt.
func (r *Resolver) resolve(ctx context.Context, raw, nq domain.Query) *domain.ResolutionResult {
	start := time.Now()
	key := nq.Key()
	id := newResolutionID()

	ctx, span := r.tracer.Start(ctx, "Resolver.Resolve", trace.WithAttributes(
		attribute.String("resolution_id", id),
		attribute.String("query.kind", string(nq.Kind)),
		attribute.String("query.key", key),
	))
	defer span.End()

	log := logging.Log.WithFields(logrus.Fields{"resolution_id": id, "query": key})
	log.Info("[RESOLVE] starting provider race")

	outcome := r.race(ctx, nq, log)
	span.AddEvent("race finished", trace.WithAttributes(
		attribute.Int("candidates", len(outcome.scored)),
		attribute.Bool("early_exit", outcome.earlyExit),
		attribute.Bool("timed_out", outcome.timedOut),
	))

	result, ttl := r.decide(ctx, raw, nq, outcome, log)
	if result.IsResolved() {
		if err := r.cache.Set(ctx, key, result, ttl); err != nil {
			log.WithError(err).Warn("[RESOLVE] failed to cache result")
		}
	} else {
		span.SetStatus(codes.Error, "unresolved")
	}

	r.stats.outcome(result)
	r.inst.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", string(result.Origin))))
	r.inst.resolveDuration.Record(ctx, time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("origin", string(result.Origin)),
		attribute.Float64("confidence", result.Confidence),
	)

	fields := logrus.Fields{
		"origin":     result.Origin,
		"confidence": result.Confidence,
		"elapsed":    time.Since(start).String(),
	}
	if result.Candidate != nil {
		fields["source"] = result.Candidate.SourceID
		fields["calories"] = result.Candidate.Calories
	}
	log.WithFields(fields).Info("[RESOLVE] done")
	return result
}

func (r *Resolver) decide(ctx context.Context, raw, nq domain.Query, outcome raceOutcome, log *logrus.Entry) (*domain.ResolutionResult, time.Duration) {
	key := nq.Key()

	decision := Decide(outcome.scored, r.cfg.Tolerance)
	if decision.Chosen != nil {
		chosen := decision.Chosen.Candidate
		return &domain.ResolutionResult{
			Query:      key,
			Candidate:  &chosen,
			Origin:     decision.Origin,
			Confidence: decision.Confidence,
			Agreeing:   decision.Agreeing,
		}, r.cfg.CacheTTL
	}

	trace.SpanFromContext(ctx).RecordError(domain.ErrNoCandidates)
	log = log.WithError(domain.ErrNoCandidates)

	name, brand := fallbackName(raw, outcome.hints)
	if r.fallback == nil || name == "" {
		log.Info("[RESOLVE] nothing usable and no fallback available")
		return domain.Unresolved(key), 0
	}
	if brand != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(brand)) {
		name = brand + " " + name
	}

	barcode := ""
	if nq.IsBarcode() {
		barcode = nq.Value
	}

	ctx, span := r.tracer.Start(ctx, "Resolver.Fallback")
	defer span.End()

	fb, err := r.fallback.Analyze(ctx, name, barcode)
	if err != nil {
		r.inst.aiFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", fallbackOutcome(err))))
		span.RecordError(err)
		log.WithError(err).Info("[RESOLVE] ai fallback gave no answer")
		return domain.Unresolved(key), 0
	}
	r.inst.aiFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", fb.Extraction)))

	return &domain.ResolutionResult{
		Query:         key,
		Candidate:     fb.Candidate,
		Origin:        domain.OriginAIFallback,
		Confidence:    fb.Confidence,
		Extraction:    fb.Extraction,
		LowConfidence: fb.LowConfidence,
	}, r.cfg.AICacheTTL
}

// race dispatches every eligible provider and collects results in arrival order
// until all settle, a trusted high-scoring candidate arrives, or the deadline passes
func (r *Resolver) race(ctx context.Context, nq domain.Query, log *logrus.Entry) raceOutcome {
	raceCtx, cancel := context.WithTimeout(ctx, r.cfg.Deadline)
	defer cancel()

	var eligible []ProviderEntry
	for _, entry := range r.providers {
		if entry.Provider.Supports(nq.Kind) {
			eligible = append(eligible, entry)
		}
	}

	// Buffered so late providers can always deliver and exit
	results := make(chan providerResult, len(eligible))
	for _, entry := range eligible {
		go r.call(raceCtx, entry, nq, results)
	}

	var outcome raceOutcome
	for pending := len(eligible); pending > 0; pending-- {
		select {
		case res := <-results:
			if r.collect(&outcome, res, nq, log) {
				outcome.earlyExit = true
				log.WithField("source", res.source).Info("[RESOLVE] early exit on trusted candidate")
				return outcome
			}
		case <-raceCtx.Done():
			outcome.timedOut = true
			log.WithField("pending", pending).Info("[RESOLVE] deadline reached, dropping stragglers")
			return outcome
		}
	}
	return outcome
}

// call runs one provider lookup and always reports exactly once
func (r *Resolver) call(ctx context.Context, entry ProviderEntry, nq domain.Query, out chan<- providerResult) {
	source := entry.Provider.Name()
	res := providerResult{source: source, trust: SourceTrust(source)}

	timeout := entry.Timeout
	if timeout <= 0 {
		timeout = r.cfg.ProviderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "Provider.Lookup", trace.WithAttributes(attribute.String("source", source)))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logging.Log.WithFields(logrus.Fields{"source": source, "panic": rec}).Error("[RESOLVE] provider panicked")
			res.candidate, res.panicked = nil, true
		}

		outcome := "miss"
		switch {
		case res.panicked:
			outcome = "panic"
			span.SetStatus(codes.Error, "panic")
		case res.candidate != nil:
			outcome = "hit"
		}
		attrs := metric.WithAttributes(attribute.String("source", source), attribute.String("outcome", outcome))
		r.inst.providerCalls.Add(ctx, 1, attrs)
		r.inst.providerDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		span.End()

		out <- res
	}()

	res.candidate = entry.Provider.Lookup(ctx, nq)
}

// collect processes one settled provider. It returns true when the candidate
// is good enough to stop the race.
func (r *Resolver) collect(outcome *raceOutcome, res providerResult, nq domain.Query, log *logrus.Entry) bool {
	if res.candidate == nil {
		return false
	}

	c := *res.candidate
	if c.SourceID == "" {
		c.SourceID = res.source
	}
	c.ReconstructCalories()

	if c.ProductName != "" {
		outcome.hints = append(outcome.hints, nameHint{name: c.ProductName, brand: c.Brand, trust: SourceTrust(c.SourceID)})
	}

	if err := Check(&c); err != nil {
		log.WithError(err).WithField("source", c.SourceID).Debug("[RESOLVE] candidate rejected")
		return false
	}

	sc := Score(&c, nq)
	outcome.scored = append(outcome.scored, sc)
	r.stats.sourceHit(c.SourceID)

	log.WithFields(logrus.Fields{
		"source":   c.SourceID,
		"calories": fmt.Sprintf("%.1f", c.Calories),
		"combined": fmt.Sprintf("%.3f", sc.CombinedScore),
	}).Debug("[RESOLVE] candidate accepted")

	return sc.CombinedScore >= r.cfg.EarlyExitScore && sc.ReliabilityScore >= r.cfg.EarlyExitTrust
}

// fallbackName picks the name to send to the AI: the most trusted name seen
// during the race, else the caller's own text for name queries
func fallbackName(raw domain.Query, hints []nameHint) (string, string) {
	if len(hints) > 0 {
		sorted := make([]nameHint, len(hints))
		copy(sorted, hints)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].trust != sorted[j].trust {
				return sorted[i].trust > sorted[j].trust
			}
			return sorted[i].name < sorted[j].name
		})
		return sorted[0].name, sorted[0].brand
	}
	if !raw.IsBarcode() {
		return strings.TrimSpace(raw.Value), ""
	}
	return "", ""
}

func fallbackOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrAIFallbackRefused):
		return "refused"
	case errors.Is(err, domain.ErrAIFallbackUnparseable):
		return "unparseable"
	default:
		return "unavailable"
	}
}

func newResolutionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Invalidate drops the cached result for q
func (r *Resolver) Invalidate(ctx context.Context, q domain.Query) error {
	nq, err := q.Normalize()
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, nq.Key())
}

// ClearAll empties the result cache
func (r *Resolver) ClearAll() {
	r.cache.Clear()
	logging.Log.Info("[RESOLVE] cache cleared")
}

// Stats reports cache size and counters
func (r *Resolver) Stats() Stats {
	return r.stats.snapshot(r.cache.Size())
}
