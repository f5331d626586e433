package usecase

import (
	"sync"

	"github.com/macrolens/nutriresolve/internal/domain"
)

// Stats is a snapshot of resolver activity since the resolver was built
type Stats struct {
	Entries     int              `json:"entries"`
	CacheHits   int64            `json:"cacheHits"`
	CacheMisses int64            `json:"cacheMisses"`
	SourceHits  map[string]int64 `json:"sourceHits"` // validated candidates per source
	SourceWins  map[string]int64 `json:"sourceWins"` // chosen candidates per source
	Origins     map[string]int64 `json:"origins"`
}

type statsCollector struct {
	mu          sync.Mutex
	cacheHits   int64
	cacheMisses int64
	sourceHits  map[string]int64
	sourceWins  map[string]int64
	origins     map[string]int64
}

func newStatsCollector() *statsCollector {
	return &statsCollector{
		sourceHits: make(map[string]int64),
		sourceWins: make(map[string]int64),
		origins:    make(map[string]int64),
	}
}

func (s *statsCollector) cacheHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
}

func (s *statsCollector) cacheMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheMisses++
}

func (s *statsCollector) sourceHit(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceHits[source]++
}

func (s *statsCollector) outcome(result *domain.ResolutionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.origins[string(result.Origin)]++
	if result.Candidate != nil {
		s.sourceWins[result.Candidate.SourceID]++
	}
}

func (s *statsCollector) snapshot(entries int) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:     entries,
		CacheHits:   s.cacheHits,
		CacheMisses: s.cacheMisses,
		SourceHits:  copyCounts(s.sourceHits),
		SourceWins:  copyCounts(s.sourceWins),
		Origins:     copyCounts(s.origins),
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
