package usecase

import (
	"math"
	"sort"

	"github.com/macrolens/nutriresolve/internal/domain"
)

const (
	// DefaultTolerance is the relative calorie difference still counted as agreement
	DefaultTolerance = 0.15

	consensusConfidence = 0.95
	bestSingleCap       = 0.9

	bucketSizeWeight     = 0.6
	bucketAccuracyWeight = 0.4
)

// Decision is the consensus resolver's pick
type Decision struct {
	Chosen     *domain.ScoredCandidate
	Origin     domain.Origin
	Confidence float64
	Agreeing   []string
}

type bucket struct {
	representative float64
	members        []domain.ScoredCandidate
}

func (b *bucket) score() float64 {
	sum := 0.0
	for _, m := range b.members {
		sum += m.AccuracyScore
	}
	mean := sum / float64(len(b.members))
	return float64(len(b.members))*bucketSizeWeight + mean*bucketAccuracyWeight
}

// Decide groups validated candidates by calorie agreement. A bucket of two or
// more yields a consensus pick; otherwise the best single candidate by combined
// score wins. The outcome depends only on the set of candidates, not their order.
func Decide(candidates []domain.ScoredCandidate, tolerance float64) Decision {
	if len(candidates) == 0 {
		return Decision{Origin: domain.OriginUnresolved}
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	sorted := make([]domain.ScoredCandidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		return candidateLess(&sorted[i].Candidate, &sorted[j].Candidate)
	})

	buckets := groupByCalories(sorted, tolerance)

	best := buckets[0]
	for _, b := range buckets[1:] {
		if b.score() > best.score() {
			best = b
		}
	}

	if len(best.members) >= 2 {
		chosen := pickBest(best.members)
		agreeing := make([]string, 0, len(best.members))
		for _, m := range best.members {
			agreeing = append(agreeing, m.Candidate.SourceID)
		}
		return Decision{
			Chosen:     chosen,
			Origin:     domain.OriginConsensus,
			Confidence: consensusConfidence,
			Agreeing:   agreeing,
		}
	}

	chosen := pickBest(sorted)
	return Decision{
		Chosen:     chosen,
		Origin:     domain.OriginBestSingle,
		Confidence: math.Min(chosen.CombinedScore, bestSingleCap),
		Agreeing:   []string{chosen.Candidate.SourceID},
	}
}

// groupByCalories attaches each candidate to the first bucket whose representative
// is within tolerance, else opens a new one keyed by its own calories
func groupByCalories(sorted []domain.ScoredCandidate, tolerance float64) []*bucket {
	var buckets []*bucket
	for _, sc := range sorted {
		cal := sc.Candidate.Calories
		var home *bucket
		for _, b := range buckets {
			if math.Abs(cal-b.representative) <= tolerance*b.representative {
				home = b
				break
			}
		}
		if home == nil {
			home = &bucket{representative: cal}
			buckets = append(buckets, home)
		}
		home.members = append(home.members, sc)
	}
	return buckets
}

// pickBest returns the highest combined score; ties go to the stronger identity
// match, then to the earlier candidate in sorted order
func pickBest(members []domain.ScoredCandidate) *domain.ScoredCandidate {
	best := members[0]
	for _, m := range members[1:] {
		switch {
		case m.CombinedScore > best.CombinedScore:
			best = m
		case m.CombinedScore == best.CombinedScore && m.IdentityMatch > best.IdentityMatch:
			best = m
		}
	}
	return &best
}

func candidateLess(a, b *domain.Candidate) bool {
	if a.SourceID != b.SourceID {
		return a.SourceID < b.SourceID
	}
	if a.ProductName != b.ProductName {
		return a.ProductName < b.ProductName
	}
	if a.Calories != b.Calories {
		return a.Calories < b.Calories
	}
	if a.Brand != b.Brand {
		return a.Brand < b.Brand
	}
	if a.ProteinG != b.ProteinG {
		return a.ProteinG < b.ProteinG
	}
	if a.CarbsG != b.CarbsG {
		return a.CarbsG < b.CarbsG
	}
	return a.FatG < b.FatG
}
