package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/nutriresolve/internal/domain"
)

func scored(source string, calories, combined, accuracy float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{
		Candidate:        domain.Candidate{ProductName: "Granola Bar", SourceID: source, Calories: calories},
		AccuracyScore:    accuracy,
		ReliabilityScore: SourceTrust(source),
		CombinedScore:    combined,
	}
}

func permutations(in []domain.ScoredCandidate) [][]domain.ScoredCandidate {
	if len(in) <= 1 {
		return [][]domain.ScoredCandidate{append([]domain.ScoredCandidate(nil), in...)}
	}
	var out [][]domain.ScoredCandidate
	for i := range in {
		rest := make([]domain.ScoredCandidate, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]domain.ScoredCandidate{in[i]}, p...))
		}
	}
	return out
}

func TestDecide_ConsensusScenario(t *testing.T) {
	candidates := []domain.ScoredCandidate{
		scored(domain.SourceUSDA, 140, 0.90, 0.8),
		scored(domain.SourceOpenFoodFacts, 142, 0.70, 0.8),
		scored(domain.SourceEdamam, 700, 0.95, 0.9),
	}

	d := Decide(candidates, DefaultTolerance)

	require.NotNil(t, d.Chosen)
	assert.Equal(t, domain.OriginConsensus, d.Origin)
	assert.Equal(t, 0.95, d.Confidence)
	assert.Equal(t, domain.SourceUSDA, d.Chosen.Candidate.SourceID)
	assert.Equal(t, 140.0, d.Chosen.Candidate.Calories)
	assert.Equal(t, []string{domain.SourceOpenFoodFacts, domain.SourceUSDA}, d.Agreeing)
}

func TestDecide_DeterministicAcrossInputOrder(t *testing.T) {
	candidates := []domain.ScoredCandidate{
		scored(domain.SourceUSDA, 200, 0.85, 0.7),
		scored(domain.SourceNutritionix, 210, 0.85, 0.7),
		scored(domain.SourceLocal, 195, 0.75, 0.9),
		scored(domain.SourceUPCItemDB, 900, 0.40, 0.2),
	}

	first := Decide(candidates, DefaultTolerance)
	require.NotNil(t, first.Chosen)

	for _, order := range permutations(candidates) {
		d := Decide(order, DefaultTolerance)
		require.NotNil(t, d.Chosen)
		assert.Equal(t, first.Chosen.Candidate, d.Chosen.Candidate)
		assert.Equal(t, first.Agreeing, d.Agreeing)
		assert.Equal(t, first.Origin, d.Origin)
	}
}

func TestDecide_TieBreakPrefersIdentityMatch(t *testing.T) {
	a := scored(domain.SourceNutritionix, 100, 0.8, 0.5)
	b := scored(domain.SourceUSDA, 101, 0.8, 0.5)
	b.IdentityMatch = 1

	d := Decide([]domain.ScoredCandidate{a, b}, DefaultTolerance)
	require.NotNil(t, d.Chosen)
	assert.Equal(t, domain.SourceUSDA, d.Chosen.Candidate.SourceID)

	// Without an identity signal the first source in sorted order wins
	b.IdentityMatch = 0
	d = Decide([]domain.ScoredCandidate{b, a}, DefaultTolerance)
	assert.Equal(t, domain.SourceNutritionix, d.Chosen.Candidate.SourceID)
}

func TestDecide_BestSingle(t *testing.T) {
	tests := []struct {
		name           string
		candidates     []domain.ScoredCandidate
		wantSource     string
		wantConfidence float64
	}{
		{
			name: "highest combined score wins",
			candidates: []domain.ScoredCandidate{
				scored(domain.SourceOpenFoodFacts, 100, 0.55, 0.9),
				scored(domain.SourceEdamam, 300, 0.70, 0.4),
			},
			wantSource:     domain.SourceEdamam,
			wantConfidence: 0.70,
		},
		{
			name: "confidence capped below consensus",
			candidates: []domain.ScoredCandidate{
				scored(domain.SourceUSDA, 100, 0.98, 0.9),
				scored(domain.SourceEdamam, 300, 0.70, 0.4),
			},
			wantSource:     domain.SourceUSDA,
			wantConfidence: 0.9,
		},
		{
			name:           "single candidate",
			candidates:     []domain.ScoredCandidate{scored(domain.SourceLocal, 250, 0.62, 0.5)},
			wantSource:     domain.SourceLocal,
			wantConfidence: 0.62,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.candidates, DefaultTolerance)
			require.NotNil(t, d.Chosen)
			assert.Equal(t, domain.OriginBestSingle, d.Origin)
			assert.Equal(t, tt.wantSource, d.Chosen.Candidate.SourceID)
			assert.InDelta(t, tt.wantConfidence, d.Confidence, 1e-9)
			assert.Equal(t, []string{tt.wantSource}, d.Agreeing)
		})
	}
}

func TestDecide_Empty(t *testing.T) {
	d := Decide(nil, DefaultTolerance)
	assert.Nil(t, d.Chosen)
	assert.Equal(t, domain.OriginUnresolved, d.Origin)
	assert.Equal(t, 0.0, d.Confidence)
}

func TestGroupByCalories_RepresentativeIsFirstMember(t *testing.T) {
	sorted := []domain.ScoredCandidate{
		scored("a", 100, 0.5, 0.5),
		scored("b", 114, 0.5, 0.5),
		scored("c", 128, 0.5, 0.5),
	}

	buckets := groupByCalories(sorted, DefaultTolerance)

	// 128 is within 15% of 114 but not of the bucket's representative 100
	require.Len(t, buckets, 2)
	assert.Len(t, buckets[0].members, 2)
	assert.Equal(t, 100.0, buckets[0].representative)
	assert.Equal(t, 128.0, buckets[1].representative)
}

func TestDecide_BucketScoreUsesAccuracy(t *testing.T) {
	// Two pairs of equal size: the more accurate pair wins
	candidates := []domain.ScoredCandidate{
		scored("a", 100, 0.9, 0.2),
		scored("b", 102, 0.9, 0.2),
		scored("c", 300, 0.6, 0.9),
		scored("d", 305, 0.6, 0.9),
	}

	d := Decide(candidates, DefaultTolerance)
	require.NotNil(t, d.Chosen)
	assert.Equal(t, domain.OriginConsensus, d.Origin)
	assert.Equal(t, []string{"c", "d"}, d.Agreeing)
}
