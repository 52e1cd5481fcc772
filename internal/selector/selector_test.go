package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/analysis"
)

var (
	complexImage = analysis.ComplexityMetrics{EdgeDensity: 0.3, IsComplex: true}
	simpleImage  = analysis.ComplexityMetrics{EdgeDensity: 0.01}
	allLearned   = []string{"u2net", "isnet", "silueta"}
)

func strategies(plan []Step) []Strategy {
	out := make([]Strategy, len(plan))
	for i, s := range plan {
		out[i] = s.Strategy
	}
	return out
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		metrics analysis.ComplexityMetrics
		quality Quality
		avail   Availability
		want    []Strategy
	}{
		{
			name: "ultra complex with matting", metrics: complexImage, quality: QualityUltra,
			avail: Availability{Learned: allLearned, Matting: []string{"birefnet"}},
			want:  []Strategy{StrategyMatting, StrategyEnsemble, StrategySingle, StrategyTraditional},
		},
		{
			name: "ultra complex without matting", metrics: complexImage, quality: QualityUltra,
			avail: Availability{Learned: allLearned},
			want:  []Strategy{StrategyEnsemble, StrategySingle, StrategyTraditional},
		},
		{
			name: "ultra complex single learned", metrics: complexImage, quality: QualityUltra,
			avail: Availability{Learned: []string{"isnet"}},
			want:  []Strategy{StrategySingle, StrategyTraditional},
		},
		{
			name: "ultra simple", metrics: simpleImage, quality: QualityUltra,
			avail: Availability{Learned: allLearned, Matting: []string{"birefnet"}},
			want:  []Strategy{StrategySingle, StrategyTraditional},
		},
		{
			name: "high", metrics: complexImage, quality: QualityHigh,
			avail: Availability{Learned: allLearned, Matting: []string{"birefnet"}},
			want:  []Strategy{StrategySingle, StrategyTraditional},
		},
		{
			name: "standard ignores models", metrics: complexImage, quality: QualityStandard,
			avail: Availability{Learned: allLearned},
			want:  []Strategy{StrategyTraditional},
		},
		{
			name: "ultra complex nothing installed", metrics: complexImage, quality: QualityUltra,
			want: []Strategy{StrategyTraditional},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, strategies(Select(tt.metrics, tt.quality, tt.avail)))
		})
	}
}

func TestSelectKeepsRankedOrder(t *testing.T) {
	plan := Select(complexImage, QualityUltra, Availability{Learned: allLearned})
	require.Len(t, plan, 3)
	assert.Equal(t, allLearned, plan[0].Backends)
	assert.Equal(t, allLearned, plan[1].Backends)
}

func TestSelectDoesNotAliasInput(t *testing.T) {
	learned := []string{"u2net", "isnet"}
	plan := Select(simpleImage, QualityHigh, Availability{Learned: learned})
	plan[0].Backends[0] = "changed"
	assert.Equal(t, "u2net", learned[0])
}

func TestSelectDeterministic(t *testing.T) {
	avail := Availability{Learned: allLearned, Matting: []string{"birefnet"}}
	assert.Equal(t, Select(complexImage, QualityUltra, avail), Select(complexImage, QualityUltra, avail))
}

func TestParseQuality(t *testing.T) {
	for in, want := range map[string]Quality{
		"": QualityStandard, "standard": QualityStandard, "HIGH": QualityHigh,
		"ultra": QualityUltra, "ultra_high": QualityUltra,
	} {
		got, err := ParseQuality(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseQuality("max")
	assert.Error(t, err)
	assert.Equal(t, "ultra_high", QualityUltra.String())
}
