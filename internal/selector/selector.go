// Package selector maps image complexity and the requested quality to an
// ordered plan of segmentation strategies.
package selector

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/analysis"
)

// Quality is the requested output quality.
type Quality int

const (
	QualityStandard Quality = iota
	QualityHigh
	QualityUltra
)

// ParseQuality accepts standard, high, ultra and ultra_high.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return QualityStandard, nil
	case "high":
		return QualityHigh, nil
	case "ultra", "ultra_high", "ultra-high":
		return QualityUltra, nil
	default:
		return QualityStandard, fmt.Errorf("unknown quality %q", s)
	}
}

func (q Quality) String() string {
	switch q {
	case QualityHigh:
		return "high"
	case QualityUltra:
		return "ultra_high"
	default:
		return "standard"
	}
}

// Strategy is how a step turns backends into one mask.
type Strategy int

const (
	// StrategyMatting runs the matting backend alone.
	StrategyMatting Strategy = iota
	// StrategyEnsemble runs every listed backend and fuses the results.
	StrategyEnsemble
	// StrategySingle tries each backend in order; the first valid one wins.
	StrategySingle
	// StrategyTraditional scores every traditional method and keeps the best.
	StrategyTraditional
)

func (s Strategy) String() string {
	switch s {
	case StrategyMatting:
		return "matting"
	case StrategyEnsemble:
		return "ensemble"
	case StrategySingle:
		return "single"
	default:
		return "traditional"
	}
}

// Step is one link of the fallback chain.
type Step struct {
	Strategy Strategy
	Backends []string
}

// Availability lists usable backends. Learned is in quality-ranked order.
type Availability struct {
	Learned []string
	Matting []string
}

// Select returns the fallback chain for an image. Steps are tried in order
// until one yields a valid mask; the chain always ends with the traditional
// step. Select is pure.
func Select(m analysis.ComplexityMetrics, q Quality, avail Availability) []Step {
	var plan []Step
	ultraComplex := q == QualityUltra && m.IsComplex

	if ultraComplex && len(avail.Matting) > 0 {
		plan = append(plan, Step{Strategy: StrategyMatting, Backends: clone(avail.Matting[:1])})
	}
	if ultraComplex && len(avail.Learned) >= 2 {
		plan = append(plan, Step{Strategy: StrategyEnsemble, Backends: clone(avail.Learned)})
	}
	if q >= QualityHigh && len(avail.Learned) > 0 {
		plan = append(plan, Step{Strategy: StrategySingle, Backends: clone(avail.Learned)})
	}
	return append(plan, Step{Strategy: StrategyTraditional})
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
