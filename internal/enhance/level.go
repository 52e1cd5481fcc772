// Package enhance refines a final alpha mask: edge-guided smoothing, unsharp
// masking, edge reinforcement, anti-aliasing, hair/fur refinement and
// feathering, in that order.
package enhance

import (
	"fmt"
	"strings"
)

// Level selects a fixed parameter set.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelUltra
)

// Params are the per-level stage parameters.
type Params struct {
	BlurRadius      float64 `json:"blur_radius"`
	UnsharpStrength float64 `json:"unsharp_strength"`
	EdgeWeight      float64 `json:"edge_weight"`
}

var levels = [...]Params{
	LevelLow:    {BlurRadius: 1.0, UnsharpStrength: 0.3, EdgeWeight: 0.2},
	LevelMedium: {BlurRadius: 0.8, UnsharpStrength: 0.5, EdgeWeight: 0.4},
	LevelHigh:   {BlurRadius: 0.6, UnsharpStrength: 0.8, EdgeWeight: 0.6},
	LevelUltra:  {BlurRadius: 0.4, UnsharpStrength: 1.2, EdgeWeight: 0.8},
}

// Params returns the table entry; unknown levels use high.
func (l Level) Params() Params {
	if l < LevelLow || l > LevelUltra {
		return levels[LevelHigh]
	}
	return levels[l]
}

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelUltra:
		return "ultra"
	default:
		return "high"
	}
}

// ParseLevel parses low, medium, high or ultra; empty means high.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "", "high":
		return LevelHigh, nil
	case "ultra":
		return LevelUltra, nil
	default:
		return LevelHigh, fmt.Errorf("unknown enhancement level %q", s)
	}
}
