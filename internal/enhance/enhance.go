package enhance

import (
	"image"
	"log/slog"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

// Options configure Run.
type Options struct {
	// Details enables the four detail stages; hair and feathering are separate.
	Details bool
	Level   Level
	// EdgeRefinement multiplies the level's edge weight.
	EdgeRefinement float64
	HairRefinement bool
	// Feathering is the final Gaussian radius; 0 disables it.
	Feathering float64
}

// DefaultOptions enables detail enhancement at high with hair refinement.
func DefaultOptions() Options {
	return Options{Details: true, Level: LevelHigh, EdgeRefinement: 1, HairRefinement: true}
}

type stage struct {
	name string
	run  func(m, gray *mask.Mask) (*mask.Mask, error)
}

func (o Options) stages() []stage {
	p := o.Level.Params()
	var out []stage
	if o.Details {
		out = append(out,
			stage{"edge_guided_smoothing", func(m, g *mask.Mask) (*mask.Mask, error) {
				return EdgeGuidedSmooth(m, g, p.BlurRadius)
			}},
			stage{"unsharp_mask", func(m, _ *mask.Mask) (*mask.Mask, error) {
				return Unsharp(m, p.UnsharpStrength), nil
			}},
			stage{"edge_reinforcement", func(m, g *mask.Mask) (*mask.Mask, error) {
				return ReinforceEdges(m, g, p.EdgeWeight*max(0, o.EdgeRefinement))
			}},
			stage{"anti_aliasing", func(m, _ *mask.Mask) (*mask.Mask, error) {
				return AntiAlias(m), nil
			}},
		)
	}
	if o.HairRefinement {
		out = append(out, stage{"hair_refinement", RefineHair})
	}
	if o.Feathering > 0 {
		out = append(out, stage{"feathering", func(m, _ *mask.Mask) (*mask.Mask, error) {
			return Feather(m, o.Feathering), nil
		}})
	}
	return out
}

// Run applies the enabled stages to m using src as the guidance image and
// returns a new mask. A stage that meets an empty or malformed mask, or
// fails, is skipped with a warning and the previous mask passes through.
func Run(m *mask.Mask, src image.Image, opts Options) *mask.Mask {
	if m == nil {
		return nil
	}
	stages := opts.stages()
	if len(stages) == 0 {
		return m.Clone()
	}

	var gray *mask.Mask
	if src != nil {
		gray = mask.Grayscale(src)
	}
	cur := m
	for _, st := range stages {
		cur = apply(st, cur, gray)
	}
	if cur == m {
		return m.Clone()
	}
	return cur
}

func apply(st stage, m, gray *mask.Mask) *mask.Mask {
	if err := m.Check(); err != nil {
		slog.Warn("enhancement stage skipped", "stage", st.name, "error", err)
		return m
	}
	if m.IsZero() {
		slog.Debug("enhancement stage skipped on empty mask", "stage", st.name)
		return m
	}
	if gray == nil || !gray.SameSize(m) {
		slog.Warn("enhancement stage skipped", "stage", st.name, "error", mask.ErrSizeMismatch)
		return m
	}
	out, err := st.run(m, gray)
	if err != nil || out == nil {
		slog.Warn("enhancement stage failed", "stage", st.name, "error", err)
		return m
	}
	return out
}
