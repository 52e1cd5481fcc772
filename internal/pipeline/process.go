package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cutout/internal/analysis"
	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/composite"
	"github.com/MeKo-Tech/cutout/internal/enhance"
	"github.com/MeKo-Tech/cutout/internal/fusion"
	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/segment"
	"github.com/MeKo-Tech/cutout/internal/selector"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/MeKo-Tech/cutout/internal/validate"
)

// ErrEmptyImage is returned for nil or zero-sized input.
var ErrEmptyImage = errors.New("empty input image")

// Progress milestones and their stage labels.
const (
	StageAnalyzing   = "analyzing"
	StageSegmenting  = "segmenting"
	StageEnhancing   = "enhancing"
	StageCompositing = "compositing"
	StageDone        = "done"
)

// ProgressFunc receives advisory per-image progress at 10, 30, 50, 85 and
// 100 percent.
type ProgressFunc func(percent int, stage string)

// StrategyLastResort names masks produced by the fallback threshold.
const StrategyLastResort = "last_resort"

// Attempt records one backend run in the fallback chain.
type Attempt struct {
	Strategy string  `json:"strategy"`
	Backend  string  `json:"backend"`
	Score    float64 `json:"score,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Result is the outcome of processing one image. Image always has the input
// dimensions.
type Result struct {
	Image    *image.RGBA                `json:"-"`
	Mask     *mask.Mask                 `json:"-"`
	Width    int                        `json:"width"`
	Height   int                        `json:"height"`
	Backend  string                     `json:"backend"`
	Strategy string                     `json:"strategy"`
	Metrics  analysis.ComplexityMetrics `json:"complexity"`
	Quality  analysis.QualityReport     `json:"quality"`
	Degraded bool                       `json:"degraded"`
	Attempts []Attempt                  `json:"attempts,omitempty"`
	Timings  map[string]float64         `json:"timings_ms"`
	Duration time.Duration              `json:"duration_ns"`
}

// ForegroundRatio is the share of strongly opaque pixels in the final mask.
func (r *Result) ForegroundRatio() float64 {
	if r == nil || r.Mask == nil {
		return 0
	}
	return r.Mask.ForegroundRatio()
}

// ProcessImage runs img through the pipeline with the default settings.
func (p *Pipeline) ProcessImage(img image.Image) (*Result, error) {
	return p.Process(context.Background(), img, p.cfg.Defaults, nil)
}

// Process removes or replaces the background of img. Backend and validation
// failures are absorbed by the fallback chain; when every backend fails the
// result is the original image as RGBA with Degraded set. An error is only
// returned for empty input, invalid settings or a cancelled context.
func (p *Pipeline) Process(ctx context.Context, img image.Image, s Settings, progress ProgressFunc) (*Result, error) {
	if p == nil || p.Registry == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil || img.Bounds().Empty() {
		p.Stats.Record(nil, ErrEmptyImage)
		return nil, ErrEmptyImage
	}
	r, err := s.resolve()
	if err != nil {
		p.Stats.Record(nil, err)
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(int, string) {}
	}

	start := time.Now()
	timer := common.NewStageTimer()
	src := utils.ToRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	res := &Result{Width: w, Height: h}

	progress(10, StageAnalyzing)
	work, scaled, err := utils.SmartResize(src, s.MaxDimension)
	if err != nil {
		slog.Warn("processing resize failed, using full size", "error", err)
		work, scaled = src, false
	}
	res.Quality = analysis.AssessQuality(work)
	segInput := analysis.Enhance(work, res.Quality)
	res.Metrics = analysis.AnalyzeComplexity(work)
	timer.Mark("analyze")

	progress(30, StageSegmenting)
	m, out := p.segment(ctx, segInput, res.Metrics, r.quality)
	res.Attempts = out.attempts
	timer.Mark("segment")

	if m == nil {
		slog.Warn("all segmentation backends failed, returning original", "attempts", len(out.attempts))
		res.Image = src
		res.Degraded = true
		return p.finish(res, timer, start, progress), nil
	}
	res.Backend, res.Strategy, res.Degraded = out.backend, out.strategy, out.degraded

	if scaled {
		m = m.Resize(w, h).Clip()
	}
	m = QualityCheck(m)
	if s.PreserveHoles {
		m = PreserveHoles(m, mask.Grayscale(src))
	}
	timer.Mark("refine")

	progress(50, StageEnhancing)
	m = enhance.Run(m, src, r.enhance)
	timer.Mark("enhance")

	progress(85, StageCompositing)
	cut, err := composite.Cutout(src, m, s.ForceBinaryAlpha)
	if err != nil {
		slog.Warn("cutout failed, returning original", "error", err)
		res.Image, res.Degraded = src, true
		return p.finish(res, timer, start, progress), nil
	}
	final, err := composite.Compose(cut, r.background)
	if err != nil {
		slog.Warn("background composition failed, keeping transparency", "error", err)
		final = cut
	}
	timer.Mark("composite")

	if s.ForceBinaryAlpha {
		m = m.Threshold(mask.StrongForeground)
	}
	res.Image, res.Mask = final, m
	return p.finish(res, timer, start, progress), nil
}

func (p *Pipeline) finish(res *Result, timer *common.StageTimer, start time.Time, progress ProgressFunc) *Result {
	res.Timings = timer.Millis()
	res.Duration = time.Since(start)
	p.Stats.Record(res, nil)
	progress(100, StageDone)
	slog.Debug("image processed",
		"backend", res.Backend,
		"strategy", res.Strategy,
		"degraded", res.Degraded,
		"duration", res.Duration.Round(time.Millisecond))
	return res
}

type outcome struct {
	backend  string
	strategy string
	degraded bool
	attempts []Attempt
}

// segment walks the selector's fallback chain and returns the first valid
// mask, at the size of img. The threshold fallback runs when every step
// fails; its mask is used even when it does not validate.
func (p *Pipeline) segment(ctx context.Context, img image.Image, metrics analysis.ComplexityMetrics, q selector.Quality) (*mask.Mask, outcome) {
	var out outcome
	avail := selector.Availability{
		Learned: p.Registry.Available(segment.KindLearned),
		Matting: p.Registry.Available(segment.KindMatting),
	}
	plan := selector.Select(metrics, q, avail)

	for _, step := range plan {
		if ctx.Err() != nil {
			break
		}
		var (
			m       *mask.Mask
			backend string
		)
		switch step.Strategy {
		case selector.StrategyMatting, selector.StrategySingle:
			m, backend = p.firstValid(ctx, img, step, &out)
		case selector.StrategyEnsemble:
			m, backend = p.ensemble(ctx, img, step, &out)
		case selector.StrategyTraditional:
			m, backend = p.bestTraditional(ctx, img, &out)
		}
		if m != nil {
			out.backend, out.strategy = backend, step.Strategy.String()
			slog.Debug("segmentation step succeeded", "strategy", out.strategy, "backend", backend)
			return m, out
		}
		slog.Info("segmentation step produced no valid mask", "strategy", step.Strategy.String())
	}

	m := p.lastResort(ctx, img, &out)
	return m, out
}

func (p *Pipeline) run(ctx context.Context, img image.Image, id string, strategy selector.Strategy, out *outcome) (*segment.Result, error) {
	att := Attempt{Strategy: strategy.String(), Backend: id}
	backend, err := p.Registry.Get(id)
	if err == nil {
		var res *segment.Result
		res, err = backend.Segment(ctx, img)
		if err == nil && res == nil {
			err = segment.ErrNoResult
		}
		if err == nil {
			bounds := img.Bounds()
			if err = validate.Mask(res.Mask, bounds.Dx(), bounds.Dy()); err == nil {
				out.attempts = append(out.attempts, att)
				return res, nil
			}
		}
	}
	att.Error = err.Error()
	out.attempts = append(out.attempts, att)
	slog.Warn("backend rejected", "backend", id, "strategy", att.Strategy, "error", err)
	return nil, err
}

func (p *Pipeline) firstValid(ctx context.Context, img image.Image, step selector.Step, out *outcome) (*mask.Mask, string) {
	for _, id := range step.Backends {
		if res, err := p.run(ctx, img, id, step.Strategy, out); err == nil {
			return res.Mask, id
		}
	}
	return nil, ""
}

func (p *Pipeline) ensemble(ctx context.Context, img image.Image, step selector.Step, out *outcome) (*mask.Mask, string) {
	var cands []fusion.Candidate
	for _, id := range step.Backends {
		res, err := p.run(ctx, img, id, step.Strategy, out)
		if err != nil {
			continue
		}
		cands = append(cands, fusion.Candidate{Backend: id, Mask: res.Mask, Weight: p.Registry.Weight(id)})
	}
	if len(cands) == 0 {
		return nil, ""
	}
	m, name, err := fusion.FuseOrBest(cands)
	if err != nil {
		slog.Warn("ensemble fusion failed", "error", err)
		return nil, ""
	}
	b := img.Bounds()
	if err := validate.Mask(m, b.Dx(), b.Dy()); err != nil {
		slog.Warn("fused mask rejected", "error", err)
		return nil, ""
	}
	return m, name
}

// bestTraditional runs every traditional backend and keeps the valid mask
// with the highest score.
func (p *Pipeline) bestTraditional(ctx context.Context, img image.Image, out *outcome) (*mask.Mask, string) {
	gray := mask.Grayscale(img)
	var (
		best      *mask.Mask
		bestID    string
		bestScore = -1.0
	)
	for _, id := range p.Registry.Available(segment.KindTraditional) {
		res, err := p.run(ctx, img, id, selector.StrategyTraditional, out)
		if err != nil {
			continue
		}
		score := validate.Score(gray, res.Mask)
		out.attempts[len(out.attempts)-1].Score = score
		slog.Debug("traditional candidate", "backend", id, "score", score)
		if score > bestScore {
			best, bestID, bestScore = res.Mask, id, score
		}
	}
	return best, bestID
}

// lastResort runs the fallback backends. A mask that fails validation is
// still used but marks the outcome degraded.
func (p *Pipeline) lastResort(ctx context.Context, img image.Image, out *outcome) *mask.Mask {
	b := img.Bounds()
	for _, id := range p.Registry.Available(segment.KindFallback) {
		att := Attempt{Strategy: StrategyLastResort, Backend: id}
		be, err := p.Registry.Get(id)
		if err != nil {
			continue
		}
		res, err := be.Segment(context.WithoutCancel(ctx), img)
		switch {
		case err != nil:
		case res == nil || res.Mask == nil:
			err = segment.ErrNoResult
		default:
			err = res.Mask.Check()
		}
		if err == nil && (res.Mask.Width != b.Dx() || res.Mask.Height != b.Dy()) {
			err = mask.ErrSizeMismatch
		}
		if err != nil {
			att.Error = err.Error()
			out.attempts = append(out.attempts, att)
			slog.Warn("fallback backend failed", "backend", id, "error", err)
			continue
		}
		out.attempts = append(out.attempts, att)
		out.backend, out.strategy = id, StrategyLastResort
		if verr := validate.Mask(res.Mask, b.Dx(), b.Dy()); verr != nil {
			slog.Warn("fallback mask is implausible, using it anyway", "backend", id, "error", verr)
			out.degraded = true
		}
		return res.Mask
	}
	return nil
}
