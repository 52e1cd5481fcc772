package segment

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/mempool"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// Runner executes a model on one NCHW tensor. *onnx.Session implements it.
type Runner interface {
	Run(t onnx.Tensor) (onnx.Tensor, error)
	Close() error
}

// ModelBackend runs a salient-object or matting model and turns its
// saliency map into a mask.
type ModelBackend struct {
	info   models.ModelInfo
	runner Runner
}

// NewModelBackend wraps a runner for the catalog model info.
func NewModelBackend(info models.ModelInfo, runner Runner) *ModelBackend {
	return &ModelBackend{info: info, runner: runner}
}

// Name returns the catalog ID.
func (b *ModelBackend) Name() string { return b.info.ID }

// Info returns the catalog entry.
func (b *ModelBackend) Info() models.ModelInfo { return b.info }

// Close releases the runner.
func (b *ModelBackend) Close() error { return b.runner.Close() }

// Segment resizes img to the model input, runs it, rescales the output to
// [0,1] and resamples it back to the source size.
func (b *ModelBackend) Segment(ctx context.Context, img image.Image) (*Result, error) {
	if err := checkInput(img); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := common.NewStageTimer()
	bounds := img.Bounds()

	size := b.info.InputSize
	resized := imaging.Resize(img, size, size, imaging.Lanczos)
	data, w, h, err := utils.NormalizeImagePooled(resized, b.info.Mean, b.info.Std)
	if err != nil {
		return nil, err
	}
	defer mempool.PutFloat32(data)

	input, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, err
	}
	out, err := b.runner.Run(input)
	if err != nil {
		return nil, fmt.Errorf("%s inference: %w", b.info.ID, err)
	}

	m, err := saliencyToMask(out, b.info.Sigmoid)
	if err != nil {
		return nil, fmt.Errorf("%s output: %w", b.info.ID, err)
	}
	m = m.Resize(bounds.Dx(), bounds.Dy())

	slog.Debug("model segmentation done", "backend", b.info.ID, "duration", timer.Total())
	return &Result{Mask: m, Backend: b.info.ID, Weight: b.info.Weight}, nil
}

// saliencyToMask min-max normalizes the first output plane. A flat output
// becomes an empty mask.
func saliencyToMask(t onnx.Tensor, sigmoid bool) (*mask.Mask, error) {
	h, w, err := t.Plane()
	if err != nil {
		return nil, err
	}
	m := mask.New(w, h)
	copy(m.Pix, t.Data[:w*h])
	if sigmoid {
		for i, v := range m.Pix {
			m.Pix[i] = float32(1 / (1 + math.Exp(-float64(v))))
		}
	}
	lo, hi := onnx.MinMax(m.Pix)
	if hi-lo < 1e-6 {
		return mask.New(w, h), nil
	}
	for i, v := range m.Pix {
		m.Pix[i] = (v - lo) / (hi - lo)
	}
	return m.Clip(), nil
}

// LoadConfig selects which models to open.
type LoadConfig struct {
	ModelsDir  string
	Learned    []string // catalog IDs, in ranked order
	Matting    bool
	NumThreads int
	GPU        onnx.GPUConfig
}

// Opener opens a model file. Tests substitute it to avoid the native runtime.
type Opener func(path string, cfg LoadConfig) (Runner, error)

// OpenSession is the default Opener.
func OpenSession(path string, cfg LoadConfig) (Runner, error) {
	return onnx.NewSession(onnx.SessionConfig{ModelPath: path, NumThreads: cfg.NumThreads, GPU: cfg.GPU})
}

// LoadModels opens every requested model and records each outcome in reg.
// A model that fails to load is marked unavailable; loading never aborts.
func LoadModels(reg *Registry, cfg LoadConfig, open Opener) {
	if open == nil {
		open = OpenSession
	}
	ids := append([]string(nil), cfg.Learned...)
	if cfg.Matting {
		ids = append(ids, models.IDMatting)
	}
	for _, id := range ids {
		info, ok := models.Lookup(id)
		if !ok {
			slog.Warn("unknown model id in configuration", "backend", id)
			continue
		}
		kind := KindLearned
		if info.Type == models.TypeMatting {
			kind = KindMatting
		}
		path := models.ResolveModelPath(cfg.ModelsDir, info.Type, info.Filename)
		if err := models.ValidateModelExists(path); err != nil {
			reg.MarkUnavailable(id, kind, info.Weight, path, err)
			slog.Info("model not installed", "backend", id, "path", path)
			continue
		}
		runner, err := open(path, cfg)
		if err != nil {
			reg.MarkUnavailable(id, kind, info.Weight, path, err)
			slog.Warn("model failed to load", "backend", id, "path", path, "error", err)
			continue
		}
		reg.Register(NewModelBackend(info, runner), kind, info.Weight, path)
		slog.Info("model loaded", "backend", id, "path", path)
	}
}
