// Package pipeline runs background removal end to end: analysis, backend
// selection with fallback, fusion, refinement, enhancement and compositing.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/MeKo-Tech/cutout/internal/common"
	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/MeKo-Tech/cutout/internal/segment"
)

// Config holds construction-time configuration: which backends to load and
// how batch work is scheduled.
type Config struct {
	ModelsDir string
	// Learned lists learned segmentation model IDs in ranked order.
	Learned []string
	// Matting loads the high-quality matting model.
	Matting    bool
	NumThreads int
	GPU        onnx.GPUConfig

	// Defaults are used by callers that do not pass their own Settings.
	Defaults Settings

	Parallel ParallelConfig
	Resource ResourceConfig
}

// DefaultConfig loads every catalogued model from the default models dir.
func DefaultConfig() Config {
	return Config{
		ModelsDir: models.GetModelsDir(""),
		Learned:   models.SegmentationIDs(),
		Matting:   true,
		GPU:       onnx.DefaultGPUConfig(),
		Defaults:  DefaultSettings(),
		Parallel:  DefaultParallelConfig(),
		Resource:  DefaultResourceConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	opener   segment.Opener
	registry *segment.Registry
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration, e.g. one derived from a
// config file.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	b.cfg.Learned = slices.Clone(cfg.Learned)
	return b
}

// WithModelsDir sets the models directory.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	return b
}

// WithLearnedModels replaces the learned model list. An empty list disables
// learned segmentation.
func (b *Builder) WithLearnedModels(ids ...string) *Builder {
	b.cfg.Learned = slices.Clone(ids)
	return b
}

// WithMatting toggles loading the matting model.
func (b *Builder) WithMatting(enabled bool) *Builder {
	b.cfg.Matting = enabled
	return b
}

// WithThreads sets the intra-op thread count for model sessions (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.NumThreads = n
	}
	return b
}

// WithGPU enables CUDA for model sessions.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.GPU.DeviceID = deviceID
	return b
}

// WithGPUMemoryLimit sets the CUDA arena limit in bytes.
func (b *Builder) WithGPUMemoryLimit(limitBytes uint64) *Builder {
	b.cfg.GPU.GPUMemLimit = limitBytes
	return b
}

// WithDefaults sets the default per-image settings.
func (b *Builder) WithDefaults(s Settings) *Builder {
	b.cfg.Defaults = s
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithMemoryLimit sets the memory limit used to throttle batch workers.
func (b *Builder) WithMemoryLimit(bytes uint64) *Builder {
	b.cfg.Resource.MaxMemoryBytes = bytes
	b.cfg.Parallel.MemoryLimitBytes = bytes
	return b
}

// WithMaxGoroutines caps concurrently processed images.
func (b *Builder) WithMaxGoroutines(n int) *Builder {
	if n > 0 {
		b.cfg.Resource.MaxGoroutines = n
	}
	return b
}

// WithProgressCallback sets the batch progress callback.
func (b *Builder) WithProgressCallback(cb ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = cb
	return b
}

// WithOpener replaces how model files are opened. Build then skips runtime
// initialization.
func (b *Builder) WithOpener(open segment.Opener) *Builder {
	b.opener = open
	return b
}

// WithRegistry uses a prepared capability table instead of loading models.
// Traditional backends are still registered into it.
func (b *Builder) WithRegistry(reg *segment.Registry) *Builder {
	b.registry = reg
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config {
	c := b.cfg
	c.Learned = slices.Clone(b.cfg.Learned)
	return c
}

// Validate checks that the configuration looks sane. Missing model files are
// not an error: they only reduce availability.
func (b *Builder) Validate() error {
	for _, id := range b.cfg.Learned {
		info, ok := models.Lookup(id)
		if !ok {
			return fmt.Errorf("unknown model %q", id)
		}
		if info.Type == models.TypeMatting {
			return fmt.Errorf("model %q is a matting model, enable it with matting", id)
		}
	}
	if b.cfg.NumThreads < 0 {
		return errors.New("num threads must be >= 0")
	}
	if err := b.cfg.GPU.Validate(); err != nil {
		return fmt.Errorf("gpu config: %w", err)
	}
	if err := b.cfg.Defaults.Validate(); err != nil {
		return fmt.Errorf("default settings: %w", err)
	}
	return nil
}

// Pipeline owns the capability table and runs images through it. It is safe
// for concurrent use; model sessions are shared read-only.
type Pipeline struct {
	cfg             Config
	Registry        *segment.Registry
	ResourceManager *ResourceManager
	Stats           *Stats
}

// Build loads the configured backends into a capability table. A model that
// cannot be loaded is recorded as unavailable; Build does not fail for it.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	cfg := b.Config()

	reg := b.registry
	if reg == nil {
		reg = segment.NewRegistry()
		loadLearned(reg, cfg, b.opener)
	}
	segment.RegisterTraditional(reg)

	p := &Pipeline{cfg: cfg, Registry: reg, Stats: NewStats()}
	if cfg.Resource.MaxMemoryBytes > 0 || cfg.Resource.MaxGoroutines > 0 {
		p.ResourceManager = NewResourceManager(cfg.Resource)
		p.ResourceManager.Start()
	}
	slog.Info("pipeline ready",
		"learned", reg.Available(segment.KindLearned),
		"matting", reg.Available(segment.KindMatting),
		"traditional", reg.Available(segment.KindTraditional))
	return p, nil
}

func loadLearned(reg *segment.Registry, cfg Config, open segment.Opener) {
	lc := segment.LoadConfig{
		ModelsDir:  cfg.ModelsDir,
		Learned:    cfg.Learned,
		Matting:    cfg.Matting,
		NumThreads: cfg.NumThreads,
		GPU:        cfg.GPU,
	}
	if len(lc.Learned) == 0 && !lc.Matting {
		return
	}
	if open == nil {
		if err := onnx.Init(cfg.GPU.UseGPU); err != nil {
			slog.Warn("onnx runtime unavailable, learned backends disabled", "error", err)
			markAll(reg, lc, err)
			return
		}
	}
	segment.LoadModels(reg, lc, open)
}

func markAll(reg *segment.Registry, lc segment.LoadConfig, reason error) {
	ids := slices.Clone(lc.Learned)
	if lc.Matting {
		ids = append(ids, models.IDMatting)
	}
	for _, id := range ids {
		info, ok := models.Lookup(id)
		if !ok {
			continue
		}
		kind := segment.KindLearned
		if info.Type == models.TypeMatting {
			kind = segment.KindMatting
		}
		path := models.ResolveModelPath(lc.ModelsDir, info.Type, info.Filename)
		reg.MarkUnavailable(id, kind, info.Weight, path, reason)
	}
}

// Close releases all resources.
func (p *Pipeline) Close() error {
	if p.ResourceManager != nil {
		p.ResourceManager.Stop()
		p.ResourceManager = nil
	}
	if p.Registry != nil {
		err := p.Registry.Close()
		p.Registry = nil
		return err
	}
	return nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Status reports backend availability and runtime state.
type Status struct {
	ModelsDir string               `json:"models_dir"`
	Quality   string               `json:"default_quality"`
	Backends  []segment.Capability `json:"backends"`
	Stats     StatsSnapshot        `json:"stats"`
	Resources *ResourceStats       `json:"resources,omitempty"`
	Memory    common.MemoryStats   `json:"memory"`
	Parallel  map[string]any       `json:"parallel"`
}

// Status returns a snapshot of the capability table and counters.
func (p *Pipeline) Status() Status {
	s := Status{
		ModelsDir: p.cfg.ModelsDir,
		Quality:   p.cfg.Defaults.Quality,
		Stats:     p.Stats.Snapshot(),
		Memory:    common.GetMemoryStats(),
		Parallel: map[string]any{
			"max_workers":        p.cfg.Parallel.MaxWorkers,
			"memory_limit_bytes": p.cfg.Parallel.MemoryLimitBytes,
		},
	}
	if p.Registry != nil {
		s.Backends = p.Registry.Snapshot()
	}
	if p.ResourceManager != nil {
		rs := p.ResourceManager.GetStats()
		s.Resources = &rs
	}
	return s
}
