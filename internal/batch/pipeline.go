package batch

import (
	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// buildPipeline creates a pipeline from the batch configuration.
func buildPipeline(config *Config) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithConfig(config.Pipeline).
		WithDefaults(config.Settings).
		WithParallelWorkers(config.Workers).
		WithMaxGoroutines(config.MaxGoroutines)
	if config.MemoryLimit > 0 {
		b = b.WithMemoryLimit(config.MemoryLimit)
	}
	if config.Registry != nil {
		b = b.WithRegistry(config.Registry)
	}
	return b.Build()
}

// progressCallback picks the console bar, log lines or nothing.
func progressCallback(config *Config) pipeline.ProgressCallback {
	switch {
	case config.Quiet:
		return nil
	case config.ShowProgress:
		return pipeline.NewConsoleProgressCallback(nil, "Processing: ").
			WithUpdateInterval(config.ProgressInterval)
	default:
		return pipeline.NewLogProgressCallback(nil)
	}
}
