// Package batch removes backgrounds from many files: discovery, parallel
// processing through the pipeline, output naming and a run summary.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// ProcessBatch discovers images under paths, cuts each one out and writes the
// results. Unless ContinueOnError is set, any failed image makes the call
// return an error alongside the partial result.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	format, err := utils.ParseOutputFormat(config.Format)
	if err != nil {
		return nil, err
	}
	if err := config.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	images, loadErrs := loadImages(files)
	if !config.ContinueOnError {
		if err := errors.Join(loadErrs...); err != nil {
			return nil, err
		}
	}

	pl, err := buildPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Warn("error closing pipeline", "error", err)
		}
	}()

	procErrs := make([]error, len(files))
	pc := pipeline.ParallelConfig{
		MaxWorkers:       config.Workers,
		MemoryLimitBytes: config.MemoryLimit,
		ProgressCallback: progressCallback(config),
		ErrorHandler:     func(i int, err error) { procErrs[i] = err },
	}

	start := time.Now()
	results, err := pl.ProcessBatch(ctx, images, config.Settings, pc)
	duration := time.Since(start)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		slog.Debug("batch finished with errors", "error", err)
	}

	namer := newOutputNamer(config.OutputDir, format)
	opts := utils.EncodeOptions{Format: format, JPEGQuality: config.JPEGQuality, Matte: matteColor(config.Settings)}
	items := make([]Item, len(files))
	for i, f := range files {
		switch {
		case loadErrs[i] != nil:
			items[i] = Item{Input: f, Error: loadErrs[i].Error()}
		case results[i] == nil:
			msg := "processing failed"
			if procErrs[i] != nil {
				msg = procErrs[i].Error()
			}
			items[i] = Item{Input: f, Error: msg}
		default:
			items[i] = writeItem(f, results[i], namer, opts)
		}
	}

	workers := config.Workers
	if workers <= 0 {
		workers = pl.Config().Parallel.MaxWorkers
	}
	res := &Result{
		Items:       items,
		Duration:    duration,
		WorkerCount: min(workers, len(files)),
		Stats:       pipeline.CalculateBatchStats(results, duration, min(workers, len(files))),
	}
	if n := res.Failures(); n > 0 && !config.ContinueOnError {
		return res, fmt.Errorf("%d of %d images failed", n, len(files))
	}
	return res, nil
}
