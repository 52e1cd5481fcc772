package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for batch processing.
type ParallelConfig struct {
	MaxWorkers       int              // Number of parallel workers (0 = runtime.NumCPU())
	MemoryLimitBytes uint64           // Workers pause while heap usage is above this (0 = no limit)
	ProgressCallback ProgressCallback // Optional progress reporting
	ErrorHandler     func(int, error) // Optional per-image error handler
}

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageJob struct {
	index int
	image image.Image
}

type imageResult struct {
	index  int
	result *Result
	err    error
}

// ProcessBatch processes images independently on a worker pool and returns
// results in input order. A failed image leaves a nil entry; the first error
// is returned alongside the partial results. Cancelling ctx stops new images
// from starting.
func (p *Pipeline) ProcessBatch(ctx context.Context, images []image.Image, s Settings, config ParallelConfig) ([]*Result, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.Registry == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, len(images))

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(len(images))
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan imageJob, len(images))
	results := make(chan imageResult, len(images))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg, s, config)
	}

	go func() {
		defer close(jobs)
		for i, img := range images {
			select {
			case jobs <- imageJob{index: i, image: img}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*Result, len(images))
	errs := make([]error, len(images))
	done := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		done++
		if config.ProgressCallback != nil {
			if r.err != nil {
				config.ProgressCallback.OnError(r.index, r.err)
			}
			config.ProgressCallback.OnProgress(done, len(images))
		}
	}

	if err := ctx.Err(); err != nil {
		return ordered, err
	}

	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("image %d: %w", i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, err)
		}
	}
	return ordered, firstErr
}

func (p *Pipeline) worker(
	ctx context.Context,
	jobs <-chan imageJob,
	results chan<- imageResult,
	wg *sync.WaitGroup,
	s Settings,
	config ParallelConfig,
) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res, err := p.processJob(ctx, job, s, config)
			select {
			case results <- imageResult{index: job.index, result: res, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) processJob(ctx context.Context, job imageJob, s Settings, config ParallelConfig) (*Result, error) {
	if rm := p.ResourceManager; rm != nil {
		if err := rm.AcquireGoroutine(ctx); err != nil {
			return nil, err
		}
		defer rm.ReleaseGoroutine()
		if err := rm.WaitForMemory(ctx, config.MemoryLimitBytes); err != nil {
			return nil, err
		}
	}
	return p.Process(ctx, job.image, s, nil)
}

// BatchStats summarizes a ProcessBatch run.
type BatchStats struct {
	TotalImages      int           `json:"total_images"`
	ProcessedImages  int           `json:"processed_images"`
	DegradedImages   int           `json:"degraded_images"`
	FailedImages     int           `json:"failed_images"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateBatchStats derives throughput figures from batch results.
func CalculateBatchStats(results []*Result, duration time.Duration, workerCount int) BatchStats {
	st := BatchStats{TotalImages: len(results), WorkerCount: workerCount, TotalDuration: duration}
	for _, r := range results {
		switch {
		case r == nil:
			st.FailedImages++
		case r.Degraded:
			st.DegradedImages++
			st.ProcessedImages++
		default:
			st.ProcessedImages++
		}
	}
	if st.ProcessedImages > 0 && duration > 0 {
		st.AveragePerImage = duration / time.Duration(st.ProcessedImages)
		st.ThroughputPerSec = float64(st.ProcessedImages) / duration.Seconds()
	}
	return st
}
