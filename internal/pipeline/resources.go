package pipeline

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// ResourceConfig bounds batch concurrency and memory.
type ResourceConfig struct {
	MaxMemoryBytes  uint64        // Heap limit in bytes (0 = no limit)
	MaxGoroutines   int           // Maximum images in flight (0 = no limit)
	MemoryThreshold float64       // Fraction of MaxMemoryBytes treated as pressure (default 0.8)
	MonitorInterval time.Duration // How often heap usage is sampled
}

// DefaultResourceConfig applies no limits.
func DefaultResourceConfig() ResourceConfig {
	return ResourceConfig{MemoryThreshold: 0.8, MonitorInterval: time.Second}
}

// ResourceStats holds resource usage statistics.
type ResourceStats struct {
	CurrentMemoryBytes   uint64  `json:"current_memory_bytes"`
	PeakMemoryBytes      uint64  `json:"peak_memory_bytes"`
	ActiveJobs           int     `json:"active_jobs"`
	PeakJobs             int     `json:"peak_jobs"`
	MemoryPressureEvents int     `json:"memory_pressure_events"`
	JobBlocks            int     `json:"job_blocks"`
	MemoryUtilization    float64 `json:"memory_utilization"`
}

// ResourceManager limits images in flight and pauses workers under memory
// pressure. Heap usage is sampled in the background between Start and Stop.
type ResourceManager struct {
	cfg    ResourceConfig
	sem    chan struct{}
	mu     sync.Mutex
	stats  ResourceStats
	sample func() uint64
	cancel context.CancelFunc
}

// NewResourceManager creates a manager; call Start to begin sampling.
func NewResourceManager(cfg ResourceConfig) *ResourceManager {
	if cfg.MemoryThreshold <= 0 || cfg.MemoryThreshold > 1 {
		cfg.MemoryThreshold = 0.8
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = time.Second
	}
	rm := &ResourceManager{cfg: cfg, sample: heapAlloc}
	if cfg.MaxGoroutines > 0 {
		rm.sem = make(chan struct{}, cfg.MaxGoroutines)
	}
	return rm
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

// Start begins background memory sampling. It is a no-op when running.
func (rm *ResourceManager) Start() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rm.cancel = cancel
	go rm.monitor(ctx)
}

// Stop ends sampling.
func (rm *ResourceManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		rm.cancel()
		rm.cancel = nil
	}
}

func (rm *ResourceManager) monitor(ctx context.Context) {
	ticker := time.NewTicker(rm.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rm.updateMemory()
		case <-ctx.Done():
			return
		}
	}
}

func (rm *ResourceManager) updateMemory() uint64 {
	cur := rm.sample()
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.stats.CurrentMemoryBytes = cur
	rm.stats.PeakMemoryBytes = max(rm.stats.PeakMemoryBytes, cur)
	if rm.cfg.MaxMemoryBytes > 0 {
		rm.stats.MemoryUtilization = float64(cur) / float64(rm.cfg.MaxMemoryBytes)
	}
	return cur
}

// AcquireGoroutine takes a job slot, blocking until one frees or ctx ends.
func (rm *ResourceManager) AcquireGoroutine(ctx context.Context) error {
	if rm.sem != nil {
		select {
		case rm.sem <- struct{}{}:
		default:
			rm.mu.Lock()
			rm.stats.JobBlocks++
			rm.mu.Unlock()
			select {
			case rm.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	rm.mu.Lock()
	rm.stats.ActiveJobs++
	rm.stats.PeakJobs = max(rm.stats.PeakJobs, rm.stats.ActiveJobs)
	rm.mu.Unlock()
	return nil
}

// ReleaseGoroutine returns a job slot.
func (rm *ResourceManager) ReleaseGoroutine() {
	if rm.sem != nil {
		select {
		case <-rm.sem:
		default:
		}
	}
	rm.mu.Lock()
	rm.stats.ActiveJobs = max(0, rm.stats.ActiveJobs-1)
	rm.mu.Unlock()
}

// CheckMemoryPressure samples the heap and reports whether it is above the
// threshold fraction of limit. A zero limit falls back to MaxMemoryBytes;
// with neither set there is never pressure.
func (rm *ResourceManager) CheckMemoryPressure(limit uint64) bool {
	if limit == 0 {
		limit = rm.cfg.MaxMemoryBytes
	}
	if limit == 0 {
		return false
	}
	cur := rm.updateMemory()
	if float64(cur) <= rm.cfg.MemoryThreshold*float64(limit) {
		return false
	}
	rm.mu.Lock()
	rm.stats.MemoryPressureEvents++
	rm.mu.Unlock()
	return true
}

// WaitForMemory blocks while under memory pressure, collecting garbage
// between checks. It gives up waiting after ten intervals and lets the job
// run.
func (rm *ResourceManager) WaitForMemory(ctx context.Context, limit uint64) error {
	for range 10 {
		if !rm.CheckMemoryPressure(limit) {
			return nil
		}
		runtime.GC()
		select {
		case <-time.After(rm.cfg.MonitorInterval / 10):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// GetStats returns a copy of current resource statistics.
func (rm *ResourceManager) GetStats() ResourceStats {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.stats
}
