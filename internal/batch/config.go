package batch

import (
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/segment"
)

// OutputSuffix is appended to the input base name for every written cut-out.
const OutputSuffix = "_cutout"

// Config holds all configuration for batch processing.
type Config struct {
	// Pipeline construction and per-image settings
	Pipeline pipeline.Config
	Settings pipeline.Settings
	// Registry, when set, is used instead of loading models.
	Registry *segment.Registry

	// Output settings
	Format      string
	JPEGQuality int
	OutputDir   string // empty writes next to each input
	Summary     string // text or json
	SummaryFile string

	// Parallel processing settings
	Workers       int
	MemoryLimit   uint64
	MaxGoroutines int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration

	ContinueOnError bool
}

// DefaultConfig returns a batch configuration over the default pipeline.
func DefaultConfig() *Config {
	pc := pipeline.DefaultConfig()
	return &Config{
		Pipeline:         pc,
		Settings:         pipeline.DefaultSettings(),
		Format:           "png",
		JPEGQuality:      90,
		Summary:          "text",
		Workers:          pc.Parallel.MaxWorkers,
		IncludePatterns:  []string{"*.jpg", "*.jpeg", "*.png", "*.webp", "*.bmp", "*.tif", "*.tiff"},
		ShowProgress:     true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Item is the outcome for one input file.
type Item struct {
	Input           string  `json:"input"`
	Output          string  `json:"output,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	Backend         string  `json:"backend,omitempty"`
	Strategy        string  `json:"strategy,omitempty"`
	Degraded        bool    `json:"degraded,omitempty"`
	ForegroundRatio float64 `json:"foreground_ratio,omitempty"`
	DurationMs      float64 `json:"duration_ms,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Failed reports whether no output was written for the item.
func (it Item) Failed() bool { return it.Error != "" }

// Result holds the result of batch processing.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
	Stats       pipeline.BatchStats
}

// Failures counts items without an output.
func (r *Result) Failures() int {
	n := 0
	for _, it := range r.Items {
		if it.Failed() {
			n++
		}
	}
	return n
}
