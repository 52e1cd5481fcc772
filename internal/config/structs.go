//nolint:lll
package config

// Config represents the complete configuration for the cutout application.
// It includes settings for all commands (image, batch, serve) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Backend selection and loading
	Segmentation SegmentationConfig `mapstructure:"segmentation" yaml:"segmentation" json:"segmentation"`

	// Detail enhancement
	Enhancement EnhancementConfig `mapstructure:"enhancement" yaml:"enhancement" json:"enhancement"`

	// Output and compositing
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// SegmentationConfig controls which backends are loaded and how images are scheduled.
type SegmentationConfig struct {
	LearnedEnabled bool     `mapstructure:"learned_enabled" yaml:"learned_enabled" json:"learned_enabled"`
	Models         []string `mapstructure:"models" yaml:"models" json:"models"`
	Matting        bool     `mapstructure:"matting" yaml:"matting" json:"matting"`
	NumThreads     int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	MaxDimension   int      `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`

	// Parallel processing
	MaxWorkers    int    `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	MaxGoroutines int    `mapstructure:"max_goroutines" yaml:"max_goroutines" json:"max_goroutines"`
	MemoryLimit   string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// EnhancementConfig contains detail enhancement settings. An empty level
// follows the output quality.
type EnhancementConfig struct {
	Level          string `mapstructure:"level" yaml:"level" json:"level"`
	HairRefinement bool   `mapstructure:"hair_refinement" yaml:"hair_refinement" json:"hair_refinement"`
}

// OutputConfig contains compositing and encoding settings.
type OutputConfig struct {
	Format           string  `mapstructure:"format" yaml:"format" json:"format"`
	JPEGQuality      int     `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	BgMode           string  `mapstructure:"bg_mode" yaml:"bg_mode" json:"bg_mode"`
	BgColor          string  `mapstructure:"bg_color" yaml:"bg_color" json:"bg_color"`
	BgImage          string  `mapstructure:"bg_image" yaml:"bg_image" json:"bg_image"`
	BgQuality        string  `mapstructure:"bg_quality" yaml:"bg_quality" json:"bg_quality"`
	Feathering       float64 `mapstructure:"feathering" yaml:"feathering" json:"feathering"`
	EdgeRefinement   float64 `mapstructure:"edge_refinement" yaml:"edge_refinement" json:"edge_refinement"`
	PreserveHoles    bool    `mapstructure:"preserve_holes" yaml:"preserve_holes" json:"preserve_holes"`
	ForceBinaryAlpha bool    `mapstructure:"force_binary_alpha" yaml:"force_binary_alpha" json:"force_binary_alpha"`
	EnhanceDetails   bool    `mapstructure:"enhance_details" yaml:"enhance_details" json:"enhance_details"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	OutputDir       string   `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	Summary         string   `mapstructure:"summary" yaml:"summary" json:"summary"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
