package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	settings := pipeline.DefaultSettings()
	parallel := pipeline.DefaultParallelConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Segmentation: SegmentationConfig{
			LearnedEnabled: true,
			Models:         models.SegmentationIDs(),
			Matting:        true,
			MaxDimension:   settings.MaxDimension,
			MaxWorkers:     parallel.MaxWorkers,
		},
		Enhancement: EnhancementConfig{
			Level:          settings.EnhancementLevel,
			HairRefinement: settings.HairRefinement,
		},
		Output: OutputConfig{
			Format:         "png",
			JPEGQuality:    90,
			BgMode:         settings.BackgroundMode,
			BgColor:        settings.BackgroundColor,
			BgQuality:      settings.Quality,
			EdgeRefinement: settings.EdgeRefinement,
			EnhanceDetails: settings.EnhanceDetails,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
				MaxDataPerDayMB:   1024,
			},
		},
		Batch: BatchConfig{
			Workers: 4,
			Include: []string{"*.jpg", "*.jpeg", "*.png", "*.webp", "*.bmp", "*.tif", "*.tiff"},
			Exclude: []string{},
			Summary: "text",
		},
		GPU: GPUConfig{
			MemoryLimit: "auto",
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if err := c.validateBasicEnums(); err != nil {
		return err
	}
	if err := c.validatePositiveIntegers(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateGPU(); err != nil {
		return err
	}
	if _, err := ParseMemoryLimit(c.Segmentation.MemoryLimit); err != nil {
		return fmt.Errorf("invalid segmentation memory limit: %w", err)
	}
	if err := c.ToPipelineSettings().Validate(); err != nil {
		return fmt.Errorf("invalid output settings: %w", err)
	}
	return nil
}

func (c *Config) validateBasicEnums() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"png", "jpeg", "jpg"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	validSummaries := []string{"text", "json"}
	if c.Batch.Summary != "" && !slices.Contains(validSummaries, c.Batch.Summary) {
		return fmt.Errorf("invalid batch summary: %s (must be one of: %s)", c.Batch.Summary, strings.Join(validSummaries, ", "))
	}
	return nil
}

func (c *Config) validatePositiveIntegers() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Segmentation.MaxWorkers < 0 {
		return fmt.Errorf("invalid max workers: %d (must be >= 0)", c.Segmentation.MaxWorkers)
	}
	if c.Segmentation.NumThreads < 0 {
		return fmt.Errorf("invalid num threads: %d (must be >= 0)", c.Segmentation.NumThreads)
	}
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Output.JPEGQuality)
	}
	rl := c.Server.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid rate limit: limits must be >= 0")
	}
	return nil
}

func (c *Config) validateModels() error {
	for _, id := range c.Segmentation.Models {
		info, ok := models.Lookup(id)
		if !ok {
			return fmt.Errorf("invalid segmentation model: %s (must be one of: %s)", id, strings.Join(models.SegmentationIDs(), ", "))
		}
		if info.Type != models.TypeSegmentation {
			return fmt.Errorf("invalid segmentation model: %s is a %s model", id, info.Type)
		}
	}
	return nil
}

func (c *Config) validateGPU() error {
	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must be >= 0)", c.GPU.Device)
	}
	if _, err := ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	return nil
}

// ToPipelineSettings converts the file configuration into per-image settings.
func (c *Config) ToPipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		BackgroundMode:   c.Output.BgMode,
		BackgroundColor:  c.Output.BgColor,
		BackgroundImage:  c.Output.BgImage,
		Quality:          c.Output.BgQuality,
		EnhanceDetails:   c.Output.EnhanceDetails,
		EnhancementLevel: c.Enhancement.Level,
		HairRefinement:   c.Enhancement.HairRefinement,
		EdgeRefinement:   c.Output.EdgeRefinement,
		Feathering:       c.Output.Feathering,
		PreserveHoles:    c.Output.PreserveHoles,
		ForceBinaryAlpha: c.Output.ForceBinaryAlpha,
		MaxDimension:     c.Segmentation.MaxDimension,
	}
}

// ToPipelineConfig converts the config to the pipeline construction format.
// Memory limits are assumed valid; call Validate first.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ModelsDir = models.GetModelsDir(c.ModelsDir)
	cfg.Learned = nil
	if c.Segmentation.LearnedEnabled {
		cfg.Learned = slices.Clone(c.Segmentation.Models)
		if len(cfg.Learned) == 0 {
			cfg.Learned = models.SegmentationIDs()
		}
	}
	cfg.Matting = c.Segmentation.Matting
	cfg.NumThreads = c.Segmentation.NumThreads
	cfg.GPU = c.toGPUConfig()
	cfg.Defaults = c.ToPipelineSettings()

	memLimit, _ := ParseMemoryLimit(c.Segmentation.MemoryLimit)
	if c.Segmentation.MaxWorkers > 0 {
		cfg.Parallel.MaxWorkers = c.Segmentation.MaxWorkers
	}
	cfg.Parallel.MemoryLimitBytes = memLimit
	cfg.Resource.MaxMemoryBytes = memLimit
	cfg.Resource.MaxGoroutines = c.Segmentation.MaxGoroutines
	return cfg
}

func (c *Config) toGPUConfig() onnx.GPUConfig {
	gpu := onnx.DefaultGPUConfig()
	gpu.UseGPU = c.GPU.Enabled
	gpu.DeviceID = c.GPU.Device
	gpu.GPUMemLimit, _ = ParseMemoryLimit(c.GPU.MemoryLimit)
	return gpu
}

// ParseMemoryLimit parses sizes such as "512MB" or "2GB" into bytes. Empty,
// "0" and "auto" mean no limit.
func ParseMemoryLimit(limit string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(limit))
	if s == "" || s == "0" || s == "AUTO" {
		return 0, nil
	}

	units := []struct {
		suffix string
		mult   float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(s, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.mult), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
