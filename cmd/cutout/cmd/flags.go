package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cutout/internal/config"
)

func stringFlag(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func boolFlag(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}

func intFlag(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

func floatFlag(cmd *cobra.Command, name string, dst *float64) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetFloat64(name)
	}
}

func stringSliceFlag(cmd *cobra.Command, name string, dst *[]string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetStringSlice(name)
	}
}

// addSettingsFlags registers the per-image processing flags.
func addSettingsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("bg", "remove", "background mode: remove, color or image")
	f.String("bg-color", "#FFFFFF", "background color for --bg color (#RGB or #RRGGBB)")
	f.String("bg-image", "", "background image for --bg image")
	f.String("quality", "high", "quality: standard, high or ultra_high")
	f.Bool("enhance", true, "run detail enhancement")
	f.String("enhancement-level", "", "enhancement level: low, medium, high, ultra (default follows --quality)")
	f.Bool("hair", true, "refine hair and fine details")
	f.Float64("feather", 0, "feathering radius in pixels")
	f.Float64("edge-refinement", 1, "edge refinement strength (0 disables)")
	f.Bool("preserve-holes", false, "clear enclosed background regions")
	f.Bool("binary-alpha", false, "threshold alpha at 128")
	f.Int("max-dimension", 0, "longest side used for segmentation (0 keeps the configured value)")
	f.String("format", "png", "output format: png or jpeg")
	f.Int("jpeg-quality", 90, "JPEG quality (1-100)")
}

// applySettingsFlags copies changed processing flags into cfg.
func applySettingsFlags(cmd *cobra.Command, cfg *config.Config) {
	stringFlag(cmd, "bg", &cfg.Output.BgMode)
	stringFlag(cmd, "bg-color", &cfg.Output.BgColor)
	stringFlag(cmd, "bg-image", &cfg.Output.BgImage)
	stringFlag(cmd, "quality", &cfg.Output.BgQuality)
	boolFlag(cmd, "enhance", &cfg.Output.EnhanceDetails)
	stringFlag(cmd, "enhancement-level", &cfg.Enhancement.Level)
	boolFlag(cmd, "hair", &cfg.Enhancement.HairRefinement)
	floatFlag(cmd, "feather", &cfg.Output.Feathering)
	floatFlag(cmd, "edge-refinement", &cfg.Output.EdgeRefinement)
	boolFlag(cmd, "preserve-holes", &cfg.Output.PreserveHoles)
	boolFlag(cmd, "binary-alpha", &cfg.Output.ForceBinaryAlpha)
	intFlag(cmd, "max-dimension", &cfg.Segmentation.MaxDimension)
	stringFlag(cmd, "format", &cfg.Output.Format)
	intFlag(cmd, "jpeg-quality", &cfg.Output.JPEGQuality)
}

// addModelFlags registers backend loading flags.
func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("models", nil, "learned segmentation models in ranked order (u2net, isnet, silueta)")
	f.Bool("learned", true, "load learned segmentation models")
	f.Bool("matting", true, "load the matting model")
	f.Int("threads", 0, "intra-op threads per model session (0 = runtime default)")
	f.Bool("gpu", false, "run models on CUDA")
	f.Int("gpu-device", 0, "CUDA device ID")
	f.String("gpu-mem-limit", "auto", "CUDA memory limit (e.g. 2GB, auto)")
}

// applyModelFlags copies changed backend flags into cfg.
func applyModelFlags(cmd *cobra.Command, cfg *config.Config) {
	stringSliceFlag(cmd, "models", &cfg.Segmentation.Models)
	boolFlag(cmd, "learned", &cfg.Segmentation.LearnedEnabled)
	boolFlag(cmd, "matting", &cfg.Segmentation.Matting)
	intFlag(cmd, "threads", &cfg.Segmentation.NumThreads)
	boolFlag(cmd, "gpu", &cfg.GPU.Enabled)
	intFlag(cmd, "gpu-device", &cfg.GPU.Device)
	stringFlag(cmd, "gpu-mem-limit", &cfg.GPU.MemoryLimit)
}
