package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cutout/internal/analysis"
	"github.com/MeKo-Tech/cutout/internal/composite"
	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <files...>",
	Short: "Remove the background from one or more images",
	Long: `Remove the background from image files and write <name>_cutout.png
next to each input, or into --output-dir.

Supported input formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  cutout image photo.jpg
  cutout image *.png --output-dir out/
  cutout image shoe.jpg --bg color --bg-color "#f0f0f0" --format jpeg
  cutout image portrait.png --quality ultra_high --feather 2
  cutout image blurry.jpg --analyze`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImageCommand,
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addSettingsFlags(imageCmd)
	addModelFlags(imageCmd)
	imageCmd.Flags().StringP("output-dir", "o", "", "directory for results (default: next to each input)")
	imageCmd.Flags().Bool("analyze", false, "print complexity and quality analysis instead of processing")
	imageCmd.Flags().Bool("json", false, "print a JSON report per image")
}

// imageOptions are the resolved inputs of the image command.
type imageOptions struct {
	Files     []string
	OutputDir string
	Analyze   bool
	JSON      bool
}

func runImageCommand(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	applySettingsFlags(cmd, cfg)
	applyModelFlags(cmd, cfg)

	opts := imageOptions{Files: args}
	opts.OutputDir, _ = cmd.Flags().GetString("output-dir")
	opts.Analyze, _ = cmd.Flags().GetBool("analyze")
	opts.JSON, _ = cmd.Flags().GetBool("json")

	return runImages(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
}

// imageReport is printed with --json.
type imageReport struct {
	Input           string                      `json:"input"`
	Output          string                      `json:"output,omitempty"`
	Backend         string                      `json:"backend,omitempty"`
	Strategy        string                      `json:"strategy,omitempty"`
	Degraded        bool                        `json:"degraded,omitempty"`
	ForegroundRatio float64                     `json:"foreground_ratio,omitempty"`
	DurationMs      int64                       `json:"duration_ms,omitempty"`
	Attempts        []pipeline.Attempt          `json:"attempts,omitempty"`
	Complexity      *analysis.ComplexityMetrics `json:"complexity,omitempty"`
	Quality         *analysis.QualityReport     `json:"quality,omitempty"`
}

func runImages(ctx context.Context, out io.Writer, cfg *config.Config, opts imageOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, f := range opts.Files {
		if !utils.IsSupportedImage(f) {
			return fmt.Errorf("unsupported image format: %s", f)
		}
	}

	if opts.Analyze {
		return analyzeImages(out, opts)
	}

	format, err := utils.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	settings := cfg.ToPipelineSettings()
	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	enc := utils.EncodeOptions{Format: format, JPEGQuality: cfg.Output.JPEGQuality}
	if c, err := composite.ParseColor(settings.BackgroundColor); err == nil {
		enc.Matte = c
	}

	var failed []string
	for _, f := range opts.Files {
		rep, err := processOne(ctx, pl, f, opts.OutputDir, settings, enc)
		if err != nil {
			slog.Error("image failed", "file", f, "error", err)
			failed = append(failed, f)
			continue
		}
		printReport(out, rep, opts.JSON)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d images failed: %s", len(failed), len(opts.Files), strings.Join(failed, ", "))
	}
	return nil
}

func processOne(ctx context.Context, pl *pipeline.Pipeline, path, outDir string, s pipeline.Settings, enc utils.EncodeOptions) (imageReport, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return imageReport{}, err
	}
	res, err := pl.Process(ctx, img, s, nil)
	if err != nil {
		return imageReport{}, err
	}
	output := cutoutPath(path, outDir, enc.Format)
	if err := utils.SaveImage(output, res.Image, enc); err != nil {
		return imageReport{}, err
	}
	return imageReport{
		Input:           path,
		Output:          output,
		Backend:         res.Backend,
		Strategy:        res.Strategy,
		Degraded:        res.Degraded,
		ForegroundRatio: res.ForegroundRatio(),
		DurationMs:      res.Duration.Milliseconds(),
		Attempts:        res.Attempts,
	}, nil
}

// cutoutPath names the result <name>_cutout<ext>.
func cutoutPath(input, outDir string, format utils.OutputFormat) string {
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := filepath.Base(input)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_cutout"+format.Extension())
}

func analyzeImages(out io.Writer, opts imageOptions) error {
	var errs []error
	for _, f := range opts.Files {
		img, _, err := utils.LoadImage(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		cm := analysis.AnalyzeComplexity(img)
		q := analysis.AssessQuality(img)
		rep := imageReport{Input: f, Complexity: &cm, Quality: &q}
		if opts.JSON {
			printReport(out, rep, true)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\n", f)
		_, _ = fmt.Fprintf(out, "  complex: %t (edges %.3f, color variance %.1f, texture %.1f, corners %.1f)\n",
			cm.IsComplex, cm.EdgeDensity, cm.ColorVariance, cm.TextureEnergy, cm.CornerVariance)
		_, _ = fmt.Fprintf(out, "  quality: %.2f (blur %.1f, noise %.3f, low resolution %t)\n",
			q.Score, q.BlurLevel, q.NoiseLevel, q.IsLowResolution)
		for _, r := range q.Recommendations {
			_, _ = fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return errors.Join(errs...)
}

func printReport(out io.Writer, rep imageReport, asJSON bool) {
	if asJSON {
		if err := json.NewEncoder(out).Encode(rep); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding report: %v\n", err)
		}
		return
	}
	status := ""
	if rep.Degraded {
		status = " [degraded]"
	}
	_, _ = fmt.Fprintf(out, "%s -> %s (%s/%s, fg %.1f%%, %dms)%s\n",
		rep.Input, rep.Output, rep.Strategy, rep.Backend, 100*rep.ForegroundRatio, rep.DurationMs, status)
}
