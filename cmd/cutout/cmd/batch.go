package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cutout/internal/batch"
	"github.com/MeKo-Tech/cutout/internal/config"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch <files or dirs...>",
	Short: "Remove backgrounds from many images in parallel",
	Long: `Process many image files on a worker pool. Directories are scanned for
images; previously written *_cutout files are skipped.

Examples:
  cutout batch photos/
  cutout batch photos/ --recursive --workers 8 --output-dir out/
  cutout batch *.jpg --summary json --summary-file report.json
  cutout batch shots/ --exclude "*_raw.*" --continue-on-error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatchCommand,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addSettingsFlags(batchCmd)
	addModelFlags(batchCmd)

	f := batchCmd.Flags()
	f.IntP("workers", "w", 4, "number of parallel workers")
	f.BoolP("recursive", "r", false, "scan directories recursively")
	f.StringSlice("include", nil, "include glob patterns (default: common image extensions)")
	f.StringSlice("exclude", nil, "exclude glob patterns")
	f.StringP("output-dir", "o", "", "directory for results (default: next to each input)")
	f.String("summary", "text", "summary format: text or json")
	f.String("summary-file", "", "write the summary to a file instead of stdout")
	f.Bool("continue-on-error", false, "exit successfully even if some images fail")
	f.String("memory-limit", "", "pause workers while heap usage exceeds this (e.g. 2GB)")
	f.Int("max-goroutines", 0, "cap concurrently processed images (0 = workers)")
	f.Bool("progress", true, "show a progress bar")
	f.BoolP("quiet", "q", false, "suppress progress and summary output")
	f.Bool("stats", false, "print processing statistics")
	f.Duration("progress-interval", 100*time.Millisecond, "progress bar refresh interval")
}

// configToBatchConfig maps the resolved configuration plus flags to batch.Config.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	applySettingsFlags(cmd, cfg)
	applyModelFlags(cmd, cfg)
	intFlag(cmd, "workers", &cfg.Batch.Workers)
	boolFlag(cmd, "recursive", &cfg.Batch.Recursive)
	stringSliceFlag(cmd, "include", &cfg.Batch.Include)
	stringSliceFlag(cmd, "exclude", &cfg.Batch.Exclude)
	stringFlag(cmd, "output-dir", &cfg.Batch.OutputDir)
	stringFlag(cmd, "summary", &cfg.Batch.Summary)
	boolFlag(cmd, "continue-on-error", &cfg.Batch.ContinueOnError)
	stringFlag(cmd, "memory-limit", &cfg.Segmentation.MemoryLimit)
	intFlag(cmd, "max-goroutines", &cfg.Segmentation.MaxGoroutines)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	memLimit, err := config.ParseMemoryLimit(cfg.Segmentation.MemoryLimit)
	if err != nil {
		return nil, err
	}

	bc := batch.DefaultConfig()
	bc.Pipeline = cfg.ToPipelineConfig()
	bc.Settings = cfg.ToPipelineSettings()
	bc.Format = cfg.Output.Format
	bc.JPEGQuality = cfg.Output.JPEGQuality
	bc.OutputDir = cfg.Batch.OutputDir
	bc.Summary = cfg.Batch.Summary
	bc.SummaryFile, _ = cmd.Flags().GetString("summary-file")
	bc.Workers = cfg.Batch.Workers
	bc.MemoryLimit = memLimit
	bc.MaxGoroutines = cfg.Segmentation.MaxGoroutines
	bc.Recursive = cfg.Batch.Recursive
	bc.IncludePatterns = cfg.Batch.Include
	bc.ExcludePatterns = cfg.Batch.Exclude
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	bc.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")
	return bc, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	result, err := batch.ProcessBatch(cmd.Context(), args, bc)
	if result == nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if !bc.Quiet || bc.SummaryFile != "" {
		if serr := result.SaveResults(out, bc.Summary, bc.SummaryFile, bc.Quiet); serr != nil {
			return serr
		}
	}
	if bc.ShowStats && !bc.Quiet {
		result.PrintStats(out)
	}
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}
	return nil
}
