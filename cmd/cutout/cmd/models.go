package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/segment"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show which segmentation backends are available",
	Long: `Load the configured backends and print the capability table with resolved
model paths. Unavailable backends list the reason.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		applyModelFlags(cmd, cfg)
		asJSON, _ := cmd.Flags().GetBool("json")
		return listModels(cmd.OutOrStdout(), cfg, asJSON)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	addModelFlags(modelsCmd)
	modelsCmd.Flags().Bool("json", false, "print JSON")
}

func listModels(out io.Writer, cfg *config.Config, asJSON bool) error {
	pl, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	st := pl.Status()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Backends)
	}
	writeCapabilities(out, st.ModelsDir, st.Backends)
	return nil
}

func writeCapabilities(out io.Writer, modelsDir string, rows []segment.Capability) {
	_, _ = fmt.Fprintf(out, "Models directory: %s\n\n", modelsDir)
	_, _ = fmt.Fprintf(out, "%-12s %-12s %-10s %-7s %s\n", "BACKEND", "KIND", "STATUS", "WEIGHT", "PATH / REASON")
	for _, c := range rows {
		status, detail := "available", c.ModelPath
		if !c.Available {
			status, detail = "missing", c.Reason
		}
		_, _ = fmt.Fprintf(out, "%-12s %-12s %-10s %-7.2f %s\n", c.ID, c.KindName, status, c.Weight, detail)
	}
}
