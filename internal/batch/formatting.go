package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

// FormatResults renders the per-file summary as text or JSON.
func (r *Result) FormatResults(format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r)
	case "", "text":
		return formatText(r), nil
	default:
		return "", fmt.Errorf("unsupported summary format: %s", format)
	}
}

func formatJSON(r *Result) (string, error) {
	out := struct {
		Images     []Item              `json:"images"`
		Stats      pipeline.BatchStats `json:"stats"`
		DurationMs int64               `json:"duration_ms"`
	}{Images: r.Items, Stats: r.Stats, DurationMs: r.Duration.Milliseconds()}
	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

func formatText(r *Result) string {
	var b strings.Builder
	for _, it := range r.Items {
		if it.Failed() {
			fmt.Fprintf(&b, "FAIL %s: %s\n", it.Input, it.Error)
			continue
		}
		status := "OK  "
		if it.Degraded {
			status = "WARN"
		}
		fmt.Fprintf(&b, "%s %s -> %s (%s/%s, fg %.1f%%, %.0fms)\n",
			status, it.Input, it.Output, it.Strategy, it.Backend, 100*it.ForegroundRatio, it.DurationMs)
	}
	return b.String()
}

// SaveResults writes the summary to outputFile, or to w when no file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if outputFile == "" {
		_, err := fmt.Fprint(w, output)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "Summary written to %s\n", outputFile)
	}
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	st := r.Stats
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", st.TotalImages)
	_, _ = fmt.Fprintf(w, "  Processed: %d (degraded: %d)\n", st.ProcessedImages, st.DegradedImages)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failures())
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", st.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", st.ThroughputPerSec)
}
