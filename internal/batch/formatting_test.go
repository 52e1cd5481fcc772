package batch

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
)

func sampleResult() *Result {
	return &Result{
		Items: []Item{
			{Input: "a.png", Output: "a_cutout.png", Backend: "region_cut", Strategy: "traditional", ForegroundRatio: 0.25, DurationMs: 12},
			{Input: "b.png", Output: "b_cutout.png", Backend: "threshold", Strategy: "last_resort", Degraded: true},
			{Input: "c.png", Error: "failed to load c.png"},
		},
		Duration:    1500 * time.Millisecond,
		WorkerCount: 2,
		Stats:       pipeline.BatchStats{TotalImages: 3, ProcessedImages: 2, DegradedImages: 1, FailedImages: 1},
	}
}

func TestFormatResultsText(t *testing.T) {
	out, err := sampleResult().FormatResults("text")
	require.NoError(t, err)
	assert.Contains(t, out, "OK   a.png -> a_cutout.png (traditional/region_cut, fg 25.0%, 12ms)")
	assert.Contains(t, out, "WARN b.png -> b_cutout.png")
	assert.Contains(t, out, "FAIL c.png: failed to load c.png")
}

func TestFormatResultsJSON(t *testing.T) {
	out, err := sampleResult().FormatResults("json")
	require.NoError(t, err)

	var decoded struct {
		Images     []Item              `json:"images"`
		Stats      pipeline.BatchStats `json:"stats"`
		DurationMs int64               `json:"duration_ms"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded.Images, 3)
	assert.Equal(t, 1, decoded.Stats.FailedImages)
	assert.EqualValues(t, 1500, decoded.DurationMs)
}

func TestFormatResultsUnknown(t *testing.T) {
	_, err := sampleResult().FormatResults("xml")
	assert.Error(t, err)
}

func TestSaveResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleResult().SaveResults(&buf, "text", "", false))
	assert.Contains(t, buf.String(), "FAIL c.png")

	buf.Reset()
	file := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, sampleResult().SaveResults(&buf, "json", file, false))
	assert.Contains(t, buf.String(), "Summary written to")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestPrintStats(t *testing.T) {
	var buf bytes.Buffer
	sampleResult().PrintStats(&buf)
	assert.Contains(t, buf.String(), "Total images: 3")
	assert.Contains(t, buf.String(), "Failed: 1")
	assert.Contains(t, buf.String(), "Workers: 2")
}
