package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatchFlagsCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "batch"}
	addSettingsFlags(c)
	addModelFlags(c)
	f := c.Flags()
	f.IntP("workers", "w", 4, "")
	f.BoolP("recursive", "r", false, "")
	f.StringSlice("include", nil, "")
	f.StringSlice("exclude", nil, "")
	f.StringP("output-dir", "o", "", "")
	f.String("summary", "text", "")
	f.String("summary-file", "", "")
	f.Bool("continue-on-error", false, "")
	f.String("memory-limit", "", "")
	f.Int("max-goroutines", 0, "")
	f.Bool("progress", true, "")
	f.BoolP("quiet", "q", false, "")
	f.Bool("stats", false, "")
	f.Duration("progress-interval", 0, "")
	require.NoError(t, f.Parse(args))
	return c
}

func TestConfigToBatchConfigDefaults(t *testing.T) {
	bc, err := configToBatchConfig(traditionalConfig(), newBatchFlagsCommand(t))
	require.NoError(t, err)
	assert.Equal(t, 4, bc.Workers)
	assert.Equal(t, "png", bc.Format)
	assert.Equal(t, "text", bc.Summary)
	assert.Nil(t, bc.Pipeline.Learned)
	assert.Zero(t, bc.MemoryLimit)
	assert.True(t, bc.ShowProgress)
}

func TestConfigToBatchConfigFlags(t *testing.T) {
	c := newBatchFlagsCommand(t,
		"--workers", "8", "-r", "--exclude", "*_raw.*", "--memory-limit", "512MB",
		"--format", "jpeg", "--bg-color", "#00ff00", "--continue-on-error", "-q")

	bc, err := configToBatchConfig(traditionalConfig(), c)
	require.NoError(t, err)
	assert.Equal(t, 8, bc.Workers)
	assert.True(t, bc.Recursive)
	assert.Equal(t, []string{"*_raw.*"}, bc.ExcludePatterns)
	assert.Equal(t, uint64(512<<20), bc.MemoryLimit)
	assert.Equal(t, "jpeg", bc.Format)
	assert.Equal(t, "#00ff00", bc.Settings.BackgroundColor)
	assert.True(t, bc.ContinueOnError)
	assert.True(t, bc.Quiet)
}

func TestConfigToBatchConfigInvalid(t *testing.T) {
	_, err := configToBatchConfig(traditionalConfig(), newBatchFlagsCommand(t, "--memory-limit", "lots"))
	assert.Error(t, err)

	_, err = configToBatchConfig(traditionalConfig(), newBatchFlagsCommand(t, "--workers", "0"))
	assert.Error(t, err)
}
