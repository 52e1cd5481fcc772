package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/config"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "cutout", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotEmpty(t, rootCmd.Version)
}

func TestRootCommandSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"image", "batch", "serve", "models", "config"} {
		assert.Contains(t, names, expected)
	}
}

func TestRootCommandHelp(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"--help"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "removes image backgrounds")
	assert.Contains(t, buf.String(), "Available Commands:")
}

func TestConfigInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	target := filepath.Join(t.TempDir(), "cutout.yaml")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"config", "init", target})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Configuration written to")

	loaded, err := config.NewIsolatedLoader().LoadWithFile(target)
	require.NoError(t, err)
	def := config.DefaultConfig()
	assert.Equal(t, def.Output, loaded.Output)

	// A second init refuses to overwrite.
	rootCmd.SetArgs([]string{"config", "init", target})
	assert.Error(t, rootCmd.Execute())

	_, err = os.Stat(target)
	require.NoError(t, err)
}

func TestLogLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "warn"
	assert.Equal(t, "WARN", logLevel(&cfg).String())
	cfg.Verbose = true
	assert.Equal(t, "DEBUG", logLevel(&cfg).String())
}
