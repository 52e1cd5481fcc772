package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/models"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// RequireModel returns the installed path of a catalog model and skips the
// test when the file is not present. CUTOUT_MODELS_DIR overrides the
// project's models directory.
func RequireModel(t *testing.T, id string) string {
	t.Helper()
	path, err := models.PathFor("", id)
	if err != nil {
		t.Fatalf("unknown model %s: %v", id, err)
	}
	if err := models.ValidateModelExists(path); err != nil {
		t.Skipf("model %s not installed: %v", id, err)
	}
	return path
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o750)
}
