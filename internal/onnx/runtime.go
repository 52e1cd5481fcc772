package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides shared library discovery.
const EnvLibraryPath = "CUTOUT_ONNXRUNTIME_LIB"

// ErrLibraryNotFound is returned when no ONNX Runtime shared library can be located.
var ErrLibraryNotFound = errors.New("onnx runtime library not found")

var initMu sync.Mutex

// libraryName returns the shared library filename for goos.
func libraryName(goos string) (string, error) {
	switch goos {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// candidateLibraryPaths lists locations to probe, GPU builds first when requested.
func candidateLibraryPaths(useGPU bool, projectRoot, lib string) []string {
	var paths []string
	if env := os.Getenv(EnvLibraryPath); env != "" {
		paths = append(paths, env)
	}
	if useGPU {
		paths = append(paths, "/opt/onnxruntime/gpu/lib/"+lib)
	}
	paths = append(paths,
		"/usr/local/lib/"+lib,
		"/usr/lib/"+lib,
		"/opt/onnxruntime/cpu/lib/"+lib,
	)
	if projectRoot != "" {
		if useGPU {
			paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", lib))
		}
		paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "lib", lib))
	}
	return paths
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// FindLibrary returns the first existing ONNX Runtime library path.
func FindLibrary(useGPU bool) (string, error) {
	lib, err := libraryName(runtime.GOOS)
	if err != nil {
		return "", err
	}
	for _, p := range candidateLibraryPaths(useGPU, findProjectRoot(), lib) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s", ErrLibraryNotFound, lib)
}

// Init locates the shared library and initializes the runtime environment
// once per process. Later calls are no-ops.
func Init(useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return nil
	}
	path, err := FindLibrary(useGPU)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(path)
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}

// Shutdown tears down the runtime environment if it was initialized.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !onnxruntime_go.IsInitialized() {
		return nil
	}
	return onnxruntime_go.DestroyEnvironment()
}
