package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Model file names as distributed with the segmentation releases.
const (
	SegmentationU2Net   = "u2net.onnx"
	SegmentationSilueta = "silueta.onnx"
	SegmentationISNet   = "isnet-general-use.onnx"
	MattingBiRefNet     = "birefnet-general.onnx"
)

// Backend identifiers used in configuration and the capability table.
const (
	IDU2Net   = "u2net"
	IDSilueta = "silueta"
	IDISNet   = "isnet"
	IDMatting = "birefnet"
)

// Model type categories for organized directory structure.
const (
	TypeSegmentation = "segmentation"
	TypeMatting      = "matting"
)

// Default models directory.
const DefaultModelsDir = "models"

// Environment variable for models directory override.
const EnvModelsDir = "CUTOUT_MODELS_DIR"

// ModelInfo describes a model file and how its input must be prepared.
type ModelInfo struct {
	ID          string
	Type        string
	Description string
	Filename    string
	InputSize   int
	Mean        [3]float32
	Std         [3]float32
	// Weight is the relative confidence used when fusing ensemble outputs.
	Weight float64
	// Sigmoid marks models that emit logits instead of probabilities.
	Sigmoid bool
}

var imagenetMean = [3]float32{0.485, 0.456, 0.406}
var imagenetStd = [3]float32{0.229, 0.224, 0.225}

var catalog = []ModelInfo{
	{
		ID: IDU2Net, Type: TypeSegmentation, Filename: SegmentationU2Net,
		Description: "U2-Net general salient object segmentation",
		InputSize:   320, Mean: imagenetMean, Std: imagenetStd, Weight: 0.4,
	},
	{
		ID: IDISNet, Type: TypeSegmentation, Filename: SegmentationISNet,
		Description: "IS-Net general use dichotomous segmentation",
		InputSize:   1024, Mean: [3]float32{0.5, 0.5, 0.5}, Std: [3]float32{1, 1, 1}, Weight: 0.3,
	},
	{
		ID: IDSilueta, Type: TypeSegmentation, Filename: SegmentationSilueta,
		Description: "Silueta, a reduced U2-Net",
		InputSize:   320, Mean: imagenetMean, Std: imagenetStd, Weight: 0.3,
	},
	{
		ID: IDMatting, Type: TypeMatting, Filename: MattingBiRefNet,
		Description: "BiRefNet high quality matting",
		InputSize:   1024, Mean: imagenetMean, Std: imagenetStd, Weight: 1.0, Sigmoid: true,
	},
}

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
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
	return "", errors.New("could not find project root (go.mod not found)")
}

// GetModelsDir returns the models directory path from various sources
// Priority: 1. Explicit modelsDir parameter, 2. Environment variable, 3. Project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}
	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath prefers <dir>/<type>/<file> and falls back to the flat <dir>/<file>.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(baseDir, filename)
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (ModelInfo, bool) {
	i := slices.IndexFunc(catalog, func(m ModelInfo) bool { return m.ID == id })
	if i < 0 {
		return ModelInfo{}, false
	}
	return catalog[i], true
}

// PathFor resolves the file path of a catalog model.
func PathFor(modelsDir, id string) (string, error) {
	info, ok := Lookup(id)
	if !ok {
		return "", fmt.Errorf("unknown model: %s", id)
	}
	return ResolveModelPath(modelsDir, info.Type, info.Filename), nil
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListAvailableModels returns the catalog. Segmentation models come in
// their quality-ranked order.
func ListAvailableModels() []ModelInfo {
	return slices.Clone(catalog)
}

// SegmentationIDs returns the learned segmentation model IDs in ranked order.
func SegmentationIDs() []string {
	var ids []string
	for _, m := range catalog {
		if m.Type == TypeSegmentation {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
