package support

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

const sceneRadius = 0.3

func productScene() *image.RGBA {
	return testutil.Disc(testutil.SmallSize,
		color.RGBA{R: 245, G: 245, B: 245, A: 255}, color.RGBA{R: 30, G: 60, B: 170, A: 255}, sceneRadius)
}

// aProductSceneImage writes a subject-on-backdrop PNG into the temp dir.
func (testCtx *TestContext) aProductSceneImage(name string) error {
	path := testCtx.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return utils.SaveImage(path, productScene(), utils.EncodeOptions{Format: utils.FormatPNG})
}

func (testCtx *TestContext) aDirectoryWithProductScenes(dir string, n int) error {
	if err := os.MkdirAll(testCtx.resolve(dir), 0o755); err != nil {
		return err
	}
	for i := range n {
		if err := testCtx.aProductSceneImage(filepath.Join(dir, fmt.Sprintf("scene%d.png", i))); err != nil {
			return err
		}
	}
	return nil
}

// aCorruptImage writes a file with an image extension but no image data.
func (testCtx *TestContext) aCorruptImage(name string) error {
	path := testCtx.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("definitely not a png"), 0o600)
}

func (testCtx *TestContext) loadResult(name string) (image.Image, error) {
	img, _, err := utils.LoadImage(testCtx.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return img, nil
}

// theCutoutShouldIsolateTheSubject checks corners are transparent and the mask matches the disc.
func (testCtx *TestContext) theCutoutShouldIsolateTheSubject(name string) error {
	img, err := testCtx.loadResult(name)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if _, _, _, a := img.At(b.Min.X, b.Min.Y).RGBA(); a != 0 {
		return fmt.Errorf("%s: corner pixel is not transparent (alpha %d)", name, a>>8)
	}
	if _, _, _, a := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA(); a>>8 < 250 {
		return fmt.Errorf("%s: center pixel is not opaque (alpha %d)", name, a>>8)
	}
	if iou := testutil.IoU(img, testutil.DiscMask(testutil.SmallSize, sceneRadius)); iou < 0.8 {
		return fmt.Errorf("%s: mask IoU %.2f below 0.8", name, iou)
	}
	return nil
}

// theCutoutShouldBeFullyOpaque checks a flattened (JPEG or colored) result.
func (testCtx *TestContext) theCutoutShouldBeFullyOpaque(name string) error {
	img, err := testCtx.loadResult(name)
	if err != nil {
		return err
	}
	if r := testutil.AlphaRatio(img); r < 0.999 {
		return fmt.Errorf("%s: expected an opaque image, alpha ratio %.3f", name, r)
	}
	return nil
}

func (testCtx *TestContext) theCutoutCornerShouldBeColored(name string, r, g, b int) error {
	img, err := testCtx.loadResult(name)
	if err != nil {
		return err
	}
	cr, cg, cb, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	near := func(got uint32, want int) bool {
		d := int(got>>8) - want
		return d >= -12 && d <= 12
	}
	if !near(cr, r) || !near(cg, g) || !near(cb, b) {
		return fmt.Errorf("%s: corner is (%d,%d,%d), want about (%d,%d,%d)", name, cr>>8, cg>>8, cb>>8, r, g, b)
	}
	return nil
}

// RegisterImageSteps registers steps that create inputs and inspect cut-outs.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a product scene image "([^"]*)"$`, testCtx.aProductSceneImage)
	sc.Step(`^a directory "([^"]*)" with (\d+) product scenes$`, testCtx.aDirectoryWithProductScenes)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^the cutout "([^"]*)" should isolate the subject$`, testCtx.theCutoutShouldIsolateTheSubject)
	sc.Step(`^the cutout "([^"]*)" should be fully opaque$`, testCtx.theCutoutShouldBeFullyOpaque)
	sc.Step(`^the corner of "([^"]*)" should be colored (\d+),(\d+),(\d+)$`, testCtx.theCutoutCornerShouldBeColored)
}
