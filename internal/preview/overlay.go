//go:build gocv
// +build gocv

package preview

import (
	"fmt"

	"cellpick/internal/extraction"

	"gocv.io/x/gocv"
)

// RenderOverlay draws every extraction point on the image at imagePath and
// writes the result to outPath.
func RenderOverlay(imagePath, outPath string, points []extraction.ExtractionPoint) error {
	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("failed to read image %s", imagePath)
	}
	defer img.Close()

	for _, s := range Shapes(points) {
		gocv.Rectangle(&img, s.Rect, s.Color, 2)
		gocv.PutText(&img, s.Label, labelAnchor(s.Rect),
			gocv.FontHersheyPlain, 1.0, s.Color, 1)
	}

	if !gocv.IMWrite(outPath, img) {
		return fmt.Errorf("failed to write overlay %s", outPath)
	}
	return nil
}
