// Package preview draws extraction points over the source image for a
// quick visual check before cutting.
package preview

import (
	"image"
	"image/color"
	"math"

	"cellpick/internal/extraction"
	"cellpick/pkg/colorutil"
)

// ErrUnavailable is returned when the binary was built without OpenCV.
var ErrUnavailable = errUnavailable{}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "preview: gocv build tag is not enabled" }

// Shape is one rectangle to draw, in image pixels.
type Shape struct {
	Rect  image.Rectangle
	Color color.RGBA
	Label string
}

// Shapes converts extraction points to pixel rectangles. Pixel-space points
// use their crop square; stage-space points fall back to the original cell
// bounding box since the stage square cannot be drawn on the image.
func Shapes(points []extraction.ExtractionPoint) []Shape {
	shapes := make([]Shape, 0, len(points))
	for _, p := range points {
		var r image.Rectangle
		if p.Metadata.CoordinateSpace == extraction.StageSpace {
			b := p.Metadata.OriginalBBox
			r = rectOf(b.MinX, b.MinY, b.MaxX, b.MaxY)
		} else {
			r = rectOf(p.Crop.MinX(), p.Crop.MinY(), p.Crop.MaxX(), p.Crop.MaxY())
		}
		if r.Empty() {
			continue
		}

		col, err := colorutil.ParseHex(p.Color)
		if err != nil {
			col = colorutil.White
		}

		label := p.Label
		if label == "" {
			label = p.ID
		}
		shapes = append(shapes, Shape{Rect: r, Color: col, Label: label})
	}
	return shapes
}

func rectOf(minX, minY, maxX, maxY float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}

// labelAnchor puts the label above the rectangle, or below it when there
// is no room at the top of the image.
func labelAnchor(r image.Rectangle) image.Point {
	pos := image.Point{X: r.Min.X, Y: r.Min.Y - 5}
	if pos.Y < 15 {
		pos.Y = r.Max.Y + 15
	}
	return pos
}
