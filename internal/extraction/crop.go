package extraction

import (
	"math"

	"cellpick/pkg/geometry"
)

// boundsEpsilon absorbs rounding when a shifted square touches an image edge.
const boundsEpsilon = 1e-9

// CalculateSquareCrop returns a square crop around bbox. The side is the
// shorter bbox side times PaddingFactor, clamped to [MinCropSizePx,
// MaxCropSizePx]. With bounds, the square is first shifted to lie inside
// the image; if it still does not fit it is shrunk around the box center,
// and a crop smaller than MinCropSizePx is rejected.
func (e *Extractor) CalculateSquareCrop(bbox geometry.BoundingBox, bounds *ImageBounds) (geometry.CropRegion, bool) {
	if !bbox.Valid() {
		return geometry.CropRegion{}, false
	}

	base := math.Min(bbox.Width(), bbox.Height())
	size := math.Max(e.opts.MinCropSizePx, math.Min(base*e.opts.PaddingFactor, e.opts.MaxCropSizePx))
	center := bbox.Center()

	if bounds == nil {
		return geometry.NewCropRegion(center, size), true
	}

	w, h := float64(bounds.Width), float64(bounds.Height)
	shifted := geometry.Point2D{
		X: shiftAxis(center.X, size, w),
		Y: shiftAxis(center.Y, size, h),
	}
	if crop := geometry.NewCropRegion(shifted, size); fitsInside(crop, w, h) {
		return crop, true
	}

	reduced := math.Min(2*math.Min(center.X, w-center.X), 2*math.Min(center.Y, h-center.Y))
	reduced = math.Min(reduced, size)
	if reduced < e.opts.MinCropSizePx {
		return geometry.CropRegion{}, false
	}
	return geometry.NewCropRegion(center, reduced), true
}

// shiftAxis moves a centered span of length size so it starts at or after 0
// and ends at or before limit, preferring the low edge when both fail.
func shiftAxis(center, size, limit float64) float64 {
	half := size / 2
	if center+half > limit {
		center = limit - half
	}
	if center-half < 0 {
		center = half
	}
	return center
}

func fitsInside(c geometry.CropRegion, w, h float64) bool {
	return c.MinX() >= -boundsEpsilon && c.MinY() >= -boundsEpsilon &&
		c.MaxX() <= w+boundsEpsilon && c.MaxY() <= h+boundsEpsilon
}
