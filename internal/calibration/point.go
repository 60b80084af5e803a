package calibration

import (
	"math"

	"cellpick/pkg/geometry"

	"github.com/pkg/errors"
)

// CalibrationPoint pairs a pixel position with the stage position, in
// micrometers, that the user confirmed for it.
type CalibrationPoint struct {
	PixelX int     `json:"pixel_x"`
	PixelY int     `json:"pixel_y"`
	StageX float64 `json:"stage_x"`
	StageY float64 `json:"stage_y"`
	Label  string  `json:"label"`
}

// Pixel returns the pixel position as a float point.
func (p CalibrationPoint) Pixel() geometry.Point2D {
	return geometry.Point2D{X: float64(p.PixelX), Y: float64(p.PixelY)}
}

// Stage returns the stage position.
func (p CalibrationPoint) Stage() geometry.Point2D {
	return geometry.Point2D{X: p.StageX, Y: p.StageY}
}

func (p CalibrationPoint) validate(maxStageAbs float64) error {
	if p.PixelX < 0 || p.PixelY < 0 {
		return errors.Wrapf(ErrInvalidCoordinates, "pixel (%d,%d) is negative", p.PixelX, p.PixelY)
	}
	for _, v := range []float64{p.StageX, p.StageY} {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxStageAbs {
			return errors.Wrapf(ErrInvalidCoordinates, "stage (%g,%g) outside ±%g µm", p.StageX, p.StageY, maxStageAbs)
		}
	}
	return nil
}

// pointRing holds at most two calibration points in insertion order.
// Pushing onto a full ring evicts the oldest point.
type pointRing struct {
	slots [2]CalibrationPoint
	n     int
}

func (r *pointRing) len() int { return r.n }

func (r *pointRing) at(i int) CalibrationPoint { return r.slots[i] }

func (r *pointRing) push(p CalibrationPoint) (evicted CalibrationPoint, didEvict bool) {
	if r.n == len(r.slots) {
		evicted = r.slots[0]
		r.slots[0] = r.slots[1]
		r.slots[1] = p
		return evicted, true
	}
	r.slots[r.n] = p
	r.n++
	return CalibrationPoint{}, false
}

func (r *pointRing) remove(i int) bool {
	if i < 0 || i >= r.n {
		return false
	}
	if i == 0 {
		r.slots[0] = r.slots[1]
	}
	r.slots[r.n-1] = CalibrationPoint{}
	r.n--
	return true
}

func (r *pointRing) clear() {
	*r = pointRing{}
}

func (r *pointRing) all() []CalibrationPoint {
	out := make([]CalibrationPoint, r.n)
	copy(out, r.slots[:r.n])
	return out
}
