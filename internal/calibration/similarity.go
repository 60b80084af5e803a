package calibration

import (
	"math"

	"cellpick/pkg/geometry"
)

// degenerateEpsilon is the smallest pixel separation treated as two distinct points.
const degenerateEpsilon = 1e-9

// deriveSimilarity computes the transform mapping p0/p1 pixels onto their
// stage positions using uniform scale, rotation and translation only.
//
// Two correspondences fix exactly four degrees of freedom, so the fit is
// exact. Non-uniform axis scaling or shear between the camera and stage
// cannot be represented and is left uncorrected.
func deriveSimilarity(p0, p1 CalibrationPoint) (geometry.AffineTransform, error) {
	s0, s1 := p0.Pixel(), p1.Pixel()
	d0, d1 := p0.Stage(), p1.Stage()

	dp := s1.Sub(s0)
	ds := d1.Sub(d0)

	pixelLen := math.Hypot(dp.X, dp.Y)
	if pixelLen < degenerateEpsilon {
		return geometry.AffineTransform{}, ErrDegeneratePoints
	}

	scale := math.Hypot(ds.X, ds.Y) / pixelLen
	theta := math.Atan2(ds.Y, ds.X) - math.Atan2(dp.Y, dp.X)

	a := scale * math.Cos(theta)
	b := -scale * math.Sin(theta)
	d := scale * math.Sin(theta)
	e := scale * math.Cos(theta)

	// Translation: d0 = M * s0 + t  =>  t = d0 - M * s0
	c := d0.X - (a*s0.X + b*s0.Y)
	f := d0.Y - (d*s0.X + e*s0.Y)

	return geometry.AffineTransform{
		A: a, B: b, TX: c,
		C: d, D: e, TY: f,
	}, nil
}

// Quality summarizes how well a transform reproduces the calibration points.
type Quality struct {
	AverageErrorUM      float64 `json:"average_error_um"`
	MaxErrorUM          float64 `json:"max_error_um"`
	MeetsAccuracyTarget bool    `json:"meets_accuracy_target"`
	Confidence          float64 `json:"transformation_confidence"`
}

// assessQuality reprojects every point through the transform. With two
// points the residual only reflects floating-point error.
func assessQuality(points []CalibrationPoint, tr geometry.AffineTransform, thresholdUM float64) Quality {
	if len(points) == 0 {
		return Quality{}
	}

	var total, worst float64
	for _, p := range points {
		err := tr.Apply(p.Pixel()).Distance(p.Stage())
		total += err
		worst = math.Max(worst, err)
	}

	return Quality{
		AverageErrorUM:      total / float64(len(points)),
		MaxErrorUM:          worst,
		MeetsAccuracyTarget: worst <= thresholdUM,
		Confidence:          math.Max(0, 1-worst/thresholdUM),
	}
}
