// Package calibration maps image pixel coordinates to microscope stage
// coordinates (micrometers) from two user-confirmed calibration points.
//
// A Transformer is not safe for concurrent use. Callers that share one
// instance between goroutines must serialize access themselves.
package calibration

import (
	"math"

	"cellpick/internal/logger"
	"cellpick/internal/timestamper"
	"cellpick/pkg/geometry"

	"github.com/pkg/errors"
)

// Options configures point acceptance and quality scoring.
type Options struct {
	MinPointDistancePx  float64 // Minimum pixel distance between stored points
	AccuracyThresholdUM float64 // Reprojection error at which confidence reaches zero
	MaxStageAbsUM       float64 // Largest accepted |stage| coordinate
}

// DefaultOptions returns the standard calibration options.
func DefaultOptions() Options {
	return Options{
		MinPointDistancePx:  50,
		AccuracyThresholdUM: 1.0,
		MaxStageAbsUM:       100000,
	}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if o.MinPointDistancePx < 0 {
		return errors.Errorf("min point distance %g must not be negative", o.MinPointDistancePx)
	}
	if o.AccuracyThresholdUM <= 0 {
		return errors.Errorf("accuracy threshold %g must be positive", o.AccuracyThresholdUM)
	}
	if o.MaxStageAbsUM <= 0 {
		return errors.Errorf("stage limit %g must be positive", o.MaxStageAbsUM)
	}
	return nil
}

// TransformationResult is a stage position with the calibration's current
// confidence and worst-case error attached.
type TransformationResult struct {
	StageX          float64 `json:"stage_x"`
	StageY          float64 `json:"stage_y"`
	Confidence      float64 `json:"confidence"`
	ErrorEstimateUM float64 `json:"error_estimate_um"`
}

// Stage returns the result position as a point.
func (r TransformationResult) Stage() geometry.Point2D {
	return geometry.Point2D{X: r.StageX, Y: r.StageY}
}

// Transformer owns up to two calibration points and the transform derived
// from them.
type Transformer struct {
	opts  Options
	log   logger.ILogger
	clock timestamper.Stamper

	points     pointRing
	calibrated bool
	forward    geometry.AffineTransform
	inverse    geometry.AffineTransform
	quality    Quality
}

// NewTransformer creates an uncalibrated transformer.
func NewTransformer(opts Options) *Transformer {
	return &Transformer{opts: opts, log: logger.NullLogger{}, clock: timestamper.System{}}
}

// SetLogger replaces the logger. A nil logger discards output.
func (t *Transformer) SetLogger(l logger.ILogger) {
	if l == nil {
		l = logger.NullLogger{}
	}
	t.log = l
}

// SetStamper replaces the clock used to stamp exported records.
func (t *Transformer) SetStamper(s timestamper.Stamper) {
	if s == nil {
		s = timestamper.System{}
	}
	t.clock = s
}

// Options returns the options the transformer was created with.
func (t *Transformer) Options() Options {
	return t.opts
}

// AddPoint stores a calibration point. It returns a *CalibrationError and
// leaves the transformer untouched if the point is invalid or lies within
// MinPointDistancePx of a stored point. Adding to a full transformer evicts
// the oldest point. Once two points are stored the transform is derived; a
// failed derivation leaves the points stored but the transformer
// uncalibrated.
func (t *Transformer) AddPoint(pixelX, pixelY int, stageX, stageY float64, label string) error {
	p := CalibrationPoint{PixelX: pixelX, PixelY: pixelY, StageX: stageX, StageY: stageY, Label: label}
	if err := p.validate(t.opts.MaxStageAbsUM); err != nil {
		t.log.Warnf("Rejected calibration point %q: %v", label, err)
		return &CalibrationError{Op: "add point", Err: err}
	}

	for i := 0; i < t.points.len(); i++ {
		existing := t.points.at(i)
		if dist := existing.Pixel().Distance(p.Pixel()); dist < t.opts.MinPointDistancePx {
			err := errors.Wrapf(ErrPointsTooClose, "%.1f px from %q (minimum %.1f px)",
				dist, existing.Label, t.opts.MinPointDistancePx)
			t.log.Warnf("Rejected calibration point %q: %v", label, err)
			return &CalibrationError{Op: "add point", Err: err}
		}
	}

	if evicted, ok := t.points.push(p); ok {
		t.log.Infof("Calibration point %q replaced oldest point %q", label, evicted.Label)
	}
	t.log.Debugf("Calibration point %q: pixel (%d,%d) -> stage (%.3f,%.3f) µm",
		label, pixelX, pixelY, stageX, stageY)

	if t.points.len() == 2 {
		if err := t.recompute(); err != nil {
			t.log.Warnf("Calibration failed with points stored: %v", err)
		}
	}
	return nil
}

// RemovePoint deletes the point at index and drops the transform.
func (t *Transformer) RemovePoint(index int) error {
	if !t.points.remove(index) {
		return &CalibrationError{Op: "remove point", Err: errors.Wrapf(ErrIndexOutOfRange, "index %d", index)}
	}
	t.invalidate()
	return nil
}

// Clear removes all points and the transform.
func (t *Transformer) Clear() {
	t.points.clear()
	t.invalidate()
}

// IsCalibrated reports whether a valid transform exists.
func (t *Transformer) IsCalibrated() bool {
	return t.calibrated
}

// Points returns a copy of the stored points, oldest first.
func (t *Transformer) Points() []CalibrationPoint {
	return t.points.all()
}

// Transform returns the pixel-to-stage transform.
func (t *Transformer) Transform() (geometry.AffineTransform, bool) {
	return t.forward, t.calibrated
}

// InverseTransform returns the stage-to-pixel transform.
func (t *Transformer) InverseTransform() (geometry.AffineTransform, bool) {
	return t.inverse, t.calibrated
}

// Quality returns the quality of the current transform.
func (t *Transformer) Quality() (Quality, bool) {
	return t.quality, t.calibrated
}

// PixelToStage maps a pixel position to stage micrometers.
func (t *Transformer) PixelToStage(pixelX, pixelY float64) (TransformationResult, bool) {
	if !t.calibrated {
		return TransformationResult{}, false
	}
	s := t.forward.Apply(geometry.Point2D{X: pixelX, Y: pixelY})
	return TransformationResult{
		StageX:          s.X,
		StageY:          s.Y,
		Confidence:      t.quality.Confidence,
		ErrorEstimateUM: t.quality.MaxErrorUM,
	}, true
}

// StageToPixel maps a stage position back to the nearest pixel.
func (t *Transformer) StageToPixel(stageX, stageY float64) (geometry.PointInt, bool) {
	if !t.calibrated {
		return geometry.PointInt{}, false
	}
	p := t.inverse.Apply(geometry.Point2D{X: stageX, Y: stageY})
	return geometry.PointInt{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}, true
}

// TransformBoundingBoxes maps both corners of every box to stage space.
// Invalid boxes are skipped. The result is empty when uncalibrated.
func (t *Transformer) TransformBoundingBoxes(boxes []geometry.BoundingBox) []geometry.BoundingBox {
	if !t.calibrated {
		return []geometry.BoundingBox{}
	}

	out := make([]geometry.BoundingBox, 0, len(boxes))
	for i, b := range boxes {
		if !b.Valid() {
			t.log.Warnf("Skipping invalid bounding box %d: %+v", i, b)
			continue
		}
		lo, ok1 := t.PixelToStage(b.MinX, b.MinY)
		hi, ok2 := t.PixelToStage(b.MaxX, b.MaxY)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, geometry.BoundingBoxFromCorners(lo.Stage(), hi.Stage()))
	}
	return out
}

// Info summarizes the calibration state for display.
type Info struct {
	PointCount      int                `json:"point_count"`
	Calibrated      bool               `json:"calibrated"`
	ScaleUMPerPixel float64            `json:"scale_um_per_pixel,omitempty"`
	RotationDegrees float64            `json:"rotation_degrees,omitempty"`
	Quality         Quality            `json:"quality"`
	Points          []CalibrationPoint `json:"points"`
}

// Info returns the current calibration summary.
func (t *Transformer) Info() Info {
	info := Info{
		PointCount: t.points.len(),
		Calibrated: t.calibrated,
		Points:     t.points.all(),
	}
	if t.calibrated {
		info.ScaleUMPerPixel = t.forward.ScaleFactor()
		info.RotationDegrees = t.forward.RotationDegrees()
		info.Quality = t.quality
	}
	return info
}

func (t *Transformer) invalidate() {
	t.calibrated = false
	t.forward = geometry.AffineTransform{}
	t.inverse = geometry.AffineTransform{}
	t.quality = Quality{}
}

// recompute derives the transform from the stored points.
func (t *Transformer) recompute() error {
	t.invalidate()
	if t.points.len() != 2 {
		return &CalibrationError{Op: "derive", Err: ErrInsufficientPoints}
	}

	tr, err := deriveSimilarity(t.points.at(0), t.points.at(1))
	if err != nil {
		return &CalibrationError{Op: "derive", Err: err}
	}
	return t.install(tr)
}

// install makes tr the current transform and scores it against the stored points.
func (t *Transformer) install(tr geometry.AffineTransform) error {
	if !tr.IsFinite() {
		return &TransformationError{Op: "install", Err: errors.Wrap(ErrSingularMatrix, "non-finite coefficients")}
	}
	inv, err := tr.Inverse()
	if err != nil {
		return &TransformationError{Op: "invert", Err: ErrSingularMatrix}
	}

	t.forward = tr
	t.inverse = inv
	t.quality = assessQuality(t.points.all(), tr, t.opts.AccuracyThresholdUM)
	t.calibrated = true

	t.log.Infof("Calibrated: scale %.4f µm/px, rotation %.3f°, max error %.2e µm, confidence %.3f",
		tr.ScaleFactor(), tr.RotationDegrees(), t.quality.MaxErrorUM, t.quality.Confidence)
	return nil
}
