package calibration

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidCoordinates is returned for negative pixels or out-of-range stage values.
	ErrInvalidCoordinates = errors.New("invalid calibration coordinates")

	// ErrPointsTooClose is returned when a new point is within the minimum pixel distance of a stored point.
	ErrPointsTooClose = errors.New("calibration point too close to an existing point")

	// ErrInsufficientPoints is returned when a transform is requested without exactly two points.
	ErrInsufficientPoints = errors.New("exactly two calibration points are required")

	// ErrDegeneratePoints is returned when both points share a pixel position.
	ErrDegeneratePoints = errors.New("calibration points are degenerate")

	// ErrIndexOutOfRange is returned by RemovePoint for an unknown index.
	ErrIndexOutOfRange = errors.New("calibration point index out of range")

	// ErrSingularMatrix is returned when the derived transform cannot be inverted.
	ErrSingularMatrix = errors.New("transform matrix is singular")

	// ErrNotCalibrated is returned when a transform is needed but none exists.
	ErrNotCalibrated = errors.New("transformer is not calibrated")
)

// CalibrationError reports a rejected calibration input or a failed derivation.
type CalibrationError struct {
	Op  string
	Err error
}

func (e *CalibrationError) Error() string {
	return "calibration " + e.Op + ": " + e.Err.Error()
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// TransformationError reports a transform that cannot be built or applied.
type TransformationError struct {
	Op  string
	Err error
}

func (e *TransformationError) Error() string {
	return "transformation " + e.Op + ": " + e.Err.Error()
}

func (e *TransformationError) Unwrap() error { return e.Err }
