package extraction

import (
	"github.com/pkg/errors"
)

var (
	// ErrEmptyExport is returned when asked to write a protocol with no points.
	// The hardware never accepts an empty protocol.
	ErrEmptyExport = errors.New("no extraction points to export")

	// ErrInvalidColor is returned for a point color that is not a hex color.
	ErrInvalidColor = errors.New("invalid point color")

	// ErrInvalidPoint is returned for a point with non-finite or inverted coordinates.
	ErrInvalidPoint = errors.New("invalid extraction point")

	// ErrInvalidImageInfo is returned for image metadata the protocol cannot express.
	ErrInvalidImageInfo = errors.New("invalid image info")

	// ErrUnsupportedFormat is returned for image formats other than TIF, JPG and PNG.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrWriteFailed is returned when the protocol or its backup cannot be written.
	ErrWriteFailed = errors.New("protocol write failed")
)

// ExportError reports a failed protocol export.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return "export: " + e.Err.Error()
	}
	return "export " + e.Path + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error { return e.Err }
