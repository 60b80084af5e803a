//go:build !gocv
// +build !gocv

package preview

import "cellpick/internal/extraction"

// RenderOverlay returns ErrUnavailable when built without the gocv tag.
func RenderOverlay(_, _ string, _ []extraction.ExtractionPoint) error {
	return ErrUnavailable
}
