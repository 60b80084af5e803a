package extraction

import (
	"path/filepath"
	"strings"

	"cellpick/internal/calibration"
	"cellpick/pkg/geometry"

	"github.com/pkg/errors"
)

// CoordinateSpace names the space an extraction point's crop is expressed in.
type CoordinateSpace string

const (
	PixelSpace CoordinateSpace = "pixel"
	StageSpace CoordinateSpace = "stage"
)

// CoordinateMapper converts pixel positions to stage positions.
// *calibration.Transformer implements it.
type CoordinateMapper interface {
	IsCalibrated() bool
	PixelToStage(pixelX, pixelY float64) (calibration.TransformationResult, bool)
}

// SelectionMetadata carries free-form selection attributes.
type SelectionMetadata struct {
	Extra map[string]string `json:"extra,omitempty"`
}

// Selection is a labelled group of cells assigned to one output well.
type Selection struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	Color        string            `json:"color"`
	WellPosition string            `json:"well_position"`
	CellIndices  []int             `json:"cell_indices"`
	Metadata     SelectionMetadata `json:"metadata"`
}

// PointMetadata records where an extraction point came from.
type PointMetadata struct {
	SelectionID     string               `json:"selection_id"`
	CellIndex       int                  `json:"cell_index"`
	OriginalBBox    geometry.BoundingBox `json:"original_bbox"`
	CoordinateSpace CoordinateSpace      `json:"coordinate_space"`
	Extra           map[string]string    `json:"extra,omitempty"`
}

// ExtractionPoint is one cell to be cut, as written to a protocol line.
type ExtractionPoint struct {
	ID           string              `json:"id"`
	Label        string              `json:"label"`
	Color        string              `json:"color"`
	WellPosition string              `json:"well_position"`
	Crop         geometry.CropRegion `json:"crop_region"`
	Metadata     PointMetadata       `json:"metadata"`
}

// ImageBounds is the pixel size crops must stay inside.
type ImageBounds struct {
	Width  int
	Height int
}

// ImageInfo fills the protocol [IMAGE] section.
type ImageInfo struct {
	Name   string // File name without directory or extension
	Width  int
	Height int
	Format string // TIF, JPG or PNG
}

// NewImageInfo builds ImageInfo for an image file of the given size.
func NewImageInfo(path string, width, height int) (ImageInfo, error) {
	format, err := FormatFromExt(filepath.Ext(path))
	if err != nil {
		return ImageInfo{}, err
	}
	base := filepath.Base(path)
	return ImageInfo{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Width:  width,
		Height: height,
		Format: format,
	}, nil
}

// FormatFromExt maps a file extension or format name to a protocol format.
func FormatFromExt(ext string) (string, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "tif", "tiff":
		return "TIF", nil
	case "jpg", "jpeg":
		return "JPG", nil
	case "png":
		return "PNG", nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
}

func (i ImageInfo) validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return errors.Wrap(ErrInvalidImageInfo, "empty image name")
	}
	if i.Width < 0 || i.Height < 0 {
		return errors.Wrapf(ErrInvalidImageInfo, "negative size %dx%d", i.Width, i.Height)
	}
	switch i.Format {
	case "TIF", "JPG", "PNG":
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "%q", i.Format)
	}
	return nil
}
