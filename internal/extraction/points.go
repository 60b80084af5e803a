package extraction

import (
	"fmt"
	"math"

	"cellpick/pkg/geometry"
)

// CreateExtractionPoints builds one ExtractionPoint per referenced cell of
// every selection. Out-of-range cell indices and cells without a usable
// crop are logged and skipped. When mapper is calibrated the crops are
// converted to stage micrometers; otherwise they stay in pixels.
func (e *Extractor) CreateExtractionPoints(selections []Selection, boxes []geometry.BoundingBox, mapper CoordinateMapper, bounds *ImageBounds) []ExtractionPoint {
	toStage := mapper != nil && mapper.IsCalibrated()
	space := PixelSpace
	if toStage {
		space = StageSpace
	}

	var points []ExtractionPoint
	for _, sel := range selections {
		for _, idx := range sel.CellIndices {
			if idx < 0 || idx >= len(boxes) {
				e.log.Warnf("Selection %q: cell index %d out of range (have %d boxes), skipping", sel.ID, idx, len(boxes))
				continue
			}

			bbox := boxes[idx]
			crop, ok := e.CalculateSquareCrop(bbox, bounds)
			if !ok {
				e.log.Warnf("Selection %q: cell %d bbox %+v has no valid crop, skipping", sel.ID, idx, bbox)
				continue
			}

			if toStage {
				crop, ok = stageCrop(mapper, crop)
				if !ok {
					e.log.Warnf("Selection %q: cell %d crop could not be transformed, skipping", sel.ID, idx)
					continue
				}
			}

			points = append(points, ExtractionPoint{
				ID:           fmt.Sprintf("%s_%d", sel.ID, idx),
				Label:        sel.Label,
				Color:        sel.Color,
				WellPosition: sel.WellPosition,
				Crop:         crop,
				Metadata: PointMetadata{
					SelectionID:     sel.ID,
					CellIndex:       idx,
					OriginalBBox:    bbox,
					CoordinateSpace: space,
					Extra:           copyExtra(sel.Metadata.Extra),
				},
			})
		}
	}

	e.log.Infof("Created %d extraction points from %d selections (%s space)", len(points), len(selections), space)
	return points
}

// stageCrop maps the two corners of a pixel crop to stage space. Under a
// similarity transform the square stays square; its side is the mapped
// diagonal divided by √2.
func stageCrop(mapper CoordinateMapper, crop geometry.CropRegion) (geometry.CropRegion, bool) {
	lo, ok := mapper.PixelToStage(crop.MinX(), crop.MinY())
	if !ok {
		return geometry.CropRegion{}, false
	}
	hi, ok := mapper.PixelToStage(crop.MaxX(), crop.MaxY())
	if !ok {
		return geometry.CropRegion{}, false
	}

	a, b := lo.Stage(), hi.Stage()
	size := a.Distance(b) / math.Sqrt2
	return geometry.NewCropRegion(a.Midpoint(b), size), true
}

func copyExtra(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
