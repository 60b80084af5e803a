package extraction

import (
	"fmt"
	"math"
	"testing"

	"cellpick/internal/calibration"
	"cellpick/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger keeps warnings for assertions.
type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debugf(format string, a ...interface{}) {}
func (l *recordingLogger) Infof(format string, a ...interface{})  {}
func (l *recordingLogger) Errorf(format string, a ...interface{}) {}
func (l *recordingLogger) Warnf(format string, a ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, a...))
}

// brokenMapper claims to be calibrated but cannot transform anything.
type brokenMapper struct{}

func (brokenMapper) IsCalibrated() bool { return true }
func (brokenMapper) PixelToStage(x, y float64) (calibration.TransformationResult, bool) {
	return calibration.TransformationResult{}, false
}

func testBoxes() []geometry.BoundingBox {
	return []geometry.BoundingBox{
		geometry.NewBoundingBox(10, 10, 30, 50),
		geometry.NewBoundingBox(100, 100, 120, 120),
		geometry.NewBoundingBox(5, 5, 5, 5),
	}
}

func testSelections() []Selection {
	return []Selection{
		{
			ID: "sel1", Label: "Tumor", Color: "#FF0000", WellPosition: "A01",
			CellIndices: []int{0, 7, 1},
			Metadata:    SelectionMetadata{Extra: map[string]string{"operator": "jd"}},
		},
		{
			ID: "sel2", Label: "Stroma", Color: "#00ff00", WellPosition: "B02",
			CellIndices: []int{2, -1, 1},
		},
	}
}

func TestCreateExtractionPoints_PixelSpace(t *testing.T) {
	ex := NewExtractor(DefaultOptions())
	log := &recordingLogger{}
	ex.SetLogger(log)

	points := ex.CreateExtractionPoints(testSelections(), testBoxes(), nil, nil)
	require.Len(t, points, 3)

	first := points[0]
	assert.Equal(t, "sel1_0", first.ID)
	assert.Equal(t, "Tumor", first.Label)
	assert.Equal(t, "#FF0000", first.Color)
	assert.Equal(t, "A01", first.WellPosition)
	assert.Equal(t, geometry.CropRegion{CenterX: 20, CenterY: 30, Size: 24}, first.Crop)
	assert.Equal(t, PointMetadata{
		SelectionID:     "sel1",
		CellIndex:       0,
		OriginalBBox:    testBoxes()[0],
		CoordinateSpace: PixelSpace,
		Extra:           map[string]string{"operator": "jd"},
	}, first.Metadata)

	assert.Equal(t, "sel1_1", points[1].ID)
	assert.Equal(t, "sel2_1", points[2].ID)
	assert.Equal(t, "B02", points[2].WellPosition)

	// Index 7, index -1 and the degenerate box 2 are skipped with warnings.
	assert.Len(t, log.warnings, 3)
}

func TestCreateExtractionPoints_ExtraIsCopied(t *testing.T) {
	ex := NewExtractor(DefaultOptions())
	sels := testSelections()
	points := ex.CreateExtractionPoints(sels, testBoxes(), nil, nil)
	require.NotEmpty(t, points)

	sels[0].Metadata.Extra["operator"] = "changed"
	assert.Equal(t, "jd", points[0].Metadata.Extra["operator"])
}

func TestCreateExtractionPoints_StageSpace(t *testing.T) {
	tr := calibration.NewTransformer(calibration.DefaultOptions())
	// 2 µm per pixel, no rotation, offset (1000, 500).
	require.NoError(t, tr.AddPoint(0, 0, 1000, 500, "a"))
	require.NoError(t, tr.AddPoint(100, 0, 1200, 500, "b"))

	ex := NewExtractor(DefaultOptions())
	points := ex.CreateExtractionPoints(testSelections()[:1], testBoxes(), tr, nil)
	require.Len(t, points, 2)

	c := points[0].Crop
	assert.InDelta(t, 1040, c.CenterX, 1e-6)
	assert.InDelta(t, 560, c.CenterY, 1e-6)
	assert.InDelta(t, 48, c.Size, 1e-6)
	assert.Equal(t, StageSpace, points[0].Metadata.CoordinateSpace)
	assert.Equal(t, testBoxes()[0], points[0].Metadata.OriginalBBox)
}

func TestCreateExtractionPoints_RotatedStageStaysSquare(t *testing.T) {
	tr := calibration.NewTransformer(calibration.DefaultOptions())
	require.NoError(t, tr.AddPoint(0, 0, 0, 0, "a"))
	require.NoError(t, tr.AddPoint(100, 0, 150*math.Cos(0.3), 150*math.Sin(0.3), "b"))

	ex := NewExtractor(DefaultOptions())
	points := ex.CreateExtractionPoints(testSelections()[:1], testBoxes(), tr, nil)
	require.Len(t, points, 2)
	assert.InDelta(t, 24*1.5, points[0].Crop.Size, 1e-6)

	b := points[0].Crop.Bounds()
	assert.InDelta(t, b.Width(), b.Height(), 1e-9)
}

func TestCreateExtractionPoints_UncalibratedMapperKeepsPixels(t *testing.T) {
	tr := calibration.NewTransformer(calibration.DefaultOptions())
	ex := NewExtractor(DefaultOptions())
	points := ex.CreateExtractionPoints(testSelections()[:1], testBoxes(), tr, nil)
	require.Len(t, points, 2)
	assert.Equal(t, PixelSpace, points[0].Metadata.CoordinateSpace)
	assert.Equal(t, 20.0, points[0].Crop.CenterX)
}

func TestCreateExtractionPoints_FailedTransformSkips(t *testing.T) {
	ex := NewExtractor(DefaultOptions())
	log := &recordingLogger{}
	ex.SetLogger(log)

	points := ex.CreateExtractionPoints(testSelections()[:1], testBoxes(), brokenMapper{}, nil)
	assert.Empty(t, points)
	assert.Len(t, log.warnings, 3)
}

func TestCreateExtractionPoints_UsesImageBounds(t *testing.T) {
	ex := NewExtractor(DefaultOptions())
	sels := []Selection{{ID: "edge", Color: "#000000", CellIndices: []int{0}}}
	boxes := []geometry.BoundingBox{geometry.NewBoundingBox(0, 0, 20, 20)}

	points := ex.CreateExtractionPoints(sels, boxes, nil, &ImageBounds{Width: 50, Height: 50})
	require.Len(t, points, 1)
	assert.Equal(t, 0.0, points[0].Crop.MinX())
	assert.Equal(t, 0.0, points[0].Crop.MinY())
}
