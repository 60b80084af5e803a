package calibration

import (
	"encoding/json"
	"testing"
	"time"

	"cellpick/internal/timestamper"
	"cellpick/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_RoundTrip(t *testing.T) {
	exportedAt := time.Date(2026, 10, 19, 15, 30, 45, 0, time.UTC)
	src := newCalibrated(t)
	src.SetStamper(&timestamper.Mock{QueuedTimes: []time.Time{exportedAt}})
	rec := src.Export()
	require.True(t, rec.Calibrated)
	require.NotNil(t, rec.Matrix)
	require.NotNil(t, rec.Quality)

	// The persistence layer stores the record as JSON.
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var stored Record
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, 50.0, stored.MinPointDistancePx)
	assert.Equal(t, 1.0, stored.AccuracyThresholdUM)
	assert.True(t, exportedAt.Equal(stored.ExportedAt))

	dst := NewTransformer(DefaultOptions())
	require.NoError(t, dst.Import(stored))
	assert.True(t, dst.IsCalibrated())
	assert.Equal(t, src.Points(), dst.Points())

	want, _ := src.Transform()
	got, _ := dst.Transform()
	assert.Equal(t, want, got)

	res, ok := dst.PixelToStage(450, 375)
	require.True(t, ok)
	assert.InDelta(t, 4500, res.StageX, 1e-6)
}

func TestRecord_ImportUsesStoredMatrix(t *testing.T) {
	src := newCalibrated(t)
	rec := src.Export()

	// A matrix that no longer reproduces the points exactly: quality must be
	// recomputed from it rather than the matrix re-derived.
	m := *rec.Matrix
	m[0][2] += 0.5
	rec.Matrix = &m

	dst := NewTransformer(DefaultOptions())
	require.NoError(t, dst.Import(rec))
	got, _ := dst.Transform()
	assert.Equal(t, geometry.FromMatrix(m), got)

	q, ok := dst.Quality()
	require.True(t, ok)
	assert.InDelta(t, 0.5, q.MaxErrorUM, 1e-9)
	assert.InDelta(t, 0.5, q.Confidence, 1e-9)
	assert.True(t, q.MeetsAccuracyTarget)
}

func TestRecord_ImportDerivesWithoutMatrix(t *testing.T) {
	rec := Record{
		Version: RecordVersion,
		Points: []CalibrationPoint{
			{PixelX: 100, PixelY: 150, StageX: 1000, StageY: 2000, Label: "P1"},
			{PixelX: 800, PixelY: 600, StageX: 8000, StageY: 6000, Label: "P2"},
		},
	}
	tr := NewTransformer(DefaultOptions())
	require.NoError(t, tr.Import(rec))
	assert.True(t, tr.IsCalibrated())
}

func TestRecord_ImportTooCloseIsPointsTooClose(t *testing.T) {
	rec := Record{
		Version: RecordVersion,
		Points: []CalibrationPoint{
			{PixelX: 100, PixelY: 100, StageX: 1000, StageY: 1000},
			{PixelX: 105, PixelY: 100, StageX: 1050, StageY: 1000},
		},
	}
	tr := NewTransformer(DefaultOptions())
	err := tr.Import(rec)
	require.ErrorIs(t, err, ErrPointsTooClose)
	var calErr *CalibrationError
	require.ErrorAs(t, err, &calErr)
	assert.False(t, tr.IsCalibrated())
	assert.Empty(t, tr.Points())
}

func TestRecord_ImportMatrixWinsOverFlag(t *testing.T) {
	m := [2][3]float64{{2, 0, 7}, {0, 2, 9}}
	rec := Record{
		Version: RecordVersion,
		Points: []CalibrationPoint{
			{PixelX: 0, PixelY: 0, StageX: 0, StageY: 0},
			{PixelX: 100, PixelY: 0, StageX: 100, StageY: 0},
		},
		Matrix:     &m,
		Calibrated: false,
	}
	tr := NewTransformer(DefaultOptions())
	require.NoError(t, tr.Import(rec))
	require.True(t, tr.IsCalibrated())
	got, _ := tr.Transform()
	assert.Equal(t, geometry.FromMatrix(m), got)
}

func TestRecord_ImportReplacesState(t *testing.T) {
	tr := newCalibrated(t)
	require.NoError(t, tr.Import(Record{Version: RecordVersion}))
	assert.False(t, tr.IsCalibrated())
	assert.Empty(t, tr.Points())
}

func TestRecord_ImportRejectsBadRecords(t *testing.T) {
	good := newCalibrated(t)
	valid := good.Export()

	tooMany := valid
	tooMany.Points = append(append([]CalibrationPoint{}, valid.Points...), CalibrationPoint{PixelX: 5, PixelY: 5})

	badPoint := valid
	badPoint.Points = []CalibrationPoint{{PixelX: -3}, valid.Points[1]}

	onePoint := valid
	onePoint.Points = valid.Points[:1]

	tooClose := valid
	tooClose.Points = []CalibrationPoint{
		{PixelX: 100, PixelY: 100, StageX: 1000, StageY: 1000, Label: "A"},
		{PixelX: 103, PixelY: 104, StageX: 1030, StageY: 1040, Label: "B"},
	}

	future := valid
	future.Version = RecordVersion + 1

	for name, rec := range map[string]Record{
		"too many points":       tooMany,
		"invalid point":         badPoint,
		"matrix with one point": onePoint,
		"points too close":      tooClose,
		"unsupported version":   future,
	} {
		t.Run(name, func(t *testing.T) {
			tr := newCalibrated(t)
			tr.SetStamper(&timestamper.Mock{QueuedTimes: []time.Time{time.Unix(0, 0)}})
			before := tr.Export()
			require.Error(t, tr.Import(rec))
			assert.Equal(t, before, tr.Export())
		})
	}
}

func TestPointRing(t *testing.T) {
	var r pointRing
	r.push(CalibrationPoint{Label: "a"})
	r.push(CalibrationPoint{Label: "b"})
	ev, ok := r.push(CalibrationPoint{Label: "c"})
	require.True(t, ok)
	assert.Equal(t, "a", ev.Label)
	assert.Equal(t, []CalibrationPoint{{Label: "b"}, {Label: "c"}}, r.all())

	assert.False(t, r.remove(2))
	assert.True(t, r.remove(1))
	assert.Equal(t, []CalibrationPoint{{Label: "b"}}, r.all())
	r.clear()
	assert.Equal(t, 0, r.len())
}
