package calibration

import (
	"time"

	"cellpick/pkg/geometry"

	"github.com/pkg/errors"
)

// RecordVersion is the current calibration record layout.
const RecordVersion = 1

// Record is the persisted form of a transformer. The persistence layer
// stores it verbatim.
type Record struct {
	Version       int                `json:"version"`
	Points        []CalibrationPoint `json:"points"`
	Matrix        *[2][3]float64     `json:"matrix,omitempty"`
	InverseMatrix *[2][3]float64     `json:"inverse_matrix,omitempty"`
	Quality       *Quality           `json:"quality,omitempty"`
	Calibrated    bool               `json:"calibrated"`

	// Options in force at export time. Informational: Import keeps the
	// importing transformer's own options.
	MinPointDistancePx  float64   `json:"min_point_distance_px"`
	AccuracyThresholdUM float64   `json:"accuracy_threshold_um"`
	ExportedAt          time.Time `json:"exported_at"`
}

// Export captures the full transformer state.
func (t *Transformer) Export() Record {
	rec := Record{
		Version:    RecordVersion,
		Points:     t.points.all(),
		Calibrated: t.calibrated,

		MinPointDistancePx:  t.opts.MinPointDistancePx,
		AccuracyThresholdUM: t.opts.AccuracyThresholdUM,
		ExportedAt:          t.clock.Now().UTC(),
	}
	if t.calibrated {
		m := t.forward.ToMatrix()
		inv := t.inverse.ToMatrix()
		q := t.quality
		rec.Matrix = &m
		rec.InverseMatrix = &inv
		rec.Quality = &q
	}
	return rec
}

// Import replaces the transformer state with rec. A stored matrix is used
// as is, whatever the Calibrated flag says; its inverse and quality are
// recomputed. A record without a matrix but with two points is derived from
// its points. Points must satisfy the same checks as AddPoint. On error the
// transformer is left unchanged.
func (t *Transformer) Import(rec Record) error {
	if rec.Version > RecordVersion {
		return &CalibrationError{Op: "import", Err: errors.Errorf("unsupported record version %d", rec.Version)}
	}
	if len(rec.Points) > 2 {
		return &CalibrationError{Op: "import", Err: errors.Wrapf(ErrInsufficientPoints, "record holds %d points", len(rec.Points))}
	}

	next := &Transformer{opts: t.opts, log: t.log, clock: t.clock}
	for _, p := range rec.Points {
		if err := p.validate(t.opts.MaxStageAbsUM); err != nil {
			return &CalibrationError{Op: "import", Err: err}
		}
		next.points.push(p)
	}
	if next.points.len() == 2 {
		a, b := next.points.at(0), next.points.at(1)
		if dist := a.Pixel().Distance(b.Pixel()); dist < t.opts.MinPointDistancePx {
			return &CalibrationError{Op: "import", Err: errors.Wrapf(ErrPointsTooClose,
				"%.1f px between %q and %q (minimum %.1f px)", dist, a.Label, b.Label, t.opts.MinPointDistancePx)}
		}
	}

	switch {
	case rec.Matrix != nil:
		if next.points.len() != 2 {
			return &CalibrationError{Op: "import", Err: errors.Wrap(ErrInsufficientPoints, "record matrix without two points")}
		}
		if err := next.install(geometry.FromMatrix(*rec.Matrix)); err != nil {
			return err
		}
	case next.points.len() == 2:
		if err := next.recompute(); err != nil {
			t.log.Warnf("Imported calibration points do not form a transform: %v", err)
		}
	}

	*t = *next
	t.log.Infof("Imported calibration: %d points, calibrated=%v", t.points.len(), t.calibrated)
	return nil
}
