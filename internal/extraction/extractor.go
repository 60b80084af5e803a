// Package extraction turns cell bounding boxes into square crop regions and
// writes them to the protocol file read by the sorting hardware.
//
// An Extractor is not safe for concurrent use; callers serialize access.
package extraction

import (
	"cellpick/internal/logger"
	"cellpick/internal/timestamper"

	"github.com/pkg/errors"
)

// Options configures crop sizing.
type Options struct {
	PaddingFactor float64 // Multiplier applied to the shorter bounding box side
	MinCropSizePx float64 // Smallest crop side in pixels
	MaxCropSizePx float64 // Largest crop side in pixels
}

// DefaultOptions returns the standard crop options.
func DefaultOptions() Options {
	return Options{
		PaddingFactor: 1.2,
		MinCropSizePx: 10,
		MaxCropSizePx: 1000,
	}
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if o.PaddingFactor <= 0 {
		return errors.Errorf("padding factor %g must be positive", o.PaddingFactor)
	}
	if o.MinCropSizePx <= 0 {
		return errors.Errorf("min crop size %g must be positive", o.MinCropSizePx)
	}
	if o.MaxCropSizePx < o.MinCropSizePx {
		return errors.Errorf("max crop size %g below min crop size %g", o.MaxCropSizePx, o.MinCropSizePx)
	}
	return nil
}

// Extractor builds extraction points and protocol files.
type Extractor struct {
	opts  Options
	log   logger.ILogger
	clock timestamper.Stamper
}

// NewExtractor creates an Extractor using the system clock and no logging.
func NewExtractor(opts Options) *Extractor {
	return &Extractor{
		opts:  opts,
		log:   logger.NullLogger{},
		clock: timestamper.System{},
	}
}

// SetLogger replaces the logger. A nil logger discards output.
func (e *Extractor) SetLogger(l logger.ILogger) {
	if l == nil {
		l = logger.NullLogger{}
	}
	e.log = l
}

// SetStamper replaces the clock used to name backup files.
func (e *Extractor) SetStamper(s timestamper.Stamper) {
	if s == nil {
		s = timestamper.System{}
	}
	e.clock = s
}

// Options returns the extractor's crop options.
func (e *Extractor) Options() Options {
	return e.opts
}
