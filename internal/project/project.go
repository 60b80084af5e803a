// Package project provides session file handling and persistence.
package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"cellpick/internal/calibration"
	"cellpick/internal/extraction"
	"cellpick/internal/logger"
	"cellpick/pkg/geometry"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FileVersion is the current session file layout.
const FileVersion = 1

// Extension is the conventional session file extension.
const Extension = ".cellpick"

// File represents a cellpick session file (.cellpick).
type File struct {
	Version  int       `json:"version"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	// Image path (relative to session file)
	ImagePath string `json:"image,omitempty"`

	Calibration *calibration.Record `json:"calibration,omitempty"`

	// Cell detections and the user's grouping of them
	BoundingBoxes []geometry.BoundingBox `json:"bounding_boxes"`
	Selections    []extraction.Selection `json:"selections"`
}

// New creates an empty session.
func New(name string) *File {
	now := time.Now()
	return &File{
		Version:       FileVersion,
		ID:            uuid.New().String(),
		Name:          name,
		Created:       now,
		Modified:      now,
		BoundingBoxes: []geometry.BoundingBox{},
		Selections:    []extraction.Selection{},
	}
}

// Load loads a session from a file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "failed to parse session %s", path)
	}
	if f.Version > FileVersion {
		return nil, errors.Errorf("session %s has unsupported version %d", path, f.Version)
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return &f, nil
}

// Save saves the session to a file.
func (p *File) Save(path string) error {
	p.Modified = time.Now()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Transformer rebuilds a calibration transformer from the stored record.
// A session without a record yields an empty transformer.
func (p *File) Transformer(opts calibration.Options, log logger.ILogger) (*calibration.Transformer, error) {
	t := calibration.NewTransformer(opts)
	if log != nil {
		t.SetLogger(log)
	}
	if p.Calibration == nil {
		return t, nil
	}
	if err := t.Import(*p.Calibration); err != nil {
		return nil, errors.Wrap(err, "failed to restore calibration")
	}
	return t, nil
}

// SetCalibration stores the transformer's current state.
func (p *File) SetCalibration(t *calibration.Transformer) {
	rec := t.Export()
	p.Calibration = &rec
	p.Modified = time.Now()
}

// SetImage sets the image path (relative to the session).
func (p *File) SetImage(sessionPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(sessionPath), imagePath)
	if err != nil {
		p.ImagePath = imagePath
	} else {
		p.ImagePath = rel
	}
	p.Modified = time.Now()
}

// GetImagePath returns the path to the image resolved against the session.
func (p *File) GetImagePath(sessionPath string) string {
	if p.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(p.ImagePath) {
		return p.ImagePath
	}
	return filepath.Join(filepath.Dir(sessionPath), p.ImagePath)
}

// DefaultProtocolPath returns session_name_protocol.txt next to the session.
func DefaultProtocolPath(sessionPath string) string {
	base := sessionPath[:len(sessionPath)-len(filepath.Ext(sessionPath))]
	return base + "_protocol.txt"
}
