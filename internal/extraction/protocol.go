package extraction

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"cellpick/pkg/colorutil"

	"github.com/pkg/errors"
)

// Protocol section and key names. The sorting hardware matches them exactly.
const (
	sectionImage  = "IMAGE"
	sectionLayout = "IMAGING_LAYOUT"

	keyFile         = "FILE"
	keyWidth        = "WIDTH"
	keyHeight       = "HEIGHT"
	keyFormat       = "FORMAT"
	keyPositionOnly = "PositionOnly"
	keyAfterBefore  = "AfterBefore"
	keyPoints       = "Points"
	pointKeyPrefix  = "P_"

	// pointFieldCount is the number of ';'-terminated fields in a point payload.
	pointFieldCount = 7

	backupTimeLayout   = "20060102_150405"
	maxBackupsPerStamp = 1000
)

// payloadReplacer keeps free text from breaking the quoted, ';'-separated payload.
var payloadReplacer = strings.NewReplacer(";", ",", "\"", "'", "\r", " ", "\n", " ")

// GenerateProtocolFile writes points to outputPath and then writes an
// identical backup next to it, named with a timestamp suffix. It returns the
// backup path. If only the backup write fails the primary file stays on disk
// and the returned ExportError names the backup path. An empty point list is rejected with ErrEmptyExport before
// anything is written.
func (e *Extractor) GenerateProtocolFile(points []ExtractionPoint, outputPath string, info ImageInfo) (string, error) {
	if len(points) == 0 {
		e.log.Errorf("Refusing to write empty protocol %s", outputPath)
		return "", &ExportError{Path: outputPath, Err: ErrEmptyExport}
	}

	data, err := encodeProtocol(points, info)
	if err != nil {
		return "", &ExportError{Path: outputPath, Err: err}
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &ExportError{Path: outputPath, Err: errors.Wrap(ErrWriteFailed, err.Error())}
		}
	}

	if err := writeFile(outputPath, data); err != nil {
		e.log.Errorf("Failed to write protocol %s: %v", outputPath, err)
		return "", &ExportError{Path: outputPath, Err: errors.Wrap(ErrWriteFailed, err.Error())}
	}

	backupPath := uniqueBackupPath(outputPath, e.clock.Now().Format(backupTimeLayout))
	if err := writeFile(backupPath, data); err != nil {
		e.log.Errorf("Failed to write protocol backup %s: %v", backupPath, err)
		return "", &ExportError{Path: backupPath, Err: errors.Wrap(ErrWriteFailed, err.Error())}
	}

	e.log.Infof("Wrote protocol %s with %d points (backup %s)", outputPath, len(points), backupPath)
	return backupPath, nil
}

// BackupPath returns the backup file name for path with the given stamp
// inserted before the extension.
func BackupPath(path, stamp string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_backup_" + stamp + ext
}

// uniqueBackupPath returns BackupPath for stamp, adding a _1, _2, ... suffix
// when an earlier export in the same second already took the name.
func uniqueBackupPath(path, stamp string) string {
	candidate := BackupPath(path, stamp)
	for n := 1; n < maxBackupsPerStamp; n++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = BackupPath(path, fmt.Sprintf("%s_%d", stamp, n))
	}
	return candidate
}

// encodeProtocol renders the complete file. All validation happens here so a
// bad point never leaves a partial file on disk.
func encodeProtocol(points []ExtractionPoint, info ImageInfo) ([]byte, error) {
	if err := info.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s]\n", sectionImage)
	fmt.Fprintf(&buf, "%s = \"%s\"\n", keyFile, payloadReplacer.Replace(info.Name))
	fmt.Fprintf(&buf, "%s = %d\n", keyWidth, info.Width)
	fmt.Fprintf(&buf, "%s = %d\n", keyHeight, info.Height)
	fmt.Fprintf(&buf, "%s = \"%s\"\n", keyFormat, info.Format)
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "[%s]\n", sectionLayout)
	fmt.Fprintf(&buf, "%s = 1\n", keyPositionOnly)
	fmt.Fprintf(&buf, "%s = \"01\"\n", keyAfterBefore)
	fmt.Fprintf(&buf, "%s = %d\n", keyPoints, len(points))

	for i, p := range points {
		line, err := formatPoint(p)
		if err != nil {
			return nil, errors.Wrapf(err, "point %d (%s)", i+1, p.ID)
		}
		fmt.Fprintf(&buf, "%s%d = \"%s\"\n", pointKeyPrefix, i+1, line)
	}
	return buf.Bytes(), nil
}

func formatPoint(p ExtractionPoint) (string, error) {
	c := p.Crop
	coords := []float64{c.MinX(), c.MinY(), c.MaxX(), c.MaxY()}
	for _, v := range coords {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", errors.Wrap(ErrInvalidPoint, "non-finite coordinate")
		}
	}
	if !(c.Size > 0) {
		return "", errors.Wrapf(ErrInvalidPoint, "crop size %g", c.Size)
	}

	hex, err := colorutil.NormalizeHex(p.Color)
	if err != nil {
		return "", errors.Wrap(ErrInvalidColor, err.Error())
	}

	return fmt.Sprintf("%.4f; %.4f; %.4f; %.4f; %s; %s; %s;",
		coords[0], coords[1], coords[2], coords[3], hex,
		payloadReplacer.Replace(p.WellPosition), payloadReplacer.Replace(p.Label)), nil
}

// writeFile writes data to path, closing the file on every path and
// reporting a close failure if nothing else failed.
func writeFile(path string, data []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if _, err = w.Write(data); err != nil {
		return err
	}
	return w.Flush()
}
