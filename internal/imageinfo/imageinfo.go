// Package imageinfo reads image headers to fill the protocol [IMAGE] section.
package imageinfo

import (
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cellpick/internal/extraction"

	_ "golang.org/x/image/tiff"
)

// Info is the probed description of an image file.
type Info struct {
	extraction.ImageInfo
	Path string
	DPI  float64 // 0 when the file carries no resolution
}

// Bounds returns the pixel bounds crops must stay inside.
func (i Info) Bounds() extraction.ImageBounds {
	return extraction.ImageBounds{Width: i.Width, Height: i.Height}
}

// Probe decodes only the header of the image at path.
func Probe(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode image header: %w", err)
	}

	protoFormat, err := extraction.FormatFromExt(format)
	if err != nil {
		return Info{}, err
	}

	base := filepath.Base(path)
	info := Info{
		ImageInfo: extraction.ImageInfo{
			Name:   strings.TrimSuffix(base, filepath.Ext(base)),
			Width:  cfg.Width,
			Height: cfg.Height,
			Format: protoFormat,
		},
		Path: path,
	}

	if protoFormat == "TIF" {
		if dpi, err := tiffDPI(file); err == nil {
			info.DPI = dpi
		}
	}
	return info, nil
}

// SupportedFormats returns the list of supported image extensions.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// tiffDPI reads the resolution tags of the first IFD.
func tiffDPI(r io.ReaderAt) (float64, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return 0, err
	}

	var order binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		order = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	ifd := int64(order.Uint32(header[4:8]))
	countBuf := make([]byte, 2)
	if _, err := r.ReadAt(countBuf, ifd); err != nil {
		return 0, err
	}
	numEntries := int64(order.Uint16(countBuf))

	var xRes, yRes float64
	resUnit := uint16(2) // inches

	entry := make([]byte, 12)
	for i := int64(0); i < numEntries; i++ {
		if _, err := r.ReadAt(entry, ifd+2+i*12); err != nil {
			return 0, err
		}
		tag := order.Uint16(entry[0:2])
		fieldType := order.Uint16(entry[2:4])

		switch {
		case tag == 282 && fieldType == 5: // XResolution, RATIONAL
			xRes = readRational(r, int64(order.Uint32(entry[8:12])), order)
		case tag == 283 && fieldType == 5: // YResolution, RATIONAL
			yRes = readRational(r, int64(order.Uint32(entry[8:12])), order)
		case tag == 296 && fieldType == 3: // ResolutionUnit, SHORT
			resUnit = order.Uint16(entry[8:10])
		}
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}
	if dpi == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}
	if resUnit == 3 {
		dpi *= 2.54
	}
	return dpi, nil
}

func readRational(r io.ReaderAt, offset int64, order binary.ByteOrder) float64 {
	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0
	}
	num, denom := order.Uint32(buf[0:4]), order.Uint32(buf[4:8])
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}
