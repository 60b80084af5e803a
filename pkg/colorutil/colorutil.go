// Package colorutil converts the selection colors handed in by the
// selection subsystem into the forms the protocol writer and the preview use.
package colorutil

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ErrInvalidHex is returned for strings that are not #rgb or #rrggbb colors.
var ErrInvalidHex = errors.New("invalid hex color")

// Overlay colors used by the preview renderer.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// NormalizeHex returns the color as six lowercase hex digits without a
// leading '#'. Both #rgb and #rrggbb forms are accepted, with or without '#'.
func NormalizeHex(s string) (string, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(h) {
	case 3:
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	case 6:
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	if _, err := strconv.ParseUint(h, 16, 32); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return strings.ToLower(h), nil
}

// ParseHex converts a hex color string to an opaque RGBA value.
func ParseHex(s string) (color.RGBA, error) {
	h, err := NormalizeHex(s)
	if err != nil {
		return color.RGBA{}, err
	}
	v, _ := strconv.ParseUint(h, 16, 32)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// ToHex formats an RGBA color as lowercase rrggbb.
func ToHex(c color.RGBA) string {
	return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
}
