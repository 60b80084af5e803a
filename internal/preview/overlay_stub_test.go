//go:build !gocv
// +build !gocv

package preview

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderOverlay_Unavailable(t *testing.T) {
	err := RenderOverlay("in.png", "out.png", nil)
	assert.True(t, errors.Is(err, ErrUnavailable))
}
