package extraction

import (
	"math/rand"
	"testing"

	"cellpick/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestCalculateSquareCrop(t *testing.T) {
	ex := NewExtractor(DefaultOptions())

	tests := []struct {
		name   string
		bbox   geometry.BoundingBox
		bounds *ImageBounds
		want   geometry.CropRegion
	}{
		{"padded shorter side", geometry.NewBoundingBox(10, 10, 30, 50), nil, geometry.CropRegion{CenterX: 20, CenterY: 30, Size: 24}},
		{"clamped to minimum", geometry.NewBoundingBox(0, 0, 2, 2), nil, geometry.CropRegion{CenterX: 1, CenterY: 1, Size: 10}},
		{"clamped to maximum", geometry.NewBoundingBox(0, 0, 2000, 3000), nil, geometry.CropRegion{CenterX: 1000, CenterY: 1500, Size: 1000}},
		{"shifted off top-left edge", geometry.NewBoundingBox(0, 0, 20, 20), &ImageBounds{Width: 100, Height: 100}, geometry.CropRegion{CenterX: 12, CenterY: 12, Size: 24}},
		{"shifted off bottom-right edge", geometry.NewBoundingBox(90, 90, 100, 100), &ImageBounds{Width: 100, Height: 100}, geometry.CropRegion{CenterX: 94, CenterY: 94, Size: 12}},
		{"reduced to fit image", geometry.NewBoundingBox(2, 2, 28, 28), &ImageBounds{Width: 30, Height: 30}, geometry.CropRegion{CenterX: 15, CenterY: 15, Size: 30}},
		{"inside image untouched", geometry.NewBoundingBox(40, 40, 60, 60), &ImageBounds{Width: 100, Height: 100}, geometry.CropRegion{CenterX: 50, CenterY: 50, Size: 24}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ex.CalculateSquareCrop(tc.bbox, tc.bounds)
			require.True(t, ok)
			assert.InDelta(t, tc.want.CenterX, got.CenterX, eps)
			assert.InDelta(t, tc.want.CenterY, got.CenterY, eps)
			assert.InDelta(t, tc.want.Size, got.Size, eps)
		})
	}
}

func TestCalculateSquareCrop_Rejects(t *testing.T) {
	ex := NewExtractor(DefaultOptions())

	_, ok := ex.CalculateSquareCrop(geometry.NewBoundingBox(5, 5, 5, 20), nil)
	assert.False(t, ok, "zero width")
	_, ok = ex.CalculateSquareCrop(geometry.NewBoundingBox(5, 20, 10, 5), nil)
	assert.False(t, ok, "negative height")

	// Needs a 10 px crop but the image is only 8 px wide.
	_, ok = ex.CalculateSquareCrop(geometry.NewBoundingBox(0, 40, 8, 80), &ImageBounds{Width: 8, Height: 100})
	assert.False(t, ok, "image narrower than minimum crop")

	// Box centered outside the image.
	_, ok = ex.CalculateSquareCrop(geometry.NewBoundingBox(-500, -500, 500, 500), &ImageBounds{Width: 100, Height: 100})
	assert.False(t, ok, "center outside image")
}

func TestCalculateSquareCrop_Invariants(t *testing.T) {
	opts := DefaultOptions()
	ex := NewExtractor(opts)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 5000; i++ {
		w := 20 + rng.Intn(3000)
		h := 20 + rng.Intn(3000)
		x0 := rng.Float64() * float64(w)
		y0 := rng.Float64() * float64(h)
		bbox := geometry.NewBoundingBox(x0, y0, x0+1+rng.Float64()*1500, y0+1+rng.Float64()*1500)

		var bounds *ImageBounds
		if i%2 == 0 {
			bounds = &ImageBounds{Width: w, Height: h}
		}

		crop, ok := ex.CalculateSquareCrop(bbox, bounds)
		if !ok {
			continue
		}

		b := crop.Bounds()
		assert.InDelta(t, b.Width(), b.Height(), eps)
		assert.GreaterOrEqual(t, crop.Size, opts.MinCropSizePx)
		assert.LessOrEqual(t, crop.Size, opts.MaxCropSizePx)

		if bounds != nil {
			assert.GreaterOrEqual(t, b.MinX, -eps)
			assert.GreaterOrEqual(t, b.MinY, -eps)
			assert.LessOrEqual(t, b.MaxX, float64(w)+eps)
			assert.LessOrEqual(t, b.MaxY, float64(h)+eps)
		}
	}
}

func TestOptions_Validate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	bad := DefaultOptions()
	bad.MaxCropSizePx = 5
	require.Error(t, bad.Validate())

	bad = DefaultOptions()
	bad.PaddingFactor = 0
	require.Error(t, bad.Validate())
}
