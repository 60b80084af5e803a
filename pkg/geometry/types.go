// Package geometry provides the coordinate and region types shared by the
// calibration and extraction packages.
package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when an affine transform has no inverse.
var ErrSingular = errors.New("singular transform matrix")

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Midpoint returns the point halfway to other.
func (p Point2D) Midpoint(other Point2D) Point2D {
	return Point2D{X: (p.X + other.X) / 2, Y: (p.Y + other.Y) / 2}
}

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ToFloat converts to Point2D.
func (p PointInt) ToFloat() Point2D {
	return Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Similarity returns a uniform scale, rotation and translation transform.
func Similarity(scale, radians, tx, ty float64) AffineTransform {
	cos := math.Cos(radians)
	sin := math.Sin(radians)
	return AffineTransform{
		A: scale * cos, B: -scale * sin, TX: tx,
		C: scale * sin, D: scale * cos, TY: ty,
	}
}

// Apply applies the transform to a point.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Inverse inverts the homogeneous 3x3 form of the transform and keeps the
// top two rows.
func (t AffineTransform) Inverse() (AffineTransform, error) {
	m := mat.NewDense(3, 3, []float64{
		t.A, t.B, t.TX,
		t.C, t.D, t.TY,
		0, 0, 1,
	})
	if math.Abs(mat.Det(m)) < 1e-12 {
		return AffineTransform{}, ErrSingular
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return AffineTransform{}, ErrSingular
	}

	return AffineTransform{
		A: inv.At(0, 0), B: inv.At(0, 1), TX: inv.At(0, 2),
		C: inv.At(1, 0), D: inv.At(1, 1), TY: inv.At(1, 2),
	}, nil
}

// ScaleFactor returns the length scale of the linear part, assuming no shear.
func (t AffineTransform) ScaleFactor() float64 {
	return math.Hypot(t.A, t.C)
}

// RotationDegrees returns the rotation of the linear part in degrees.
func (t AffineTransform) RotationDegrees() float64 {
	return math.Atan2(t.C, t.A) * 180 / math.Pi
}

// IsFinite reports whether every coefficient is a finite number.
func (t AffineTransform) IsFinite() bool {
	for _, v := range []float64{t.A, t.B, t.TX, t.C, t.D, t.TY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ToMatrix returns the transform as a [2][3]float64 array.
func (t AffineTransform) ToMatrix() [2][3]float64 {
	return [2][3]float64{
		{t.A, t.B, t.TX},
		{t.C, t.D, t.TY},
	}
}

// FromMatrix creates an AffineTransform from a [2][3]float64 array.
func FromMatrix(m [2][3]float64) AffineTransform {
	return AffineTransform{
		A: m[0][0], B: m[0][1], TX: m[0][2],
		C: m[1][0], D: m[1][1], TY: m[1][2],
	}
}

// BoundingBox is an axis-aligned box in pixel or stage coordinates.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// NewBoundingBox creates a BoundingBox from its corners.
func NewBoundingBox(minX, minY, maxX, maxY float64) BoundingBox {
	return BoundingBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// BoundingBoxFromCorners returns the box spanned by two arbitrary corners.
func BoundingBoxFromCorners(a, b Point2D) BoundingBox {
	return BoundingBox{
		MinX: math.Min(a.X, b.X),
		MinY: math.Min(a.Y, b.Y),
		MaxX: math.Max(a.X, b.X),
		MaxY: math.Max(a.Y, b.Y),
	}
}

// Width returns the horizontal extent.
func (b BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the vertical extent.
func (b BoundingBox) Height() float64 {
	return b.MaxY - b.MinY
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.MinX < b.MaxX && b.MinY < b.MaxY
}

// Center returns the center point of the box.
func (b BoundingBox) Center() Point2D {
	return Point2D{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Min returns the minimum corner.
func (b BoundingBox) Min() Point2D {
	return Point2D{X: b.MinX, Y: b.MinY}
}

// Max returns the maximum corner.
func (b BoundingBox) Max() Point2D {
	return Point2D{X: b.MaxX, Y: b.MaxY}
}

// CropRegion is a square window described by its center and side length.
type CropRegion struct {
	CenterX float64 `json:"center_x"`
	CenterY float64 `json:"center_y"`
	Size    float64 `json:"size"`
}

// NewCropRegion creates a CropRegion.
func NewCropRegion(center Point2D, size float64) CropRegion {
	return CropRegion{CenterX: center.X, CenterY: center.Y, Size: size}
}

// MinX returns the left edge.
func (c CropRegion) MinX() float64 { return c.CenterX - c.Size/2 }

// MinY returns the top edge.
func (c CropRegion) MinY() float64 { return c.CenterY - c.Size/2 }

// MaxX returns the right edge.
func (c CropRegion) MaxX() float64 { return c.CenterX + c.Size/2 }

// MaxY returns the bottom edge.
func (c CropRegion) MaxY() float64 { return c.CenterY + c.Size/2 }

// Center returns the center point.
func (c CropRegion) Center() Point2D {
	return Point2D{X: c.CenterX, Y: c.CenterY}
}

// Bounds returns the region as a BoundingBox.
func (c CropRegion) Bounds() BoundingBox {
	return BoundingBox{MinX: c.MinX(), MinY: c.MinY(), MaxX: c.MaxX(), MaxY: c.MaxY()}
}
