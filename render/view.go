package render

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"math/rand/v2"
)

// Point is a pixel coordinate
type Point struct{ X, Y int }

// Camera describes the viewer
type Camera struct {
	Position Vec3
	LookAt   Vec3
	Up       Vec3
	FOV      float64 // vertical field of view, degrees
}

// ViewPlane maps pixels of a width x height image to camera rays
type ViewPlane struct {
	Width, Height int
	Seed          uint64 // base seed for sample jitter

	origin             Vec3
	forward, right, up Vec3
	halfH, halfW       float64
}

// NewViewPlane makes a view plane for the camera. Zero Up defaults to +Y, zero FOV to 60 degrees.
func NewViewPlane(cam Camera, width, height int, seed uint64) (*ViewPlane, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("image size must be positive")
	}
	up := cam.Up
	if up == (Vec3{}) {
		up = Vec3{Y: 1}
	}
	fov := cam.FOV
	if fov <= 0 {
		fov = 60
	}
	forward := cam.LookAt.Sub(cam.Position).Norm()
	if forward == (Vec3{}) {
		return nil, errors.New("camera position and look_at must differ")
	}
	right := up.Cross(forward).Norm()
	if right == (Vec3{}) {
		return nil, errors.New("camera up is parallel to view direction")
	}

	halfH := math.Tan(fov * math.Pi / 360)
	return &ViewPlane{
		Width:   width,
		Height:  height,
		Seed:    seed,
		origin:  cam.Position,
		forward: forward,
		right:   right,
		up:      forward.Cross(right),
		halfH:   halfH,
		halfW:   halfH * float64(width) / float64(height),
	}, nil
}

// Ray returns the camera ray through the sub-pixel position (x+dx, y+dy), dx and dy in [0,1)
func (vp *ViewPlane) Ray(x, y int, dx, dy float64) Ray {
	u := (2*(float64(x)+dx)/float64(vp.Width) - 1) * vp.halfW
	v := (1 - 2*(float64(y)+dy)/float64(vp.Height)) * vp.halfH
	dir := vp.forward.Add(vp.right.Mul(u)).Add(vp.up.Mul(v)).Norm()
	return Ray{Origin: vp.origin, Dir: dir}
}

// ComputePixel averages numOfSamples rays through the pixel. The first sample goes through
// the pixel center, the rest are jittered with a generator seeded by pixel coordinates, so
// the result doesn't depend on which worker renders the pixel.
func (vp *ViewPlane) ComputePixel(scene *Scene, x, y int, numOfSamples int) Color {
	if numOfSamples < 1 {
		numOfSamples = 1
	}
	rnd := rand.New(rand.NewPCG(vp.Seed, uint64(y)<<32|uint64(x))) //nolint:gosec // not for security

	res := scene.Trace(vp.Ray(x, y, 0.5, 0.5))
	for range numOfSamples - 1 {
		res = res.Add(scene.Trace(vp.Ray(x, y, rnd.Float64(), rnd.Float64())))
	}
	return res.Mul(1 / float64(numOfSamples))
}

// Image is the render target. Concurrent Set calls are safe as long as they target different pixels.
type Image struct {
	img *image.RGBA
}

// NewImage makes a black image
func NewImage(width, height int) *Image {
	return &Image{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Set stores the color at x,y, components are clamped to [0,1]
func (im *Image) Set(x, y int, c Color) {
	im.img.SetRGBA(x, y, color.RGBA{R: toByte(c.R), G: toByte(c.G), B: toByte(c.B), A: 255})
}

// At returns the stored pixel
func (im *Image) At(x, y int) color.RGBA {
	return im.img.RGBAAt(x, y)
}

// Bounds of the image
func (im *Image) Bounds() image.Rectangle { return im.img.Bounds() }

// WritePNG encodes the image as PNG
func (im *Image) WritePNG(w io.Writer) error {
	return png.Encode(w, im.img)
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v*255 + 0.5)
	}
}
