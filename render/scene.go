// Package render is a small ray tracer producing per-pixel jobs for the job pool.
// The scene is read-only while rendering, each job writes a single pixel of the image.
package render

import (
	"math"
)

// Vec3 is a 3D vector
type Vec3 struct{ X, Y, Z float64 }

// Add returns v+o
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Mul returns v scaled by k
func (v Vec3) Mul(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Dot product
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Cross product
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{v.Y*o.Z - v.Z*o.Y, v.Z*o.X - v.X*o.Z, v.X*o.Y - v.Y*o.X}
}

// Len returns vector length
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Norm returns unit vector, zero vector stays zero
func (v Vec3) Norm() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return v.Mul(1 / l)
}

// Color is a linear RGB color, components are expected in [0,1]
type Color struct{ R, G, B float64 }

// Add returns c+o
func (c Color) Add(o Color) Color { return Color{c.R + o.R, c.G + o.G, c.B + o.B} }

// Mul returns c scaled by k
func (c Color) Mul(k float64) Color { return Color{c.R * k, c.G * k, c.B * k} }

// Blend multiplies colors component-wise
func (c Color) Blend(o Color) Color { return Color{c.R * o.R, c.G * o.G, c.B * o.B} }

// Ray with origin and normalized direction
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// At returns the point at distance t along the ray
func (r Ray) At(t float64) Vec3 { return r.Origin.Add(r.Dir.Mul(t)) }

// Sphere is the only supported primitive
type Sphere struct {
	Center Vec3
	Radius float64
	Color  Color
}

// Intersect returns the nearest positive distance along the ray, false on miss
func (s Sphere) Intersect(r Ray) (float64, bool) {
	oc := r.Origin.Sub(s.Center)
	b := oc.Dot(r.Dir)
	c := oc.Dot(oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	const eps = 1e-6
	if t := -b - sq; t > eps {
		return t, true
	}
	if t := -b + sq; t > eps {
		return t, true
	}
	return 0, false
}

// Light is a point light
type Light struct {
	Position  Vec3
	Intensity float64
}

// Scene holds everything visible. Not modified during rendering.
type Scene struct {
	Spheres    []Sphere
	Lights     []Light
	Background Color
	Ambient    float64
}

// hit finds the closest sphere hit by the ray
func (s *Scene) hit(r Ray) (idx int, dist float64, ok bool) {
	idx, dist = -1, math.Inf(1)
	for i, sp := range s.Spheres {
		if t, hit := sp.Intersect(r); hit && t < dist {
			idx, dist = i, t
		}
	}
	return idx, dist, idx >= 0
}

// Trace returns the color seen along the ray, lambert shading with hard shadows
func (s *Scene) Trace(r Ray) Color {
	idx, dist, ok := s.hit(r)
	if !ok {
		return s.Background
	}
	sp := s.Spheres[idx]
	p := r.At(dist)
	n := p.Sub(sp.Center).Norm()

	res := sp.Color.Mul(s.Ambient)
	for _, l := range s.Lights {
		toLight := l.Position.Sub(p)
		lightDist := toLight.Len()
		ld := toLight.Norm()
		diff := n.Dot(ld)
		if diff <= 0 {
			continue
		}
		if _, d, shadow := s.hit(Ray{Origin: p, Dir: ld}); shadow && d < lightDist {
			continue
		}
		res = res.Add(sp.Color.Mul(diff * l.Intensity))
	}
	return res
}
