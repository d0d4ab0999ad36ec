package viewer

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ============================================================
// Camera
// ============================================================

const (
	DefaultFOV      = 75.0
	DefaultDistance = 5.0
	MinDistance     = 2.0
	MaxDistance     = 10.0

	nearPlane = 0.1
	farPlane  = 1000.0
)

// Camera is a perspective camera on the +Z axis looking at Target.
type Camera struct {
	FOV      float64 `json:"fov"`
	Distance float64 `json:"distance"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Target   mgl64.Vec3
}

// ScreenPoint is a position in viewport pixels, origin top-left.
type ScreenPoint struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
}

func NewCamera(width, height float64) Camera {
	return Camera{
		FOV:      DefaultFOV,
		Distance: DefaultDistance,
		Width:    width,
		Height:   height,
	}
}

func (c Camera) Aspect() float64 {
	if c.Height <= 0 {
		return 1
	}
	return c.Width / c.Height
}

func (c Camera) Position() mgl64.Vec3 {
	return c.Target.Add(mgl64.Vec3{0, 0, c.Distance})
}

func (c Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position(), c.Target, mgl64.Vec3{0, 1, 0})
}

func (c Camera) Projection() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.FOV), c.Aspect(), nearPlane, farPlane)
}

// SetDistance moves the camera along its axis, clamped to [MinDistance, MaxDistance].
func (c *Camera) SetDistance(d float64) {
	c.Distance = math.Max(MinDistance, math.Min(MaxDistance, d))
}

// Project maps a world point to viewport pixels. Points behind the camera or
// outside the clip volume are reported as not visible.
func (c Camera) Project(world mgl64.Vec3) ScreenPoint {
	clip := c.Projection().Mul4(c.View()).Mul4x1(world.Vec4(1))
	if clip[3] <= 0 {
		return ScreenPoint{}
	}
	ndc := clip.Vec3().Mul(1 / clip[3])
	return ScreenPoint{
		X:       (ndc[0] + 1) / 2 * c.Width,
		Y:       (1 - ndc[1]) / 2 * c.Height,
		Visible: math.Abs(ndc[0]) <= 1 && math.Abs(ndc[1]) <= 1 && math.Abs(ndc[2]) <= 1,
	}
}

// Ray returns the world-space ray through the given viewport pixel.
func (c Camera) Ray(x, y float64) (origin, dir mgl64.Vec3) {
	ndcX := 2*x/c.Width - 1
	ndcY := 1 - 2*y/c.Height
	inv := c.Projection().Mul4(c.View()).Inv()
	near := mgl64.TransformCoordinate(mgl64.Vec3{ndcX, ndcY, -1}, inv)
	far := mgl64.TransformCoordinate(mgl64.Vec3{ndcX, ndcY, 1}, inv)
	origin = c.Position()
	return origin, far.Sub(near).Normalize()
}

// PanAxes returns the camera's right and up vectors in world space.
func (c Camera) PanAxes() (right, up mgl64.Vec3) {
	inv := c.View().Inv()
	right = mgl64.TransformNormal(mgl64.Vec3{1, 0, 0}, inv).Normalize()
	up = mgl64.TransformNormal(mgl64.Vec3{0, 1, 0}, inv).Normalize()
	return right, up
}

// worldPerPixel is the world-space size of one pixel at the target depth.
func (c Camera) worldPerPixel() float64 {
	if c.Height <= 0 {
		return 0
	}
	visible := 2 * c.Distance * math.Tan(mgl64.DegToRad(c.FOV)/2)
	return visible / c.Height
}

// intersectSphere returns the distance along the ray to the sphere, if hit.
func intersectSphere(origin, dir, center mgl64.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	cc := oc.Dot(oc) - radius*radius
	disc := b*b - cc
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}
