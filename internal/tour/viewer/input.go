package viewer

import (
	"fmt"
	"math"
	"strings"
)

// ============================================================
// Interaction
// ============================================================

type Mode string

const (
	ModeRotate Mode = "rotate"
	ModeZoom   Mode = "zoom"
	ModePan    Mode = "pan"
)

const (
	AutoRotateSpeed = 0.005 // rad per frame
	DragRotateSpeed = 0.01  // rad per pixel
	DragZoomSpeed   = 0.02  // units per pixel
	WheelZoomSpeed  = 0.01  // units per wheel delta

	// DragThreshold is how far a press may move and still count as a click.
	DragThreshold = 4.0
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeRotate, ModeZoom, ModePan:
		return m, nil
	}
	return "", fmt.Errorf("unknown interaction mode %q", s)
}

type pointer struct {
	down     bool
	dragging bool
	startX   float64
	startY   float64
	lastX    float64
	lastY    float64
}

func (v *Viewer) Mode() Mode { return v.mode }

// SetMode switches the interaction mode. Transforms are kept as they are.
func (v *Viewer) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	v.mode = m
	return nil
}

func (v *Viewer) PointerDown(x, y float64) {
	v.pointer = pointer{down: true, startX: x, startY: y, lastX: x, lastY: y}
}

func (v *Viewer) PointerMove(x, y float64) {
	p := &v.pointer
	if !p.down {
		return
	}
	if !p.dragging && math.Hypot(x-p.startX, y-p.startY) > DragThreshold {
		p.dragging = true
	}
	if p.dragging {
		v.drag(x-p.lastX, y-p.lastY)
	}
	p.lastX, p.lastY = x, y
}

// PointerUp ends a press. A press that never became a drag is queued as a
// click and hit-tested on the next frame.
func (v *Viewer) PointerUp(x, y float64) {
	p := v.pointer
	v.pointer = pointer{}
	if !p.down || p.dragging {
		return
	}
	v.clicks = append(v.clicks, ScreenPoint{X: x, Y: y, Visible: true})
}

// Click is a press and release at the same spot.
func (v *Viewer) Click(x, y float64) {
	v.PointerDown(x, y)
	v.PointerUp(x, y)
}

// Wheel zooms in zoom mode; positive delta moves the camera away.
func (v *Viewer) Wheel(delta float64) {
	if v.mode != ModeZoom {
		return
	}
	v.camera.SetDistance(v.camera.Distance + delta*WheelZoomSpeed)
}

// Pinch zooms in zoom mode; scale > 1 means fingers moved apart.
func (v *Viewer) Pinch(scale float64) {
	if v.mode != ModeZoom || scale <= 0 {
		return
	}
	v.camera.SetDistance(v.camera.Distance / scale)
}

func (v *Viewer) drag(dx, dy float64) {
	if v.root == nil {
		return
	}
	switch v.mode {
	case ModeRotate:
		v.root.Rotation[1] += dx * DragRotateSpeed
		v.root.Rotation[0] += dy * DragRotateSpeed
	case ModeZoom:
		v.camera.SetDistance(v.camera.Distance + dy*DragZoomSpeed)
	case ModePan:
		right, up := v.camera.PanAxes()
		k := v.camera.worldPerPixel()
		v.root.Position = v.root.Position.Add(right.Mul(dx * k)).Sub(up.Mul(dy * k))
	}
}
