package navigator

import "math"

// ============================================================
// Look-around input
// ============================================================

const (
	maxPitch = 85.0

	// DefaultDragSensitivity converts pointer pixels into degrees of yaw/pitch.
	DefaultDragSensitivity = 0.25
)

// LookDelta is a change of view direction in degrees.
type LookDelta struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Offset is the accumulated view direction relative to the panorama seam.
type Offset struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// LookInput turns raw input readings into look deltas. Pointer drags and
// device orientation both implement it, so the navigator has one code path.
type LookInput interface {
	// Begin starts a gesture at the given reading.
	Begin(x, y float64)
	// Move returns the delta since the gesture began.
	Move(x, y float64) LookDelta
}

// DragSource maps pointer coordinates in pixels to degrees. Dragging right
// turns the view left, as with a grabbed photo sphere.
type DragSource struct {
	Sensitivity float64
	startX      float64
	startY      float64
}

func NewDragSource() *DragSource {
	return &DragSource{Sensitivity: DefaultDragSensitivity}
}

func (d *DragSource) Begin(x, y float64) {
	d.startX, d.startY = x, y
}

func (d *DragSource) Move(x, y float64) LookDelta {
	return LookDelta{
		Yaw:   -(x - d.startX) * d.Sensitivity,
		Pitch: (y - d.startY) * d.Sensitivity,
	}
}

// OrientationSource maps device orientation angles (alpha = compass heading,
// beta = front/back tilt, both in degrees) to deltas from the first reading.
type OrientationSource struct {
	startAlpha float64
	startBeta  float64
}

func NewOrientationSource() *OrientationSource {
	return &OrientationSource{}
}

func (o *OrientationSource) Begin(alpha, beta float64) {
	o.startAlpha, o.startBeta = alpha, beta
}

func (o *OrientationSource) Move(alpha, beta float64) LookDelta {
	return LookDelta{
		Yaw:   wrapSigned(alpha - o.startAlpha),
		Pitch: beta - o.startBeta,
	}
}

// lookState keeps the committed baseline and the live gesture on top of it.
type lookState struct {
	baseline Offset
	live     LookDelta
	input    LookInput
}

func (s *lookState) reset() {
	s.baseline = Offset{}
	s.live = LookDelta{}
	s.input = nil
}

func (s *lookState) current() Offset {
	return Offset{
		Yaw:   wrapDegrees(s.baseline.Yaw + s.live.Yaw),
		Pitch: clampPitch(s.baseline.Pitch + s.live.Pitch),
	}
}

// BeginLook starts a gesture from the given input source.
func (n *Navigator) BeginLook(input LookInput, x, y float64) {
	n.commitLook()
	input.Begin(x, y)
	n.look.input = input
}

// Look updates the live gesture. Ignored when no gesture is active.
func (n *Navigator) Look(x, y float64) Offset {
	if n.look.input != nil {
		n.look.live = n.look.input.Move(x, y)
	}
	return n.look.current()
}

// EndLook commits the gesture so the next one composes on top of it.
func (n *Navigator) EndLook() Offset {
	n.commitLook()
	return n.look.baseline
}

// LookBy applies a one-shot delta, e.g. from arrow keys.
func (n *Navigator) LookBy(d LookDelta) Offset {
	n.commitLook()
	n.look.live = d
	n.commitLook()
	return n.look.baseline
}

// Offset returns the current view direction including any live gesture.
func (n *Navigator) Offset() Offset {
	return n.look.current()
}

func (n *Navigator) commitLook() {
	n.look.baseline = n.look.current()
	n.look.live = LookDelta{}
	n.look.input = nil
}

func wrapDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func wrapSigned(d float64) float64 {
	d = wrapDegrees(d)
	if d > 180 {
		d -= 360
	}
	return d
}

func clampPitch(p float64) float64 {
	return math.Max(-maxPitch, math.Min(maxPitch, p))
}
