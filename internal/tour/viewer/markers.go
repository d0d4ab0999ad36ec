package viewer

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Hotspot markers
// ============================================================

const (
	// MarkerRadius is the marker sphere radius in world units at scale 1.
	MarkerRadius = 0.08

	markerScaleFactor = 5.0
	minMarkerScale    = 0.5
	maxMarkerScale    = 1.5

	pulseAmplitude = 0.3
	pulseFrequency = 3.0 // rad/s
)

// Marker is the 3D representation of a hotspot. Its node hangs under the
// model so it follows the model's transform.
type Marker struct {
	Hotspot  models.Hotspot `json:"hotspot"`
	World    mgl64.Vec3     `json:"world"`
	Screen   ScreenPoint    `json:"screen"`
	Distance float64        `json:"distance"`
	Scale    float64        `json:"scale"`
	Glow     float64        `json:"glow"`

	node *Node
}

// MarkerScale keeps markers readable at any zoom level.
func MarkerScale(distance float64) float64 {
	if distance <= 0 {
		return maxMarkerScale
	}
	return math.Max(minMarkerScale, math.Min(maxMarkerScale, markerScaleFactor/distance))
}

// Pulse is the glow intensity at elapsed time t.
func Pulse(t time.Duration) float64 {
	return 1 + pulseAmplitude*math.Sin(pulseFrequency*t.Seconds())
}

func newMarker(h models.Hotspot) *Marker {
	n := NewNode("hotspot:" + h.ID)
	n.Position = mgl64.Vec3{h.Position.X, h.Position.Y, h.Position.Z}
	return &Marker{Hotspot: h, node: n, Scale: 1, Glow: 1}
}

// update refreshes world position, screen position, scale and glow.
func (m *Marker) update(cam Camera, elapsed time.Duration) {
	m.World = m.node.WorldPosition(mgl64.Vec3{})
	m.Distance = cam.Position().Sub(m.World).Len()
	m.Scale = MarkerScale(m.Distance)
	m.Glow = Pulse(elapsed)
	m.Screen = cam.Project(m.World)
}

func (m *Marker) radius() float64 {
	return MarkerRadius * m.Scale
}

// pickMarker returns the nearest marker under the pixel. Only markers take
// part; model geometry never blocks or receives a pick.
func pickMarker(cam Camera, markers []*Marker, x, y float64) (*Marker, bool) {
	origin, dir := cam.Ray(x, y)
	var (
		best    *Marker
		bestHit = math.Inf(1)
	)
	for _, m := range markers {
		t, ok := intersectSphere(origin, dir, m.World, m.radius())
		if ok && t < bestHit {
			best, bestHit = m, t
		}
	}
	return best, best != nil
}
