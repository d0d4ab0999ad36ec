package navigator

import (
	"fmt"
	"math"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Panorama hotspots
// ============================================================

// Ring radii in viewport pixels. Panorama hotspots are a 2D overlay laid out
// on a ring around the viewport centre; they are not projected from 3D.
const (
	HotspotRadius          = 150.0
	ImmersiveHotspotRadius = 250.0
)

type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PlacedHotspot is a neighbour-room hotspot with its overlay position.
type PlacedHotspot struct {
	Hotspot models.Hotspot `json:"hotspot"`
	Angle   float64        `json:"angle"`
	X       float64        `json:"x"`
	Y       float64        `json:"y"`
	Active  bool           `json:"active"`
}

// HotspotAngle returns the ring angle in degrees for the index-th of total hotspots.
func HotspotAngle(index, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 360 * float64(index) / float64(total)
}

// HotspotPosition places the index-th of total hotspots on a ring of the given radius.
func HotspotPosition(vp Viewport, radius float64, index, total int) (x, y float64) {
	theta := HotspotAngle(index, total) * math.Pi / 180
	return vp.Width/2 + radius*math.Cos(theta), vp.Height/2 + radius*math.Sin(theta)
}

// Hotspots lays out one room hotspot per reachable neighbour of the current
// room, in neighbour enumeration order. Nothing is shown outside Viewing.
func (n *Navigator) Hotspots(vp Viewport) []PlacedHotspot {
	if n.state.Phase != PhaseViewing {
		return nil
	}
	neighbors := n.graph.NeighborsOf(n.state.RoomID)
	radius := HotspotRadius
	if n.opts.Immersive {
		radius = ImmersiveHotspotRadius
	}

	out := make([]PlacedHotspot, 0, len(neighbors))
	for i, room := range neighbors {
		h := roomHotspot(room)
		x, y := HotspotPosition(vp, radius, i, len(neighbors))
		out = append(out, PlacedHotspot{
			Hotspot: h,
			Angle:   HotspotAngle(i, len(neighbors)),
			X:       x,
			Y:       y,
			Active:  h.ID == n.activeHotspot,
		})
	}
	return out
}

// SetImmersive switches between normal and VR presentation.
func (n *Navigator) SetImmersive(on bool) {
	n.opts.Immersive = on
}

// SelectHotspot marks a hotspot active without navigating (e.g. hover/info).
func (n *Navigator) SelectHotspot(id string) error {
	if _, ok := n.findHotspot(id); !ok {
		return fmt.Errorf("hotspot %s: %w", id, models.ErrNotFound)
	}
	n.activeHotspot = id
	return nil
}

// ClearHotspot drops the active selection.
func (n *Navigator) ClearHotspot() {
	n.activeHotspot = ""
}

// ClickHotspot raises the hotspot to the host and follows its room link.
func (n *Navigator) ClickHotspot(id string) error {
	h, ok := n.findHotspot(id)
	if !ok {
		return fmt.Errorf("hotspot %s: %w", id, models.ErrNotFound)
	}
	n.activeHotspot = id
	if n.OnHotspotClick != nil {
		n.OnHotspotClick(h)
	}
	if h.Type != models.HotspotRoom {
		return nil
	}
	return n.NavigateTo(h.LinkedRoomID, SourceHotspot)
}

func (n *Navigator) findHotspot(id string) (models.Hotspot, bool) {
	if n.state.Phase != PhaseViewing {
		return models.Hotspot{}, false
	}
	for _, room := range n.graph.NeighborsOf(n.state.RoomID) {
		h := roomHotspot(room)
		if h.ID == id {
			return h, true
		}
	}
	return models.Hotspot{}, false
}

func roomHotspot(to models.Room) models.Hotspot {
	return models.Hotspot{
		ID:           "room-" + to.ID,
		Type:         models.HotspotRoom,
		Title:        to.Name,
		Description:  to.Description,
		LinkedRoomID: to.ID,
	}
}
