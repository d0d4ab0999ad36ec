package models

import (
	"fmt"
	"path"
	"strings"
)

// ============================================================
// Geometry primitives
// ============================================================

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ============================================================
// Tour graph
// ============================================================

type Room struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	PanoramaImage    string   `json:"panoramaImage"`
	Connections      []string `json:"connections"`
	IsMain           bool     `json:"isMain"`
	Description      string   `json:"description,omitempty"`
	Features         []string `json:"features,omitempty"`
	ImageQuality     string   `json:"imageQuality,omitempty"`
	SupportedDevices []string `json:"supportedDevices,omitempty"`
}

// Clone returns a copy that does not share the connection slice.
func (r Room) Clone() Room {
	r.Connections = append([]string(nil), r.Connections...)
	if r.Features != nil {
		r.Features = append([]string(nil), r.Features...)
	}
	if r.SupportedDevices != nil {
		r.SupportedDevices = append([]string(nil), r.SupportedDevices...)
	}
	return r
}

// ============================================================
// Hotspots
// ============================================================

type HotspotType string

const (
	HotspotInfo    HotspotType = "info"
	HotspotRoom    HotspotType = "room"
	HotspotFeature HotspotType = "feature"
)

type Hotspot struct {
	ID           string      `json:"id"`
	Type         HotspotType `json:"type"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Position     Vec3        `json:"position"`
	LinkedRoomID string      `json:"linkedRoomId,omitempty"`
}

// Validate checks the hotspot shape. Whether LinkedRoomID resolves is a graph concern.
func (h Hotspot) Validate() error {
	if h.ID == "" {
		return fmt.Errorf("hotspot: empty id")
	}
	switch h.Type {
	case HotspotInfo, HotspotFeature:
		return nil
	case HotspotRoom:
		if h.LinkedRoomID == "" {
			return fmt.Errorf("hotspot %s: room hotspot without linked room", h.ID)
		}
		return nil
	}
	return fmt.Errorf("hotspot %s: unknown type %q", h.ID, h.Type)
}

// ============================================================
// 3D models
// ============================================================

type AssetFormat string

const (
	FormatGLTF AssetFormat = "gltf"
	FormatGLB  AssetFormat = "glb"
	FormatOBJ  AssetFormat = "obj"
	FormatUSDZ AssetFormat = "usdz"
)

// EmbedsTextures reports whether textures travel inside the asset binary.
func (f AssetFormat) EmbedsTextures() bool {
	return f == FormatGLB || f == FormatUSDZ
}

// FormatFromURL derives the asset format from the file extension.
func FormatFromURL(u string) (AssetFormat, bool) {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(u), ".")) {
	case "gltf":
		return FormatGLTF, true
	case "glb":
		return FormatGLB, true
	case "obj":
		return FormatOBJ, true
	case "usdz":
		return FormatUSDZ, true
	}
	return "", false
}

type RenderingHints struct {
	MaxPolygons       int   `json:"maxPolygons,omitempty"`
	TextureResolution int   `json:"textureResolution,omitempty"`
	Shadows           *bool `json:"shadows,omitempty"`
	Reflections       *bool `json:"reflections,omitempty"`
}

type Model3D struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	ModelURL       string          `json:"modelUrl"`
	ThumbnailURL   string          `json:"thumbnailUrl,omitempty"`
	Format         AssetFormat     `json:"format"`
	Scale          *Vec3           `json:"scale,omitempty"`
	Position       *Vec3           `json:"position,omitempty"`
	Rotation       *Vec3           `json:"rotation,omitempty"`
	Hotspots       []Hotspot       `json:"hotspots,omitempty"`
	RenderingHints *RenderingHints `json:"renderingHints,omitempty"`
}

// ResolvedFormat falls back to the URL extension when Format is unset.
func (m Model3D) ResolvedFormat() AssetFormat {
	if m.Format != "" {
		return m.Format
	}
	f, _ := FormatFromURL(m.ModelURL)
	return f
}

// ============================================================
// Property (read model handed over by the property store)
// ============================================================

type Property struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	TourRooms  []Room    `json:"tourRooms"`
	Models3D   []Model3D `json:"models3D"`
	Has3DTour  bool      `json:"has3DTour"`
	Has3DModel bool      `json:"has3DModel"`
}

// Model looks up a model by id.
func (p *Property) Model(id string) (Model3D, bool) {
	for _, m := range p.Models3D {
		if m.ID == id {
			return m, true
		}
	}
	return Model3D{}, false
}
