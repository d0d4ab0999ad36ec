package floorplan

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Room map renderer
// ============================================================

const (
	defaultSize = 480.0
	ringFactor  = 0.38
	nodeRadius  = 18.0
)

// Placement is a room's position on the map.
type Placement struct {
	Room    models.Room `json:"room"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Main    bool        `json:"main"`
	Current bool        `json:"current"`
}

type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Renderer draws the room graph as a selector map: rooms on a ring, one line
// per connection, main and current room highlighted.
type Renderer struct {
	Width  float64
	Height float64
}

func NewRenderer(width, height float64) *Renderer {
	if width <= 0 || height <= 0 {
		width, height = defaultSize, defaultSize
	}
	return &Renderer{Width: width, Height: height}
}

// Layout places rooms clockwise from twelve o'clock in enumeration order.
func (r *Renderer) Layout(rooms []models.Room, currentID string) []Placement {
	cx, cy := r.Width/2, r.Height/2
	radius := ringFactor * math.Min(r.Width, r.Height)

	out := make([]Placement, 0, len(rooms))
	for i, room := range rooms {
		x, y := cx, cy
		if len(rooms) > 1 {
			theta := 2*math.Pi*float64(i)/float64(len(rooms)) - math.Pi/2
			x = cx + radius*math.Cos(theta)
			y = cy + radius*math.Sin(theta)
		}
		out = append(out, Placement{
			Room:    room,
			X:       x,
			Y:       y,
			Main:    room.IsMain,
			Current: room.ID == currentID,
		})
	}
	return out
}

// Edges lists each connection once. Dangling ids are skipped.
func Edges(rooms []models.Room) []Edge {
	known := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		known[room.ID] = true
	}

	seen := make(map[Edge]bool)
	var out []Edge
	for _, room := range rooms {
		for _, to := range room.Connections {
			if !known[to] || to == room.ID {
				continue
			}
			e := Edge{From: room.ID, To: to}
			if room.ID > to {
				e = Edge{From: to, To: room.ID}
			}
			if seen[e] {
				continue
			}
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// Render returns the map as an SVG document.
func (r *Renderer) Render(rooms []models.Room, currentID string) (string, error) {
	if len(rooms) == 0 {
		return "", fmt.Errorf("floor plan has no rooms")
	}
	placed := r.Layout(rooms, currentID)
	index := indexPlacements(placed)

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		formatFloat(r.Width), formatFloat(r.Height), formatFloat(r.Width), formatFloat(r.Height)))
	builder.WriteString("\n")

	for _, e := range Edges(rooms) {
		a, b := index[e.From], index[e.To]
		builder.WriteString(fmt.Sprintf(`  <line class="connection" x1="%s" y1="%s" x2="%s" y2="%s" stroke="#999" stroke-width="2" />`,
			formatFloat(a.X), formatFloat(a.Y), formatFloat(b.X), formatFloat(b.Y)))
		builder.WriteString("\n")
	}

	for _, p := range placed {
		fill, stroke := roomColors(p)
		builder.WriteString(fmt.Sprintf(`  <g id="room-%s" data-room="%s">`, html.EscapeString(p.Room.ID), html.EscapeString(p.Room.ID)))
		builder.WriteString(fmt.Sprintf(`<circle cx="%s" cy="%s" r="%s" fill="%s" stroke="%s" stroke-width="2" />`,
			formatFloat(p.X), formatFloat(p.Y), formatFloat(nodeRadius), fill, stroke))
		builder.WriteString(fmt.Sprintf(`<text x="%s" y="%s" text-anchor="middle" font-size="12">%s</text>`,
			formatFloat(p.X), formatFloat(p.Y+nodeRadius+14), html.EscapeString(label(p.Room))))
		builder.WriteString("</g>\n")
	}

	builder.WriteString(`</svg>`)
	return builder.String(), nil
}

// RenderPNG rasterises the same map.
func (r *Renderer) RenderPNG(rooms []models.Room, currentID string) ([]byte, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("floor plan has no rooms")
	}
	placed := r.Layout(rooms, currentID)
	index := indexPlacements(placed)

	dc := gg.NewContext(int(r.Width), int(r.Height))
	dc.SetHexColor("#ffffff")
	dc.Clear()

	dc.SetHexColor("#999999")
	dc.SetLineWidth(2)
	for _, e := range Edges(rooms) {
		a, b := index[e.From], index[e.To]
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
		dc.Stroke()
	}

	for _, p := range placed {
		fill, stroke := roomColors(p)
		dc.DrawCircle(p.X, p.Y, nodeRadius)
		dc.SetHexColor(fill)
		dc.FillPreserve()
		dc.SetHexColor(stroke)
		dc.Stroke()

		dc.SetHexColor("#222222")
		dc.DrawStringAnchored(label(p.Room), p.X, p.Y+nodeRadius+10, 0.5, 0.5)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode floor plan: %w", err)
	}
	return buf.Bytes(), nil
}

// ============================================================
// Helpers
// ============================================================

func indexPlacements(placed []Placement) map[string]Placement {
	index := make(map[string]Placement, len(placed))
	for _, p := range placed {
		index[p.Room.ID] = p
	}
	return index
}

func roomColors(p Placement) (fill, stroke string) {
	fill, stroke = "#f4f4f4", "#555555"
	if p.Main {
		stroke = "#2ca02c"
	}
	if p.Current {
		fill = "#1f77b4"
	}
	return fill, stroke
}

func label(room models.Room) string {
	if room.Name != "" {
		return room.Name
	}
	return room.ID
}

func formatFloat(val float64) string {
	return strconv.FormatFloat(math.Round(val*100)/100, 'f', -1, 64)
}
