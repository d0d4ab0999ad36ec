package graph

import (
	"errors"
	"fmt"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Tour Graph
// ============================================================

var (
	ErrDuplicateRoom = errors.New("room already exists")
	ErrInvalidRoom   = errors.New("invalid room")
	ErrSelfLoop      = errors.New("room cannot connect to itself")
)

// Graph holds rooms as nodes. Connections are stored per room but mutated
// symmetrically; enumeration order is insertion order.
type Graph struct {
	order []string
	rooms map[string]*models.Room
}

func New() *Graph {
	return &Graph{
		rooms: make(map[string]*models.Room),
	}
}

// FromRooms builds a graph from property data, keeping the declared order
// and connections as stored. The main-room invariant is healed on the way in.
func FromRooms(rooms []models.Room) (*Graph, error) {
	g := New()
	for _, r := range rooms {
		if r.ID == "" {
			return nil, fmt.Errorf("room %q: %w", r.Name, ErrInvalidRoom)
		}
		if _, ok := g.rooms[r.ID]; ok {
			return nil, fmt.Errorf("room %s: %w", r.ID, ErrDuplicateRoom)
		}
		cp := r.Clone()
		cp.IsMain = false
		g.rooms[cp.ID] = &cp
		g.order = append(g.order, cp.ID)
	}

	for _, r := range rooms {
		if r.IsMain {
			g.rooms[r.ID].IsMain = true
			break
		}
	}
	g.healMain()
	return g, nil
}

// AddRoom inserts a room. The first room of an empty graph becomes main, and a
// room flagged main takes the flag over from the current main room.
func (g *Graph) AddRoom(room models.Room) error {
	if room.ID == "" {
		return ErrInvalidRoom
	}
	if _, ok := g.rooms[room.ID]; ok {
		return fmt.Errorf("room %s: %w", room.ID, ErrDuplicateRoom)
	}

	cp := room.Clone()
	wantMain := cp.IsMain || len(g.order) == 0
	cp.IsMain = false
	g.rooms[cp.ID] = &cp
	g.order = append(g.order, cp.ID)

	if wantMain {
		g.markMain(cp.ID)
	}
	return nil
}

// RemoveRoom deletes the room and every inverse reference to it. Unknown ids are a no-op.
func (g *Graph) RemoveRoom(id string) {
	room, ok := g.rooms[id]
	if !ok {
		return
	}
	wasMain := room.IsMain

	delete(g.rooms, id)
	for i, rid := range g.order {
		if rid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	for _, other := range g.rooms {
		other.Connections = without(other.Connections, id)
	}

	if wasMain && len(g.order) > 0 {
		g.markMain(g.order[0])
	}
}

// Connect links a and b in both directions.
func (g *Graph) Connect(a, b string) error {
	ra, rb, err := g.pair(a, b)
	if err != nil {
		return err
	}
	ra.Connections = appendUnique(ra.Connections, b)
	rb.Connections = appendUnique(rb.Connections, a)
	return nil
}

// Disconnect removes the link between a and b in both directions.
func (g *Graph) Disconnect(a, b string) error {
	ra, rb, err := g.pair(a, b)
	if err != nil {
		return err
	}
	ra.Connections = without(ra.Connections, b)
	rb.Connections = without(rb.Connections, a)
	return nil
}

// SetMain makes id the only main room.
func (g *Graph) SetMain(id string) error {
	if _, ok := g.rooms[id]; !ok {
		return fmt.Errorf("room %s: %w", id, models.ErrNotFound)
	}
	g.markMain(id)
	return nil
}

// NeighborsOf resolves the room's connections in stored order, skipping dangling ids.
func (g *Graph) NeighborsOf(id string) []models.Room {
	room, ok := g.rooms[id]
	if !ok {
		return nil
	}
	out := make([]models.Room, 0, len(room.Connections))
	for _, cid := range room.Connections {
		if n, ok := g.rooms[cid]; ok {
			out = append(out, n.Clone())
		}
	}
	return out
}

// IsNeighbor reports whether b is reachable from a in one hop.
func (g *Graph) IsNeighbor(a, b string) bool {
	room, ok := g.rooms[a]
	if !ok {
		return false
	}
	if _, ok := g.rooms[b]; !ok {
		return false
	}
	return contains(room.Connections, b)
}

// ============================================================
// Accessors
// ============================================================

func (g *Graph) Room(id string) (models.Room, bool) {
	r, ok := g.rooms[id]
	if !ok {
		return models.Room{}, false
	}
	return r.Clone(), true
}

func (g *Graph) Has(id string) bool {
	_, ok := g.rooms[id]
	return ok
}

func (g *Graph) Len() int {
	return len(g.order)
}

// Rooms returns all rooms in enumeration order.
func (g *Graph) Rooms() []models.Room {
	out := make([]models.Room, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.rooms[id].Clone())
	}
	return out
}

// Main returns the main room; false only for an empty graph.
func (g *Graph) Main() (models.Room, bool) {
	for _, id := range g.order {
		if r := g.rooms[id]; r.IsMain {
			return r.Clone(), true
		}
	}
	if len(g.order) == 0 {
		return models.Room{}, false
	}
	g.healMain()
	return g.Main()
}

// Check verifies the main-room invariant. A violation is repaired before
// the error is returned, so callers may log it and continue.
func (g *Graph) Check() error {
	mains := 0
	for _, id := range g.order {
		if g.rooms[id].IsMain {
			mains++
		}
	}
	if len(g.order) == 0 || mains == 1 {
		return nil
	}
	g.healMain()
	return fmt.Errorf("%d main rooms in a graph of %d: %w", mains, len(g.order), models.ErrInvariantViolation)
}

// ============================================================
// Helpers
// ============================================================

func (g *Graph) pair(a, b string) (*models.Room, *models.Room, error) {
	if a == b {
		return nil, nil, fmt.Errorf("room %s: %w", a, ErrSelfLoop)
	}
	ra, ok := g.rooms[a]
	if !ok {
		return nil, nil, fmt.Errorf("room %s: %w", a, models.ErrNotFound)
	}
	rb, ok := g.rooms[b]
	if !ok {
		return nil, nil, fmt.Errorf("room %s: %w", b, models.ErrNotFound)
	}
	return ra, rb, nil
}

func (g *Graph) markMain(id string) {
	for rid, r := range g.rooms {
		r.IsMain = rid == id
	}
}

// healMain keeps the first main room in enumeration order, or promotes the first room.
func (g *Graph) healMain() {
	if len(g.order) == 0 {
		return
	}
	for _, id := range g.order {
		if g.rooms[id].IsMain {
			g.markMain(id)
			return
		}
	}
	g.markMain(g.order[0])
}

func contains(list []string, target string) bool {
	for _, item := range list {
		if item == target {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, src ...string) []string {
	for _, s := range src {
		if !contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}

func without(list []string, target string) []string {
	out := list[:0]
	for _, item := range list {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}
