package graph

import (
	"fmt"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Breadcrumbs & paths
// ============================================================

// PathFromMain returns the breadcrumb shown above the panorama: [main] when id
// is the main room, otherwise [main, room]. It is two levels deep on purpose and
// is not a shortest path; use ShortestPath for that.
func (g *Graph) PathFromMain(id string) ([]models.Room, error) {
	room, ok := g.Room(id)
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, models.ErrNotFound)
	}
	main, _ := g.Main()
	if main.ID == id {
		return []models.Room{main}, nil
	}
	return []models.Room{main, room}, nil
}

// ShortestPath finds the fewest-hops route from one room to another with a
// breadth-first search over resolved neighbours.
func (g *Graph) ShortestPath(from, to string) ([]models.Room, error) {
	if !g.Has(from) {
		return nil, fmt.Errorf("room %s: %w", from, models.ErrNotFound)
	}
	if !g.Has(to) {
		return nil, fmt.Errorf("room %s: %w", to, models.ErrNotFound)
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 && !hasKey(prev, to) {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range g.NeighborsOf(cur) {
			if hasKey(prev, n.ID) {
				continue
			}
			prev[n.ID] = cur
			queue = append(queue, n.ID)
		}
	}
	if !hasKey(prev, to) {
		return nil, fmt.Errorf("no route from %s to %s: %w", from, to, models.ErrNotFound)
	}

	var ids []string
	for id := to; id != ""; id = prev[id] {
		ids = append(ids, id)
	}
	path := make([]models.Room, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		r, _ := g.Room(ids[i])
		path = append(path, r)
	}
	return path, nil
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}
