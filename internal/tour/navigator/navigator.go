package navigator

import (
	"errors"
	"fmt"
	"time"

	"tour-engine/internal/tour/graph"
	"tour-engine/internal/tour/models"
)

// ============================================================
// Panoramic Tour Navigator
// ============================================================

var (
	ErrEmptyTour    = errors.New("tour has no rooms")
	ErrNotReachable = errors.New("room is not connected to the current room")
	ErrBusy         = errors.New("navigator is busy")
)

const DefaultFadeDuration = 300 * time.Millisecond

type Phase string

const (
	PhaseLoading       Phase = "loading"
	PhaseViewing       Phase = "viewing"
	PhaseTransitioning Phase = "transitioning"
	PhaseLoadFailed    Phase = "load_failed"
)

// Source tells how a navigation was requested. Selector navigation (floor plan,
// room list) may jump anywhere; hotspot navigation must follow a connection.
type Source string

const (
	SourceHotspot  Source = "hotspot"
	SourceSelector Source = "selector"
)

// State is a snapshot of the navigator state machine.
type State struct {
	Phase  Phase  `json:"phase"`
	RoomID string `json:"roomId,omitempty"`
	FromID string `json:"fromId,omitempty"`
	ToID   string `json:"toId,omitempty"`
	Err    error  `json:"-"`
}

// Panorama is a loaded 360° image ready for display.
type Panorama struct {
	RoomID   string `json:"roomId"`
	Ref      string `json:"ref"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Degraded bool   `json:"degraded"`
	Source   string `json:"source"`
}

// PanoramaSource loads panorama assets. done must be invoked on the loop
// thread; a fallback (cache, placeholder) is reported as a Degraded panorama.
type PanoramaSource interface {
	Request(room models.Room, done func(Panorama, error))
}

type Options struct {
	InitialRoomID string
	FadeDuration  time.Duration
	Immersive     bool
}

type transition struct {
	from, to string
	fadingIn bool
	progress time.Duration
	ready    *Panorama
	err      error
}

// Navigator owns the current-room state of one viewing session. It is not
// safe for concurrent use; drive it from the frame loop.
type Navigator struct {
	graph  *graph.Graph
	source PanoramaSource
	opts   Options

	state    State
	panorama *Panorama
	trans    *transition
	opacity  float64
	request  uint64

	look          lookState
	activeHotspot string

	OnHotspotClick func(models.Hotspot)
	OnRoomChange   func(from, to string)
}

// New prepares a navigator in the Loading state. Call Start to request the
// initial panorama.
func New(g *graph.Graph, source PanoramaSource, opts Options) (*Navigator, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyTour
	}
	if opts.FadeDuration < 0 {
		opts.FadeDuration = 0
	}

	initial := opts.InitialRoomID
	if initial == "" {
		main, _ := g.Main()
		initial = main.ID
	} else if !g.Has(initial) {
		return nil, fmt.Errorf("initial room %s: %w", initial, models.ErrNotFound)
	}

	return &Navigator{
		graph:  g,
		source: source,
		opts:   opts,
		state:  State{Phase: PhaseLoading, RoomID: initial},
	}, nil
}

// Start requests the initial room's panorama.
func (n *Navigator) Start() {
	n.load(n.state.RoomID)
}

// Retry re-requests the panorama of a room that failed to load.
func (n *Navigator) Retry() error {
	if n.state.Phase != PhaseLoadFailed {
		return ErrBusy
	}
	n.state = State{Phase: PhaseLoading, RoomID: n.state.RoomID}
	n.load(n.state.RoomID)
	return nil
}

func (n *Navigator) load(roomID string) {
	room, ok := n.graph.Room(roomID)
	if !ok {
		n.state = State{Phase: PhaseLoadFailed, RoomID: roomID, Err: fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)}
		return
	}
	n.request++
	req := n.request
	n.source.Request(room, func(p Panorama, err error) {
		if req != n.request {
			return
		}
		n.loaded(roomID, p, err)
	})
}

func (n *Navigator) loaded(roomID string, p Panorama, err error) {
	switch n.state.Phase {
	case PhaseLoading:
		if err != nil {
			n.state = State{Phase: PhaseLoadFailed, RoomID: roomID, Err: models.NewAssetLoadError(roomRef(n.graph, roomID), err)}
			return
		}
		n.panorama = &p
		n.opacity = 1
		n.state = State{Phase: PhaseViewing, RoomID: roomID}
	case PhaseTransitioning:
		if n.trans == nil || n.trans.to != roomID {
			return
		}
		if err != nil {
			n.trans.err = models.NewAssetLoadError(roomRef(n.graph, roomID), err)
		} else {
			n.trans.ready = &p
		}
		n.Advance(0)
	}
}

// NavigateTo moves to another room. Navigating to the room already on screen
// is a no-op that keeps the pan offset.
func (n *Navigator) NavigateTo(roomID string, via Source) error {
	if !n.graph.Has(roomID) {
		return fmt.Errorf("room %s: %w", roomID, models.ErrNotFound)
	}

	switch n.state.Phase {
	case PhaseViewing:
		if roomID == n.state.RoomID {
			return nil
		}
	case PhaseLoadFailed:
		if roomID == n.state.RoomID {
			return n.Retry()
		}
	default:
		return ErrBusy
	}

	if via != SourceSelector && !n.graph.IsNeighbor(n.state.RoomID, roomID) {
		return fmt.Errorf("%s -> %s: %w", n.state.RoomID, roomID, ErrNotReachable)
	}

	from := n.state.RoomID
	n.look.reset()
	n.activeHotspot = ""

	if n.state.Phase == PhaseLoadFailed {
		n.state = State{Phase: PhaseLoading, RoomID: roomID}
		n.load(roomID)
		return nil
	}

	n.trans = &transition{from: from, to: roomID}
	n.state = State{Phase: PhaseTransitioning, FromID: from, ToID: roomID}
	n.load(roomID)
	n.Advance(0)
	return nil
}

// Advance moves fades forward by dt. The panorama is swapped once the old one
// has faded out and the new one is ready.
func (n *Navigator) Advance(dt time.Duration) {
	t := n.trans
	if n.state.Phase != PhaseTransitioning || t == nil {
		return
	}
	fade := n.opts.FadeDuration

	if !t.fadingIn {
		t.progress += dt
		n.opacity = 1 - ratio(t.progress, fade)
		if n.opacity > 0 {
			return
		}
		if t.err != nil {
			n.trans = nil
			n.state = State{Phase: PhaseLoadFailed, RoomID: t.to, Err: t.err}
			return
		}
		if t.ready == nil {
			return
		}
		n.panorama = t.ready
		t.fadingIn = true
		t.progress = 0
		dt = 0
	}

	t.progress += dt
	n.opacity = ratio(t.progress, fade)
	if n.opacity < 1 {
		return
	}
	n.trans = nil
	n.state = State{Phase: PhaseViewing, RoomID: t.to}
	if n.OnRoomChange != nil {
		n.OnRoomChange(t.from, t.to)
	}
}

// ============================================================
// Accessors
// ============================================================

func (n *Navigator) State() State { return n.state }

// CurrentRoomID is the room on screen, or the one being loaded.
func (n *Navigator) CurrentRoomID() string {
	if n.state.Phase == PhaseTransitioning {
		return n.state.FromID
	}
	return n.state.RoomID
}

func (n *Navigator) Panorama() (Panorama, bool) {
	if n.panorama == nil {
		return Panorama{}, false
	}
	return *n.panorama, true
}

// Opacity of the displayed panorama, 0..1.
func (n *Navigator) Opacity() float64 { return n.opacity }

func (n *Navigator) ActiveHotspot() string { return n.activeHotspot }

// Breadcrumb returns the main-room breadcrumb for the current room.
func (n *Navigator) Breadcrumb() ([]models.Room, error) {
	return n.graph.PathFromMain(n.CurrentRoomID())
}

func (n *Navigator) Graph() *graph.Graph { return n.graph }

func ratio(progress, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	r := float64(progress) / float64(total)
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

func roomRef(g *graph.Graph, id string) string {
	if r, ok := g.Room(id); ok && r.PanoramaImage != "" {
		return r.PanoramaImage
	}
	return id
}
