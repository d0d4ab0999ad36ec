package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tour-engine/internal/common/metrics"
	"tour-engine/internal/tour/device"
	"tour-engine/internal/tour/floorplan"
	"tour-engine/internal/tour/frame"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/navigator"
	"tour-engine/internal/tour/render"
	"tour-engine/internal/tour/viewer"
)

// ============================================================
// Viewing session
// ============================================================

var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrInvalidCommand = errors.New("invalid command")
	ErrNoTour         = fmt.Errorf("property has no 3D tour: %w", models.ErrNotFound)
)

const (
	recentLimit = 10
	eventLimit  = 20
)

// HotspotEvent is a hotspot click raised to the host.
type HotspotEvent struct {
	Source  string         `json:"source"`
	Hotspot models.Hotspot `json:"hotspot"`
	At      time.Time      `json:"at"`
}

// Session is one viewer's state: a navigator over the property's room graph
// and a model viewer, both driven by the session's own frame loop. Every
// field below loop is touched on the loop thread only.
type Session struct {
	ID         string
	PropertyID string
	Capability models.DeviceCapability
	Device     device.Context
	CreatedAt  time.Time

	lastSeen atomic.Int64
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	opened   bool
	logger   *zap.Logger

	loop     *frame.Loop
	property *models.Property
	nav      *navigator.Navigator
	viewer   *viewer.Viewer
	viewport navigator.Viewport
	drag     *navigator.DragSource
	orient   *navigator.OrientationSource
	tickID   frame.ID
	lastTick time.Time
	recent   []string
	events   []HotspotEvent
}

// TourStatus is the navigator half of a snapshot.
type TourStatus struct {
	State         navigator.State           `json:"state"`
	Error         string                    `json:"error,omitempty"`
	Panorama      *navigator.Panorama       `json:"panorama,omitempty"`
	Opacity       float64                   `json:"opacity"`
	Offset        navigator.Offset          `json:"offset"`
	Hotspots      []navigator.PlacedHotspot `json:"hotspots"`
	Breadcrumb    []string                  `json:"breadcrumb"`
	ActiveHotspot string                    `json:"activeHotspot,omitempty"`
}

// Snapshot is a consistent read of a session taken between frames.
type Snapshot struct {
	ID          string                  `json:"id"`
	PropertyID  string                  `json:"propertyId"`
	Capability  models.DeviceCapability `json:"capability"`
	CreatedAt   time.Time               `json:"createdAt"`
	Tour        *TourStatus             `json:"tour,omitempty"`
	Model       viewer.Status           `json:"model"`
	RecentRooms []string                `json:"recentRooms"`
	Events      []HotspotEvent          `json:"events,omitempty"`
}

// LookCommand drives look-around. Phase is begin, move, end or by; Source is
// drag (X, Y in pixels) or orientation (X = alpha, Y = beta in degrees). For
// by, X and Y are a yaw/pitch delta in degrees.
type LookCommand struct {
	Phase  string  `json:"phase"`
	Source string  `json:"source"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// InputCommand is a pointer or zoom gesture on the model viewer.
type InputCommand struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Delta float64 `json:"delta"`
}

// do runs fn on the session loop between frames and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := s.loop.Do(ctx, fn); err != nil {
		if s.ctx.Err() != nil {
			return ErrSessionClosed
		}
		return err
	}
	return nil
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen is the time of the last command.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// start wires callbacks and kicks off the initial loads. Runs on the loop.
func (s *Session) start() error {
	s.viewer.OnHotspotClick = func(h models.Hotspot) { s.record("model", h) }
	s.viewer.OnProfileChange = func(from, to render.Profile) {
		metrics.RecordProfileChange(from.Capability.String(), to.Capability.String())
	}
	if err := s.viewer.Mount(); err != nil {
		return err
	}

	if s.nav != nil {
		s.nav.OnHotspotClick = func(h models.Hotspot) { s.record("tour", h) }
		s.nav.OnRoomChange = func(from, to string) {
			s.remember(to)
			s.logger.Debug("room changed", zap.String("from", from), zap.String("to", to))
		}
		s.remember(s.nav.CurrentRoomID())
		s.nav.Start()
		s.tickID = s.loop.RequestFrame(s.tick)
	}
	return nil
}

// tick advances navigator fades once per frame.
func (s *Session) tick(now time.Time) {
	s.tickID = 0
	if !s.lastTick.IsZero() {
		s.nav.Advance(now.Sub(s.lastTick))
	}
	s.lastTick = now
	s.tickID = s.loop.RequestFrame(s.tick)
}

func (s *Session) shutdown() {
	if s.tickID != 0 {
		s.loop.CancelFrame(s.tickID)
		s.tickID = 0
	}
	s.viewer.Unmount()
}

func (s *Session) close() {
	s.once.Do(func() {
		_ = s.do(context.Background(), s.shutdown)
		s.cancel()
		<-s.done
		if s.opened {
			metrics.SessionClosed()
			s.logger.Info("session closed")
		}
	})
}

func (s *Session) remember(roomID string) {
	if roomID == "" {
		return
	}
	out := []string{roomID}
	for _, id := range s.recent {
		if id != roomID && len(out) < recentLimit {
			out = append(out, id)
		}
	}
	s.recent = out
}

func (s *Session) record(source string, h models.Hotspot) {
	s.events = append(s.events, HotspotEvent{Source: source, Hotspot: h, At: time.Now()})
	if len(s.events) > eventLimit {
		s.events = s.events[len(s.events)-eventLimit:]
	}
	s.logger.Info("hotspot clicked", zap.String("source", source), zap.String("hotspot", h.ID))
}

func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		ID:          s.ID,
		PropertyID:  s.PropertyID,
		Capability:  s.Capability,
		CreatedAt:   s.CreatedAt,
		Model:       s.viewer.Status(),
		RecentRooms: append([]string(nil), s.recent...),
		Events:      append([]HotspotEvent(nil), s.events...),
	}
	if s.nav == nil {
		return snap
	}

	st := s.nav.State()
	tour := &TourStatus{
		State:         st,
		Opacity:       s.nav.Opacity(),
		Offset:        s.nav.Offset(),
		Hotspots:      s.nav.Hotspots(s.viewport),
		ActiveHotspot: s.nav.ActiveHotspot(),
	}
	if st.Err != nil {
		tour.Error = st.Err.Error()
	}
	if p, ok := s.nav.Panorama(); ok {
		tour.Panorama = &p
	}
	if crumbs, err := s.nav.Breadcrumb(); err == nil {
		for _, room := range crumbs {
			tour.Breadcrumb = append(tour.Breadcrumb, room.ID)
		}
	}
	snap.Tour = tour
	return snap
}

// ============================================================
// Commands
// ============================================================

func (s *Session) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := s.do(ctx, func() { snap = s.snapshot() })
	return snap, err
}

// Navigate moves the tour to roomID. via is hotspot or selector.
func (s *Session) Navigate(ctx context.Context, roomID string, via navigator.Source) (*Snapshot, error) {
	switch via {
	case "":
		via = navigator.SourceSelector
	case navigator.SourceHotspot, navigator.SourceSelector:
	default:
		return nil, fmt.Errorf("%w: navigation source %q", ErrInvalidCommand, via)
	}

	var (
		snap *Snapshot
		nerr error
	)
	err := s.do(ctx, func() {
		if s.nav == nil {
			nerr = ErrNoTour
			return
		}
		nerr = s.nav.NavigateTo(roomID, via)
		metrics.RecordNavigation(string(via), nerr)
		snap = s.snapshot()
	})
	if err != nil {
		return nil, err
	}
	return snap, nerr
}

// ClickHotspot clicks a panorama hotspot of the current room.
func (s *Session) ClickHotspot(ctx context.Context, hotspotID string) (*Snapshot, error) {
	var (
		snap *Snapshot
		cerr error
	)
	err := s.do(ctx, func() {
		if s.nav == nil {
			cerr = ErrNoTour
			return
		}
		cerr = s.nav.ClickHotspot(hotspotID)
		if !errors.Is(cerr, models.ErrNotFound) {
			metrics.RecordNavigation(string(navigator.SourceHotspot), cerr)
		}
		snap = s.snapshot()
	})
	if err != nil {
		return nil, err
	}
	return snap, cerr
}

// Retry re-requests a panorama that failed to load.
func (s *Session) Retry(ctx context.Context) (*Snapshot, error) {
	var (
		snap *Snapshot
		rerr error
	)
	err := s.do(ctx, func() {
		if s.nav == nil {
			rerr = ErrNoTour
			return
		}
		rerr = s.nav.Retry()
		snap = s.snapshot()
	})
	if err != nil {
		return nil, err
	}
	return snap, rerr
}

func (s *Session) Look(ctx context.Context, cmd LookCommand) (navigator.Offset, error) {
	var (
		offset navigator.Offset
		lerr   error
	)
	err := s.do(ctx, func() {
		if s.nav == nil {
			lerr = ErrNoTour
			return
		}
		offset, lerr = s.look(cmd)
	})
	if err != nil {
		return navigator.Offset{}, err
	}
	return offset, lerr
}

func (s *Session) look(cmd LookCommand) (navigator.Offset, error) {
	switch cmd.Phase {
	case "begin":
		var input navigator.LookInput
		switch cmd.Source {
		case "", "drag":
			input = s.drag
		case "orientation":
			input = s.orient
		default:
			return navigator.Offset{}, fmt.Errorf("%w: look source %q", ErrInvalidCommand, cmd.Source)
		}
		s.nav.BeginLook(input, cmd.X, cmd.Y)
		return s.nav.Offset(), nil
	case "move":
		return s.nav.Look(cmd.X, cmd.Y), nil
	case "end":
		return s.nav.EndLook(), nil
	case "by":
		return s.nav.LookBy(navigator.LookDelta{Yaw: cmd.X, Pitch: cmd.Y}), nil
	}
	return navigator.Offset{}, fmt.Errorf("%w: look phase %q", ErrInvalidCommand, cmd.Phase)
}

func (s *Session) SetImmersive(ctx context.Context, on bool) (*Snapshot, error) {
	var snap *Snapshot
	err := s.do(ctx, func() {
		if s.nav != nil {
			s.nav.SetImmersive(on)
		}
		snap = s.snapshot()
	})
	return snap, err
}

// SetViewport resizes both the hotspot overlay and the model camera.
func (s *Session) SetViewport(ctx context.Context, width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: viewport %gx%g", ErrInvalidCommand, width, height)
	}
	return s.do(ctx, func() {
		s.viewport = navigator.Viewport{Width: width, Height: height}
		s.viewer.SetViewport(width, height)
	})
}

// ReportFPS feeds a client-measured frame rate into profile adaptation.
func (s *Session) ReportFPS(ctx context.Context, fps float64) (render.Profile, error) {
	if fps <= 0 {
		return render.Profile{}, fmt.Errorf("%w: fps %g", ErrInvalidCommand, fps)
	}
	var profile render.Profile
	err := s.do(ctx, func() {
		s.viewer.ReportFPS(fps)
		profile = s.viewer.Profile()
	})
	return profile, err
}

// LoadModel starts loading one of the property's models. The load outlives
// the request; poll the snapshot for progress.
func (s *Session) LoadModel(ctx context.Context, modelID string) (viewer.Status, error) {
	model, ok := s.property.Model(modelID)
	if !ok {
		return viewer.Status{}, fmt.Errorf("model %s: %w", modelID, models.ErrNotFound)
	}
	var (
		st   viewer.Status
		lerr error
	)
	err := s.do(ctx, func() {
		lerr = s.viewer.Load(s.ctx, model)
		st = s.viewer.Status()
	})
	if err != nil {
		return viewer.Status{}, err
	}
	return st, lerr
}

func (s *Session) ModelInput(ctx context.Context, cmd InputCommand) (viewer.Status, error) {
	var (
		st   viewer.Status
		ierr error
	)
	err := s.do(ctx, func() {
		switch cmd.Type {
		case "down":
			s.viewer.PointerDown(cmd.X, cmd.Y)
		case "move":
			s.viewer.PointerMove(cmd.X, cmd.Y)
		case "up":
			s.viewer.PointerUp(cmd.X, cmd.Y)
		case "click":
			s.viewer.Click(cmd.X, cmd.Y)
		case "wheel":
			s.viewer.Wheel(cmd.Delta)
		case "pinch":
			s.viewer.Pinch(cmd.Delta)
		default:
			ierr = fmt.Errorf("%w: input type %q", ErrInvalidCommand, cmd.Type)
		}
		st = s.viewer.Status()
	})
	if err != nil {
		return viewer.Status{}, err
	}
	return st, ierr
}

func (s *Session) SetModelMode(ctx context.Context, mode string) (viewer.Status, error) {
	m, err := viewer.ParseMode(mode)
	if err != nil {
		return viewer.Status{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	var st viewer.Status
	err = s.do(ctx, func() {
		_ = s.viewer.SetMode(m)
		st = s.viewer.Status()
	})
	return st, err
}

// SetModelVisible pauses the model viewer while it is off screen.
func (s *Session) SetModelVisible(ctx context.Context, visible bool) (viewer.Status, error) {
	var st viewer.Status
	err := s.do(ctx, func() {
		if visible {
			s.viewer.Resume()
		} else {
			s.viewer.Pause()
		}
		st = s.viewer.Status()
	})
	return st, err
}

// Floorplan renders the room selector map with the current room highlighted.
func (s *Session) Floorplan(ctx context.Context, format string) ([]byte, error) {
	var (
		out  []byte
		ferr error
	)
	err := s.do(ctx, func() {
		if s.nav == nil {
			ferr = ErrNoTour
			return
		}
		r := floorplan.NewRenderer(s.viewport.Width, s.viewport.Height)
		rooms, current := s.nav.Graph().Rooms(), s.nav.CurrentRoomID()
		if format == "png" {
			out, ferr = r.RenderPNG(rooms, current)
			return
		}
		var svg string
		svg, ferr = r.Render(rooms, current)
		out = []byte(svg)
	})
	if err != nil {
		return nil, err
	}
	return out, ferr
}
