package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tour-engine/internal/common/metrics"
	"tour-engine/internal/tour/assets"
	"tour-engine/internal/tour/device"
	"tour-engine/internal/tour/frame"
	"tour-engine/internal/tour/graph"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/navigator"
	"tour-engine/internal/tour/render"
	"tour-engine/internal/tour/repository"
	"tour-engine/internal/tour/viewer"
)

// ============================================================
// Session Manager
// ============================================================

var ErrSessionNotFound = fmt.Errorf("session: %w", models.ErrNotFound)

const (
	defaultFrameInterval = time.Second / 60
	defaultSessionTTL    = 15 * time.Minute
	defaultViewportW     = 1280
	defaultViewportH     = 720
)

type Config struct {
	SessionTTL    time.Duration
	FrameInterval time.Duration
	FadeDuration  time.Duration
}

// OpenRequest describes a new viewing session.
type OpenRequest struct {
	PropertyID    string         `json:"propertyId"`
	Device        device.Context `json:"device"`
	InitialRoomID string         `json:"initialRoomId,omitempty"`
	ModelID       string         `json:"modelId,omitempty"`
	Immersive     bool           `json:"immersive,omitempty"`
	Width         float64        `json:"width,omitempty"`
	Height        float64        `json:"height,omitempty"`
}

// Manager owns the open sessions and the collaborators they share.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	props  repository.PropertyStore
	assets *assets.Loader
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(props repository.PropertyStore, loader *assets.Loader, cfg Config, logger *zap.Logger) *Manager {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}
	if cfg.FadeDuration <= 0 {
		cfg.FadeDuration = navigator.DefaultFadeDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		props:    props,
		assets:   loader,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Open classifies the device, builds the session's navigator and viewer and
// starts its frame loop.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	prop, err := m.props.GetProperty(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	capability := device.Classify(req.Device)
	metrics.RecordClassification(capability.String())
	profile := render.ProfileFor(capability)

	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		width, height = defaultViewportW, defaultViewportH
	}

	id := uuid.NewString()
	logger := m.logger.With(zap.String("session", id), zap.String("property", prop.ID))
	sctx, cancel := context.WithCancel(context.Background())
	loop := frame.NewLoop()

	s := &Session{
		ID:         id,
		PropertyID: prop.ID,
		Capability: capability,
		Device:     req.Device,
		CreatedAt:  m.now(),
		ctx:        sctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
		loop:       loop,
		property:   prop,
		viewport:   navigator.Viewport{Width: width, Height: height},
		drag:       navigator.NewDragSource(),
		orient:     navigator.NewOrientationSource(),
	}
	s.touch(s.CreatedAt)

	if prop.Has3DTour && len(prop.TourRooms) > 0 {
		g, err := graph.FromRooms(prop.TourRooms)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("property %s rooms: %w", prop.ID, err)
		}
		// The session never mutates g, so the prefetch goroutines may read it.
		src := assets.NewPanoramaSource(sctx, m.assets, loop, assets.PanoramaOptions{
			MaxWidth:  2 * profile.TextureResolution,
			Neighbors: g.NeighborsOf,
			Logger:    logger,
		})
		nav, err := navigator.New(g, src, navigator.Options{
			InitialRoomID: req.InitialRoomID,
			FadeDuration:  m.cfg.FadeDuration,
			Immersive:     req.Immersive,
		})
		if err != nil {
			cancel()
			return nil, err
		}
		s.nav = nav
	} else if req.InitialRoomID != "" {
		cancel()
		return nil, ErrNoTour
	}

	var backend viewer.Backend = viewer.NewHeadlessBackend()
	if !req.Device.GraphicsAvailable {
		backend = viewer.ThumbnailBackend{}
	}
	s.viewer = viewer.New(backend, loop, viewer.NewAssetLoader(m.assets.FetchModel), viewer.Options{
		Capability: capability,
		Width:      width,
		Height:     height,
		Logger:     logger,
	})

	go func() {
		defer close(s.done)
		loop.Run(sctx, m.cfg.FrameInterval)
	}()

	var startErr error
	if err := s.do(ctx, func() {
		startErr = s.start()
		if startErr == nil && req.ModelID != "" {
			model, ok := prop.Model(req.ModelID)
			if !ok {
				startErr = fmt.Errorf("model %s: %w", req.ModelID, models.ErrNotFound)
				return
			}
			startErr = s.viewer.Load(sctx, model)
		}
	}); err != nil {
		startErr = err
	}
	if startErr != nil {
		s.close()
		return nil, startErr
	}

	s.opened = true
	metrics.SessionOpened()

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("session opened",
		zap.String("capability", capability.String()),
		zap.Bool("tour", s.nav != nil),
		zap.Int("models", len(prop.Models3D)),
	)
	return s, nil
}

// Get returns an open session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(m.now())
	return s, nil
}

// Close stops a session and releases its resources.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	return nil
}

// CloseAll stops every session, e.g. on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.SessionTTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done, then closes the rest.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// ============================================================
// Stateless queries
// ============================================================

func (m *Manager) Properties(ctx context.Context) ([]repository.Summary, error) {
	return m.props.ListProperties(ctx)
}

func (m *Manager) Property(ctx context.Context, id string) (*models.Property, error) {
	return m.props.GetProperty(ctx, id)
}

// RoomPath returns the breadcrumb from the main room to `to`, or with
// shortest set the BFS path from `from` (main room when empty).
func (m *Manager) RoomPath(ctx context.Context, propertyID, from, to string, shortest bool) ([]models.Room, error) {
	prop, err := m.props.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if len(prop.TourRooms) == 0 {
		return nil, ErrNoTour
	}
	g, err := graph.FromRooms(prop.TourRooms)
	if err != nil {
		return nil, err
	}
	if !shortest {
		return g.PathFromMain(to)
	}
	if from == "" {
		main, _ := g.Main()
		from = main.ID
	}
	return g.ShortestPath(from, to)
}

// Inspect loads a property's model headlessly for the given tier.
func (m *Manager) Inspect(ctx context.Context, propertyID, modelID string, capability models.DeviceCapability) (*Inspection, error) {
	prop, err := m.props.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	model, ok := prop.Model(modelID)
	if !ok {
		return nil, fmt.Errorf("model %s: %w", modelID, models.ErrNotFound)
	}
	return InspectModel(ctx, viewer.NewAssetLoader(m.assets.FetchModel), model, capability, m.logger)
}
