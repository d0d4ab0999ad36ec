package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"tour-engine/internal/tour/frame"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/render"
)

// ============================================================
// 3D Model Viewer
// ============================================================

var ErrNotMounted = errors.New("viewer is not mounted")

type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateFailed      State = "failed"
	StateUnsupported State = "unsupported"
)

// FitSize is the largest model dimension after auto-fit, in world units.
const FitSize = 2.0

// Loop is what the viewer needs from the frame loop.
type Loop interface {
	frame.Scheduler
	frame.Dispatcher
}

type Options struct {
	Capability models.DeviceCapability
	Width      float64
	Height     float64
	Logger     *zap.Logger
}

// Viewer shows one 3D model with hotspot markers. All methods must be called
// on the loop thread; only the asset fetch runs elsewhere.
type Viewer struct {
	backend Backend
	loop    Loop
	loader  ModelLoader
	log     *zap.Logger

	state    State
	err      error
	progress Progress
	base     render.Profile
	profile  render.Profile
	monitor  *render.Monitor
	camera   Camera
	mode     Mode
	pointer  pointer
	clicks   []ScreenPoint

	model   *models.Model3D
	root    *Node
	pivot   *Node
	markers []*Marker
	active  *models.Hotspot

	mounted  bool
	paused   bool
	frameID  frame.ID
	gen      uint64
	cancel   context.CancelFunc
	started  time.Time
	frameNow time.Time

	OnHotspotClick  func(models.Hotspot)
	OnProfileChange func(from, to render.Profile)
}

func New(backend Backend, loop Loop, loader ModelLoader, opts Options) *Viewer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = 800, 600
	}

	v := &Viewer{
		backend: backend,
		loop:    loop,
		loader:  loader,
		log:     log,
		state:   StateIdle,
		base:    render.ProfileFor(opts.Capability),
		profile: render.ProfileFor(opts.Capability),
		camera:  NewCamera(width, height),
		mode:    ModeRotate,
	}
	v.monitor = render.NewMonitor(func() time.Time { return v.frameNow })
	if backend.Kind() == KindThumbnailOnly {
		v.state = StateUnsupported
	}
	return v
}

// Mount initialises the backend and starts the frame loop.
func (v *Viewer) Mount() error {
	if v.mounted {
		return nil
	}
	v.mounted = true
	if v.state == StateUnsupported {
		return nil
	}
	if err := v.backend.Init(v.profile); err != nil {
		v.fail(fmt.Errorf("init backend: %w", err))
		return err
	}
	v.requestFrame()
	return nil
}

// Unmount stops the loop and frees every GPU resource before returning. Loads
// still in flight are discarded when they complete.
func (v *Viewer) Unmount() {
	if !v.mounted {
		return
	}
	v.mounted = false
	v.gen++
	if v.frameID != 0 {
		v.loop.CancelFrame(v.frameID)
		v.frameID = 0
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.releaseModel()
	v.backend.Close()
	v.clicks = nil
	v.pointer = pointer{}
	if v.state != StateUnsupported {
		v.state = StateIdle
	}
}

func (v *Viewer) Pause() {
	if v.paused {
		return
	}
	v.paused = true
	if v.frameID != 0 {
		v.loop.CancelFrame(v.frameID)
		v.frameID = 0
	}
	v.monitor.Reset()
}

func (v *Viewer) Resume() {
	if !v.paused {
		return
	}
	v.paused = false
	v.requestFrame()
}

// Load replaces the current model. The fetch runs on its own goroutine and
// hands the result back through the loop; ctx bounds it and is cancelled by
// Unmount or a later Load.
func (v *Viewer) Load(ctx context.Context, model models.Model3D) error {
	if !v.mounted {
		return ErrNotMounted
	}
	if v.state == StateUnsupported {
		v.model = &model
		return nil
	}

	v.gen++
	gen := v.gen
	if v.cancel != nil {
		v.cancel()
	}
	v.releaseModel()
	v.model = &model
	v.state = StateLoading
	v.err = nil
	v.progress = Progress{}

	ctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.log.Debug("loading model", zap.String("model", model.ID), zap.String("url", model.ModelURL))

	go func() {
		root, err := v.loader.Load(ctx, model, func(p Progress) {
			v.loop.Post(func() {
				if gen == v.gen && v.state == StateLoading {
					v.progress = p
				}
			})
		})
		v.loop.Post(func() { v.finishLoad(gen, model, root, err) })
	}()
	return nil
}

func (v *Viewer) finishLoad(gen uint64, model models.Model3D, root *Node, err error) {
	if gen != v.gen || !v.mounted {
		v.log.Debug("dropping stale model load", zap.String("model", model.ID))
		return
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if err != nil {
		v.fail(models.NewAssetLoadError(model.ModelURL, err))
		return
	}
	if err := v.attach(model, root); err != nil {
		v.fail(models.NewAssetLoadError(model.ModelURL, err))
		return
	}
	v.log.Info("model ready",
		zap.String("model", model.ID),
		zap.Int("markers", len(v.markers)),
		zap.String("capability", v.profile.Capability.String()),
	)
}

// attach prepares the loaded subtree and makes it visible. Nothing is kept
// when any step fails.
func (v *Viewer) attach(model models.Model3D, asset *Node) error {
	if asset == nil {
		return errors.New("loader returned no scene")
	}
	v.profile = render.WithHints(v.base, model.RenderingHints)
	applyProfile(asset, v.profile, model.RenderingHints)
	if hints := model.RenderingHints; hints != nil && hints.MaxPolygons > 0 {
		if _, tris, _ := asset.Stats(); tris > hints.MaxPolygons {
			v.log.Warn("model exceeds polygon hint",
				zap.String("model", model.ID),
				zap.Int("triangles", tris),
				zap.Int("maxPolygons", hints.MaxPolygons),
			)
		}
	}

	root := NewNode("model:" + model.ID)
	pivot := NewNode("asset")
	root.Add(pivot)
	pivot.Add(asset)
	fit(root, pivot, model)

	markers := make([]*Marker, 0, len(model.Hotspots))
	for _, h := range model.Hotspots {
		if err := h.Validate(); err != nil {
			v.log.Warn("skipping hotspot", zap.Error(err))
			continue
		}
		m := newMarker(h)
		pivot.Add(m.node)
		markers = append(markers, m)
	}

	if err := v.backend.Upload(root); err != nil {
		v.backend.Release(root)
		return fmt.Errorf("upload model: %w", err)
	}

	v.root, v.pivot, v.markers = root, pivot, markers
	v.active = nil
	v.state = StateReady
	v.progress = Progress{Loaded: 1, Total: 1}
	v.monitor.Reset()
	return nil
}

// fit centres the asset and scales its largest dimension to FitSize, unless
// the descriptor declares a scale. Declared position and rotation are applied
// on top.
func fit(root, pivot *Node, model models.Model3D) {
	if model.Scale != nil {
		root.Scale = toVec(*model.Scale)
	} else {
		box := root.Bounds()
		if dim := box.MaxDimension(); dim > 0 {
			s := FitSize / dim
			root.Scale = mgl64.Vec3{s, s, s}
			pivot.Position = box.Center().Mul(-1)
		}
	}
	if model.Position != nil {
		root.Position = toVec(*model.Position)
	}
	if model.Rotation != nil {
		root.Rotation = toVec(*model.Rotation)
	}
}

func (v *Viewer) releaseModel() {
	if v.root != nil {
		v.backend.Release(v.root)
	}
	v.root, v.pivot, v.markers, v.active = nil, nil, nil, nil
}

func (v *Viewer) fail(err error) {
	v.releaseModel()
	v.state = StateFailed
	v.err = err
	v.log.Warn("viewer failed", zap.Error(err))
}

// ============================================================
// Frame loop
// ============================================================

func (v *Viewer) requestFrame() {
	if v.frameID == 0 && v.mounted && !v.paused && v.state != StateUnsupported {
		v.frameID = v.loop.RequestFrame(v.frame)
	}
}

func (v *Viewer) frame(now time.Time) {
	v.frameID = 0
	if !v.mounted || v.paused {
		return
	}
	defer v.requestFrame()
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("frame panicked", zap.Any("panic", r))
			v.fail(fmt.Errorf("frame: %v", r))
		}
	}()

	if v.started.IsZero() {
		v.started = now
	}
	v.frameNow = now

	if v.state != StateReady {
		v.clicks = nil
		return
	}

	if v.mode == ModeRotate && !v.pointer.down {
		v.root.Rotation[1] += AutoRotateSpeed
	}
	elapsed := now.Sub(v.started)
	for _, m := range v.markers {
		m.update(v.camera, elapsed)
	}
	for _, c := range v.clicks {
		v.hitTest(c)
	}
	v.clicks = nil

	if err := v.backend.Render(Frame{
		Time:    now,
		Root:    v.root,
		Camera:  v.camera,
		Markers: v.Markers(),
		Profile: v.profile,
	}); err != nil {
		v.fail(fmt.Errorf("render: %w", err))
		return
	}

	if v.monitor.Tick() {
		v.adapt(v.monitor.CurrentFPS())
	}
}

func (v *Viewer) hitTest(p ScreenPoint) {
	m, ok := pickMarker(v.camera, v.markers, p.X, p.Y)
	if !ok {
		v.active = nil
		return
	}
	h := m.Hotspot
	v.active = &h
	if v.OnHotspotClick != nil {
		v.OnHotspotClick(h)
	}
}

// ReportFPS feeds an externally measured frame rate, e.g. from a remote
// client, through the same adaptation path as the monitor.
func (v *Viewer) ReportFPS(fps float64) {
	if v.state == StateReady && fps > 0 {
		v.adapt(fps)
	}
}

// adapt applies the monitor's verdict live: pixel ratio and shadows change
// in place, textures keep the resolution they were loaded at.
func (v *Viewer) adapt(fps float64) {
	base := render.Adjust(v.base, fps)
	if base == v.base {
		return
	}
	v.base = base
	next := base
	if v.model != nil {
		next = render.WithHints(base, v.model.RenderingHints)
	}
	prev := v.profile
	v.profile = next

	if next.PixelRatio != prev.PixelRatio {
		v.backend.SetPixelRatio(next.PixelRatio)
	}
	if next.Shadows != prev.Shadows && v.root != nil {
		setShadows(v.root, next.Shadows)
	}
	v.log.Info("render profile adjusted",
		zap.Float64("fps", fps),
		zap.String("from", prev.Capability.String()),
		zap.String("to", next.Capability.String()),
	)
	if v.OnProfileChange != nil {
		v.OnProfileChange(prev, next)
	}
}

// ============================================================
// Accessors
// ============================================================

// Status is a read-only snapshot of the viewer.
type Status struct {
	State         State           `json:"state"`
	Error         string          `json:"error,omitempty"`
	Progress      float64         `json:"progress"`
	Mode          Mode            `json:"mode"`
	Profile       render.Profile  `json:"profile"`
	ModelID       string          `json:"modelId,omitempty"`
	ThumbnailURL  string          `json:"thumbnailUrl,omitempty"`
	Distance      float64         `json:"distance"`
	Rotation      mgl64.Vec3      `json:"rotation"`
	Position      mgl64.Vec3      `json:"position"`
	Scale         mgl64.Vec3      `json:"scale"`
	Markers       []Marker        `json:"markers,omitempty"`
	ActiveHotspot *models.Hotspot `json:"activeHotspot,omitempty"`
	FPS           float64         `json:"fps"`
	Paused        bool            `json:"paused"`
}

func (v *Viewer) Status() Status {
	st := Status{
		State:         v.state,
		Progress:      v.progress.Percent(),
		Mode:          v.mode,
		Profile:       v.profile,
		Distance:      v.camera.Distance,
		Markers:       v.Markers(),
		ActiveHotspot: v.ActiveHotspot(),
		FPS:           v.monitor.CurrentFPS(),
		Paused:        v.paused,
	}
	if v.err != nil {
		st.Error = v.err.Error()
	}
	if v.model != nil {
		st.ModelID = v.model.ID
		st.ThumbnailURL = v.model.ThumbnailURL
	}
	if v.root != nil {
		st.Rotation = v.root.Rotation
		st.Position = v.root.Position
		st.Scale = v.root.Scale
	}
	return st
}

func (v *Viewer) State() State            { return v.state }
func (v *Viewer) Err() error              { return v.err }
func (v *Viewer) Progress() Progress      { return v.progress }
func (v *Viewer) Profile() render.Profile { return v.profile }
func (v *Viewer) Camera() Camera          { return v.camera }
func (v *Viewer) Root() *Node             { return v.root }
func (v *Viewer) Mounted() bool           { return v.mounted }

func (v *Viewer) Model() (models.Model3D, bool) {
	if v.model == nil {
		return models.Model3D{}, false
	}
	return *v.model, true
}

// Markers returns copies of the marker states as of the last frame.
func (v *Viewer) Markers() []Marker {
	if len(v.markers) == 0 {
		return nil
	}
	out := make([]Marker, len(v.markers))
	for i, m := range v.markers {
		out[i] = *m
	}
	return out
}

func (v *Viewer) ActiveHotspot() *models.Hotspot {
	if v.active == nil {
		return nil
	}
	h := *v.active
	return &h
}

// SetViewport resizes the camera viewport in pixels.
func (v *Viewer) SetViewport(width, height float64) {
	if width > 0 && height > 0 {
		v.camera.Width, v.camera.Height = width, height
	}
}

func toVec(p models.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}
