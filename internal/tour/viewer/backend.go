package viewer

import (
	"sync"
	"time"

	"tour-engine/internal/tour/render"
)

// ============================================================
// Render backends
// ============================================================

type BackendKind string

const (
	KindWebGL         BackendKind = "webgl"
	KindThumbnailOnly BackendKind = "thumbnail_only"
)

// Frame is everything a backend needs to draw one frame.
type Frame struct {
	Time    time.Time
	Root    *Node
	Camera  Camera
	Markers []Marker
	Profile render.Profile
}

// Backend is the GPU-side collaborator. Upload and Release bracket the life
// of a model's resources; Close drops everything.
type Backend interface {
	Kind() BackendKind
	Init(p render.Profile) error
	Upload(root *Node) error
	Release(root *Node)
	SetPixelRatio(ratio float64)
	Render(f Frame) error
	Close()
}

// HeadlessBackend keeps account of resources and frames without drawing.
// It backs the tour service and the tests.
type HeadlessBackend struct {
	mu         sync.Mutex
	ready      bool
	pixelRatio float64
	antialias  bool
	resident   map[*Node]int
	frames     int
	last       Frame
}

func NewHeadlessBackend() *HeadlessBackend {
	return &HeadlessBackend{resident: make(map[*Node]int)}
}

func (b *HeadlessBackend) Kind() BackendKind { return KindWebGL }

func (b *HeadlessBackend) Init(p render.Profile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = true
	b.pixelRatio = p.PixelRatio
	b.antialias = p.Antialias
	return nil
}

func (b *HeadlessBackend) Upload(root *Node) error {
	meshes, _, textures := root.Stats()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resident[root] = meshes + textures
	return nil
}

func (b *HeadlessBackend) Release(root *Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.resident, root)
}

func (b *HeadlessBackend) SetPixelRatio(ratio float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pixelRatio = ratio
}

func (b *HeadlessBackend) Render(f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames++
	b.last = f
	return nil
}

func (b *HeadlessBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = false
	b.resident = make(map[*Node]int)
}

// Resident counts the GPU objects (meshes plus textures) still uploaded.
func (b *HeadlessBackend) Resident() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.resident {
		total += n
	}
	return total
}

func (b *HeadlessBackend) Frames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

func (b *HeadlessBackend) PixelRatio() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pixelRatio
}

func (b *HeadlessBackend) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// ThumbnailBackend stands in on platforms without 3D support. The viewer
// shows the model thumbnail instead.
type ThumbnailBackend struct{}

func (ThumbnailBackend) Kind() BackendKind         { return KindThumbnailOnly }
func (ThumbnailBackend) Init(render.Profile) error { return nil }
func (ThumbnailBackend) Upload(*Node) error        { return nil }
func (ThumbnailBackend) Release(*Node)             {}
func (ThumbnailBackend) SetPixelRatio(float64)     {}
func (ThumbnailBackend) Render(Frame) error        { return nil }
func (ThumbnailBackend) Close()                    {}
