package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-engine/internal/tour/assets"
	"tour-engine/internal/tour/device"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/navigator"
	"tour-engine/internal/tour/repository"
	"tour-engine/internal/tour/viewer"
)

const boxOBJ = `# box
v -1 -2 -0.5
v 3 2 0.5
v 0 0 0
usemtl oak
f 1 2 3
`

type memoryStore map[string]*models.Property

func (m memoryStore) GetProperty(_ context.Context, id string) (*models.Property, error) {
	p, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("property %s: %w", id, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m memoryStore) ListProperties(context.Context) ([]repository.Summary, error) {
	var out []repository.Summary
	for _, p := range m {
		out = append(out, repository.Summary{ID: p.ID, Title: p.Title, Rooms: len(p.TourRooms), Models: len(p.Models3D)})
	}
	return out, nil
}

var highEnd = device.Context{GraphicsAvailable: true, GPUIntrospection: true, Renderer: "NVIDIA GeForce RTX 3080"}

func writePNG(t *testing.T, store *assets.Store, ref string) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 32))))
	require.NoError(t, store.SaveFile(ref, buf.Bytes()))
}

func setupManager(t *testing.T) *Manager {
	t.Helper()
	store := assets.NewStore(t.TempDir())
	for _, room := range []string{"hall", "kitchen", "bath"} {
		writePNG(t, store, "p1/"+room+".png")
	}
	require.NoError(t, store.SaveFile("p1/box.obj", []byte(boxOBJ)))

	props := memoryStore{
		"p1": {
			ID:         "p1",
			Title:      "Loft",
			Has3DTour:  true,
			Has3DModel: true,
			TourRooms: []models.Room{
				{ID: "hall", Name: "Hall", PanoramaImage: "p1/hall.png", IsMain: true, Connections: []string{"kitchen"}},
				{ID: "kitchen", Name: "Kitchen", PanoramaImage: "p1/kitchen.png", Connections: []string{"hall", "bath"}},
				{ID: "bath", Name: "Bath", PanoramaImage: "p1/bath.png", Connections: []string{"kitchen"}},
				{ID: "cellar", Name: "Cellar", PanoramaImage: "p1/cellar.png"},
			},
			Models3D: []models.Model3D{{
				ID:       "box",
				Name:     "Box",
				ModelURL: "p1/box.obj",
				Hotspots: []models.Hotspot{{ID: "knob", Type: models.HotspotInfo, Title: "Knob", Position: models.Vec3{X: 1}}},
			}},
		},
		"p2": {ID: "p2", Title: "Studio", Has3DModel: true, Models3D: []models.Model3D{{ID: "box", ModelURL: "p1/box.obj"}}},
	}

	m := NewManager(props, assets.NewLoader(assets.Options{Store: store}), Config{
		FrameInterval: 5 * time.Millisecond,
		FadeDuration:  20 * time.Millisecond,
	}, nil)
	t.Cleanup(m.CloseAll)
	return m
}

func waitFor(t *testing.T, s *Session, cond func(*Snapshot) bool) *Snapshot {
	t.Helper()
	var last *Snapshot
	require.Eventually(t, func() bool {
		snap, err := s.Snapshot(context.Background())
		if err != nil {
			return false
		}
		last = snap
		return cond(snap)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func viewing(roomID string) func(*Snapshot) bool {
	return func(s *Snapshot) bool {
		return s.Tour != nil && s.Tour.State.Phase == navigator.PhaseViewing && s.Tour.State.RoomID == roomID
	}
}

func TestOpenSessionShowsMainRoom(t *testing.T) {
	m := setupManager(t)
	s, err := m.Open(context.Background(), OpenRequest{PropertyID: "p1", Device: highEnd})
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityHigh, s.Capability)
	assert.Equal(t, 1, m.Len())

	snap := waitFor(t, s, viewing("hall"))
	require.NotNil(t, snap.Tour.Panorama)
	assert.Equal(t, "p1/hall.png", snap.Tour.Panorama.Ref)
	assert.Equal(t, []string{"hall"}, snap.Tour.Breadcrumb)
	assert.Equal(t, []string{"hall"}, snap.RecentRooms)
	require.Len(t, snap.Tour.Hotspots, 1)
	assert.Equal(t, "room-kitchen", snap.Tour.Hotspots[0].Hotspot.ID)
	assert.Equal(t, viewer.StateIdle, snap.Model.State)
}

func TestNavigateFollowsConnections(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	s, err := m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd})
	require.NoError(t, err)
	waitFor(t, s, viewing("hall"))

	_, err = s.Navigate(ctx, "bath", navigator.SourceHotspot)
	assert.ErrorIs(t, err, navigator.ErrNotReachable)

	_, err = s.Navigate(ctx, "nowhere", navigator.SourceSelector)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.Navigate(ctx, "kitchen", "teleport")
	assert.ErrorIs(t, err, ErrInvalidCommand)

	snap, err := s.Navigate(ctx, "kitchen", navigator.SourceHotspot)
	require.NoError(t, err)
	assert.Equal(t, navigator.PhaseTransitioning, snap.Tour.State.Phase)

	snap = waitFor(t, s, viewing("kitchen"))
	assert.Equal(t, []string{"kitchen", "hall"}, snap.RecentRooms)
	assert.Equal(t, []string{"hall", "kitchen"}, snap.Tour.Breadcrumb)

	_, err = s.Navigate(ctx, "cellar", "")
	require.NoError(t, err)
	snap = waitFor(t, s, func(s *Snapshot) bool { return s.Tour.State.Phase == navigator.PhaseLoadFailed })
	assert.Equal(t, "cellar", snap.Tour.State.RoomID)
	assert.Contains(t, snap.Tour.Error, "p1/cellar.png")

	snap, err = s.Retry(ctx)
	require.NoError(t, err)
	assert.Equal(t, navigator.PhaseLoading, snap.Tour.State.Phase)
}

func TestClickHotspotRaisesEventAndNavigates(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	s, err := m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd})
	require.NoError(t, err)
	waitFor(t, s, viewing("hall"))

	_, err = s.ClickHotspot(ctx, "room-bath")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.ClickHotspot(ctx, "room-kitchen")
	require.NoError(t, err)

	snap := waitFor(t, s, viewing("kitchen"))
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "tour", snap.Events[0].Source)
	assert.Equal(t, "kitchen", snap.Events[0].Hotspot.LinkedRoomID)
}

func TestLookComposesGestures(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	s, err := m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd})
	require.NoError(t, err)

	_, err = s.Look(ctx, LookCommand{Phase: "begin", X: 0, Y: 0})
	require.NoError(t, err)
	off, err := s.Look(ctx, LookCommand{Phase: "move", X: 40, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, 350, off.Yaw, 1e-9)
	off, err = s.Look(ctx, LookCommand{Phase: "end"})
	require.NoError(t, err)
	assert.InDelta(t, 350, off.Yaw, 1e-9)

	_, err = s.Look(ctx, LookCommand{Phase: "begin", Source: "orientation", X: 100, Y: 10})
	require.NoError(t, err)
	off, err = s.Look(ctx, LookCommand{Phase: "move", X: 120, Y: 20})
	require.NoError(t, err)
	assert.InDelta(t, 10, off.Yaw, 1e-9)
	assert.InDelta(t, 10, off.Pitch, 1e-9)

	_, err = s.Look(ctx, LookCommand{Phase: "spin"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = s.Look(ctx, LookCommand{Phase: "begin", Source: "gamepad"})
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestLoadModelAndAdapt(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	s, err := m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd})
	require.NoError(t, err)

	_, err = s.LoadModel(ctx, "sofa")
	assert.ErrorIs(t, err, models.ErrNotFound)

	st, err := s.LoadModel(ctx, "box")
	require.NoError(t, err)
	assert.Equal(t, "box", st.ModelID)

	snap := waitFor(t, s, func(s *Snapshot) bool { return s.Model.State == viewer.StateReady })
	assert.InDelta(t, 0.5, snap.Model.Scale[0], 1e-9)
	require.Len(t, snap.Model.Markers, 1)

	profile, err := s.ReportFPS(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityMedium, profile.Capability)

	_, err = s.ReportFPS(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	st, err = s.SetModelMode(ctx, "zoom")
	require.NoError(t, err)
	assert.Equal(t, viewer.ModeZoom, st.Mode)
	st, err = s.ModelInput(ctx, InputCommand{Type: "wheel", Delta: 100})
	require.NoError(t, err)
	assert.InDelta(t, viewer.DefaultDistance+1, st.Distance, 1e-9)

	_, err = s.SetModelMode(ctx, "spin")
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = s.ModelInput(ctx, InputCommand{Type: "shake"})
	assert.ErrorIs(t, err, ErrInvalidCommand)

	st, err = s.SetModelVisible(ctx, false)
	require.NoError(t, err)
	assert.True(t, st.Paused)
}

func TestThumbnailOnlyDevice(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	s, err := m.Open(ctx, OpenRequest{PropertyID: "p2", Device: device.Context{ScreenWidth: 800, ScreenHeight: 600}, ModelID: "box"})
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityLow, s.Capability)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, viewer.StateUnsupported, snap.Model.State)
	assert.Equal(t, "box", snap.Model.ModelID)
	assert.Nil(t, snap.Tour)

	_, err = s.Navigate(ctx, "hall", navigator.SourceSelector)
	assert.ErrorIs(t, err, ErrNoTour)
	_, err = s.Floorplan(ctx, "svg")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestOpenRejectsUnknownInput(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	_, err := m.Open(ctx, OpenRequest{PropertyID: "nope"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd, InitialRoomID: "garage"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd, ModelID: "sofa"})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, 0, m.Len())
}

func TestCloseAndExpiry(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	a, err := m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd})
	require.NoError(t, err)
	b, err := m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd})
	require.NoError(t, err)

	require.NoError(t, m.Close(a.ID))
	assert.ErrorIs(t, m.Close(a.ID), ErrSessionNotFound)
	_, err = m.Get(a.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = a.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.Equal(t, 0, m.Sweep())
	m.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 1, m.Sweep())
	_, err = m.Get(b.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = b.Navigate(ctx, "kitchen", navigator.SourceSelector)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestFloorplanHighlightsCurrentRoom(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()
	s, err := m.Open(ctx, OpenRequest{PropertyID: "p1", Device: highEnd, InitialRoomID: "kitchen"})
	require.NoError(t, err)

	svg, err := s.Floorplan(ctx, "svg")
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(svg), "<circle"))
	assert.Contains(t, string(svg), `id="room-kitchen"`)

	data, err := s.Floorplan(ctx, "png")
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestRoomPath(t *testing.T) {
	m := setupManager(t)
	ctx := context.Background()

	crumbs, err := m.RoomPath(ctx, "p1", "", "bath", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"hall", "bath"}, roomIDs(crumbs))

	path, err := m.RoomPath(ctx, "p1", "", "bath", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"hall", "kitchen", "bath"}, roomIDs(path))

	_, err = m.RoomPath(ctx, "p2", "", "bath", false)
	assert.ErrorIs(t, err, ErrNoTour)
}

func TestInspectFitsModel(t *testing.T) {
	m := setupManager(t)

	insp, err := m.Inspect(context.Background(), "p1", "box", models.CapabilityMedium)
	require.NoError(t, err)
	assert.Equal(t, viewer.StateReady, insp.State)
	assert.Equal(t, models.FormatOBJ, insp.Format)
	assert.InDelta(t, viewer.FitSize, insp.Size, 1e-9)
	assert.Equal(t, 1, insp.Triangles)
	assert.Equal(t, models.CapabilityMedium, insp.Profile.Capability)
	require.Len(t, insp.Markers, 1)
	assert.InDelta(t, 0, insp.Markers[0].World.Len(), 1e-9)

	_, err = m.Inspect(context.Background(), "p1", "sofa", models.CapabilityHigh)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func roomIDs(rooms []models.Room) []string {
	out := make([]string, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.ID)
	}
	return out
}
