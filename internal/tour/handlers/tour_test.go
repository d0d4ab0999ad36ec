package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-engine/internal/tour/assets"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/navigator"
	"tour-engine/internal/tour/repository"
	"tour-engine/internal/tour/service"
)

const boxOBJ = "v -1 -1 -1\nv 1 1 1\nv 0 1 0\nf 1 2 3\n"

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := repository.OpenSQLite(filepath.Join(dir, "tour.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := repository.New(db)
	require.NoError(t, repo.Init(ctx))
	require.NoError(t, repo.SaveProperty(ctx, &models.Property{
		ID:         "p1",
		Title:      "Loft",
		Has3DTour:  true,
		Has3DModel: true,
		TourRooms: []models.Room{
			{ID: "hall", Name: "Hall", PanoramaImage: "p1/hall.png", IsMain: true, Connections: []string{"kitchen"}},
			{ID: "kitchen", Name: "Kitchen", PanoramaImage: "p1/kitchen.png", Connections: []string{"hall", "bath"}},
			{ID: "bath", Name: "Bath", PanoramaImage: "p1/kitchen.png", Connections: []string{"kitchen"}},
		},
		Models3D: []models.Model3D{{ID: "box", ModelURL: "p1/box.obj"}},
	}))

	store := assets.NewStore(filepath.Join(dir, "assets"))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 16))))
	require.NoError(t, store.SaveFile("p1/hall.png", buf.Bytes()))
	require.NoError(t, store.SaveFile("p1/kitchen.png", buf.Bytes()))
	require.NoError(t, store.SaveFile("p1/box.obj", []byte(boxOBJ)))

	manager := service.NewManager(repo, assets.NewLoader(assets.Options{Store: store}), service.Config{
		FrameInterval: 5 * time.Millisecond,
		FadeDuration:  10 * time.Millisecond,
	}, nil)
	t.Cleanup(manager.CloseAll)

	app := fiber.New()
	NewTourHandler(manager, store, nil).Register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestPropertyRoutes(t *testing.T) {
	app := setupTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/properties", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["properties"], 1)

	status, body = doJSON(t, app, http.MethodGet, "/properties/p1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Loft", body["title"])

	status, _ = doJSON(t, app, http.MethodGet, "/properties/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doJSON(t, app, http.MethodGet, "/properties/p1/path?to=bath&mode=shortest", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["rooms"], 3)

	status, body = doJSON(t, app, http.MethodGet, "/properties/p1/path?to=bath", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["rooms"], 2)

	status, _ = doJSON(t, app, http.MethodGet, "/properties/p1/path", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestClassifyRoute(t *testing.T) {
	app := setupTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/device/classify", map[string]any{
		"graphicsAvailable": true,
		"gpuIntrospection":  true,
		"renderer":          "Mali-G78",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "low", body["capability"])
	profile := body["profile"].(map[string]any)
	assert.Equal(t, 0.5, profile["pixelRatio"])

	status, _ = doJSON(t, app, http.MethodPost, "/device/classify", "{")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestInspectRoute(t *testing.T) {
	app := setupTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/properties/p1/models/box/inspect?capability=medium", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["state"])
	assert.InDelta(t, 2.0, body["size"], 1e-9)

	status, _ = doJSON(t, app, http.MethodGet, "/properties/p1/models/box/inspect?capability=ultra", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodGet, "/properties/p1/models/sofa/inspect", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionLifecycle(t *testing.T) {
	app := setupTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/sessions", map[string]any{
		"propertyId": "p1",
		"device":     map[string]any{"graphicsAvailable": true, "gpuIntrospection": true, "renderer": "Apple GPU"},
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "medium", body["capability"])
	id := body["id"].(string)
	base := "/sessions/" + id

	require.Eventually(t, func() bool {
		_, body := doJSON(t, app, http.MethodGet, base, nil)
		tour, ok := body["tour"].(map[string]any)
		if !ok {
			return false
		}
		state := tour["state"].(map[string]any)
		return state["phase"] == string(navigator.PhaseViewing)
	}, 2*time.Second, 10*time.Millisecond)

	status, _ = doJSON(t, app, http.MethodPost, base+"/navigate", "not json")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, base+"/navigate", map[string]any{"roomId": "garage"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodPost, base+"/navigate", map[string]any{"roomId": "bath", "via": "hotspot"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = doJSON(t, app, http.MethodPost, base+"/look", map[string]any{"phase": "spin"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = doJSON(t, app, http.MethodPost, base+"/look", map[string]any{"phase": "by", "x": 30, "y": 100})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 30.0, body["yaw"])
	assert.Equal(t, 85.0, body["pitch"])

	status, body = doJSON(t, app, http.MethodPost, base+"/hotspots/room-kitchen/click", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body["events"], 1)

	status, body = doJSON(t, app, http.MethodPost, base+"/model", map[string]any{"modelId": "box"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "box", body["modelId"])

	status, _ = doJSON(t, app, http.MethodPost, base+"/model/mode", map[string]any{"mode": "juggle"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = doJSON(t, app, http.MethodPost, base+"/fps", map[string]any{"fps": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	req := httptest.NewRequest(http.MethodGet, base+"/floorplan.svg", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "image/svg+xml")

	status, _ = doJSON(t, app, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = doJSON(t, app, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestOpenSessionValidation(t *testing.T) {
	app := setupTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/sessions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/sessions", map[string]any{"propertyId": "nope"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAssetRoute(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/assets/p1/hall.png", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/assets/p1/none.png", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("room x: %w", models.ErrNotFound), http.StatusNotFound},
		{service.ErrNoTour, http.StatusNotFound},
		{navigator.ErrBusy, http.StatusConflict},
		{service.ErrSessionClosed, http.StatusConflict},
		{fmt.Errorf("%w: bad", service.ErrInvalidCommand), http.StatusUnprocessableEntity},
		{models.NewAssetLoadError("a.glb", errors.New("boom")), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
