package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestClassifyCommand(t *testing.T) {
	var got map[string]any
	out := run(t, "classify", "--introspection", "--renderer", "PowerVR Rogue")
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "low", got["capability"])

	out = run(t, "classify", "--width", "1280", "--height", "800")
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "medium", got["capability"])
}

func TestProfileCommandAdjusts(t *testing.T) {
	var got map[string]any
	out := run(t, "profile", "high", "--fps", "20")
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "medium", got["capability"])
}

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.obj")
	require.NoError(t, os.WriteFile(path, []byte("v 0 0 0\nv 4 0 0\nv 0 2 0\nf 1 2 3\n"), 0o644))

	var got map[string]any
	out := run(t, "inspect", path, "--capability", "low")
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "cube", got["modelId"])
	assert.Equal(t, "ready", got["state"])
	assert.InDelta(t, 2.0, got["size"], 1e-9)
}

func TestImportAndPath(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tour.db")
	property := `{
		"id": "p1",
		"title": "Cottage",
		"has3DTour": true,
		"tourRooms": [
			{"id": "hall", "name": "Hall", "panoramaImage": "p1/hall.jpg", "isMain": true, "connections": ["kitchen", "bath"]},
			{"id": "kitchen", "name": "Kitchen", "panoramaImage": "p1/kitchen.jpg", "connections": ["hall", "bath"]},
			{"id": "bath", "name": "Bath", "panoramaImage": "p1/bath.jpg", "connections": ["hall", "kitchen"]}
		]
	}`
	src := filepath.Join(dir, "p1.json")
	require.NoError(t, os.WriteFile(src, []byte(property), 0o644))

	assert.Contains(t, run(t, "--db", db, "import", src), "imported p1: 3 rooms")
	assert.Equal(t, "Hall (hall) -> Kitchen (kitchen)\n",
		run(t, "--db", db, "path", "--property", "p1", "--to", "kitchen", "--shortest"))

	svg := run(t, "--db", db, "floorplan", "--property", "p1", "--current", "bath")
	assert.Contains(t, svg, `id="room-bath"`)
}
