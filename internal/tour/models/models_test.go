package models

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotspotValidate(t *testing.T) {
	assert.NoError(t, Hotspot{ID: "h1", Type: HotspotInfo}.Validate())
	assert.NoError(t, Hotspot{ID: "h2", Type: HotspotRoom, LinkedRoomID: "kitchen"}.Validate())
	assert.Error(t, Hotspot{ID: "h3", Type: HotspotRoom}.Validate())
	assert.Error(t, Hotspot{ID: "h4", Type: "door"}.Validate())
	assert.Error(t, Hotspot{Type: HotspotInfo}.Validate())
}

func TestFormatFromURL(t *testing.T) {
	cases := map[string]AssetFormat{
		"https://cdn.example.com/house.GLB?token=abc": FormatGLB,
		"models/chair.gltf":                           FormatGLTF,
		"asset://sofa.obj#frag":                       FormatOBJ,
		"kitchen.usdz":                                FormatUSDZ,
	}
	for in, want := range cases {
		got, ok := FormatFromURL(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := FormatFromURL("photo.jpg")
	assert.False(t, ok)

	assert.True(t, FormatGLB.EmbedsTextures())
	assert.False(t, FormatGLTF.EmbedsTextures())
	assert.Equal(t, FormatOBJ, Model3D{ModelURL: "a/b.obj"}.ResolvedFormat())
}

func TestCapabilityJSON(t *testing.T) {
	data, err := json.Marshal(map[string]DeviceCapability{"tier": CapabilityMedium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier":"medium"}`, string(data))

	var out struct {
		Tier DeviceCapability `json:"tier"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"tier":"HIGH"}`), &out))
	assert.Equal(t, CapabilityHigh, out.Tier)

	assert.Error(t, json.Unmarshal([]byte(`{"tier":"ultra"}`), &out))
}

func TestCapabilityStep(t *testing.T) {
	assert.Equal(t, CapabilityLow, CapabilityLow.Step(-1))
	assert.Equal(t, CapabilityMedium, CapabilityLow.Step(1))
	assert.Equal(t, CapabilityHigh, CapabilityHigh.Step(1))
	assert.Equal(t, CapabilityLow, CapabilityHigh.Step(-5))
}

func TestAssetLoadError(t *testing.T) {
	err := NewAssetLoadError("pano.jpg", io.ErrUnexpectedEOF)
	assert.True(t, errors.Is(err, ErrAssetLoadFailed))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "pano.jpg")

	again := NewAssetLoadError("other.jpg", err)
	assert.Same(t, err, again)
}
