package device

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tour-engine/internal/tour/models"
)

func gpu(renderer string) Context {
	return Context{GraphicsAvailable: true, GPUIntrospection: true, Renderer: renderer}
}

func TestClassifyByGPU(t *testing.T) {
	assert.Equal(t, models.CapabilityLow, Classify(gpu("Mali-G72 MP3")))
	assert.Equal(t, models.CapabilityLow, Classify(gpu("PowerVR Rogue GE8320")))
	assert.Equal(t, models.CapabilityMedium, Classify(gpu("Adreno (TM) 640")))
	assert.Equal(t, models.CapabilityMedium, Classify(gpu("Apple GPU")))
	assert.Equal(t, models.CapabilityHigh, Classify(gpu("NVIDIA GeForce RTX 4080/PCIe/SSE2")))
	assert.Equal(t, models.CapabilityHigh, Classify(gpu("ANGLE (AMD Radeon Pro 5500M)")))
}

func TestClassifyMatchesVendorCaseInsensitive(t *testing.T) {
	ctx := Context{GraphicsAvailable: true, GPUIntrospection: true, Renderer: "unknown", Vendor: "ARM MALI"}
	assert.Equal(t, models.CapabilityLow, Classify(ctx))
}

func TestClassifyWithoutGraphicsContext(t *testing.T) {
	ctx := Context{GPUIntrospection: true, Renderer: "NVIDIA GeForce RTX 4080"}
	assert.Equal(t, models.CapabilityLow, Classify(ctx))

	ctx = Context{ScreenWidth: 2560, ScreenHeight: 1440}
	assert.Equal(t, models.CapabilityLow, Classify(ctx))
}

func TestClassifyByDisplay(t *testing.T) {
	cases := []struct {
		name string
		ctx  Context
		want models.DeviceCapability
	}{
		{"small phone", Context{GraphicsAvailable: true, ScreenWidth: 720, ScreenHeight: 1280}, models.CapabilityLow},
		{"hd tablet", Context{GraphicsAvailable: true, ScreenWidth: 1080, ScreenHeight: 1600}, models.CapabilityMedium},
		{"retina phone", Context{GraphicsAvailable: true, ScreenWidth: 390, ScreenHeight: 844, PixelRatio: 2}, models.CapabilityMedium},
		{"4k", Context{GraphicsAvailable: true, ScreenWidth: 3840, ScreenHeight: 2160}, models.CapabilityHigh},
		{"exactly one megapixel", Context{GraphicsAvailable: true, ScreenWidth: 1000, ScreenHeight: 1000}, models.CapabilityMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.ctx))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	ctx := gpu("Adreno 730")
	first := Classify(ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(ctx))
	}
}
