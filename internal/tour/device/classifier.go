package device

import (
	"strings"

	"tour-engine/internal/tour/models"
)

// ============================================================
// Device Capability Classifier
// ============================================================

const (
	lowPixelLimit    = 1_000_000
	mediumPixelLimit = 2_000_000
)

var (
	lowPowerGPUs = []string{"mali", "powervr", "sgx", "videocore", "vivante"}
	midTierGPUs  = []string{"adreno", "apple gpu", "tegra"}
)

// Context describes the rendering environment as the host sees it at mount time.
type Context struct {
	GraphicsAvailable bool    `json:"graphicsAvailable"`
	GPUIntrospection  bool    `json:"gpuIntrospection"`
	Renderer          string  `json:"renderer,omitempty"`
	Vendor            string  `json:"vendor,omitempty"`
	ScreenWidth       int     `json:"screenWidth"`
	ScreenHeight      int     `json:"screenHeight"`
	PixelRatio        float64 `json:"pixelRatio,omitempty"`
}

// PixelCount returns the physical pixel count of the display.
func (c Context) PixelCount() float64 {
	ratio := c.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	return float64(c.ScreenWidth) * float64(c.ScreenHeight) * ratio * ratio
}

// Classify buckets the device into a tier. It is pure; callers cache the
// result for the session.
func Classify(ctx Context) models.DeviceCapability {
	if !ctx.GraphicsAvailable {
		return models.CapabilityLow
	}
	if ctx.GPUIntrospection {
		return classifyGPU(ctx.Renderer + " " + ctx.Vendor)
	}
	return classifyDisplay(ctx.PixelCount())
}

func classifyGPU(info string) models.DeviceCapability {
	info = strings.ToLower(info)
	if containsAny(info, lowPowerGPUs) {
		return models.CapabilityLow
	}
	if containsAny(info, midTierGPUs) {
		return models.CapabilityMedium
	}
	return models.CapabilityHigh
}

func classifyDisplay(pixels float64) models.DeviceCapability {
	switch {
	case pixels < lowPixelLimit:
		return models.CapabilityLow
	case pixels < mediumPixelLimit:
		return models.CapabilityMedium
	default:
		return models.CapabilityHigh
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
