package render

import (
	"tour-engine/internal/tour/models"
)

// ============================================================
// Render Profiles
// ============================================================

const (
	downgradeRatio = 0.8
	upgradeRatio   = 1.1
)

// Profile is the set of render parameters derived from a capability tier.
type Profile struct {
	Capability        models.DeviceCapability `json:"capability"`
	PixelRatio        float64                 `json:"pixelRatio"`
	Antialias         bool                    `json:"antialias"`
	Shadows           bool                    `json:"shadows"`
	MaxLights         int                     `json:"maxLights"`
	TextureResolution int                     `json:"textureResolution"`
	TargetFPS         int                     `json:"targetFPS"`
}

// ProfileFor maps a tier to its fixed render parameters.
func ProfileFor(c models.DeviceCapability) Profile {
	switch c {
	case models.CapabilityHigh:
		return Profile{
			Capability:        models.CapabilityHigh,
			PixelRatio:        1.0,
			Antialias:         true,
			Shadows:           true,
			MaxLights:         5,
			TextureResolution: 2048,
			TargetFPS:         60,
		}
	case models.CapabilityMedium:
		return Profile{
			Capability:        models.CapabilityMedium,
			PixelRatio:        0.75,
			Antialias:         true,
			Shadows:           false,
			MaxLights:         3,
			TextureResolution: 1024,
			TargetFPS:         45,
		}
	default:
		return Profile{
			Capability:        models.CapabilityLow,
			PixelRatio:        0.5,
			Antialias:         false,
			Shadows:           false,
			MaxLights:         2,
			TextureResolution: 512,
			TargetFPS:         30,
		}
	}
}

// Adjust steps the profile one tier down when fps falls under 0.8x the target
// and one tier up when it exceeds 1.1x. Inside the band the profile is kept.
func Adjust(p Profile, measuredFPS float64) Profile {
	target := float64(p.TargetFPS)
	switch {
	case measuredFPS < downgradeRatio*target && p.Capability > models.CapabilityLow:
		return ProfileFor(p.Capability.Step(-1))
	case measuredFPS > upgradeRatio*target && p.Capability < models.CapabilityHigh:
		return ProfileFor(p.Capability.Step(1))
	}
	return p
}

// WithHints narrows the profile to a model's advisory hints. Hints never raise quality.
func WithHints(p Profile, hints *models.RenderingHints) Profile {
	if hints == nil {
		return p
	}
	if hints.TextureResolution > 0 && hints.TextureResolution < p.TextureResolution {
		p.TextureResolution = hints.TextureResolution
	}
	if hints.Shadows != nil && !*hints.Shadows {
		p.Shadows = false
	}
	return p
}
