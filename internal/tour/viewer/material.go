package viewer

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/render"
)

// ============================================================
// Profile application
// ============================================================

// applyProfile walks every mesh: shadow flags, a material preset per tier and
// textures capped at the profile's resolution.
func applyProfile(root *Node, p render.Profile, hints *models.RenderingHints) {
	noReflections := hints != nil && hints.Reflections != nil && !*hints.Reflections
	seen := make(map[*Texture]bool)

	root.Traverse(func(n *Node) {
		if n.Mesh == nil {
			return
		}
		n.Mesh.CastShadow = p.Shadows
		n.Mesh.ReceiveShadow = p.Shadows

		mat := n.Mesh.Material
		if mat == nil {
			return
		}
		presetMaterial(mat, p.Capability)
		if noReflections {
			mat.Metalness = 0
		}
		for _, t := range mat.Textures {
			if !seen[t] {
				seen[t] = true
				limitTexture(t, p.TextureResolution)
			}
		}
	})
}

// presetMaterial trades specular detail for speed on weaker tiers.
func presetMaterial(m *Material, c models.DeviceCapability) {
	switch c {
	case models.CapabilityLow:
		m.Roughness = math.Max(m.Roughness, 0.8)
		m.Metalness = math.Min(m.Metalness, 0.2)
	case models.CapabilityMedium:
		m.Roughness = math.Max(m.Roughness, 0.5)
		m.Metalness = math.Min(m.Metalness, 0.5)
	}
}

func setShadows(root *Node, on bool) {
	root.Traverse(func(n *Node) {
		if n.Mesh != nil {
			n.Mesh.CastShadow = on
			n.Mesh.ReceiveShadow = on
		}
	})
}

// limitTexture scales the texture down so its longer side fits limit.
func limitTexture(t *Texture, limit int) {
	if limit <= 0 || (t.Width <= limit && t.Height <= limit) {
		return
	}
	w, h := FitWithin(t.Width, t.Height, limit)
	if t.Image != nil {
		t.Image = Downsample(t.Image, w, h)
	}
	t.Width, t.Height = w, h
}

// FitWithin returns w x h scaled so the longer side equals limit, keeping aspect.
func FitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, int(math.Max(1, math.Round(float64(h)*float64(limit)/float64(w))))
	}
	return int(math.Max(1, math.Round(float64(w)*float64(limit)/float64(h)))), limit
}

// Downsample resamples src to w x h.
func Downsample(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
