package service

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"tour-engine/internal/tour/frame"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/render"
	"tour-engine/internal/tour/viewer"
)

// ============================================================
// Headless model inspection
// ============================================================

const inspectPoll = time.Millisecond

type MarkerPosition struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	World mgl64.Vec3 `json:"world"`
}

// Inspection describes a model as the viewer would show it on a device tier.
type Inspection struct {
	ModelID   string             `json:"modelId"`
	Format    models.AssetFormat `json:"format"`
	State     viewer.State       `json:"state"`
	Error     string             `json:"error,omitempty"`
	Profile   render.Profile     `json:"profile"`
	Min       mgl64.Vec3         `json:"min"`
	Max       mgl64.Vec3         `json:"max"`
	Size      float64            `json:"size"`
	Meshes    int                `json:"meshes"`
	Triangles int                `json:"triangles"`
	Textures  int                `json:"textures"`
	Markers   []MarkerPosition   `json:"markers"`
}

// InspectModel runs the full viewer load sequence on a private loop and
// reports the fitted result. A failed load returns the inspection together
// with the viewer's AssetLoadError.
func InspectModel(ctx context.Context, loader viewer.ModelLoader, model models.Model3D, capability models.DeviceCapability, logger *zap.Logger) (*Inspection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loop := frame.NewLoop()
	v := viewer.New(viewer.NewHeadlessBackend(), loop, loader, viewer.Options{Capability: capability, Logger: logger})
	if err := v.Mount(); err != nil {
		return nil, err
	}
	defer v.Unmount()
	// zoom mode keeps the model still while it is measured
	_ = v.SetMode(viewer.ModeZoom)

	if err := v.Load(ctx, model); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(inspectPoll)
	defer ticker.Stop()
	for v.State() == viewer.StateLoading {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case now := <-ticker.C:
			loop.Step(now)
		}
	}

	insp := &Inspection{
		ModelID: model.ID,
		Format:  model.ResolvedFormat(),
		State:   v.State(),
		Profile: v.Profile(),
	}
	if err := v.Err(); err != nil {
		insp.Error = err.Error()
		return insp, err
	}

	root := v.Root()
	box := root.Bounds()
	insp.Min, insp.Max = box.Min, box.Max
	insp.Size = box.MaxDimension()
	insp.Meshes, insp.Triangles, insp.Textures = root.Stats()
	for _, m := range v.Markers() {
		insp.Markers = append(insp.Markers, MarkerPosition{ID: m.Hotspot.ID, Title: m.Hotspot.Title, World: m.World})
	}
	return insp, nil
}
