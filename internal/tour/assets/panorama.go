package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"tour-engine/internal/tour/frame"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/navigator"
)

// ============================================================
// Panorama source
// ============================================================

// PanoramaSource feeds the navigator. Loads run on their own goroutine and
// complete through the session's frame loop.
type PanoramaSource struct {
	ctx       context.Context
	loader    *Loader
	dispatch  frame.Dispatcher
	maxWidth  int
	neighbors func(roomID string) []models.Room
	logger    *zap.Logger
}

type PanoramaOptions struct {
	// MaxWidth caps the reported equirectangular width; 0 keeps the source size.
	MaxWidth int
	// Neighbors, when set, lets the source prefetch adjacent rooms.
	Neighbors func(roomID string) []models.Room
	Logger    *zap.Logger
}

func NewPanoramaSource(ctx context.Context, loader *Loader, dispatch frame.Dispatcher, opts PanoramaOptions) *PanoramaSource {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PanoramaSource{
		ctx:       ctx,
		loader:    loader,
		dispatch:  dispatch,
		maxWidth:  opts.MaxWidth,
		neighbors: opts.Neighbors,
		logger:    logger,
	}
}

func (s *PanoramaSource) Request(room models.Room, done func(navigator.Panorama, error)) {
	go func() {
		p, err := s.resolve(room)
		s.dispatch.Post(func() { done(p, err) })
		if err != nil || s.neighbors == nil {
			return
		}

		var refs []string
		for _, n := range s.neighbors(room.ID) {
			refs = append(refs, n.PanoramaImage)
		}
		if len(refs) > 0 {
			n := s.loader.Prefetch(s.ctx, KindPanorama, refs...)
			s.logger.Debug("prefetched neighbour panoramas", zap.String("room", room.ID), zap.Int("count", n))
		}
	}()
}

func (s *PanoramaSource) resolve(room models.Room) (navigator.Panorama, error) {
	asset, err := s.loader.Load(s.ctx, room.PanoramaImage, KindPanorama)
	if err != nil {
		return navigator.Panorama{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(asset.Data))
	if err != nil {
		return navigator.Panorama{}, fmt.Errorf("decode panorama %s: %w", room.PanoramaImage, err)
	}

	w, h := cfg.Width, cfg.Height
	if s.maxWidth > 0 && w > s.maxWidth {
		h = h * s.maxWidth / w
		w = s.maxWidth
	}
	return navigator.Panorama{
		RoomID:   room.ID,
		Ref:      room.PanoramaImage,
		Width:    w,
		Height:   h,
		Degraded: asset.Degraded,
		Source:   string(asset.Source),
	}, nil
}

// PlaceholderPanorama renders a neutral 2:1 equirectangular image: a sky to
// floor gradient with a horizon line.
func PlaceholderPanorama(width int) ([]byte, error) {
	if width < 2 {
		width = 2
	}
	height := width / 2
	w, h := float64(width), float64(height)

	dc := gg.NewContext(width, height)
	grad := gg.NewLinearGradient(0, 0, 0, h)
	grad.AddColorStop(0, color.RGBA{R: 200, G: 200, B: 220, A: 255})
	grad.AddColorStop(1, color.RGBA{R: 80, G: 80, B: 100, A: 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	dc.SetColor(color.RGBA{R: 90, G: 90, B: 90, A: 255})
	dc.SetLineWidth(1)
	dc.DrawLine(0, h/2, w, h/2)
	dc.Stroke()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
