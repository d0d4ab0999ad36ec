package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"tour-engine/internal/common/metrics"
	"tour-engine/internal/tour/assets"
	"tour-engine/internal/tour/device"
	"tour-engine/internal/tour/models"
	"tour-engine/internal/tour/navigator"
	"tour-engine/internal/tour/render"
	"tour-engine/internal/tour/service"
	"tour-engine/internal/tour/viewer"
)

// ============================================================
// Tour Handler
// ============================================================

const defaultRequestTimeout = 10 * time.Second

type TourHandler struct {
	sessions *service.Manager
	store    *assets.Store
	logger   *zap.Logger
	timeout  time.Duration
}

func NewTourHandler(sessions *service.Manager, store *assets.Store, logger *zap.Logger) *TourHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TourHandler{
		sessions: sessions,
		store:    store,
		logger:   logger,
		timeout:  defaultRequestTimeout,
	}
}

// Register mounts the tour routes on r.
func (h *TourHandler) Register(r fiber.Router) {
	r.Get("/properties", h.ListProperties)
	r.Get("/properties/:id", h.GetProperty)
	r.Get("/properties/:id/path", h.RoomPath)
	r.Get("/properties/:id/models/:modelId/inspect", h.InspectModel)
	r.Post("/device/classify", h.Classify)

	r.Post("/sessions", h.OpenSession)
	r.Get("/sessions/:id", h.GetSession)
	r.Delete("/sessions/:id", h.CloseSession)
	r.Post("/sessions/:id/navigate", h.Navigate)
	r.Post("/sessions/:id/retry", h.Retry)
	r.Post("/sessions/:id/look", h.Look)
	r.Post("/sessions/:id/hotspots/:hotspotId/click", h.ClickHotspot)
	r.Post("/sessions/:id/viewport", h.SetViewport)
	r.Post("/sessions/:id/immersive", h.SetImmersive)
	r.Post("/sessions/:id/fps", h.ReportFPS)
	r.Post("/sessions/:id/model", h.LoadModel)
	r.Post("/sessions/:id/model/input", h.ModelInput)
	r.Post("/sessions/:id/model/mode", h.SetModelMode)
	r.Post("/sessions/:id/model/visibility", h.SetModelVisibility)
	r.Get("/sessions/:id/floorplan.svg", h.Floorplan("svg"))
	r.Get("/sessions/:id/floorplan.png", h.Floorplan("png"))

	if h.store != nil {
		r.Get("/assets/*", h.GetAsset)
	}
}

type navigateRequest struct {
	RoomID string           `json:"roomId"`
	Via    navigator.Source `json:"via"`
}

type viewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type fpsRequest struct {
	FPS float64 `json:"fps"`
}

type modelRequest struct {
	ModelID string `json:"modelId"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

type classifyResponse struct {
	Capability models.DeviceCapability `json:"capability"`
	Profile    render.Profile          `json:"profile"`
}

// ============================================================
// Properties
// ============================================================

func (h *TourHandler) ListProperties(c fiber.Ctx) error {
	ctx, cancel := h.context()
	defer cancel()

	list, err := h.sessions.Properties(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"properties": list})
}

func (h *TourHandler) GetProperty(c fiber.Ctx) error {
	ctx, cancel := h.context()
	defer cancel()

	p, err := h.sessions.Property(ctx, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(p)
}

// RoomPath отдаёт breadcrumb или кратчайший путь (mode=shortest).
func (h *TourHandler) RoomPath(c fiber.Ctx) error {
	to := c.Query("to")
	if to == "" {
		return badRequest(c, "to required")
	}
	ctx, cancel := h.context()
	defer cancel()

	rooms, err := h.sessions.RoomPath(ctx, c.Params("id"), c.Query("from"), to, c.Query("mode") == "shortest")
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"rooms": rooms})
}

func (h *TourHandler) InspectModel(c fiber.Ctx) error {
	capability := models.CapabilityHigh
	if raw := c.Query("capability"); raw != "" {
		parsed, err := models.ParseCapability(raw)
		if err != nil {
			return badRequest(c, err.Error())
		}
		capability = parsed
	}
	ctx, cancel := h.context()
	defer cancel()

	insp, err := h.sessions.Inspect(ctx, c.Params("id"), c.Params("modelId"), capability)
	if err != nil {
		if insp != nil {
			return c.Status(http.StatusBadGateway).JSON(insp)
		}
		return h.fail(c, err)
	}
	return c.JSON(insp)
}

func (h *TourHandler) Classify(c fiber.Ctx) error {
	var dc device.Context
	if err := decode(c, &dc); err != nil {
		return badRequest(c, err.Error())
	}
	capability := device.Classify(dc)
	metrics.RecordClassification(capability.String())
	return c.JSON(classifyResponse{Capability: capability, Profile: render.ProfileFor(capability)})
}

// ============================================================
// Sessions
// ============================================================

func (h *TourHandler) OpenSession(c fiber.Ctx) error {
	var req service.OpenRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.PropertyID == "" {
		return badRequest(c, "propertyId required")
	}
	ctx, cancel := h.context()
	defer cancel()

	s, err := h.sessions.Open(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(snap)
}

func (h *TourHandler) GetSession(c fiber.Ctx) error {
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.Snapshot(ctx)
	})
}

func (h *TourHandler) CloseSession(c fiber.Ctx) error {
	if err := h.sessions.Close(c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *TourHandler) Navigate(c fiber.Ctx) error {
	var req navigateRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.RoomID == "" {
		return badRequest(c, "roomId required")
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.Navigate(ctx, req.RoomID, req.Via)
	})
}

func (h *TourHandler) Retry(c fiber.Ctx) error {
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.Retry(ctx)
	})
}

func (h *TourHandler) Look(c fiber.Ctx) error {
	var req service.LookCommand
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.Look(ctx, req)
	})
}

func (h *TourHandler) ClickHotspot(c fiber.Ctx) error {
	hotspotID := c.Params("hotspotId")
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.ClickHotspot(ctx, hotspotID)
	})
}

func (h *TourHandler) SetViewport(c fiber.Ctx) error {
	var req viewportRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		if err := s.SetViewport(ctx, req.Width, req.Height); err != nil {
			return nil, err
		}
		return s.Snapshot(ctx)
	})
}

func (h *TourHandler) SetImmersive(c fiber.Ctx) error {
	var req toggleRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.SetImmersive(ctx, req.Enabled)
	})
}

// ReportFPS принимает FPS, измеренный клиентом, и отдаёт актуальный профиль.
func (h *TourHandler) ReportFPS(c fiber.Ctx) error {
	var req fpsRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.ReportFPS(ctx, req.FPS)
	})
}

func (h *TourHandler) LoadModel(c fiber.Ctx) error {
	var req modelRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	if req.ModelID == "" {
		return badRequest(c, "modelId required")
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.LoadModel(ctx, req.ModelID)
	})
}

func (h *TourHandler) ModelInput(c fiber.Ctx) error {
	var req service.InputCommand
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.ModelInput(ctx, req)
	})
}

func (h *TourHandler) SetModelMode(c fiber.Ctx) error {
	var req modeRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.SetModelMode(ctx, req.Mode)
	})
}

func (h *TourHandler) SetModelVisibility(c fiber.Ctx) error {
	var req visibilityRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	return h.withSession(c, func(ctx context.Context, s *service.Session) (any, error) {
		return s.SetModelVisible(ctx, req.Visible)
	})
}

// Floorplan отдаёт карту комнат сессии в svg или png.
func (h *TourHandler) Floorplan(format string) fiber.Handler {
	return func(c fiber.Ctx) error {
		s, err := h.sessions.Get(c.Params("id"))
		if err != nil {
			return h.fail(c, err)
		}
		ctx, cancel := h.context()
		defer cancel()

		data, err := s.Floorplan(ctx, format)
		if err != nil {
			return h.fail(c, err)
		}
		c.Type(format)
		return c.Send(data)
	}
}

// GetAsset отдаёт файл из хранилища ассетов.
func (h *TourHandler) GetAsset(c fiber.Ctx) error {
	path, err := h.store.Path(c.Params("*"))
	if err != nil || !h.store.Exists(c.Params("*")) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "asset not found"})
	}
	return c.SendFile(path)
}

// ============================================================
// Helpers
// ============================================================

func (h *TourHandler) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

func (h *TourHandler) withSession(c fiber.Ctx, fn func(ctx context.Context, s *service.Session) (any, error)) error {
	s, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.context()
	defer cancel()

	out, err := fn(ctx, s)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(out)
}

func (h *TourHandler) fail(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, navigator.ErrBusy),
		errors.Is(err, navigator.ErrNotReachable),
		errors.Is(err, service.ErrSessionClosed),
		errors.Is(err, viewer.ErrNotMounted):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCommand),
		errors.Is(err, models.ErrInvariantViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAssetLoadFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func decode(c fiber.Ctx, dst any) error {
	if len(c.Body()) == 0 {
		return errors.New("empty body")
	}
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return errors.New("invalid json")
	}
	return nil
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
