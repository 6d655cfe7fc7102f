package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"sketchboard/internal/presence"
	"sketchboard/internal/session"
	"sketchboard/internal/store"
)

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	store    *store.Store
	registry *session.Registry
	presence *presence.Manager
}

// NewHealthHandler HealthHandler 생성
func NewHealthHandler(st *store.Store, reg *session.Registry, pres *presence.Manager) *HealthHandler {
	return &HealthHandler{store: st, registry: reg, presence: pres}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status     string                    `json:"status"`
	Timestamp  string                    `json:"timestamp"`
	Sessions   int                       `json:"sessions"`
	Strokes    int                       `json:"strokes"`
	Generation uint64                    `json:"generation"`
	Checks     map[string]ComponentCheck `json:"checks"`
}

// Check 전체 상태 확인
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().Format(time.RFC3339),
		Sessions:   h.registry.Count(),
		Strokes:    h.store.StrokeCount(),
		Generation: h.store.Generation(),
		Checks:     make(map[string]ComponentCheck),
	}

	if h.presence != nil {
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.presence.Ping(ctx); err != nil {
			// Presence mirroring is best-effort; the canvas keeps working.
			response.Checks["redis"] = ComponentCheck{
				Status: "degraded",
				Error:  "redis unreachable",
			}
		} else {
			response.Checks["redis"] = ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(start).String(),
			}
		}
	} else {
		response.Checks["redis"] = ComponentCheck{
			Status: "not_configured",
		}
	}

	return c.JSON(response)
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// State handles GET /state: a plain JSON dump of the canonical canvas,
// the same shape a connecting participant receives in its snapshot
func (h *HealthHandler) State(c *fiber.Ctx) error {
	return c.JSON(h.store.Snapshot())
}
