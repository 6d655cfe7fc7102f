package handler

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// BackgroundHandler stores uploaded background images and routes the
// replacement through the canvas hub. Replacing the background always clears
// all strokes: background and strokes are mutually exclusive scenes.
type BackgroundHandler struct {
	hub       *CanvasHub
	uploadDir string
}

// NewBackgroundHandler BackgroundHandler 생성
func NewBackgroundHandler(hub *CanvasHub, uploadDir string) *BackgroundHandler {
	return &BackgroundHandler{hub: hub, uploadDir: uploadDir}
}

// UploadBackgroundRequest 배경 업로드 요청
type UploadBackgroundRequest struct {
	ImageData string `json:"imageData"` // data URL (data:image/...;base64,...)
	FileName  string `json:"fileName,omitempty"`
}

// UploadBackground handles POST /upload-background
func (h *BackgroundHandler) UploadBackground(c *fiber.Ctx) error {
	var req UploadBackgroundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.ImageData == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no image data provided"})
	}

	raw := req.ImageData
	if idx := strings.Index(raw, "base64,"); idx >= 0 {
		raw = raw[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid image data"})
	}

	ext := "png"
	if req.FileName != "" {
		if e := strings.TrimPrefix(filepath.Ext(req.FileName), "."); e != "" {
			ext = e
		}
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		log.Printf("[Background] Failed to create upload dir: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store background"})
	}

	fileName := fmt.Sprintf("background-%d.%s", time.Now().UnixMilli(), ext)
	if err := os.WriteFile(filepath.Join(h.uploadDir, fileName), data, 0o644); err != nil {
		log.Printf("[Background] Failed to write %s: %v", fileName, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store background"})
	}

	backgroundURL := "/uploads/" + fileName
	h.hub.ReplaceBackground(backgroundURL)
	log.Printf("[Background] Replaced background: %s (%d bytes)", backgroundURL, len(data))

	return c.JSON(fiber.Map{
		"success":       true,
		"backgroundUrl": backgroundURL,
	})
}
