package server

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"sketchboard/internal/config"
	"sketchboard/internal/handler"
	"sketchboard/internal/presence"
	"sketchboard/internal/session"
	"sketchboard/internal/store"
)

// Server Fiber 서버 래퍼
type Server struct {
	app               *fiber.App
	cfg               *config.Config
	hub               *handler.CanvasHub
	healthHandler     *handler.HealthHandler
	backgroundHandler *handler.BackgroundHandler
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, st *store.Store, reg *session.Registry, pres *presence.Manager, hub *handler.CanvasHub) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Sketchboard Canvas Engine",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             cfg.Upload.MaxBodySize,
		DisableStartupMessage: false,
	})

	return &Server{
		app:               app,
		cfg:               cfg,
		hub:               hub,
		healthHandler:     handler.NewHealthHandler(st, reg, pres),
		backgroundHandler: handler.NewBackgroundHandler(hub, cfg.Upload.Dir),
	}
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Seoul",
	}))

	// CORS
	// 인증 쿠키가 없으므로 credentials 불필요
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORS.AllowOrigins,
		AllowHeaders: s.cfg.CORS.AllowHeaders,
		AllowMethods: "GET, POST, OPTIONS",
	}))

	// 정적 파일 제공 (업로드된 배경 이미지)
	s.app.Static("/uploads", s.cfg.Upload.Dir)
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)

	// 캔버스 전체 상태 (디버깅 및 복구용)
	s.app.Get("/state", s.healthHandler.State)

	// Rate Limiter (배경 업로드는 디코딩과 디스크 쓰기가 비싸다)
	uploadLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// 배경 이미지 업로드
	s.app.Post("/upload-background", uploadLimiter, s.backgroundHandler.UploadBackground)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 캔버스 동기화 엔드포인트
	s.app.Get("/ws/canvas", websocket.New(s.hub.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Sketchboard Canvas Engine starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/canvas", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
