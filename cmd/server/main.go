package main

import (
	"context"
	"log"

	"github.com/google/uuid"

	"sketchboard/internal/config"
	"sketchboard/internal/handler"
	"sketchboard/internal/presence"
	"sketchboard/internal/server"
	"sketchboard/internal/session"
	"sketchboard/internal/store"
)

func main() {
	// 설정 로드
	cfg := config.Load()

	// 캔버스 상태 및 세션 레지스트리
	st := store.New(cfg.Canvas.MaxStrokes, cfg.Canvas.MaxPointsPerStroke)
	reg := session.NewRegistry()

	// Redis presence 미러 초기화 (선택적)
	var pres *presence.Manager
	if cfg.Redis.Addr != "" {
		serverID := uuid.New().String()
		pres = presence.NewManager(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, serverID)
		if err := pres.Ping(context.Background()); err != nil {
			log.Printf("⚠️ Redis connection failed: %v (presence mirror disabled)", err)
			pres = nil
		} else {
			log.Printf("✅ Redis connected (server id: %s)", serverID)
		}
	} else {
		log.Println("ℹ️ Redis not configured (presence mirror disabled)")
	}

	// 캔버스 허브 시작
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := handler.NewCanvasHub(st, reg, pres, cfg)
	go hub.Run(ctx)

	// 서버 생성 및 설정
	srv := server.New(cfg, st, reg, pres, hub)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
