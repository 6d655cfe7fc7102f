package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Canvas    CanvasConfig
	Batch     BatchConfig
	Upload    UploadConfig
	Redis     RedisConfig
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendQueueSize   int // per-client outbound queue before the slow consumer is dropped
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// CanvasConfig caps and eraser tuning for the shared canvas
type CanvasConfig struct {
	MaxStrokes         int
	MaxPointsPerStroke int
	EraserRadiusFactor float64 // query radius = factor * stroke width
}

// BatchConfig client-side point batching cadence
type BatchConfig struct {
	SendInterval      time.Duration
	MaxPointsPerBatch int
}

// UploadConfig background image upload settings
type UploadConfig struct {
	Dir         string
	MaxBodySize int
}

// RedisConfig Redis 설정 (presence mirror, optional)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getInt("WS_READ_BUFFER_SIZE", 4096),
			WriteBufferSize: getInt("WS_WRITE_BUFFER_SIZE", 4096),
			SendQueueSize:   getInt("WS_SEND_QUEUE_SIZE", 256),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept"),
		},
		Canvas: CanvasConfig{
			MaxStrokes:         getInt("CANVAS_MAX_STROKES", 10000),
			MaxPointsPerStroke: getInt("CANVAS_MAX_POINTS_PER_STROKE", 20000),
			EraserRadiusFactor: getFloat("CANVAS_ERASER_RADIUS_FACTOR", 2.5),
		},
		Batch: BatchConfig{
			SendInterval:      getDuration("BATCH_SEND_INTERVAL", 60*time.Millisecond),
			MaxPointsPerBatch: getInt("BATCH_MAX_POINTS", 120),
		},
		Upload: UploadConfig{
			Dir:         getEnv("UPLOAD_DIR", "./uploads"),
			MaxBodySize: getInt("UPLOAD_MAX_BODY_SIZE", 20*1024*1024),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
	}
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getFloat 실수형 환경 변수 조회
func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
