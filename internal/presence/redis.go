// Package presence mirrors live session presence into Redis so dashboards
// (or a future second instance) can display participant counts. Canvas
// content never goes through here: keys are ephemeral TTL'd session markers,
// not persistence.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL is how long a session key survives without a heartbeat
const TTL = 60 * time.Second

// SessionData Redis에 저장될 세션 데이터
type SessionData struct {
	SessionID   string `json:"session_id"`
	ConnectedAt int64  `json:"connected_at"`
	ServerID    string `json:"server_id"` // 멀티 서버 확장 대비
}

// PresenceUpdate is published on every membership change
type PresenceUpdate struct {
	ServerID string   `json:"server_id"`
	Sessions []string `json:"sessions"`
}

// Manager Presence 관리자
type Manager struct {
	client   *redis.Client
	serverID string
}

// NewManager 생성자
func NewManager(addr, password string, db int, serverID string) *Manager {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Manager{
		client:   rdb,
		serverID: serverID,
	}
}

func (m *Manager) sessionKey(sessionID string) string {
	return fmt.Sprintf("presence:session:%s", sessionID)
}

// Ping checks Redis connectivity
func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// SetSession marks a session online (Connect)
func (m *Manager) SetSession(ctx context.Context, sessionID string, connectedAt time.Time) error {
	data := SessionData{
		SessionID:   sessionID,
		ConnectedAt: connectedAt.Unix(),
		ServerID:    m.serverID,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return m.client.Set(ctx, m.sessionKey(sessionID), jsonData, TTL).Err()
}

// Heartbeat 생존 신고 (TTL 연장)
func (m *Manager) Heartbeat(ctx context.Context, sessionID string) error {
	ok, err := m.client.Expire(ctx, m.sessionKey(sessionID), TTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s not found (expired)", sessionID)
	}
	return nil
}

// RemoveSession 세션 삭제 (Disconnect)
func (m *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, m.sessionKey(sessionID)).Err()
}

// PublishUpdate broadcasts the current session list on the pub/sub channel
func (m *Manager) PublishUpdate(ctx context.Context, sessions []string) error {
	jsonData, err := json.Marshal(PresenceUpdate{
		ServerID: m.serverID,
		Sessions: sessions,
	})
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, "presence_updates", jsonData).Err()
}

// SubscribeUpdates 상태 변경 이벤트 구독 (채널 반환)
func (m *Manager) SubscribeUpdates(ctx context.Context) *redis.PubSub {
	return m.client.Subscribe(ctx, "presence_updates")
}

// Close closes the Redis connection
func (m *Manager) Close() error {
	return m.client.Close()
}
