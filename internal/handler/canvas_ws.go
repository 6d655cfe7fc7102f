package handler

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"sketchboard/internal/config"
	"sketchboard/internal/presence"
	"sketchboard/internal/protocol"
	"sketchboard/internal/session"
	"sketchboard/internal/store"
)

// =============================================================================
// Canvas Hub - shared canvas WebSocket fan-out
// =============================================================================

// heartbeatInterval for the optional Redis presence mirror (TTL is 60s)
const heartbeatInterval = 30 * time.Second

// CanvasHub connects every participant of the shared canvas to the stroke
// store. All mutations and their fan-out run on a single loop, so the order
// the store applies is exactly the order every observer replays; the
// serialized processing order becomes the de facto global order.
type CanvasHub struct {
	store    *store.Store
	registry *session.Registry
	presence *presence.Manager // nil when Redis is not configured

	clients    map[string]*CanvasClient // session id -> client
	register   chan *CanvasClient
	unregister chan *CanvasClient
	inbound    chan *inboundFrame
	background chan string

	sendQueueSize int
}

// CanvasClient is one connected participant
type CanvasClient struct {
	Session *session.Session
	send    chan []byte
	hub     *CanvasHub
}

// inboundFrame is one validated message plus the raw bytes it arrived in.
// The raw bytes are what gets fanned out: the hub re-broadcasts, it never
// re-derives, so every observer sees byte-identical content.
type inboundFrame struct {
	client *CanvasClient
	msg    *protocol.Message
	raw    []byte
}

// NewCanvasHub CanvasHub 생성
func NewCanvasHub(st *store.Store, reg *session.Registry, pres *presence.Manager, cfg *config.Config) *CanvasHub {
	return &CanvasHub{
		store:    st,
		registry: reg,
		presence: pres,

		clients:    make(map[string]*CanvasClient),
		register:   make(chan *CanvasClient),
		unregister: make(chan *CanvasClient),
		inbound:    make(chan *inboundFrame, 256),
		background: make(chan string, 8),

		sendQueueSize: cfg.WebSocket.SendQueueSize,
	}
}

// Run drives the hub loop. Call once, in its own goroutine; it exits when
// ctx is cancelled.
func (h *CanvasHub) Run(ctx context.Context) {
	log.Printf("[CanvasHub] Loop started")
	defer log.Printf("[CanvasHub] Loop stopped")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case frame := <-h.inbound:
			h.handleFrame(frame)
		case url := <-h.background:
			h.handleBackground(url)
		case <-heartbeat.C:
			h.heartbeatPresence()
		}
	}
}

// ReplaceBackground routes a background replacement (from the upload
// endpoint) through the hub loop so it is ordered against stroke traffic
func (h *CanvasHub) ReplaceBackground(url string) {
	h.background <- url
}

// handleRegister wires a new participant in. The snapshot is queued before
// anything else; because registration and broadcasts run on the same loop
// and the client's send queue is FIFO, no later message can overtake it.
func (h *CanvasHub) handleRegister(client *CanvasClient) {
	h.clients[client.Session.ID] = client

	msg := protocol.NewSnapshot(h.store.Snapshot())
	msg.SessionID = client.Session.ID
	snap, err := msg.Encode()
	if err != nil {
		log.Printf("[CanvasHub] Failed to encode snapshot: %v", err)
	} else {
		client.queue(snap)
	}

	log.Printf("[CanvasHub] Session %s connected, total: %d", client.Session.ID, len(h.clients))
	h.broadcastPresence()

	if h.presence != nil {
		go func(id string, at time.Time) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.presence.SetSession(ctx, id, at); err != nil {
				log.Printf("[CanvasHub] Presence mirror set failed: %v", err)
			}
		}(client.Session.ID, client.Session.ConnectedAt)
	}
}

// handleUnregister drops a participant. Strokes the session left open are
// finalized on its behalf so other mirrors can stop showing a live stroke;
// the points themselves stay as last recorded.
func (h *CanvasHub) handleUnregister(client *CanvasClient) {
	if _, ok := h.clients[client.Session.ID]; !ok {
		return
	}
	delete(h.clients, client.Session.ID)
	close(client.send)
	h.registry.Remove(client.Session.ID)

	for _, id := range h.store.OpenStrokesOwnedBy(client.Session.ID) {
		h.store.FinalizeStroke(id)
		if data, err := protocol.NewStrokeFinalized(id).Encode(); err == nil {
			h.broadcastAll(data)
		}
	}

	log.Printf("[CanvasHub] Session %s disconnected (%s), remaining: %d",
		client.Session.ID, client.Session.Duration().Round(time.Second), len(h.clients))
	h.broadcastPresence()

	if h.presence != nil {
		go func(id string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.presence.RemoveSession(ctx, id); err != nil {
				log.Printf("[CanvasHub] Presence mirror remove failed: %v", err)
			}
		}(client.Session.ID)
	}
}

// handleFrame applies one participant message to the store and fans out the
// raw bytes. Store-level no-ops (orphaned ids, duplicate creates) are still
// forwarded: mirrors run the same tolerant rules, and forwarding keeps the
// observed sequence identical for everyone.
func (h *CanvasHub) handleFrame(frame *inboundFrame) {
	owner := frame.client.Session.ID

	switch frame.msg.Type {
	case protocol.TypeStrokeCreated:
		h.store.CreateStroke(owner, *frame.msg.Stroke)
		h.broadcastOthers(frame.client, frame.raw)
	case protocol.TypePointsAppended:
		h.store.AppendPoints(owner, frame.msg.StrokeID, frame.msg.Points)
		h.broadcastOthers(frame.client, frame.raw)
	case protocol.TypeStrokeFinalized:
		h.store.FinalizeStroke(frame.msg.StrokeID)
		h.broadcastOthers(frame.client, frame.raw)
	case protocol.TypeStrokeDeleted:
		// Deletes go back to the requester too: its mirror drops the stroke
		// only on this authoritative confirmation.
		h.store.DeleteStroke(frame.msg.StrokeID)
		h.broadcastAll(frame.raw)
	case protocol.TypeCanvasCleared:
		h.store.ClearAll()
		h.broadcastAll(frame.raw)
	}
}

// handleBackground applies a background replacement. The background message
// goes out before the clear so no mirror flashes stale strokes over the new
// image.
func (h *CanvasHub) handleBackground(url string) {
	h.store.ReplaceBackground(url)

	if data, err := protocol.NewBackgroundChanged(url).Encode(); err == nil {
		h.broadcastAll(data)
	}
	if data, err := protocol.NewCanvasCleared().Encode(); err == nil {
		h.broadcastAll(data)
	}
}

func (h *CanvasHub) broadcastPresence() {
	data, err := protocol.NewPresenceChanged(h.registry.IDs()).Encode()
	if err != nil {
		return
	}
	h.broadcastAll(data)

	if h.presence != nil {
		ids := h.registry.IDs()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := h.presence.PublishUpdate(ctx, ids); err != nil {
				log.Printf("[CanvasHub] Presence publish failed: %v", err)
			}
		}()
	}
}

// broadcastAll queues data to every connected participant
func (h *CanvasHub) broadcastAll(data []byte) {
	for _, client := range h.clients {
		client.queue(data)
	}
}

// broadcastOthers queues data to everyone except the sender
func (h *CanvasHub) broadcastOthers(sender *CanvasClient, data []byte) {
	for id, client := range h.clients {
		if id == sender.Session.ID {
			continue
		}
		client.queue(data)
	}
}

func (h *CanvasHub) heartbeatPresence() {
	if h.presence == nil {
		return
	}
	ids := h.registry.IDs()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, id := range ids {
			if err := h.presence.Heartbeat(ctx, id); err != nil {
				log.Printf("[CanvasHub] Presence heartbeat failed for %s: %v", id, err)
			}
		}
	}()
}

// =============================================================================
// Client plumbing
// =============================================================================

func (h *CanvasHub) newClient(sess *session.Session) *CanvasClient {
	return &CanvasClient{
		Session: sess,
		send:    make(chan []byte, h.sendQueueSize),
		hub:     h,
	}
}

// queue hands data to the client's write pump without blocking the hub loop.
// Delivery is best-effort: a participant that cannot drain its queue loses
// the frame.
func (c *CanvasClient) queue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("[CanvasHub] Send queue full, dropping frame for %s", c.Session.ID)
	}
}

// writePump drains the send queue onto the connection. Exits when the hub
// closes the queue or the connection dies.
func (c *CanvasClient) writePump(conn *websocket.Conn) {
	for data := range c.send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[CanvasHub] Write to %s failed: %v", c.Session.ID, err)
			conn.Close()
			// Keep draining so the hub never blocks on us.
			for range c.send {
			}
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

// HandleWebSocket WebSocket 연결 처리
func (h *CanvasHub) HandleWebSocket(conn *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CanvasHub] WebSocket 패닉 복구: %v", r)
		}
	}()

	sess := h.registry.Add()
	client := h.newClient(sess)
	go client.writePump(conn)

	h.register <- client
	defer func() {
		h.unregister <- client
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// Tolerant boundary: drop the frame, keep the connection.
			log.Printf("[CanvasHub] Dropping frame from %s: %v", sess.ID, err)
			continue
		}
		if !msg.FromParticipant() {
			log.Printf("[CanvasHub] Dropping server-only %s frame from %s", msg.Type, sess.ID)
			continue
		}

		h.inbound <- &inboundFrame{client: client, msg: msg, raw: data}
	}
}
