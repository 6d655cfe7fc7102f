// Package client is the participant side of the canvas engine: a local
// mirror of the server's stroke map rebuilt from the snapshot plus
// incremental messages, the point batching sender, and a websocket
// participant that ties them together.
package client

import (
	"log"
	"sync"
	"time"

	"sketchboard/internal/geometry"
	"sketchboard/internal/model"
	"sketchboard/internal/protocol"
)

// Mirror is one participant's local reconstruction of canonical state. It
// applies the same tolerant rules as the server store, so a mirror that has
// processed the snapshot plus the server's message sequence converges to the
// server's map.
//
// Messages arriving before the snapshot are buffered and replayed once it
// lands; a stroke created in the narrow race between connect and snapshot
// delivery is not lost.
type Mirror struct {
	mu      sync.Mutex
	synced  bool
	pending []*protocol.Message

	strokes    map[string]*model.Stroke
	order      []string
	orphans    map[string]struct{}
	background string
	generation uint64
	sessions   []string
}

// NewMirror 새 미러 생성
func NewMirror() *Mirror {
	return &Mirror{
		strokes: make(map[string]*model.Stroke),
		orphans: make(map[string]struct{}),
	}
}

// Synced reports whether the snapshot has been processed
func (m *Mirror) Synced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced
}

// Apply feeds one protocol message into the mirror
func (m *Mirror) Apply(msg *protocol.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synced && msg.Type != protocol.TypeSnapshot {
		// No baseline to merge into yet; hold the message until the
		// snapshot arrives.
		m.pending = append(m.pending, msg)
		return
	}
	m.applyLocked(msg)
}

func (m *Mirror) applyLocked(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeSnapshot:
		m.loadSnapshot(msg.Snapshot)
	case protocol.TypeStrokeCreated:
		m.createStroke("", *msg.Stroke)
	case protocol.TypePointsAppended:
		m.appendPoints(msg.StrokeID, msg.Points)
	case protocol.TypeStrokeFinalized:
		if stroke, ok := m.strokes[msg.StrokeID]; ok {
			stroke.Closed = true
		}
	case protocol.TypeStrokeDeleted:
		m.deleteStroke(msg.StrokeID)
	case protocol.TypeCanvasCleared:
		m.clear()
	case protocol.TypeBackgroundChanged:
		m.background = msg.URL
	case protocol.TypePresenceChanged:
		m.sessions = msg.Sessions
	}
}

// loadSnapshot initializes the baseline, then replays anything that raced in
// ahead of it. Replaying is safe: every operation is tolerant of duplicates.
func (m *Mirror) loadSnapshot(snap *model.CanvasSnapshot) {
	m.strokes = make(map[string]*model.Stroke, len(snap.Strokes))
	m.order = make([]string, 0, len(snap.Strokes))
	m.orphans = make(map[string]struct{})
	for _, stroke := range snap.Strokes {
		m.strokes[stroke.ID] = stroke.Clone()
		m.order = append(m.order, stroke.ID)
	}
	m.background = snap.Background
	m.generation = snap.Generation
	m.synced = true

	if len(m.pending) > 0 {
		log.Printf("[Mirror] Replaying %d buffered messages after snapshot", len(m.pending))
		pending := m.pending
		m.pending = nil
		for _, msg := range pending {
			m.applyLocked(msg)
		}
	}
}

func (m *Mirror) createStroke(ownerID string, meta model.StrokeMeta) {
	if meta.Tool == model.ToolEraser {
		return
	}
	if _, exists := m.strokes[meta.ID]; exists {
		return
	}
	delete(m.orphans, meta.ID)

	m.strokes[meta.ID] = &model.Stroke{
		ID:        meta.ID,
		OwnerID:   ownerID,
		Tool:      meta.Tool,
		Color:     meta.Color,
		Width:     meta.Width,
		Points:    []model.Point{},
		CreatedAt: time.Now(),
	}
	m.order = append(m.order, meta.ID)
}

func (m *Mirror) appendPoints(id string, points []model.Point) {
	if len(points) == 0 {
		return
	}
	if _, orphaned := m.orphans[id]; orphaned {
		return
	}

	stroke, exists := m.strokes[id]
	if !exists {
		// Same self-healing as the store: the create may still be in flight.
		stroke = &model.Stroke{
			ID:        id,
			Tool:      model.DefaultTool,
			Color:     model.DefaultColor,
			Width:     model.DefaultWidth,
			Points:    []model.Point{},
			CreatedAt: time.Now(),
		}
		m.strokes[id] = stroke
		m.order = append(m.order, id)
	}
	stroke.Points = append(stroke.Points, points...)
}

func (m *Mirror) deleteStroke(id string) {
	if _, exists := m.strokes[id]; !exists {
		return
	}
	delete(m.strokes, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Mirror) clear() {
	for id := range m.strokes {
		m.orphans[id] = struct{}{}
	}
	m.strokes = make(map[string]*model.Stroke)
	m.order = nil
	m.generation++
}

// LocalCreate inserts a stroke drawn by this participant, for immediate
// visual feedback ahead of any network round trip
func (m *Mirror) LocalCreate(ownerID string, meta model.StrokeMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createStroke(ownerID, meta)
}

// LocalAppend records locally drawn points
func (m *Mirror) LocalAppend(id string, points ...model.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendPoints(id, points)
}

// EraseCandidates resolves an eraser sample into the strokes it hits: every
// stroke with any segment within radius of center. Evaluated against this
// participant's own mirror; the actual deletions happen when the
// authoritative strokeDeleted messages come back.
func (m *Mirror) EraseCandidates(center model.Point, radius float64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for _, id := range m.order {
		if geometry.StrokeWithin(center, m.strokes[id].Points, radius) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Strokes returns a deep copy of the mirrored strokes in creation order
func (m *Mirror) Strokes() []*model.Stroke {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.Stroke, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.strokes[id].Clone())
	}
	return out
}

// Stroke returns a copy of one mirrored stroke, or nil
func (m *Mirror) Stroke(id string) *model.Stroke {
	m.mu.Lock()
	defer m.mu.Unlock()

	stroke, exists := m.strokes[id]
	if !exists {
		return nil
	}
	return stroke.Clone()
}

// Background returns the mirrored background reference
func (m *Mirror) Background() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.background
}

// Generation returns the mirrored canvas generation
func (m *Mirror) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Sessions returns the last observed presence list
func (m *Mirror) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sessions...)
}
