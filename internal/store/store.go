// Package store owns the canonical stroke map for one shared canvas.
//
// The store is the only shared mutable resource in the engine. Every method
// takes the mutex, so callers on any goroutine see serialized state; the
// canvas hub additionally funnels all mutations through a single loop so the
// order it applies is the order it fans out.
package store

import (
	"log"
	"sync"
	"time"

	"sketchboard/internal/model"
)

// Store is the server-authoritative canvas state
type Store struct {
	mu         sync.Mutex
	strokes    map[string]*model.Stroke
	order      []string            // creation order, for snapshot replay
	orphans    map[string]struct{} // ids invalidated by a clear
	background string
	generation uint64

	maxStrokes         int
	maxPointsPerStroke int
}

// New creates an empty store. Caps of zero or below disable the limit.
func New(maxStrokes, maxPointsPerStroke int) *Store {
	return &Store{
		strokes: make(map[string]*model.Stroke),
		orphans: make(map[string]struct{}),

		maxStrokes:         maxStrokes,
		maxPointsPerStroke: maxPointsPerStroke,
	}
}

// CreateStroke inserts a new empty record for meta, owned by ownerID.
// Duplicate ids are idempotent no-ops. Eraser strokes are never stored;
// they only ever resolve to deletions on the drawing client. Creating an id
// orphaned by an earlier clear makes it fresh again.
func (s *Store) CreateStroke(ownerID string, meta model.StrokeMeta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.Tool == model.ToolEraser {
		return false
	}
	if _, exists := s.strokes[meta.ID]; exists {
		return false
	}
	if s.maxStrokes > 0 && len(s.strokes) >= s.maxStrokes {
		log.Printf("[Store] Stroke cap (%d) reached, dropping create %s", s.maxStrokes, meta.ID)
		return false
	}

	delete(s.orphans, meta.ID)

	s.strokes[meta.ID] = &model.Stroke{
		ID:        meta.ID,
		OwnerID:   ownerID,
		Tool:      meta.Tool,
		Color:     meta.Color,
		Width:     meta.Width,
		Points:    []model.Point{},
		CreatedAt: time.Now(),
	}
	s.order = append(s.order, meta.ID)
	return true
}

// AppendPoints appends a batch to the stroke's point sequence. An unknown id
// is self-healed into a minimal brush record, because no causal barrier
// guarantees the strokeCreated message arrived first. Ids orphaned by a
// clear are no-ops. A stroke at the per-stroke point cap degrades silently.
func (s *Store) AppendPoints(ownerID, id string, points []model.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(points) == 0 {
		return false
	}
	if _, orphaned := s.orphans[id]; orphaned {
		return false
	}

	stroke, exists := s.strokes[id]
	if !exists {
		if s.maxStrokes > 0 && len(s.strokes) >= s.maxStrokes {
			return false
		}
		stroke = &model.Stroke{
			ID:        id,
			OwnerID:   ownerID,
			Tool:      model.DefaultTool,
			Color:     model.DefaultColor,
			Width:     model.DefaultWidth,
			Points:    []model.Point{},
			CreatedAt: time.Now(),
		}
		s.strokes[id] = stroke
		s.order = append(s.order, id)
		log.Printf("[Store] Synthesized stroke %s for out-of-order append", id)
	}

	if s.maxPointsPerStroke > 0 {
		room := s.maxPointsPerStroke - len(stroke.Points)
		if room <= 0 {
			return false
		}
		if len(points) > room {
			points = points[:room]
		}
	}

	stroke.Points = append(stroke.Points, points...)
	return true
}

// FinalizeStroke marks a stroke closed. Purely advisory: later appends are
// still accepted, since a straggling batch may be reordered past the
// finalize. No-op for unknown ids.
func (s *Store) FinalizeStroke(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	stroke, exists := s.strokes[id]
	if !exists {
		return false
	}
	stroke.Closed = true
	return true
}

// DeleteStroke removes the record for id. Idempotent: deleting an absent id
// is a no-op, not an error.
func (s *Store) DeleteStroke(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) bool {
	if _, exists := s.strokes[id]; !exists {
		return false
	}
	delete(s.strokes, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ClearAll wipes every stroke and bumps the generation. All ids live at the
// clear become orphans: late appends or deletes referencing them are no-ops,
// while a fresh create reclaims the id.
func (s *Store) ClearAll() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *Store) clearLocked() uint64 {
	for id := range s.strokes {
		s.orphans[id] = struct{}{}
	}
	s.strokes = make(map[string]*model.Stroke)
	s.order = nil
	s.generation++
	log.Printf("[Store] Canvas cleared, generation %d", s.generation)
	return s.generation
}

// ReplaceBackground sets the background reference and clears all strokes.
// Background and strokes are mutually exclusive scenes: observers must see
// the background change together with (or before) the clear.
func (s *Store) ReplaceBackground(ref string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.background = ref
	return s.clearLocked()
}

// Snapshot returns a deep copy of the canonical state, in creation order.
// Used exactly once per new connection.
func (s *Store) Snapshot() *model.CanvasSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	strokes := make([]*model.Stroke, 0, len(s.order))
	for _, id := range s.order {
		strokes = append(strokes, s.strokes[id].Clone())
	}
	return &model.CanvasSnapshot{
		Background: s.background,
		Strokes:    strokes,
		Generation: s.generation,
	}
}

// Stroke returns a copy of the record for id, or nil
func (s *Store) Stroke(id string) *model.Stroke {
	s.mu.Lock()
	defer s.mu.Unlock()

	stroke, exists := s.strokes[id]
	if !exists {
		return nil
	}
	return stroke.Clone()
}

// StrokeCount returns the number of live strokes
func (s *Store) StrokeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.strokes)
}

// Generation returns the current canvas generation
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// OpenStrokesOwnedBy returns the ids of not-yet-finalized strokes created by
// ownerID. The hub uses this to finalize strokes left open by a participant
// that disconnected mid-draw.
func (s *Store) OpenStrokesOwnedBy(ownerID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, id := range s.order {
		stroke := s.strokes[id]
		if stroke.OwnerID == ownerID && !stroke.Closed {
			ids = append(ids, id)
		}
	}
	return ids
}
