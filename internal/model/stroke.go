package model

import (
	"time"
)

// Point is a single sample in canvas-local coordinates
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeMeta is the creation payload for a stroke (no points yet)
type StrokeMeta struct {
	ID    string  `json:"id"`
	Tool  Tool    `json:"tool"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// Stroke is the canonical record for one drawn shape.
// Points is append-only: points are never removed or reordered, only the
// whole stroke is deleted.
type Stroke struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Tool      Tool      `json:"tool"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	Points    []Point   `json:"points"`
	Closed    bool      `json:"closed,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy, safe to hand out across the store boundary
func (s *Stroke) Clone() *Stroke {
	c := *s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	return &c
}

// CanvasSnapshot is the one-time full-state transfer for a new connection
type CanvasSnapshot struct {
	Background string    `json:"background,omitempty"`
	Strokes    []*Stroke `json:"strokes"`
	Generation uint64    `json:"generation"`
}
