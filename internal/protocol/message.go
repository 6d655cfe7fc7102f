// Package protocol defines the message set exchanged between participants
// and the canvas hub. Every message is one JSON object with a type tag; the
// hub validates inbound frames here before they reach the store, then fans
// out the same bytes it validated so every observer sees identical content.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"sketchboard/internal/model"
)

// Type 메시지 타입
type Type string

const (
	TypeSnapshot          Type = "snapshot"
	TypeStrokeCreated     Type = "strokeCreated"
	TypePointsAppended    Type = "pointsAppended"
	TypeStrokeFinalized   Type = "strokeFinalized"
	TypeStrokeDeleted     Type = "strokeDeleted"
	TypeCanvasCleared     Type = "canvasCleared"
	TypeBackgroundChanged Type = "backgroundChanged"
	TypePresenceChanged   Type = "presenceChanged"
)

// ErrMalformed is returned for frames that fail validation. Malformed frames
// are dropped and logged; the connection stays open.
var ErrMalformed = errors.New("malformed message")

// Message is the wire envelope. Exactly the fields for the tagged type are
// set; everything else stays omitted.
type Message struct {
	Type     Type                  `json:"type"`
	Stroke   *model.StrokeMeta     `json:"stroke,omitempty"`
	StrokeID string                `json:"strokeId,omitempty"`
	Points   []model.Point         `json:"points,omitempty"`
	URL      string                `json:"url,omitempty"`
	Sessions []string              `json:"sessions,omitempty"`
	Snapshot *model.CanvasSnapshot `json:"snapshot,omitempty"`

	// SessionID rides on the snapshot only: it tells the connecting
	// participant its own transport-assigned id, which seeds its stroke ids.
	SessionID string `json:"sessionId,omitempty"`
}

// Decode parses and validates one frame
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate checks the fields required by the message type
func (m *Message) Validate() error {
	switch m.Type {
	case TypeStrokeCreated:
		if m.Stroke == nil || m.Stroke.ID == "" {
			return fmt.Errorf("%w: strokeCreated requires stroke meta with id", ErrMalformed)
		}
		if !m.Stroke.Tool.Valid() {
			return fmt.Errorf("%w: unknown tool %q", ErrMalformed, m.Stroke.Tool)
		}
		if m.Stroke.Width <= 0 {
			return fmt.Errorf("%w: stroke width must be positive", ErrMalformed)
		}
	case TypePointsAppended:
		if m.StrokeID == "" {
			return fmt.Errorf("%w: pointsAppended requires strokeId", ErrMalformed)
		}
		if len(m.Points) == 0 {
			return fmt.Errorf("%w: pointsAppended requires a non-empty batch", ErrMalformed)
		}
	case TypeStrokeFinalized, TypeStrokeDeleted:
		if m.StrokeID == "" {
			return fmt.Errorf("%w: %s requires strokeId", ErrMalformed, m.Type)
		}
	case TypeCanvasCleared, TypePresenceChanged:
		// no payload requirements
	case TypeBackgroundChanged:
		if m.URL == "" {
			return fmt.Errorf("%w: backgroundChanged requires url", ErrMalformed)
		}
	case TypeSnapshot:
		if m.Snapshot == nil {
			return fmt.Errorf("%w: snapshot requires state", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	return nil
}

// FromParticipant reports whether a participant may originate this type.
// Snapshot, background and presence messages only flow server to client.
func (m *Message) FromParticipant() bool {
	switch m.Type {
	case TypeStrokeCreated, TypePointsAppended, TypeStrokeFinalized,
		TypeStrokeDeleted, TypeCanvasCleared:
		return true
	}
	return false
}

// Encode marshals the message to one wire frame
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// NewSnapshot builds the one-time state transfer for a new connection
func NewSnapshot(snap *model.CanvasSnapshot) *Message {
	return &Message{Type: TypeSnapshot, Snapshot: snap}
}

// NewStrokeCreated builds a stroke creation announcement (meta, no points)
func NewStrokeCreated(meta model.StrokeMeta) *Message {
	return &Message{Type: TypeStrokeCreated, Stroke: &meta}
}

// NewPointsAppended builds an incremental point batch for one stroke
func NewPointsAppended(id string, points []model.Point) *Message {
	return &Message{Type: TypePointsAppended, StrokeID: id, Points: points}
}

// NewStrokeFinalized builds the advisory end-of-stroke marker
func NewStrokeFinalized(id string) *Message {
	return &Message{Type: TypeStrokeFinalized, StrokeID: id}
}

// NewStrokeDeleted builds a deletion request/broadcast
func NewStrokeDeleted(id string) *Message {
	return &Message{Type: TypeStrokeDeleted, StrokeID: id}
}

// NewCanvasCleared builds a whole-canvas clear
func NewCanvasCleared() *Message {
	return &Message{Type: TypeCanvasCleared}
}

// NewBackgroundChanged builds a background replacement announcement
func NewBackgroundChanged(url string) *Message {
	return &Message{Type: TypeBackgroundChanged, URL: url}
}

// NewPresenceChanged builds the connected-session list update
func NewPresenceChanged(sessions []string) *Message {
	return &Message{Type: TypePresenceChanged, Sessions: sessions}
}
