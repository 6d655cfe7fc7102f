package handler

import (
	"context"
	"testing"
	"time"

	"sketchboard/internal/config"
	"sketchboard/internal/model"
	"sketchboard/internal/protocol"
	"sketchboard/internal/session"
	"sketchboard/internal/store"
)

// testHub runs a hub loop against in-memory clients; no sockets involved.
func testHub(t *testing.T) (*CanvasHub, *store.Store, context.CancelFunc) {
	t.Helper()
	cfg := &config.Config{}
	cfg.WebSocket.SendQueueSize = 64

	st := store.New(0, 0)
	hub := NewCanvasHub(st, session.NewRegistry(), nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, st, cancel
}

func connect(t *testing.T, hub *CanvasHub) *CanvasClient {
	t.Helper()
	client := hub.newClient(hub.registry.Add())
	hub.register <- client
	return client
}

func recvMsg(t *testing.T, c *CanvasClient) *protocol.Message {
	t.Helper()
	select {
	case data := <-c.send:
		msg, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("hub emitted undecodable frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func expectNoMsg(t *testing.T, c *CanvasClient) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func sendFrame(t *testing.T, hub *CanvasHub, from *CanvasClient, msg *protocol.Message) {
	t.Helper()
	raw, err := msg.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	hub.inbound <- &inboundFrame{client: from, msg: msg, raw: raw}
}

func TestRegisterDeliversSnapshotFirst(t *testing.T) {
	hub, st, cancel := testHub(t)
	defer cancel()

	st.CreateStroke("earlier", model.StrokeMeta{ID: "a1", Tool: model.ToolBrush, Color: "#f00", Width: 3})
	st.AppendPoints("earlier", "a1", []model.Point{{X: 0, Y: 0}, {X: 10, Y: 10}})

	c := connect(t, hub)

	first := recvMsg(t, c)
	if first.Type != protocol.TypeSnapshot {
		t.Fatalf("first frame = %s, want snapshot", first.Type)
	}
	if len(first.Snapshot.Strokes) != 1 || first.Snapshot.Strokes[0].ID != "a1" {
		t.Errorf("snapshot strokes = %+v", first.Snapshot.Strokes)
	}
	if len(first.Snapshot.Strokes[0].Points) != 2 {
		t.Errorf("snapshot stroke has %d points, want 2", len(first.Snapshot.Strokes[0].Points))
	}
	if first.SessionID != c.Session.ID {
		t.Errorf("snapshot sessionId = %q, want %q", first.SessionID, c.Session.ID)
	}

	second := recvMsg(t, c)
	if second.Type != protocol.TypePresenceChanged {
		t.Fatalf("second frame = %s, want presenceChanged", second.Type)
	}
	if len(second.Sessions) != 1 {
		t.Errorf("presence sessions = %v", second.Sessions)
	}
}

func drainConnect(t *testing.T, hub *CanvasHub, peers ...*CanvasClient) *CanvasClient {
	t.Helper()
	c := connect(t, hub)
	recvMsg(t, c) // snapshot
	recvMsg(t, c) // own presence
	for _, p := range peers {
		recvMsg(t, p) // presence rebroadcast
	}
	return c
}

func TestStrokeTrafficFansOutToOthers(t *testing.T) {
	hub, st, cancel := testHub(t)
	defer cancel()

	a := drainConnect(t, hub)
	b := drainConnect(t, hub, a)

	meta := model.StrokeMeta{ID: "a1", Tool: model.ToolBrush, Color: "red", Width: 3}
	sendFrame(t, hub, a, protocol.NewStrokeCreated(meta))
	sendFrame(t, hub, a, protocol.NewPointsAppended("a1", []model.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}))
	sendFrame(t, hub, a, protocol.NewStrokeFinalized("a1"))

	if got := recvMsg(t, b); got.Type != protocol.TypeStrokeCreated || got.Stroke.ID != "a1" {
		t.Fatalf("b saw %+v, want strokeCreated a1", got)
	}
	if got := recvMsg(t, b); got.Type != protocol.TypePointsAppended || len(got.Points) != 2 {
		t.Fatalf("b saw %+v, want pointsAppended with 2 points", got)
	}
	if got := recvMsg(t, b); got.Type != protocol.TypeStrokeFinalized {
		t.Fatalf("b saw %+v, want strokeFinalized", got)
	}

	// The sender hears nothing back for its own create/append/finalize.
	expectNoMsg(t, a)

	stroke := st.Stroke("a1")
	if stroke == nil || len(stroke.Points) != 2 || !stroke.Closed {
		t.Errorf("canonical stroke = %+v", stroke)
	}
}

func TestDeleteFansOutToAll(t *testing.T) {
	hub, st, cancel := testHub(t)
	defer cancel()

	a := drainConnect(t, hub)
	b := drainConnect(t, hub, a)

	sendFrame(t, hub, a, protocol.NewStrokeCreated(model.StrokeMeta{ID: "dd", Tool: model.ToolBrush, Color: "red", Width: 1}))
	recvMsg(t, b)

	sendFrame(t, hub, a, protocol.NewStrokeDeleted("dd"))

	// Both the requester and the observer get exactly one delete.
	if got := recvMsg(t, a); got.Type != protocol.TypeStrokeDeleted || got.StrokeID != "dd" {
		t.Fatalf("a saw %+v, want strokeDeleted dd", got)
	}
	if got := recvMsg(t, b); got.Type != protocol.TypeStrokeDeleted || got.StrokeID != "dd" {
		t.Fatalf("b saw %+v, want strokeDeleted dd", got)
	}
	expectNoMsg(t, a)
	expectNoMsg(t, b)

	if st.Stroke("dd") != nil {
		t.Error("stroke should be gone from the store")
	}
}

func TestBackgroundReplacementOrdering(t *testing.T) {
	hub, st, cancel := testHub(t)
	defer cancel()

	a := drainConnect(t, hub)
	sendFrame(t, hub, a, protocol.NewStrokeCreated(model.StrokeMeta{ID: "s", Tool: model.ToolBrush, Color: "red", Width: 1}))

	hub.ReplaceBackground("/uploads/background-9.png")

	if got := recvMsg(t, a); got.Type != protocol.TypeBackgroundChanged || got.URL != "/uploads/background-9.png" {
		t.Fatalf("first frame = %+v, want backgroundChanged", got)
	}
	if got := recvMsg(t, a); got.Type != protocol.TypeCanvasCleared {
		t.Fatalf("second frame = %+v, want canvasCleared", got)
	}

	if st.StrokeCount() != 0 || st.Generation() != 1 {
		t.Errorf("store after background: %d strokes, generation %d", st.StrokeCount(), st.Generation())
	}
}

func TestDisconnectFinalizesOpenStrokes(t *testing.T) {
	hub, _, cancel := testHub(t)
	defer cancel()

	a := drainConnect(t, hub)
	b := drainConnect(t, hub, a)

	sendFrame(t, hub, a, protocol.NewStrokeCreated(model.StrokeMeta{ID: "mid", Tool: model.ToolBrush, Color: "red", Width: 1}))
	recvMsg(t, b)

	hub.unregister <- a

	if got := recvMsg(t, b); got.Type != protocol.TypeStrokeFinalized || got.StrokeID != "mid" {
		t.Fatalf("b saw %+v, want strokeFinalized mid", got)
	}
	if got := recvMsg(t, b); got.Type != protocol.TypePresenceChanged || len(got.Sessions) != 1 {
		t.Fatalf("b saw %+v, want presenceChanged with 1 session", got)
	}
}
