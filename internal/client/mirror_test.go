package client

import (
	"testing"

	"sketchboard/internal/model"
	"sketchboard/internal/protocol"
)

func TestMirrorBuffersUntilSnapshot(t *testing.T) {
	m := NewMirror()

	// Traffic racing ahead of the snapshot must not be lost.
	m.Apply(protocol.NewStrokeCreated(model.StrokeMeta{ID: "s1", Tool: model.ToolBrush, Color: "#f00", Width: 3}))
	m.Apply(protocol.NewPointsAppended("s1", []model.Point{{X: 1, Y: 1}}))

	if m.Synced() {
		t.Fatal("mirror reported synced before snapshot")
	}
	if m.Stroke("s1") != nil {
		t.Fatal("buffered message applied before snapshot")
	}

	m.Apply(protocol.NewSnapshot(&model.CanvasSnapshot{
		Strokes:    []*model.Stroke{{ID: "s0", Tool: model.ToolBrush, Color: "#000", Width: 2}},
		Generation: 4,
	}))

	if !m.Synced() {
		t.Fatal("mirror not synced after snapshot")
	}
	if got := m.Generation(); got != 4 {
		t.Fatalf("generation = %d, want 4", got)
	}

	strokes := m.Strokes()
	if len(strokes) != 2 {
		t.Fatalf("stroke count = %d, want 2 (snapshot stroke plus replayed create)", len(strokes))
	}
	if strokes[0].ID != "s0" || strokes[1].ID != "s1" {
		t.Fatalf("order = [%s %s], want [s0 s1]", strokes[0].ID, strokes[1].ID)
	}
	if got := m.Stroke("s1"); len(got.Points) != 1 {
		t.Fatalf("replayed points = %d, want 1", len(got.Points))
	}
}

func TestMirrorSelfHealsUnknownAppend(t *testing.T) {
	m := NewMirror()
	m.Apply(protocol.NewSnapshot(&model.CanvasSnapshot{}))

	m.Apply(protocol.NewPointsAppended("ghost", []model.Point{{X: 5, Y: 5}}))

	stroke := m.Stroke("ghost")
	if stroke == nil {
		t.Fatal("append to unknown id did not synthesize a stroke")
	}
	if stroke.Tool != model.DefaultTool || stroke.Color != model.DefaultColor || stroke.Width != model.DefaultWidth {
		t.Fatalf("synthesized stroke = %s/%s/%v, want defaults", stroke.Tool, stroke.Color, stroke.Width)
	}

	// A late create must not reset the healed stroke.
	m.Apply(protocol.NewStrokeCreated(model.StrokeMeta{ID: "ghost", Tool: model.ToolLine, Color: "#0f0", Width: 9}))
	if got := m.Stroke("ghost"); len(got.Points) != 1 {
		t.Fatalf("late create dropped points, have %d", len(got.Points))
	}
}

func TestMirrorClearOrphansIDs(t *testing.T) {
	m := NewMirror()
	m.Apply(protocol.NewSnapshot(&model.CanvasSnapshot{}))
	m.Apply(protocol.NewStrokeCreated(model.StrokeMeta{ID: "a", Tool: model.ToolBrush, Color: "#000", Width: 2}))
	m.Apply(protocol.NewPointsAppended("a", []model.Point{{X: 1, Y: 1}}))

	m.Apply(protocol.NewCanvasCleared())

	if got := m.Generation(); got != 1 {
		t.Fatalf("generation after clear = %d, want 1", got)
	}
	if len(m.Strokes()) != 0 {
		t.Fatal("strokes survived clear")
	}

	// Straggler appends for a cleared id stay dead.
	m.Apply(protocol.NewPointsAppended("a", []model.Point{{X: 2, Y: 2}}))
	if m.Stroke("a") != nil {
		t.Fatal("append resurrected a cleared stroke")
	}

	// A fresh create reclaims the id.
	m.Apply(protocol.NewStrokeCreated(model.StrokeMeta{ID: "a", Tool: model.ToolBrush, Color: "#00f", Width: 4}))
	m.Apply(protocol.NewPointsAppended("a", []model.Point{{X: 3, Y: 3}}))
	stroke := m.Stroke("a")
	if stroke == nil || stroke.Color != "#00f" || len(stroke.Points) != 1 {
		t.Fatalf("reclaimed stroke = %+v, want fresh #00f stroke with one point", stroke)
	}
}

func TestMirrorConvergesWithStore(t *testing.T) {
	// Two mirrors fed the same sequence in the same order end up identical,
	// point for point, regardless of what they drew locally first.
	seq := []*protocol.Message{
		protocol.NewStrokeCreated(model.StrokeMeta{ID: "x", Tool: model.ToolBrush, Color: "#000", Width: 2}),
		protocol.NewPointsAppended("x", []model.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}),
		protocol.NewStrokeCreated(model.StrokeMeta{ID: "y", Tool: model.ToolRectangle, Color: "#f00", Width: 5}),
		protocol.NewPointsAppended("y", []model.Point{{X: 9, Y: 9}}),
		protocol.NewStrokeFinalized("x"),
		protocol.NewStrokeDeleted("y"),
		protocol.NewBackgroundChanged("/uploads/bg.png"),
	}

	a, b := NewMirror(), NewMirror()
	a.Apply(protocol.NewSnapshot(&model.CanvasSnapshot{}))
	b.Apply(protocol.NewSnapshot(&model.CanvasSnapshot{}))
	for _, msg := range seq {
		a.Apply(msg)
		b.Apply(msg)
	}

	sa, sb := a.Strokes(), b.Strokes()
	if len(sa) != 1 || len(sb) != 1 {
		t.Fatalf("stroke counts = %d/%d, want 1/1", len(sa), len(sb))
	}
	if sa[0].ID != sb[0].ID || len(sa[0].Points) != len(sb[0].Points) || sa[0].Closed != sb[0].Closed {
		t.Fatalf("mirrors diverged: %+v vs %+v", sa[0], sb[0])
	}
	if a.Background() != b.Background() || a.Background() != "/uploads/bg.png" {
		t.Fatalf("backgrounds diverged: %q vs %q", a.Background(), b.Background())
	}
}

func TestMirrorEraseCandidates(t *testing.T) {
	m := NewMirror()
	m.Apply(protocol.NewSnapshot(&model.CanvasSnapshot{}))

	m.Apply(protocol.NewStrokeCreated(model.StrokeMeta{ID: "diag", Tool: model.ToolBrush, Color: "#000", Width: 3}))
	m.Apply(protocol.NewPointsAppended("diag", []model.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}))
	m.Apply(protocol.NewStrokeCreated(model.StrokeMeta{ID: "far", Tool: model.ToolBrush, Color: "#000", Width: 3}))
	m.Apply(protocol.NewPointsAppended("far", []model.Point{{X: 100, Y: 100}, {X: 110, Y: 100}}))

	// One pixel off the midpoint of the diagonal, radius 2x3.
	ids := m.EraseCandidates(model.Point{X: 6, Y: 5}, 6)
	if len(ids) != 1 || ids[0] != "diag" {
		t.Fatalf("candidates = %v, want [diag]", ids)
	}

	// The server confirms; only then does the stroke leave the mirror.
	if m.Stroke("diag") == nil {
		t.Fatal("candidate removed before confirmation")
	}
	m.Apply(protocol.NewStrokeDeleted("diag"))
	if m.Stroke("diag") != nil {
		t.Fatal("stroke survived confirmed deletion")
	}
}

func TestMirrorLocalEcho(t *testing.T) {
	m := NewMirror()
	m.Apply(protocol.NewSnapshot(&model.CanvasSnapshot{}))

	meta := model.StrokeMeta{ID: "mine", Tool: model.ToolBrush, Color: "#000", Width: 2}
	m.LocalCreate("sess-1", meta)
	m.LocalAppend("mine", model.Point{X: 1, Y: 2})

	stroke := m.Stroke("mine")
	if stroke == nil || stroke.OwnerID != "sess-1" || len(stroke.Points) != 1 {
		t.Fatalf("local echo stroke = %+v", stroke)
	}

	// The server never echoes our own create back, but a duplicate would be
	// harmless anyway.
	m.Apply(protocol.NewStrokeCreated(meta))
	if got := m.Stroke("mine"); len(got.Points) != 1 {
		t.Fatalf("duplicate create reset points, have %d", len(got.Points))
	}
}
