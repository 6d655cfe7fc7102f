package model

// Tool determines how a stroke's points are rendered. The sync engine treats
// points opaquely; only the eraser is special (never stored, resolves to
// deletions on the drawing client).
type Tool string

const (
	ToolBrush     Tool = "brush"
	ToolEraser    Tool = "eraser"
	ToolLine      Tool = "line"
	ToolRectangle Tool = "rectangle"
	ToolCircle    Tool = "circle"
	ToolDiamond   Tool = "diamond"
)

// String 메서드
func (t Tool) String() string {
	return string(t)
}

// Valid reports whether t is a known tool
func (t Tool) Valid() bool {
	switch t {
	case ToolBrush, ToolEraser, ToolLine, ToolRectangle, ToolCircle, ToolDiamond:
		return true
	}
	return false
}

// Defaults used when a stroke record is synthesized for an append whose
// strokeCreated message was lost or is still in flight.
const (
	DefaultTool  = ToolBrush
	DefaultColor = "#000"
	DefaultWidth = 2
)
