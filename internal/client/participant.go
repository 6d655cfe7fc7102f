package client

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sketchboard/internal/model"
	"sketchboard/internal/protocol"
)

// Options tunes a participant connection. Zero values fall back to the
// defaults the browser client shipped with.
type Options struct {
	SendInterval       time.Duration // point batch flush cadence
	MaxPointsPerBatch  int
	EraserRadiusFactor float64 // eraser query radius = factor * width
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.SendInterval <= 0 {
		out.SendInterval = 60 * time.Millisecond
	}
	if out.MaxPointsPerBatch <= 0 {
		out.MaxPointsPerBatch = 120
	}
	if out.EraserRadiusFactor <= 0 {
		out.EraserRadiusFactor = 2.5
	}
	return out
}

// Participant is one connected drawing client: a websocket connection, the
// local mirror it reconstructs, and the batching sender for its own strokes.
type Participant struct {
	conn    *websocket.Conn
	mirror  *Mirror
	batcher *Batcher
	opts    Options

	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu        sync.Mutex
	sessionID string
	seq       int
	current   string // open local stroke id, "" when pen is up

	synced chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

// Dial connects to a canvas server's websocket endpoint and starts the read
// and flush loops. The caller should WaitSynced before drawing.
func Dial(ctx context.Context, url string, opts Options) (*Participant, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	p := &Participant{
		conn:   conn,
		mirror: NewMirror(),
		opts:   opts.withDefaults(),
		synced: make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.batcher = NewBatcher(p.opts.MaxPointsPerBatch)

	go p.readLoop()
	go p.flushLoop()
	return p, nil
}

// WaitSynced blocks until the snapshot has been applied
func (p *Participant) WaitSynced(ctx context.Context) error {
	select {
	case <-p.synced:
		return nil
	case <-p.done:
		return fmt.Errorf("connection closed before snapshot")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mirror exposes the local reconstruction, e.g. for a renderer
func (p *Participant) Mirror() *Mirror {
	return p.mirror
}

// SessionID returns the server-assigned session id (empty until synced)
func (p *Participant) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// BeginStroke starts a local stroke, announces it, and returns its id.
// The id is session + timestamp + sequence, so concurrently drawing
// participants cannot collide.
func (p *Participant) BeginStroke(tool model.Tool, color string, width float64) (string, error) {
	p.mu.Lock()
	p.seq++
	id := fmt.Sprintf("%s-%d-%d", p.sessionID, time.Now().UnixMilli(), p.seq)
	p.current = id
	owner := p.sessionID
	p.mu.Unlock()

	meta := model.StrokeMeta{ID: id, Tool: tool, Color: color, Width: width}
	p.mirror.LocalCreate(owner, meta)
	return id, p.send(protocol.NewStrokeCreated(meta))
}

// MovePoint records one pointer sample for the open stroke. The mirror gets
// it immediately for local feedback; the network sees it on the next flush.
func (p *Participant) MovePoint(pt model.Point) {
	p.mu.Lock()
	id := p.current
	p.mu.Unlock()
	if id == "" {
		return
	}

	p.mirror.LocalAppend(id, pt)
	p.batcher.Add(id, pt)
}

// EndStroke finalizes the open stroke. Points still pending in the batcher
// go out on later ticks; the engine accepts appends after a finalize.
func (p *Participant) EndStroke() error {
	p.mu.Lock()
	id := p.current
	p.current = ""
	p.mu.Unlock()
	if id == "" {
		return nil
	}
	return p.send(protocol.NewStrokeFinalized(id))
}

// Erase resolves one eraser sample against the local mirror and requests
// deletion of every stroke it hits, one message per stroke. The mirror drops
// them only when the authoritative strokeDeleted comes back.
func (p *Participant) Erase(center model.Point, width float64) ([]string, error) {
	ids := p.mirror.EraseCandidates(center, p.opts.EraserRadiusFactor*width)
	for _, id := range ids {
		if err := p.send(protocol.NewStrokeDeleted(id)); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// ClearCanvas requests a whole-canvas clear
func (p *Participant) ClearCanvas() error {
	return p.send(protocol.NewCanvasCleared())
}

// DeleteStroke requests deletion of one stroke, e.g. for undo
func (p *Participant) DeleteStroke(id string) error {
	return p.send(protocol.NewStrokeDeleted(id))
}

// Close tears down the connection
func (p *Participant) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		p.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		p.writeMu.Unlock()
		err = p.conn.Close()
	})
	return err
}

// Done is closed when the connection ends
func (p *Participant) Done() <-chan struct{} {
	return p.done
}

func (p *Participant) send(msg *protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *Participant) readLoop() {
	defer close(p.done)

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			log.Printf("[Participant] Dropping frame: %v", err)
			continue
		}

		if msg.Type == protocol.TypeSnapshot {
			p.mu.Lock()
			p.sessionID = msg.SessionID
			p.mu.Unlock()
		}

		p.mirror.Apply(msg)

		if msg.Type == protocol.TypeSnapshot {
			select {
			case <-p.synced:
			default:
				close(p.synced)
			}
		}
	}
}

func (p *Participant) flushLoop() {
	ticker := time.NewTicker(p.opts.SendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			for _, msg := range p.batcher.Flush() {
				if err := p.send(msg); err != nil {
					return
				}
			}
		}
	}
}
