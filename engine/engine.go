// Package engine owns the canvas and the connection registry and applies
// every join, paint and leave event in a single goroutine.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/Banegasn/canvas/canvas"
	"github.com/Banegasn/canvas/domain"
	"github.com/Banegasn/canvas/hub"
	"github.com/Banegasn/canvas/metrics"
	"github.com/Banegasn/canvas/protocol"
)

const defaultQueueSize = 1024

type eventKind int

const (
	eventJoin eventKind = iota
	eventReady
	eventMessage
	eventLeave
)

type event struct {
	kind eventKind
	conn domain.Connection
	data []byte
}

// pendingJoin is a connection whose snapshot is being encoded. Pixels
// applied meanwhile are kept in backlog and sent right after the snapshot.
type pendingJoin struct {
	conn    domain.Connection
	pixels  uint64
	backlog [][]byte
}

type Engine struct {
	canvas  *canvas.Canvas
	hub     *hub.Hub
	metrics *metrics.Metrics

	queueSize int
	events    chan event
	stopped   chan struct{}

	// owned by the Run goroutine
	pending map[string]*pendingJoin

	pixels  atomic.Uint64
	joining atomic.Int64
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

func New(c *canvas.Canvas, h *hub.Hub, opts ...Option) *Engine {
	e := &Engine{
		canvas:    c,
		hub:       h,
		queueSize: defaultQueueSize,
		stopped:   make(chan struct{}),
		pending:   make(map[string]*pendingJoin),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.events = make(chan event, e.queueSize)
	return e
}

// Run processes events until ctx is cancelled, then closes every
// registered connection. It must be called exactly once.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.stopped)
	defer e.hub.CloseAll()
	defer e.closePending()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.events:
			switch ev.kind {
			case eventJoin:
				e.join(ev.conn)
			case eventReady:
				e.ready(ev.conn, ev.data)
			case eventMessage:
				e.paint(ev.conn, ev.data)
			case eventLeave:
				e.leave(ev.conn)
			}
		}
	}
}

// Register queues conn to join. Events queued afterwards by the same
// goroutine are processed after the join, so the snapshot always comes first.
func (e *Engine) Register(conn domain.Connection) {
	e.enqueue(event{kind: eventJoin, conn: conn})
}

func (e *Engine) Unregister(conn domain.Connection) {
	e.enqueue(event{kind: eventLeave, conn: conn})
}

func (e *Engine) Handle(conn domain.Connection, data []byte) {
	e.enqueue(event{kind: eventMessage, conn: conn, data: data})
}

func (e *Engine) Stats() domain.Stats {
	return domain.Stats{Online: e.online(), Pixels: e.pixels.Load()}
}

func (e *Engine) Settings() domain.Settings {
	return e.canvas.Settings()
}

func (e *Engine) enqueue(ev event) {
	select {
	case e.events <- ev:
	case <-e.stopped:
		slog.Debug("engine stopped, event dropped", "clientId", ev.conn.ID())
	}
}

// online counts registered connections plus those still waiting for
// their snapshot.
func (e *Engine) online() int {
	return e.hub.Size() + int(e.joining.Load())
}

// join copies the raster and stats inside the loop and encodes the
// snapshot in its own goroutine, so a large canvas does not stall paints.
func (e *Engine) join(conn domain.Connection) {
	if _, exists := e.pending[conn.ID()]; exists {
		return
	}
	e.pending[conn.ID()] = &pendingJoin{conn: conn, pixels: e.pixels.Load()}
	e.joining.Store(int64(len(e.pending)))

	stats := e.Stats()
	settings := e.canvas.Settings()
	raster := e.canvas.Snapshot()

	go func() {
		state, err := protocol.EncodeState(stats, settings, raster)
		if err != nil {
			slog.Error("encode state", "clientId", conn.ID(), "error", err)
			state = nil
		}
		e.enqueue(event{kind: eventReady, conn: conn, data: state})
	}()
}

func (e *Engine) ready(conn domain.Connection, state []byte) {
	p, ok := e.pending[conn.ID()]
	if !ok || p.conn != conn {
		return
	}
	delete(e.pending, conn.ID())
	e.joining.Store(int64(len(e.pending)))

	if state == nil {
		conn.Close()
		return
	}
	if _, added := e.hub.Register(conn); !added {
		return
	}
	e.metrics.SetOnline(e.hub.Size())

	if !e.send(conn, state) {
		e.drop(conn)
		return
	}
	e.metrics.SnapshotSent(len(state))

	for _, data := range p.backlog {
		if !e.send(conn, data) {
			e.drop(conn)
			return
		}
	}

	if pixels := e.pixels.Load(); pixels != p.pixels {
		stats, err := protocol.EncodeStats(domain.Stats{Online: e.online(), Pixels: pixels})
		if err != nil {
			slog.Error("encode stats", "error", err)
			return
		}
		if !e.sendStats(conn, stats) {
			e.drop(conn)
		}
	}
}

func (e *Engine) leave(conn domain.Connection) {
	if p, ok := e.pending[conn.ID()]; ok && p.conn == conn {
		delete(e.pending, conn.ID())
		e.joining.Store(int64(len(e.pending)))
		return
	}
	if e.hub.Unregister(conn) {
		e.metrics.SetOnline(e.hub.Size())
	}
}

func (e *Engine) closePending() {
	for id, p := range e.pending {
		p.conn.Close()
		delete(e.pending, id)
	}
	e.joining.Store(0)
}

func (e *Engine) paint(sender domain.Connection, data []byte) {
	update, err := protocol.DecodePixelUpdate(data)
	if err != nil {
		slog.Debug("update dropped", "clientId", sender.ID(), "error", err)
		e.metrics.RejectedUpdate(metrics.ReasonMalformed)
		return
	}

	if err := e.canvas.ApplyPixel(update.X, update.Y, update.Color); err != nil {
		slog.Debug("update dropped", "clientId", sender.ID(), "error", err)
		e.metrics.RejectedUpdate(rejectReason(err))
		return
	}

	pixels := e.pixels.Add(1)
	e.metrics.PixelPainted()

	for id, p := range e.pending {
		if id != sender.ID() {
			p.backlog = append(p.backlog, data)
		}
	}

	var failed []domain.Connection
	e.hub.ForEachOpen(func(conn domain.Connection) {
		if conn.ID() == sender.ID() {
			return
		}
		if !e.send(conn, data) {
			failed = append(failed, conn)
		}
	})
	for _, conn := range failed {
		e.drop(conn)
	}

	stats, err := protocol.EncodeStats(domain.Stats{Online: e.online(), Pixels: pixels})
	if err != nil {
		slog.Error("encode stats", "error", err)
		return
	}
	failed = failed[:0]
	e.hub.ForEachOpen(func(conn domain.Connection) {
		if !e.sendStats(conn, stats) {
			failed = append(failed, conn)
		}
	})
	for _, conn := range failed {
		e.drop(conn)
	}
	slog.Debug("pixel painted", "clientId", sender.ID(), "x", update.X, "y", update.Y, "pixels", pixels)
}

func (e *Engine) send(conn domain.Connection, data []byte) bool {
	return e.sent(conn, conn.Send(data))
}

// sendStats lets connections that support it replace an unsent stats
// payload instead of queueing another frame.
func (e *Engine) sendStats(conn domain.Connection, data []byte) bool {
	if s, ok := conn.(domain.StatsSender); ok {
		return e.sent(conn, s.SendStats(data))
	}
	return e.send(conn, data)
}

func (e *Engine) sent(conn domain.Connection, err error) bool {
	if err != nil {
		slog.Warn("send failed", "clientId", conn.ID(), "error", err)
		e.metrics.SendFailed()
		return false
	}
	return true
}

// drop removes a connection whose queue rejected a message. The connection
// is closed so its read loop ends; the leave event it then queues is a no-op.
func (e *Engine) drop(conn domain.Connection) {
	if e.hub.Unregister(conn) {
		e.metrics.SetOnline(e.hub.Size())
	}
	if err := conn.Close(); err != nil {
		slog.Debug("close error", "clientId", conn.ID(), "error", err)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, canvas.ErrInvalidColor):
		return metrics.ReasonInvalidColor
	case errors.Is(err, canvas.ErrOutOfBounds):
		return metrics.ReasonOutOfBounds
	}
	return metrics.ReasonMalformed
}
