package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Banegasn/canvas/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 4096
)

var (
	ErrSendBufferFull = errors.New("send buffer full")
	ErrConnClosed     = errors.New("connection not open")
)

// Conn drives one client socket: a read goroutine feeding the handler and
// a write goroutine draining a bounded outbound queue. Stats payloads use a
// single slot instead of the queue; only the newest unsent one is written.
type Conn struct {
	id          string
	ws          *websocket.Conn
	send        chan []byte
	stats       atomic.Pointer[[]byte]
	statsReady  chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	state       atomic.Int32
	broadcaster domain.Broadcaster
	handler     domain.MessageHandler
}

func NewConn(id string, ws *websocket.Conn, b domain.Broadcaster, h domain.MessageHandler) *Conn {
	c := &Conn{
		id:          id,
		ws:          ws,
		send:        make(chan []byte, sendBufferSize),
		statsReady:  make(chan struct{}, 1),
		done:        make(chan struct{}),
		broadcaster: b,
		handler:     h,
	}
	c.state.Store(int32(domain.StateConnecting))
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() domain.ConnState {
	return domain.ConnState(c.state.Load())
}

// Send queues data without blocking.
func (c *Conn) Send(data []byte) error {
	if c.State() != domain.StateOpen {
		return ErrConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendStats replaces any stats payload that has not been written yet.
func (c *Conn) SendStats(data []byte) error {
	if c.State() != domain.StateOpen {
		return ErrConnClosed
	}
	c.stats.Store(&data)
	select {
	case c.statsReady <- struct{}{}:
	default:
	}
	return nil
}

// Close asks the write loop to send a close frame and shut the socket.
// It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.CompareAndSwap(int32(domain.StateOpen), int32(domain.StateClosing))
		close(c.done)
	})
	return nil
}

func (c *Conn) Start() {
	c.state.Store(int32(domain.StateOpen))
	c.broadcaster.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.state.Store(int32(domain.StateClosing))
		c.broadcaster.Unregister(c)
		c.Close()
		c.ws.Close()
		c.state.Store(int32(domain.StateClosed))
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			slog.Debug("non-text frame ignored", "clientId", c.id)
			continue
		}

		c.handler.Handle(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-c.statsReady:
			// take the stats first: every frame queued before it was stored
			// is then flushed ahead of it
			stats := c.stats.Swap(nil)
			if err := c.flush(); err != nil {
				return
			}
			if stats != nil {
				if err := c.write(websocket.TextMessage, *stats); err != nil {
					return
				}
			}
		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) flush() error {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}
