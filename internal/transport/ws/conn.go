package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn реализует relay.Conn. Писать в сокет может только writePump,
// остальные кладут кадры в ограниченную очередь.
type wsConn struct {
	id   string
	conn *websocket.Conn

	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool

	dropped atomic.Int64

	pingEvery    time.Duration
	writeTimeout time.Duration
}

func newWsConn(id string, conn *websocket.Conn, queue int, pingEvery, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, queue),
		done:         make(chan struct{}),
		pingEvery:    pingEvery,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ID() string { return c.id }

// Send не блокируется: при полной очереди кадр отбрасывается.
func (c *wsConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		n := c.dropped.Add(1)
		slog.Warn("ws send queue full, frame dropped", "conn", c.id, "dropped_total", n)
		return false
	}
}

// Close идемпотентен. Шлёт close-фрейм и рвёт сокет, что завершает и цикл чтения.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(c.writeTimeout),
	)
	return c.conn.Close()
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("ws write failed", "conn", c.id, "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				slog.Debug("ws ping failed", "conn", c.id, "err", err)
				_ = c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
