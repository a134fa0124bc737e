package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/meeting-service/internal/relay"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Options struct {
	SendQueueSize   int
	MaxMessageBytes int64
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	RatePerSecond   float64
	RateBurst       int
	AllowedOrigins  []string
}

func (o *Options) withDefaults() {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = 64 << 10
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
}

// Server поднимает websocket на GET /ws и кормит входящими кадрами relay.Engine.
type Server struct {
	upgrader websocket.Upgrader
	engine   *relay.Engine
	opts     Options
}

func NewServer(engine *relay.Engine, opts Options) *Server {
	opts.withDefaults()
	origins := NewOriginPolicy(opts.AllowedOrigins)

	return &Server{
		engine: engine,
		opts:   opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		slog.Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newWsConn(uuid.NewString(), conn, s.opts.SendQueueSize, s.opts.PingInterval, s.opts.WriteTimeout)
	sess, err := s.engine.Open(c)
	if err != nil {
		slog.Info("ws rejected, relay is closed", "remote", r.RemoteAddr)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "shutting down"),
			time.Now().Add(s.opts.WriteTimeout),
		)
		_ = conn.Close()
		return
	}
	slog.Debug("ws connected", "conn", c.id, "remote", r.RemoteAddr)

	// после возврата из хендлера контекст запроса отменяется, уход доводим до конца
	ctx := context.WithoutCancel(r.Context())

	go c.writePump()
	s.readLoop(ctx, c, sess)

	sess.Close(ctx)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "conn", c.id, "err", err)
	}
	slog.Debug("ws disconnected", "conn", c.id, "participant", sess.ParticipantID())
}

func (s *Server) readLoop(ctx context.Context, c *wsConn, sess *relay.Session) {
	pongWait := 2 * s.opts.PingInterval

	c.conn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limit := rate.Inf
	if s.opts.RatePerSecond > 0 {
		limit = rate.Limit(s.opts.RatePerSecond)
	}
	limiter := rate.NewLimiter(limit, s.opts.RateBurst)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			logReadError(c.id, err)
			return
		}
		// любой входящий кадр тоже признак жизни
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !limiter.Allow() {
			slog.Warn("ws rate limit exceeded, frame discarded", "conn", c.id)
			continue
		}
		sess.Handle(ctx, data)
	}
}

func logReadError(connID string, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		slog.Warn("ws frame exceeds read limit", "conn", connID)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		slog.Warn("ws unexpected close", "conn", connID, "err", err)
	default:
		slog.Debug("ws read finished", "conn", connID, "err", err)
	}
}
