package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrClosed = errors.New("relay is shutting down")

// Engine реализует протокол join / webrtc_signal / chat поверх Registry.
//
// mu сериализует изменения реестра и перебор получателей рассылки:
// join и уход берут эксклюзивный лок, signal и chat берут разделяемый.
// Send у Conn не блокируется, поэтому рассылка под локом не тормозит другие соединения.
type Engine struct {
	mu       sync.RWMutex
	registry *Registry
	store    Store

	connMu sync.Mutex
	conns  map[string]Conn // все открытые соединения, включая неприсоединённые
	closed bool
	wg     sync.WaitGroup
}

func NewEngine(registry *Registry, store Store) *Engine {
	return &Engine{
		registry: registry,
		store:    store,
		conns:    make(map[string]Conn),
	}
}

// Open начинает сессию для нового соединения в состоянии unjoined.
func (e *Engine) Open(c Conn) (*Session, error) {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	e.conns[c.ID()] = c
	e.wg.Add(1)

	return &Session{engine: e, conn: c}, nil
}

// Connections возвращает число присоединённых участников.
func (e *Engine) Connections() int {
	return e.registry.Len()
}

// Shutdown закрывает все соединения и ждёт, пока их сессии отработают уход.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.connMu.Lock()
	e.closed = true
	conns := make([]Conn, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	e.connMu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			slog.Debug("relay close conn failed", "conn", c.ID(), "err", err)
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release(c Conn) {
	e.connMu.Lock()
	delete(e.conns, c.ID())
	e.connMu.Unlock()
	e.wg.Done()
}

func (e *Engine) join(s *Session, participantID, meetingID string) {
	joined, err := encode(TypeParticipantJoined, PresencePayload{ParticipantID: participantID})
	if err != nil {
		slog.Error("relay encode participant_joined failed", "err", err)
		return
	}

	e.mu.Lock()
	prev, replaced := e.registry.Register(participantID, meetingID, s.conn)
	if replaced {
		// переподключение: для остальных это уход и повторный вход
		e.broadcastLocked(prev.MeetingID, participantID, leftFrame(participantID))
	}
	e.broadcastLocked(meetingID, participantID, joined)
	e.mu.Unlock()

	slog.Info("relay participant joined",
		"conn", s.conn.ID(), "participant", participantID, "meeting", meetingID, "rejoin", replaced)

	if replaced && prev.Conn != s.conn {
		if err := prev.Conn.Close(); err != nil {
			slog.Debug("relay close stale conn failed", "conn", prev.Conn.ID(), "err", err)
		}
	}
}

func (e *Engine) leave(ctx context.Context, s *Session, participantID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, ok := e.registry.UnregisterConn(participantID, s.conn)
	if !ok {
		// соединение уже заменено новым, уход не объявляем
		return
	}
	if err := e.store.RemoveParticipant(ctx, participantID); err != nil {
		slog.Warn("relay remove participant failed", "participant", participantID, "err", err)
	}
	e.broadcastLocked(reg.MeetingID, participantID, leftFrame(participantID))

	slog.Info("relay participant left", "conn", s.conn.ID(), "participant", participantID, "meeting", reg.MeetingID)
}

func (e *Engine) signal(to string, frame []byte) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.registry.Lookup(to)
	if !ok {
		slog.Debug("relay signal target not registered", "to", to)
		return
	}
	deliver(c, to, frame)
}

func (e *Engine) chat(meetingID string, frame []byte) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// отправитель тоже получает своё сообщение
	e.broadcastLocked(meetingID, "", frame)
}

// broadcastLocked рассылает кадр всем в встрече, кроме exclude. Вызывается под e.mu.
func (e *Engine) broadcastLocked(meetingID, exclude string, frame []byte) {
	if frame == nil {
		return
	}
	for _, reg := range e.registry.ListByMeeting(meetingID) {
		if reg.ParticipantID == exclude {
			continue
		}
		deliver(reg.Conn, reg.ParticipantID, frame)
	}
}

func deliver(c Conn, participantID string, frame []byte) {
	if !c.Send(frame) {
		slog.Debug("relay frame dropped", "conn", c.ID(), "participant", participantID)
	}
}

func leftFrame(participantID string) []byte {
	b, err := encode(TypeParticipantLeft, PresencePayload{ParticipantID: participantID})
	if err != nil {
		slog.Error("relay encode participant_left failed", "err", err)
		return nil
	}
	return b
}
