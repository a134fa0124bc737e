package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Session хранит состояние одного соединения: unjoined -> joined -> закрыто.
// Handle и Close вызываются из цикла чтения этого соединения.
type Session struct {
	engine *Engine
	conn   Conn

	mu            sync.Mutex
	participantID string
	meetingID     string
	joined        bool
	closed        bool
}

func (s *Session) ParticipantID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.participantID
}

func (s *Session) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.joined
}

// Handle разбирает один входящий кадр. Ошибки протокола только логируются,
// соединение остаётся открытым, отправителю ничего не отвечаем.
func (s *Session) Handle(ctx context.Context, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		slog.WarnContext(ctx, "relay malformed envelope", "conn", s.conn.ID(), "err", err)
		return
	}
	if env.Type == "" {
		slog.WarnContext(ctx, "relay envelope without type", "conn", s.conn.ID())
		return
	}

	switch env.Type {
	case TypeJoin:
		s.handleJoin(env.Payload)
	case TypeSignal:
		s.handleSignal(env.Payload)
	case TypeChat:
		s.handleChat(env.Payload)
	default:
		slog.WarnContext(ctx, "relay unknown message type", "conn", s.conn.ID(), "type", env.Type)
	}
}

// Close идемпотентен. Для присоединённого соединения снимает регистрацию,
// удаляет участника из хранилища и рассылает participant_left.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	joined, pid := s.joined, s.participantID
	s.mu.Unlock()

	if joined {
		s.engine.leave(ctx, s, pid)
	}
	s.engine.release(s.conn)
}

func (s *Session) handleJoin(raw json.RawMessage) {
	var p JoinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("relay bad join payload", "conn", s.conn.ID(), "err", err)
		return
	}
	if p.ParticipantID == "" || p.MeetingID == "" {
		slog.Warn("relay join without participantId or meetingId", "conn", s.conn.ID())
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.joined {
		same := s.participantID == p.ParticipantID && s.meetingID == p.MeetingID
		s.mu.Unlock()
		if !same {
			slog.Warn("relay conn already joined as another participant",
				"conn", s.conn.ID(), "participant", s.participantID, "requested", p.ParticipantID)
		}
		return
	}
	s.participantID, s.meetingID, s.joined = p.ParticipantID, p.MeetingID, true
	s.mu.Unlock()

	s.engine.join(s, p.ParticipantID, p.MeetingID)
}

// handleSignal и handleChat не требуют join от отправителя: доставка
// зависит только от реестра получателей.
func (s *Session) handleSignal(raw json.RawMessage) {
	var p SignalPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("relay bad signal payload", "conn", s.conn.ID(), "err", err)
		return
	}
	if p.To == "" {
		slog.Warn("relay signal without target", "conn", s.conn.ID())
		return
	}

	frame, err := encode(TypeSignal, SignalOut{From: p.From, Signal: p.Signal})
	if err != nil {
		slog.Warn("relay encode signal failed", "conn", s.conn.ID(), "err", err)
		return
	}
	s.engine.signal(p.To, frame)
}

func (s *Session) handleChat(raw json.RawMessage) {
	var p ChatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("relay bad chat payload", "conn", s.conn.ID(), "err", err)
		return
	}
	if p.MeetingID == "" {
		slog.Warn("relay chat without meetingId", "conn", s.conn.ID())
		return
	}

	frame, err := encode(TypeChat, ChatOut{From: p.From, Message: p.Message})
	if err != nil {
		slog.Warn("relay encode chat failed", "conn", s.conn.ID(), "err", err)
		return
	}
	s.engine.chat(p.MeetingID, frame)
}
