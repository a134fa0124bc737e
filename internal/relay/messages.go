package relay

import (
	"bytes"
	"encoding/json"
)

// Типы сообщений протокола
const (
	TypeJoin              = "join"
	TypeSignal            = "webrtc_signal"
	TypeChat              = "chat"
	TypeParticipantJoined = "participant_joined" // рассылается другим участникам встречи
	TypeParticipantLeft   = "participant_left"
)

type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type JoinPayload struct {
	ParticipantID string `json:"participantId"`
	MeetingID     string `json:"meetingId"`
}

// SignalPayload: from и signal пересылаются байт в байт, содержимое не разбираем.
type SignalPayload struct {
	To     string          `json:"to"`
	From   json.RawMessage `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

type SignalOut struct {
	From   json.RawMessage `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

type ChatPayload struct {
	MeetingID string          `json:"meetingId"`
	From      json.RawMessage `json:"from"`
	Message   json.RawMessage `json:"message"`
}

type ChatOut struct {
	From    json.RawMessage `json:"from"`
	Message json.RawMessage `json:"message"`
}

type PresencePayload struct {
	ParticipantID string `json:"participantId"`
}

// encode собирает исходящий кадр. HTML-экранирование выключено,
// чтобы пересылаемые payload не менялись.
func encode(typ string, payload any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(outbound{Type: typ, Payload: payload}); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
