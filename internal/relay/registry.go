package relay

import (
	"cmp"
	"slices"
	"sync"
)

type Registration struct {
	ParticipantID string
	MeetingID     string
	Conn          Conn
}

// Registry: эфемерная карта participantID -> живое соединение.
// Перестраивается с нуля после рестарта.
type Registry struct {
	mu            sync.RWMutex
	byParticipant map[string]Registration
	byMeeting     map[string]map[string]Conn // meetingID -> participantID -> conn
}

func NewRegistry() *Registry {
	return &Registry{
		byParticipant: make(map[string]Registration),
		byMeeting:     make(map[string]map[string]Conn),
	}
}

// Register перезаписывает прежнюю регистрацию участника и возвращает её, если она была.
func (r *Registry) Register(participantID, meetingID string, c Conn) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced := r.byParticipant[participantID]
	if replaced {
		r.detach(prev)
	}

	r.byParticipant[participantID] = Registration{
		ParticipantID: participantID,
		MeetingID:     meetingID,
		Conn:          c,
	}
	rs, ok := r.byMeeting[meetingID]
	if !ok {
		rs = make(map[string]Conn)
		r.byMeeting[meetingID] = rs
	}
	rs[participantID] = c

	return prev, replaced
}

func (r *Registry) Lookup(participantID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.byParticipant[participantID]
	if !ok {
		return nil, false
	}
	return reg.Conn, true
}

// ListByMeeting возвращает снимок регистраций встречи, отсортированный по participantID.
func (r *Registry) ListByMeeting(meetingID string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rs := r.byMeeting[meetingID]
	out := make([]Registration, 0, len(rs))
	for pid, c := range rs {
		out = append(out, Registration{ParticipantID: pid, MeetingID: meetingID, Conn: c})
	}
	slices.SortFunc(out, func(a, b Registration) int {
		return cmp.Compare(a.ParticipantID, b.ParticipantID)
	})

	return out
}

func (r *Registry) Unregister(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.byParticipant[participantID]; ok {
		r.detach(reg)
	}
}

// UnregisterConn удаляет регистрацию, только если участник всё ещё привязан к c.
// Старое соединение после переподключения не должно снять новую регистрацию.
func (r *Registry) UnregisterConn(participantID string, c Conn) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.byParticipant[participantID]
	if !ok || reg.Conn != c {
		return Registration{}, false
	}
	r.detach(reg)

	return reg, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byParticipant)
}

// detach вызывается под r.mu.
func (r *Registry) detach(reg Registration) {
	delete(r.byParticipant, reg.ParticipantID)
	if rs, ok := r.byMeeting[reg.MeetingID]; ok {
		delete(rs, reg.ParticipantID)
		if len(rs) == 0 {
			delete(r.byMeeting, reg.MeetingID)
		}
	}
}
