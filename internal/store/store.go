// Package store хранит встречи и участников в памяти процесса.
// О живых соединениях ничего не знает.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/meeting-service/internal/domain"

	"github.com/samber/lo"
)

type Hasher interface {
	Hash(plain string) (string, error)
	Matches(hash, plain string) bool
}

type Store struct {
	mu           sync.RWMutex
	meetings     map[string]domain.Meeting
	participants map[string]domain.Participant
	byMeeting    map[string][]string // meetingID -> participant ids в порядке добавления

	hasher Hasher
	now    func() time.Time
}

func New(hasher Hasher) *Store {
	return &Store{
		meetings:     make(map[string]domain.Meeting),
		participants: make(map[string]domain.Participant),
		byMeeting:    make(map[string][]string),
		hasher:       hasher,
		now:          time.Now,
	}
}

func (s *Store) CreateMeeting(_ context.Context, id, password, hostID string) (domain.Meeting, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Meeting{}, fmt.Errorf("%w: empty meeting id", domain.ErrInvalidInput)
	}
	// bcrypt медленный, хешируем до захвата лока
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.meetings[id]; exists {
		return domain.Meeting{}, domain.ErrDuplicateMeeting
	}
	m := domain.Meeting{
		ID:           id,
		PasswordHash: hash,
		HostID:       hostID,
		Active:       true,
		CreatedAt:    s.now(),
	}
	s.meetings[id] = m

	return m, nil
}

func (s *Store) GetMeeting(_ context.Context, id string) (domain.Meeting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	return m, ok
}

func (s *Store) ValidateMeeting(ctx context.Context, id, password string) bool {
	m, ok := s.GetMeeting(ctx, id)
	if !ok || !m.Active {
		return false
	}

	return s.hasher.Matches(m.PasswordHash, password)
}

// AddParticipant вставляет участника без проверки встречи, её делает ValidateMeeting выше по стеку.
// Повторный id перезаписывает запись.
func (s *Store) AddParticipant(_ context.Context, id, meetingID, name string, isHost bool) domain.Participant {
	p := domain.Participant{
		ID:        id,
		MeetingID: meetingID,
		Name:      name,
		IsHost:    isHost,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.participants[id]
	switch {
	case !exists:
		s.byMeeting[meetingID] = append(s.byMeeting[meetingID], id)
	case prev.MeetingID != meetingID:
		s.unindex(prev.MeetingID, id)
		s.byMeeting[meetingID] = append(s.byMeeting[meetingID], id)
	}
	s.participants[id] = p

	return p
}

func (s *Store) GetParticipants(_ context.Context, meetingID string) []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Map(s.byMeeting[meetingID], func(id string, _ int) domain.Participant {
		return s.participants[id]
	})
}

func (s *Store) RemoveParticipant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return nil
	}
	delete(s.participants, id)
	s.unindex(p.MeetingID, id)

	return nil
}

func (s *Store) DeactivateMeeting(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.meetings[id]; ok {
		m.Active = false
		s.meetings[id] = m
	}
}

// unindex вызывается под s.mu.
func (s *Store) unindex(meetingID, participantID string) {
	ids := lo.Without(s.byMeeting[meetingID], participantID)
	if len(ids) == 0 {
		delete(s.byMeeting, meetingID)
		return
	}
	s.byMeeting[meetingID] = ids
}
