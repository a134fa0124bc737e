package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cwrk-planet/meeting-service/internal/domain"
	"github.com/cwrk-planet/meeting-service/internal/security"
	"github.com/cwrk-planet/meeting-service/internal/store"
)

const (
	defaultCodeLength = 6
	createAttempts    = 5
)

type MeetingService struct {
	store  *store.Store
	hasher store.Hasher

	codeLength int
}

func NewMeetingService(st *store.Store, hasher store.Hasher) *MeetingService {
	return &MeetingService{
		store:      st,
		hasher:     hasher,
		codeLength: defaultCodeLength,
	}
}

func (s *MeetingService) SetCodeLength(n int) {
	if n > 0 {
		s.codeLength = n
	}
}

type CreateMeetingInput struct {
	ID       string
	Password string
	HostID   string
}

// CreateMeeting создаёт встречу. Пустые ID и HostID генерируются.
// Явно заданный ID при конфликте даёт ErrDuplicateMeeting, сгенерированный перевыпускается.
func (s *MeetingService) CreateMeeting(ctx context.Context, in CreateMeetingInput) (domain.Meeting, error) {
	if in.Password == "" {
		return domain.Meeting{}, fmt.Errorf("%w: empty password", domain.ErrInvalidInput)
	}
	hostID := strings.TrimSpace(in.HostID)
	if hostID == "" {
		hostID = security.NewID()
	}

	if id := strings.TrimSpace(in.ID); id != "" {
		m, err := s.store.CreateMeeting(ctx, id, in.Password, hostID)
		if err != nil {
			return domain.Meeting{}, fmt.Errorf("store.CreateMeeting: %w", err)
		}
		return m, nil
	}

	for range createAttempts {
		code, err := security.MeetingCode(s.codeLength)
		if err != nil {
			return domain.Meeting{}, fmt.Errorf("generate meeting code: %w", err)
		}
		m, err := s.store.CreateMeeting(ctx, code, in.Password, hostID)
		if errors.Is(err, domain.ErrDuplicateMeeting) {
			continue
		}
		if err != nil {
			return domain.Meeting{}, fmt.Errorf("store.CreateMeeting: %w", err)
		}
		return m, nil
	}

	return domain.Meeting{}, domain.ErrDuplicateMeeting
}

type JoinMeetingInput struct {
	MeetingID string
	Password  string
	Name      string
	IsHost    bool
}

// JoinMeeting проверяет пароль и активность встречи и заводит участника с новым ID.
func (s *MeetingService) JoinMeeting(ctx context.Context, in JoinMeetingInput) (domain.Participant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Participant{}, fmt.Errorf("%w: empty name", domain.ErrInvalidInput)
	}
	if !s.store.ValidateMeeting(ctx, in.MeetingID, in.Password) {
		return domain.Participant{}, domain.ErrInvalidCredentials
	}

	return s.store.AddParticipant(ctx, security.NewID(), in.MeetingID, name, in.IsHost), nil
}

func (s *MeetingService) GetMeeting(ctx context.Context, id string) (domain.Meeting, error) {
	m, ok := s.store.GetMeeting(ctx, id)
	if !ok {
		return domain.Meeting{}, domain.ErrMeetingNotFound
	}
	return m, nil
}

// ListParticipants не проверяет существование встречи: для неизвестной вернёт пустой список.
func (s *MeetingService) ListParticipants(ctx context.Context, meetingID string) []domain.Participant {
	return s.store.GetParticipants(ctx, meetingID)
}

type EndMeetingInput struct {
	MeetingID string
	Password  string
	HostID    string
}

// EndMeeting деактивирует встречу. Нужны пароль и hostId. Повторный вызов не ошибка.
func (s *MeetingService) EndMeeting(ctx context.Context, in EndMeetingInput) error {
	m, ok := s.store.GetMeeting(ctx, in.MeetingID)
	if !ok {
		return domain.ErrMeetingNotFound
	}
	if m.HostID != in.HostID || !s.hasher.Matches(m.PasswordHash, in.Password) {
		return domain.ErrForbidden
	}
	s.store.DeactivateMeeting(ctx, in.MeetingID)

	return nil
}
