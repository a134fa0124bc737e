package http

import "github.com/cwrk-planet/meeting-service/internal/domain"

// POST /api/meetings. id и hostId необязательны, сервер сгенерирует.
type CreateMeetingRequest struct {
	ID       string `json:"id" validate:"omitempty,max=64,excludesall=/?#"`
	Password string `json:"password" validate:"required,max=72"`
	HostID   string `json:"hostId" validate:"omitempty,max=128"`
}

type JoinMeetingRequest struct {
	MeetingID string `json:"meetingId" validate:"required,max=64"`
	Password  string `json:"password" validate:"required,max=72"`
	Name      string `json:"name" validate:"required,max=100"`
	IsHost    bool   `json:"isHost"`
}

type EndMeetingRequest struct {
	Password string `json:"password" validate:"required,max=72"`
	HostID   string `json:"hostId" validate:"required,max=128"`
}

type MeetingResponse struct {
	Meeting domain.Meeting `json:"meeting"`
}

type ParticipantResponse struct {
	Participant domain.Participant `json:"participant"`
}

type ParticipantsResponse struct {
	Participants []domain.Participant `json:"participants"`
}
