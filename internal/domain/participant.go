package domain

// Participant описывает членство человека во встрече, не зависит от его живого соединения.
// MeetingID не проверяется на существование встречи.
type Participant struct {
	ID        string `json:"id"`
	MeetingID string `json:"meetingId"`
	Name      string `json:"name"`
	IsHost    bool   `json:"isHost"`
}
