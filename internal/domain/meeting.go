package domain

import "time"

type Meeting struct {
	ID           string    `json:"id"`
	PasswordHash string    `json:"-"`
	HostID       string    `json:"hostId"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}
