package domain

import "errors"

var (
	ErrMeetingNotFound    = errors.New("meeting not found")
	ErrDuplicateMeeting   = errors.New("meeting id already exists")
	ErrInvalidCredentials = errors.New("invalid meeting id or password")
	ErrInvalidInput       = errors.New("invalid input")
	ErrForbidden          = errors.New("forbidden")
)
