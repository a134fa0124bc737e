package httputil

import (
	"errors"
	"net/http"

	"github.com/cwrk-planet/meeting-service/internal/domain"
)

func StatusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrMeetingNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateMeeting):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
