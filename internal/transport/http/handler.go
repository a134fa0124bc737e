package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/meeting-service/internal/domain"
	"github.com/cwrk-planet/meeting-service/internal/service"
	"github.com/cwrk-planet/meeting-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Тексты ошибок совпадают с тем, что показывает браузерный клиент.
const (
	msgInvalidMeetingData = "Invalid meeting data"
	msgInvalidJoinData    = "Invalid join data"
	msgInvalidCredentials = "Invalid meeting ID or password"
	msgServerError        = "Server error"
)

type Handler struct {
	meetingSvc *service.MeetingService
	validate   *validator.Validate
}

func NewHandler(meetings *service.MeetingService) *Handler {
	return &Handler{
		meetingSvc: meetings,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// decode читает JSON-тело и прогоняет валидацию тегов.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// POST /api/meetings
func (h *Handler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req CreateMeetingRequest
	if err := h.decode(r, &req); err != nil {
		slog.Debug("handler.CreateMeeting.decode", slog.Any("err", err))
		httputil.Error(w, http.StatusBadRequest, msgInvalidMeetingData)
		return
	}

	m, err := h.meetingSvc.CreateMeeting(r.Context(), service.CreateMeetingInput{
		ID:       req.ID,
		Password: req.Password,
		HostID:   req.HostID,
	})
	if err != nil {
		h.fail(w, "handler.CreateMeeting", err, msgInvalidMeetingData)
		return
	}
	slog.Info("meeting created", "meeting", m.ID, "host", m.HostID)

	httputil.JSON(w, http.StatusOK, MeetingResponse{Meeting: m})
}

// POST /api/meetings/join
func (h *Handler) JoinMeeting(w http.ResponseWriter, r *http.Request) {
	var req JoinMeetingRequest
	if err := h.decode(r, &req); err != nil {
		slog.Debug("handler.JoinMeeting.decode", slog.Any("err", err))
		httputil.Error(w, http.StatusBadRequest, msgInvalidJoinData)
		return
	}

	p, err := h.meetingSvc.JoinMeeting(r.Context(), service.JoinMeetingInput{
		MeetingID: req.MeetingID,
		Password:  req.Password,
		Name:      req.Name,
		IsHost:    req.IsHost,
	})
	if err != nil {
		h.fail(w, "handler.JoinMeeting", err, msgInvalidJoinData)
		return
	}
	slog.Info("participant added", "meeting", p.MeetingID, "participant", p.ID, "host", p.IsHost)

	httputil.JSON(w, http.StatusOK, ParticipantResponse{Participant: p})
}

// GET /api/meetings/{id}
func (h *Handler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	m, err := h.meetingSvc.GetMeeting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "handler.GetMeeting", err, "")
		return
	}

	httputil.JSON(w, http.StatusOK, MeetingResponse{Meeting: m})
}

// GET /api/meetings/{id}/participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	parts := h.meetingSvc.ListParticipants(r.Context(), chi.URLParam(r, "id"))

	httputil.OK(w, "participants", parts)
}

// POST /api/meetings/{id}/end
func (h *Handler) EndMeeting(w http.ResponseWriter, r *http.Request) {
	var req EndMeetingRequest
	if err := h.decode(r, &req); err != nil {
		slog.Debug("handler.EndMeeting.decode", slog.Any("err", err))
		httputil.Error(w, http.StatusBadRequest, msgInvalidMeetingData)
		return
	}

	id := chi.URLParam(r, "id")
	err := h.meetingSvc.EndMeeting(r.Context(), service.EndMeetingInput{
		MeetingID: id,
		Password:  req.Password,
		HostID:    req.HostID,
	})
	if err != nil {
		h.fail(w, "handler.EndMeeting", err, msgInvalidMeetingData)
		return
	}
	slog.Info("meeting ended", "meeting", id)

	w.WriteHeader(http.StatusNoContent)
}

// fail переводит доменную ошибку в HTTP-ответ. invalidMsg: текст для 400.
func (h *Handler) fail(w http.ResponseWriter, op string, err error, invalidMsg string) {
	status := httputil.StatusFromError(err)

	var msg string
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		msg = msgInvalidCredentials
	case status == http.StatusBadRequest && invalidMsg != "":
		msg = invalidMsg
	case status >= http.StatusInternalServerError:
		slog.Error(op, slog.Any("err", err))
		msg = msgServerError
	default:
		msg = err.Error()
		if public, ok := lo.Find(publicErrors, func(e error) bool { return errors.Is(err, e) }); ok {
			msg = public.Error()
		}
	}

	httputil.Error(w, status, msg)
}

// publicErrors можно показывать клиенту без обёрток.
var publicErrors = []error{
	domain.ErrMeetingNotFound,
	domain.ErrDuplicateMeeting,
	domain.ErrForbidden,
}
