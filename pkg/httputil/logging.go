package httputil

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/meeting-service/pkg/logger"

	"github.com/go-chi/chi/v5/middleware"
)

// MiddlewareLogging пишет строку на каждый запрос. Тела не логируются:
// в них пароли встреч. Уровень зависит от статуса ответа.
// Обёртка chi сохраняет http.Hijacker, без него не пройдёт апгрейд до websocket.
func MiddlewareLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		reqID, _ := RequestIDFromContext(r.Context())

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.Ctx(r.Context()).Log(r.Context(), level, "http request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
