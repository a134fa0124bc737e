package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// OK отдаёт 200 с телом {key: data}.
func OK(w http.ResponseWriter, key string, data any) {
	JSON(w, http.StatusOK, Envelope{key: data})
}

// Error пишет ошибку в виде {"error": msg}, этот формат ждёт браузерный клиент.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Envelope{"error": msg})
}
