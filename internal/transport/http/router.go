package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/meeting-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/meeting-service/internal/transport/ws"
	"github.com/cwrk-planet/meeting-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler  *Handler
	WSServer *ws.Server

	// Ready false во время остановки, /healthz отвечает 503.
	Ready       func() bool
	Connections func() int

	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	// websocket без таймаута: соединение живёт сколько угодно
	r.Get("/ws", d.WSServer.HandleWS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil && !d.Ready() {
			httputil.JSON(w, http.StatusServiceUnavailable, httputil.Envelope{"status": "shutting_down"})
			return
		}
		body := httputil.Envelope{"status": "ok"}
		if d.Connections != nil {
			body["connections"] = d.Connections()
		}
		httputil.JSON(w, http.StatusOK, body)
	})

	r.Group(func(api chi.Router) {
		api.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
		api.Use(middleware.Timeout(d.RequestTimeout))
		api.Use(httpmw.BodyLimit(d.MaxBodyBytes))

		api.Route("/api/meetings", func(rt chi.Router) {
			rt.Post("/", d.Handler.CreateMeeting)
			rt.Post("/join", d.Handler.JoinMeeting)

			rt.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", d.Handler.GetMeeting)
				rr.Get("/participants", d.Handler.GetParticipants)
				rr.Post("/end", d.Handler.EndMeeting)
			})
		})
	})

	return r
}
