package http

import (
	"net/http"

	"retroboard/internal/auth"
	"retroboard/internal/config"
	"retroboard/internal/http/handler"
	mw "retroboard/internal/http/middleware"
	"retroboard/internal/realtime"
	"retroboard/internal/retro"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Store  retro.Store
	Sync   *realtime.Server
	JWT    *auth.JWT
	Logger *log.Logger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	requireAuth := auth.RequireAuth(d.JWT)

	me := &handler.MeHandler{}
	r.With(requireAuth).Get("/me", me.Me)

	retros := &handler.RetroHandler{Store: d.Store, Logger: d.Logger}
	r.Route("/retros", func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/", retros.Create)
		r.Get("/", retros.List)
		r.Get("/{id}", retros.Get)
	})

	ws := &handler.WSHandler{
		Server:         d.Sync,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		SendBuffer:     cfg.WSSendBuffer,
		PingInterval:   cfg.WSPingInterval,
		Logger:         d.Logger,
	}
	r.With(requireAuth).Get("/ws", ws.ServeHTTP)

	return r
}
