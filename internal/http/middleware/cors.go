package middleware

import (
	"net/http"

	"retroboard/internal/config"

	"github.com/go-chi/cors"
)

// CORS covers the REST endpoints. The websocket upgrade checks the same
// origins itself.
func CORS(cfg config.Config) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           300,
	})
}
