package middleware

import (
	"net/http"
	"strings"

	"github.com/coachbook/server/internal/config"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// CORS allows credentialed browser requests from the configured origins.
// AllowAllOrigins reflects any origin and is meant for development only.
// Rejected origins are logged for security monitoring.
func CORS(cfg config.CORSConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.ToLower(strings.TrimSpace(origin))
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			if cfg.AllowAllOrigins {
				return true
			}
			if _, ok := allowed[strings.ToLower(strings.TrimSpace(origin))]; ok {
				return true
			}
			logger.Warn().Str("origin", origin).Msg("CORS request rejected: origin not in whitelist")
			return false
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Accept", CSRFHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}
