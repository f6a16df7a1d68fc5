package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// devOrigins — фронтенд при локальной разработке.
var devOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// WithCORS разрешает запросы с настроенного origin, локальных dev-серверов и превью Netlify.
func WithCORS(allowedOrigin string) func(http.Handler) http.Handler {
	allowed := map[string]struct{}{}
	for _, o := range devOrigins {
		allowed[o] = struct{}{}
	}
	if o := strings.TrimRight(strings.TrimSpace(allowedOrigin), "/"); o != "" {
		allowed[o] = struct{}{}
	}

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			if _, ok := allowed[origin]; ok {
				return true
			}
			return strings.HasPrefix(origin, "https://") && strings.HasSuffix(origin, ".netlify.app")
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Razorpay-Signature"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler
}
