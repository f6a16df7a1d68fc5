package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit — политика ограничения частоты запросов.
type RateLimit struct {
	Requests int
	Window   time.Duration
	Message  string
}

// Политики по умолчанию.
var (
	GeneralLimit  = RateLimit{Requests: 1000, Window: 15 * time.Minute, Message: "Too many requests, please try again after 15 minutes"}
	PaymentLimit  = RateLimit{Requests: 20, Window: time.Hour, Message: "Too many payment attempts, please try again later"}
	DownloadLimit = RateLimit{Requests: 30, Window: time.Hour, Message: "Too many download attempts, please try again later"}
)

// WithRateLimit ограничивает число запросов с одного IP. Preflight-запросы не считаются.
// Ожидает, что RemoteAddr уже исправлен chi RealIP.
func WithRateLimit(rl RateLimit) func(http.Handler) http.Handler {
	limiter := httprate.Limit(rl.Requests, rl.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			sugar.Warnw("rate limit exceeded", "ip", r.RemoteAddr, "uri", r.RequestURI)
			writeMessage(w, http.StatusTooManyRequests, rl.Message)
		}),
	)
	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
