package middleware

import (
	"net/http"
	"runtime/debug"
)

// WithRecover превращает панику в 500 с JSON-телом и пишет стек в лог.
func WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			sugar.Errorw("panic recovered",
				"method", r.Method,
				"uri", r.RequestURI,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			writeMessage(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
