package middleware

import (
	"PresetHub/internal/auth"
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKey int

const authStateKey ctxKey = iota

// TokenVerifier проверяет bearer-токен.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

type authState struct {
	token  string
	claims *auth.Claims
	err    error
}

// WithAuth разбирает заголовок Authorization и кладёт результат в контекст.
// Запрос не отклоняется: для гостевого checkout авторизация необязательна.
func WithAuth(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := &authState{token: BearerToken(r)}
			if st.token != "" {
				st.claims, st.err = v.Verify(r.Context(), st.token)
				if st.err != nil && !errors.Is(st.err, auth.ErrInvalidToken) && !errors.Is(st.err, auth.ErrTokenRevoked) {
					sugar.Errorw("token verification failed", "error", st.err)
				}
			}
			ctx := context.WithValue(r.Context(), authStateKey, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth пропускает только запросы с действующим токеном. Ставится после WithAuth.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, _ := r.Context().Value(authStateKey).(*authState)
		switch {
		case st == nil || st.token == "":
			writeMessage(w, http.StatusUnauthorized, "Access token required")
		case errors.Is(st.err, auth.ErrTokenRevoked):
			writeMessage(w, http.StatusUnauthorized, "Token has been invalidated. Please login again.")
		case errors.Is(st.err, auth.ErrInvalidToken):
			writeMessage(w, http.StatusForbidden, "Invalid or expired token")
		case st.err != nil || st.claims == nil:
			w.Header().Set("Retry-After", "5")
			writeMessage(w, http.StatusServiceUnavailable, "Authentication is temporarily unavailable")
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// BearerToken достаёт токен из "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// GetClaimsFromContext возвращает claims проверенного токена.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	st, ok := ctx.Value(authStateKey).(*authState)
	if !ok || st.claims == nil || st.err != nil {
		return nil, false
	}
	return st.claims, true
}

// GetUserIDFromContext извлекает user_id из контекста.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	c, ok := GetClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return c.UserID, true
}

// GetTokenFromContext — исходный токен запроса (нужен для logout).
func GetTokenFromContext(ctx context.Context) string {
	if _, ok := GetClaimsFromContext(ctx); !ok {
		return ""
	}
	return ctx.Value(authStateKey).(*authState).token
}
