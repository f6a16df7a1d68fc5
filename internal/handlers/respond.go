package handlers

import (
	"PresetHub/internal/service"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// maxBodyBytes — предел тела JSON-запроса.
const maxBodyBytes = 1 << 20

var validate = validator.New()

// responder — общая часть всех хендлеров: логгер и отображение ошибок в ответы.
type responder struct {
	Logger     *zap.SugaredLogger
	Production bool
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// statusFor отображает категорию ошибки в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrSignatureInvalid):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrExpired), errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusGone
	case errors.Is(err, service.ErrUpstream):
		var se *service.Error
		if errors.As(err, &se) && se.Retryable {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError пишет ответ для ошибки сервиса. Неожиданные ошибки логируются,
// в production клиент видит только общий текст.
func (h *responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var se *service.Error
	msg := err.Error()
	if errors.As(err, &se) {
		msg = se.Message
	}

	switch {
	case status == http.StatusInternalServerError:
		h.Logger.Errorw("request failed", "method", r.Method, "uri", r.RequestURI, "error", err)
		if h.Production {
			msg = "Internal server error"
		}
	case status >= http.StatusBadGateway:
		h.Logger.Warnw("upstream failure", "method", r.Method, "uri", r.RequestURI, "error", err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "5")
		}
	}
	writeMessage(w, status, msg)
}

// decodeJSON читает тело запроса в dst. Пустое тело не считается ошибкой.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// failedOn сообщает, не прошла ли валидация по указанному тегу.
func failedOn(err error, tag string) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == tag {
			return true
		}
	}
	return false
}
