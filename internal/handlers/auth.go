package handlers

import (
	"PresetHub/internal/middleware"
	"PresetHub/internal/model"
	"PresetHub/internal/service"
	"context"
	"net/http"
	"strings"
)

// TokenIssuer выдаёт и отзывает токены сессии.
type TokenIssuer interface {
	middleware.TokenVerifier
	Issue(userID int64, email, role string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// AuthHandler — регистрация, вход и управление сессией.
type AuthHandler struct {
	responder
	Users  *service.UserService
	Tokens TokenIssuer
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"omitempty,max=15"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type sessionResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
}

// Register регистрация пользователя
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Logger.Warnw("Register: invalid request body", "error", err)
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	if err := validate.Struct(req); err != nil {
		switch {
		case failedOn(err, "required"):
			writeMessage(w, http.StatusBadRequest, "Username, email and password are required")
		case failedOn(err, "email"):
			writeMessage(w, http.StatusBadRequest, "Invalid email format")
		default:
			writeMessage(w, http.StatusBadRequest, "Invalid phone number")
		}
		return
	}

	user, err := h.Users.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Logger.Infow("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{Message: "Registration successful", Token: token, User: user})
}

// Login вход по email и паролю
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Logger.Warnw("Login: invalid request body", "error", err)
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token, err := h.Tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Message: "Login successful", Token: token, User: user})
}

// Logout отзывает предъявленный токен до его истечения
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Tokens.Revoke(r.Context(), middleware.GetTokenFromContext(r.Context())); err != nil {
		h.writeError(w, r, revokeFailed("Logout failed, please try again", err))
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

// revokeFailed: хранилище отозванных токенов недоступно, запрос можно повторить.
func revokeFailed(message string, err error) *service.Error {
	return &service.Error{Kind: service.ErrUpstream, Message: message, Retryable: true, Err: err}
}

// Me текущий пользователь
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	user, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ChangePassword меняет пароль; текущий токен после этого недействителен
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		if failedOn(err, "required") {
			writeMessage(w, http.StatusBadRequest, "Current and new password are required")
		} else {
			writeMessage(w, http.StatusBadRequest, "New password must be at least 6 characters")
		}
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if err := h.Users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	// пароль уже сменён; если сессию закрыть не удалось, клиент должен об этом узнать
	if err := h.Tokens.Revoke(r.Context(), middleware.GetTokenFromContext(r.Context())); err != nil {
		h.writeError(w, r, revokeFailed("Password changed, but the current session could not be closed. Please logout and login again.", err))
		return
	}
	writeMessage(w, http.StatusOK, "Password changed successfully. Please login again.")
}
