package handlers

import (
	"PresetHub/internal/middleware"
	"PresetHub/internal/model"
	"PresetHub/internal/service"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// UserHandler — профиль и покупки пользователя, гостевой поиск покупок.
type UserHandler struct {
	responder
	Users     *service.UserService
	Purchases *service.PurchaseService
}

type updateProfileRequest struct {
	Username     string `json:"username" validate:"omitempty,max=50"`
	ProfileImage string `json:"profile_image" validate:"omitempty,url,max=500"`
}

type profileResponse struct {
	Message string      `json:"message"`
	User    *model.User `json:"user"`
}

type ownsResponse struct {
	Owns          bool    `json:"owns"`
	DownloadToken *string `json:"download_token"`
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	user, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.ProfileImage = strings.TrimSpace(req.ProfileImage)
	if err := validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid profile data")
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	user, err := h.Users.UpdateProfile(r.Context(), userID, req.Username, req.ProfileImage)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Message: "Profile updated successfully", User: user})
}

// ListPurchases покупки пользователя вместе с гостевыми покупками на его email и телефон
func (h *UserHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	list, err := h.Purchases.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchaseViews(list))
}

func (h *UserHandler) Owns(w http.ResponseWriter, r *http.Request) {
	presetID, ok := parseID(chi.URLParam(r, "presetId"))
	if !ok {
		writeJSON(w, http.StatusOK, ownsResponse{})
		return
	}
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	own, err := h.Purchases.Owns(r.Context(), userID, presetID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := ownsResponse{Owns: own.Owns}
	if own.DownloadToken != "" {
		resp.DownloadToken = &own.DownloadToken
	}
	writeJSON(w, http.StatusOK, resp)
}

// Lookup гостевые покупки по email или телефону
func (h *UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Purchases.Lookup(r.Context(), strings.TrimSpace(q.Get("email")), strings.TrimSpace(q.Get("phone")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchaseViews(list))
}
