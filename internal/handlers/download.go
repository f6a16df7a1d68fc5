package handlers

import (
	"PresetHub/internal/service"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// DownloadHandler — скачивание по токену покупки.
type DownloadHandler struct {
	responder
	Downloads *service.DownloadService
}

type downloadInfoResponse struct {
	Title              string    `json:"title"`
	Thumbnail          string    `json:"thumbnail"`
	FileSize           string    `json:"fileSize"`
	DownloadsUsed      int       `json:"downloadsUsed"`
	MaxDownloads       int       `json:"maxDownloads"`
	DownloadsRemaining int       `json:"downloadsRemaining"`
	ExpiresAt          time.Time `json:"expiresAt"`
	IsExpired          bool      `json:"isExpired"`
	PurchasedAt        time.Time `json:"purchasedAt"`
}

// Download расходует одно скачивание и перенаправляет на файл.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	location, err := h.Downloads.Resolve(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, location, http.StatusFound)
}

// Info состояние ссылки без расхода скачивания
func (h *DownloadHandler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.Downloads.Info(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, downloadInfoResponse(*info))
}
