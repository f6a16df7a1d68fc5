package handlers

import (
	"PresetHub/internal/middleware"
	"PresetHub/internal/model"
	"PresetHub/internal/service"
	"io"
	"net/http"
	"strings"
	"time"
)

// SignatureHeader — заголовок подписи вебхука шлюза.
const SignatureHeader = "X-Razorpay-Signature"

// PaymentHandler — checkout: заказ, подтверждение оплаты, вебхуки и история.
type PaymentHandler struct {
	responder
	Payments *service.PaymentService
}

type createOrderRequest struct {
	PresetID   flexID `json:"presetId" validate:"gt=0"`
	GuestEmail string `json:"guestEmail" validate:"omitempty,email"`
	GuestPhone string `json:"guestPhone" validate:"omitempty,max=15"`
}

type createOrderResponse struct {
	OrderID       string `json:"orderId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	KeyID         string `json:"keyId"`
	PresetID      int64  `json:"presetId"`
	PresetTitle   string `json:"presetTitle"`
	DisplayAmount string `json:"displayAmount"`
}

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type verifiedPurchase struct {
	ID            int64     `json:"id"`
	DownloadToken string    `json:"download_token,omitempty"`
	DownloadURL   string    `json:"download_url,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
	PresetTitle   string    `json:"preset_title"`
}

type verifyResponse struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	EmailSent  bool             `json:"emailSent"`
	EmailError *string          `json:"emailError"`
	Purchase   verifiedPurchase `json:"purchase"`
}

type webhookResponse struct {
	Status  string `json:"status"`
	Event   string `json:"event"`
	Applied bool   `json:"applied"`
}

// CreateOrder открывает заказ у шлюза. Сумма берётся только из каталога.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Logger.Warnw("CreateOrder: invalid request body", "error", err)
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.GuestEmail = strings.TrimSpace(req.GuestEmail)
	req.GuestPhone = strings.TrimSpace(req.GuestPhone)
	if err := validate.Struct(req); err != nil {
		switch {
		case failedOn(err, "gt"):
			writeMessage(w, http.StatusBadRequest, "Preset id is required")
		case failedOn(err, "email"):
			writeMessage(w, http.StatusBadRequest, "Invalid email format")
		default:
			writeMessage(w, http.StatusBadRequest, "Invalid phone number")
		}
		return
	}

	buyer := service.BuyerIdentity{Email: req.GuestEmail, Phone: req.GuestPhone}
	if uid, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		buyer.UserID = &uid
	}

	res, err := h.Payments.CreateOrder(r.Context(), int64(req.PresetID), buyer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, createOrderResponse{
		OrderID:       res.OrderID,
		Amount:        res.AmountMinor,
		Currency:      res.Currency,
		KeyID:         res.KeyID,
		PresetID:      res.PresetID,
		PresetTitle:   res.PresetTitle,
		DisplayAmount: res.Amount,
	})
}

// Verify проверяет подпись checkout-callback'а и выдаёт ссылку на скачивание.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.Logger.Warnw("Verify: invalid request body", "error", err)
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.Payments.VerifyCallback(r.Context(), service.Callback{
		OrderID:   strings.TrimSpace(req.OrderID),
		PaymentID: strings.TrimSpace(req.PaymentID),
		Signature: strings.TrimSpace(req.Signature),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := verifyResponse{
		Success:   true,
		EmailSent: res.EmailSent,
		Purchase: verifiedPurchase{
			ID:        res.Purchase.ID,
			ExpiresAt: res.Purchase.ExpiresAt,
		},
	}
	if res.Purchase.Preset != nil {
		resp.Purchase.PresetTitle = res.Purchase.Preset.Title
	}

	token := res.Purchase.TokenValue()
	if token == "" {
		// возврат или неуспешный платёж: ссылки больше нет
		resp.Success = false
		resp.Message = revokedMessage(res.Purchase.Status)
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	resp.Purchase.DownloadToken = token
	resp.Purchase.DownloadURL = h.Payments.DownloadURL(token)
	if res.EmailError != "" {
		resp.EmailError = &res.EmailError
	}
	switch {
	case !res.Created:
		resp.Message = "Payment already verified. Use the download link below."
	case res.EmailSent:
		resp.Message = "Payment successful! Check your email for download link."
	default:
		resp.Message = "Payment successful! But email delivery failed. Use the download link below."
	}
	writeJSON(w, http.StatusOK, resp)
}

func revokedMessage(status string) string {
	switch status {
	case model.StatusRefunded:
		return "Payment was refunded. The download link is no longer available."
	case model.StatusFailed:
		return "Payment failed. No download link was issued."
	default:
		return "Download link is not available for this purchase."
	}
}

// Webhook принимает асинхронные события шлюза. Подпись считается по сырому телу.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.Payments.HandleWebhook(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok", Event: res.Event, Applied: res.Applied})
}

// History платежи пользователя, новые первыми
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	list, err := h.Payments.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchaseViews(list))
}
