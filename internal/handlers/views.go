package handlers

import (
	"PresetHub/internal/model"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// purchaseView — строка покупки в истории и списке покупок.
type purchaseView struct {
	ID            int64           `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentID     *string         `json:"payment_id"`
	OrderID       *string         `json:"order_id"`
	DownloadToken *string         `json:"download_token"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	DownloadCount int             `json:"download_count"`
	MaxDownloads  int             `json:"max_downloads"`
	PresetID      int64           `json:"preset_id"`
	PresetTitle   string          `json:"preset_title"`
	Category      string          `json:"category"`
	Thumbnail     string          `json:"thumbnail"`
}

func newPurchaseView(p model.Purchase) purchaseView {
	v := purchaseView{
		ID:            p.ID,
		Amount:        p.Amount,
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID,
		DownloadToken: p.DownloadToken,
		Status:        p.Status,
		CreatedAt:     p.CreatedAt,
		ExpiresAt:     p.ExpiresAt,
		DownloadCount: p.DownloadCount,
		MaxDownloads:  p.MaxDownloads,
		PresetID:      p.PresetID,
	}
	if p.Preset != nil {
		v.PresetTitle = p.Preset.Title
		v.Category = p.Preset.Category
		v.Thumbnail = p.Preset.Thumbnail
	}
	return v
}

func purchaseViews(list []model.Purchase) []purchaseView {
	out := make([]purchaseView, 0, len(list))
	for _, p := range list {
		out = append(out, newPurchaseView(p))
	}
	return out
}

// flexID принимает идентификатор и числом, и строкой: фронтенд шлёт оба варианта.
type flexID int64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid id %q", s)
	}
	*f = flexID(v)
	return nil
}

func parseID(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
