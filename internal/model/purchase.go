package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы покупки.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// DefaultMaxDownloads — лимит скачиваний по умолчанию.
const DefaultMaxDownloads = 5

// Purchase — право на скачивание пресета, полученное после оплаты.
// Владелец: либо зарегистрированный пользователь, либо гость (email/телефон).
type Purchase struct {
	ID int64 `gorm:"primaryKey"`

	UserID     *int64  `gorm:"index"`
	GuestEmail *string `gorm:"size:100;index"`
	GuestPhone *string `gorm:"size:15;index"`

	PresetID int64   `gorm:"not null;index"`
	Preset   *Preset `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PaymentID *string         `gorm:"size:100;uniqueIndex"`
	OrderID   *string         `gorm:"size:100;uniqueIndex"`

	// DownloadToken есть только у покупок в статусе completed.
	DownloadToken *string `gorm:"size:100;uniqueIndex"`
	DownloadCount int     `gorm:"not null;default:0"`
	MaxDownloads  int     `gorm:"not null;default:5"`
	Status        string  `gorm:"size:20;not null;default:pending;index"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	ExpiresAt time.Time `gorm:"not null"`
}

// TokenValue возвращает токен скачивания или пустую строку.
func (p *Purchase) TokenValue() string {
	if p == nil || p.DownloadToken == nil {
		return ""
	}
	return *p.DownloadToken
}

// IsExpired сообщает, истёк ли срок действия ссылки на момент now.
func (p *Purchase) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// DownloadsRemaining — сколько скачиваний осталось.
func (p *Purchase) DownloadsRemaining() int {
	if left := p.MaxDownloads - p.DownloadCount; left > 0 {
		return left
	}
	return 0
}
