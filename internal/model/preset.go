package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Категории пресетов.
const (
	CategoryVideo    = "video"
	CategoryPhoto    = "photo"
	CategoryAudio    = "audio"
	CategoryGraphics = "graphics"
)

// IsValidCategory сообщает, входит ли категория в перечень.
func IsValidCategory(c string) bool {
	switch c {
	case CategoryVideo, CategoryPhoto, CategoryAudio, CategoryGraphics:
		return true
	}
	return false
}

// Preset — продаваемый цифровой ассет.
type Preset struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Description string `json:"description"`
	Category    string `gorm:"size:20;not null;index" json:"category"`

	Price         decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"price"`
	OriginalPrice decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"original_price"`

	PreviewImage string `gorm:"size:500" json:"preview_image"`
	// FilePath — непрозрачный URI ассета (s3://..., ссылка на Drive). Клиентам не отдаётся.
	FilePath  string `gorm:"size:500;not null" json:"-"`
	FileSize  string `gorm:"size:50" json:"file_size"`
	Thumbnail string `gorm:"size:500" json:"thumbnail"`

	Downloads int64 `gorm:"not null;default:0" json:"downloads"`
	IsActive  bool  `gorm:"not null;index" json:"is_active"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
