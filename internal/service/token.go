package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultLinkTTLDays — срок жизни ссылки на скачивание по умолчанию.
const DefaultLinkTTLDays = 30

// NewToken возвращает случайный токен скачивания: 32 байта (256 бит) в hex.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate download token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewExpiry — момент истечения ссылки: now + days суток.
func NewExpiry(now time.Time, days int) time.Time {
	if days <= 0 {
		days = DefaultLinkTTLDays
	}
	return now.Add(time.Duration(days) * 24 * time.Hour)
}
