// Package auth выпускает и проверяет JWT и ведёт список отозванных токенов.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL — срок жизни токена.
const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims — полезная нагрузка токена: id, email и роль пользователя.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// RevocationList — deny-list токенов. Записи живут до естественного истечения токена.
type RevocationList interface {
	Revoke(ctx context.Context, token string, until time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Manager выпускает и проверяет токены.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationList
	now     func() time.Time
}

// NewManager создаёт менеджер токенов. При revoked == nil используется локальный список в памяти.
func NewManager(secret string, ttl time.Duration, revoked RevocationList) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if revoked == nil {
		revoked = NewMemoryRevocationList()
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}
}

// Issue подписывает токен HS256 для пользователя.
func (m *Manager) Issue(userID int64, email, role string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// jti: токены, выданные в одну секунду, различаются
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	})
	return token.SignedString(m.secret)
}

// Verify сначала смотрит deny-list, затем проверяет подпись и срок.
func (m *Manager) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	revoked, err := m.revoked.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke добавляет токен в deny-list до момента его истечения.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	until := m.now().Add(m.ttl)

	claims := &Claims{}
	// подпись уже проверена middleware, здесь нужен только exp
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if !until.After(m.now()) {
		return nil
	}
	return m.revoked.Revoke(ctx, token, until)
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
