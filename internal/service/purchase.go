package service

import (
	"PresetHub/internal/model"
	"PresetHub/internal/repo"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Ownership — владеет ли пользователь пресетом и с каким токеном.
type Ownership struct {
	Owns          bool
	DownloadToken string
}

// PurchaseService сводит покупки пользователя с гостевыми покупками по его контактам.
// Слияние только при чтении: записи в базе не переписываются.
type PurchaseService struct {
	store *EntitlementStore
	users repo.UserRepository
}

func NewPurchaseService(store *EntitlementStore, users repo.UserRepository) *PurchaseService {
	return &PurchaseService{store: store, users: users}
}

func (s *PurchaseService) identity(ctx context.Context, userID int64) (BuyerIdentity, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return BuyerIdentity{}, ErrUserNotFound
		}
		return BuyerIdentity{}, fmt.Errorf("load user %d: %w", userID, err)
	}
	return BuyerIdentity{UserID: &u.ID, Email: u.Email, Phone: u.PhoneValue()}, nil
}

// ListForUser — все покупки пользователя, включая гостевые с его email/телефоном.
func (s *PurchaseService) ListForUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	id, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListForIdentity(ctx, id)
}

// Owns проверяет, есть ли у пользователя завершённая покупка пресета.
func (s *PurchaseService) Owns(ctx context.Context, userID, presetID int64) (*Ownership, error) {
	id, err := s.identity(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.FindOwned(ctx, id, presetID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &Ownership{}, nil
	}
	return &Ownership{Owns: true, DownloadToken: p.TokenValue()}, nil
}

// Lookup — гостевые покупки по email или телефону, без авторизации.
func (s *PurchaseService) Lookup(ctx context.Context, email, phone string) ([]model.Purchase, error) {
	return s.store.LookupGuest(ctx, email, phone)
}
