package service

import (
	"PresetHub/internal/model"
	"PresetHub/internal/repo"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Currency — единственная поддерживаемая валюта.
const Currency = "INR"

// finalizeAttempts — сколько раз пробуем записать покупку при коллизии токена.
const finalizeAttempts = 3

// BuyerIdentity — кто покупает: зарегистрированный пользователь и/или гость.
type BuyerIdentity struct {
	UserID *int64
	Email  string
	Phone  string
}

// Normalize приводит email к нижнему регистру и обрезает пробелы.
func (b BuyerIdentity) Normalize() BuyerIdentity {
	b.Email = strings.ToLower(strings.TrimSpace(b.Email))
	b.Phone = strings.TrimSpace(b.Phone)
	return b
}

// Validate проверяет, что задан хотя бы один канал идентификации.
func (b BuyerIdentity) Validate() error {
	if b.UserID == nil && b.Email == "" && b.Phone == "" {
		return ErrNoBuyerIdentity
	}
	return nil
}

func (b BuyerIdentity) repoIdentity() repo.Identity {
	return repo.Identity{UserID: b.UserID, Email: b.Email, Phone: b.Phone}
}

// Quote — авторитетная цена заказа, вычисленная по каталогу.
type Quote struct {
	PresetID    int64
	Title       string
	Amount      decimal.Decimal
	AmountMinor int64 // в пайсах
	Currency    string
	Receipt     string
}

// OrderRef — то, что известно о заказе со стороны шлюза.
type OrderRef struct {
	OrderID  string
	PresetID int64
	Amount   decimal.Decimal
}

// Policy — параметры выдачи прав на скачивание.
type Policy struct {
	MaxDownloads int
	LinkTTLDays  int
}

func (p Policy) withDefaults() Policy {
	if p.MaxDownloads <= 0 {
		p.MaxDownloads = model.DefaultMaxDownloads
	}
	if p.LinkTTLDays <= 0 {
		p.LinkTTLDays = DefaultLinkTTLDays
	}
	return p
}

// EntitlementStore — единственный источник истины о владении, квоте и сроке действия.
type EntitlementStore struct {
	presets   repo.PresetRepository
	purchases repo.PurchaseRepository
	policy    Policy
	now       func() time.Time
	newToken  func() (string, error)
}

// NewEntitlementStore создаёт хранилище прав поверх репозиториев.
func NewEntitlementStore(presets repo.PresetRepository, purchases repo.PurchaseRepository, policy Policy) *EntitlementStore {
	return &EntitlementStore{
		presets:   presets,
		purchases: purchases,
		policy:    policy.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
		newToken:  NewToken,
	}
}

// CreatePendingOrder проверяет пресет и считает цену по каталогу.
// Цена из запроса клиента не используется никогда.
func (s *EntitlementStore) CreatePendingOrder(ctx context.Context, presetID int64, buyer BuyerIdentity) (*Quote, error) {
	buyer = buyer.Normalize()
	if err := buyer.Validate(); err != nil {
		return nil, err
	}

	preset, err := s.presets.GetByID(ctx, presetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPresetUnavailable
		}
		return nil, fmt.Errorf("load preset %d: %w", presetID, err)
	}
	if !preset.IsActive || !preset.Price.IsPositive() {
		return nil, ErrPresetUnavailable
	}

	return &Quote{
		PresetID:    preset.ID,
		Title:       preset.Title,
		Amount:      preset.Price,
		AmountMinor: ToMinorUnits(preset.Price),
		Currency:    Currency,
		Receipt:     fmt.Sprintf("preset_%d_%d", preset.ID, s.now().UnixNano()),
	}, nil
}

// FinalizeEntitlement превращает подтверждённый платёж в право на скачивание ровно один раз.
// Повтор с тем же paymentID возвращает существующую запись и created=false.
func (s *EntitlementStore) FinalizeEntitlement(ctx context.Context, order OrderRef, paymentID string, buyer BuyerIdentity) (*model.Purchase, bool, error) {
	buyer = buyer.Normalize()
	if err := buyer.Validate(); err != nil {
		return nil, false, err
	}

	if existing, err := s.purchases.FindByPaymentID(ctx, paymentID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("lookup payment %s: %w", paymentID, err)
	}

	if _, err := s.presets.GetByID(ctx, order.PresetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrPresetNotFound
		}
		return nil, false, fmt.Errorf("load preset %d: %w", order.PresetID, err)
	}

	var lastErr error
	for attempt := 0; attempt < finalizeAttempts; attempt++ {
		token, err := s.newToken()
		if err != nil {
			return nil, false, err
		}
		now := s.now()
		p := &model.Purchase{
			UserID:        buyer.UserID,
			GuestEmail:    optional(buyer.Email),
			GuestPhone:    optional(buyer.Phone),
			PresetID:      order.PresetID,
			Amount:        order.Amount,
			PaymentID:     &paymentID,
			OrderID:       optional(order.OrderID),
			DownloadToken: &token,
			MaxDownloads:  s.policy.MaxDownloads,
			Status:        model.StatusCompleted,
			CreatedAt:     now,
			ExpiresAt:     NewExpiry(now, s.policy.LinkTTLDays),
		}

		out, created, err := s.purchases.Finalize(ctx, p)
		if err == nil {
			return out, created, nil
		}
		// ON CONFLICT сработал не по payment_id/order_id, а по токену, пробуем новый
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("finalize purchase: %w", err)
		}
		lastErr = err
	}
	return nil, false, fmt.Errorf("finalize purchase: %w", lastErr)
}

// FindByToken возвращает покупку по токену или ErrInvalidToken.
func (s *EntitlementStore) FindByToken(ctx context.Context, token string) (*model.Purchase, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	p, err := s.purchases.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("find by token: %w", err)
	}
	return p, nil
}

// IncrementDownload — атомарное «проверить квоту и увеличить счётчик».
func (s *EntitlementStore) IncrementDownload(ctx context.Context, purchaseID int64) (bool, error) {
	applied, err := s.purchases.IncrementDownload(ctx, purchaseID)
	if err != nil {
		return false, fmt.Errorf("increment download: %w", err)
	}
	return applied, nil
}

// ListForIdentity — покупки по user id, email или телефону, новые первыми, без дублей.
func (s *EntitlementStore) ListForIdentity(ctx context.Context, buyer BuyerIdentity) ([]model.Purchase, error) {
	buyer = buyer.Normalize()
	list, err := s.purchases.ListForIdentity(ctx, buyer.repoIdentity())
	if err != nil {
		return nil, fmt.Errorf("list for identity: %w", err)
	}
	return dedupeByID(list), nil
}

// ListByUser — покупки, привязанные к user id (история платежей).
func (s *EntitlementStore) ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	list, err := s.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list by user: %w", err)
	}
	return list, nil
}

// LookupGuest — завершённые гостевые покупки по email или телефону.
func (s *EntitlementStore) LookupGuest(ctx context.Context, email, phone string) ([]model.Purchase, error) {
	id := BuyerIdentity{Email: email, Phone: phone}.Normalize()
	if id.Email == "" && id.Phone == "" {
		return nil, ErrLookupIdentity
	}
	list, err := s.purchases.LookupGuest(ctx, id.Email, id.Phone)
	if err != nil {
		return nil, fmt.Errorf("lookup guest: %w", err)
	}
	return dedupeByID(list), nil
}

// FindOwned — завершённая покупка пресета, или nil если её нет.
func (s *EntitlementStore) FindOwned(ctx context.Context, buyer BuyerIdentity, presetID int64) (*model.Purchase, error) {
	p, err := s.purchases.FindOwned(ctx, buyer.Normalize().repoIdentity(), presetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find owned: %w", err)
	}
	return p, nil
}

// Transition переводит покупку в терминальный статус (refunded/failed).
func (s *EntitlementStore) Transition(ctx context.Context, paymentID string, from []string, to string) (bool, error) {
	ok, err := s.purchases.TransitionStatus(ctx, paymentID, from, to)
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", paymentID, to, err)
	}
	return ok, nil
}

// ToMinorUnits переводит сумму в пайсы с округлением.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits переводит пайсы обратно в сумму.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func dedupeByID(list []model.Purchase) []model.Purchase {
	seen := make(map[int64]struct{}, len(list))
	out := make([]model.Purchase, 0, len(list))
	for _, p := range list {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
