package repo

import (
	"PresetHub/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidTransition — запрошен переход статуса, который не допускается.
var ErrInvalidTransition = errors.New("invalid purchase status transition")

// Identity — каналы идентификации покупателя. Пустые поля не участвуют в поиске.
type Identity struct {
	UserID *int64
	Email  string
	Phone  string
}

// IsEmpty сообщает, что ни один канал не задан.
func (i Identity) IsEmpty() bool {
	return i.UserID == nil && i.Email == "" && i.Phone == ""
}

// PurchaseRepository — хранилище прав на скачивание (покупок).
// Все межзапросные инварианты обеспечиваются уникальными индексами и условными UPDATE.
type PurchaseRepository interface {
	// Finalize атомарно записывает завершённую покупку и увеличивает счётчик пресета.
	// Если покупка с тем же payment_id (или order_id) уже есть, возвращает её с created=false.
	Finalize(ctx context.Context, p *model.Purchase) (purchase *model.Purchase, created bool, err error)

	FindByToken(ctx context.Context, token string) (*model.Purchase, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error)

	// IncrementDownload увеличивает download_count только если лимит не исчерпан.
	// Возвращает applied=false, если свободных скачиваний нет.
	IncrementDownload(ctx context.Context, id int64) (applied bool, err error)

	// ListForIdentity — покупки по user_id ИЛИ guest_email ИЛИ guest_phone, новые первыми.
	ListForIdentity(ctx context.Context, id Identity) ([]model.Purchase, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error)
	// LookupGuest — завершённые покупки по email или телефону гостя.
	LookupGuest(ctx context.Context, email, phone string) ([]model.Purchase, error)
	// FindOwned — последняя завершённая покупка пресета для идентичности.
	FindOwned(ctx context.Context, id Identity, presetID int64) (*model.Purchase, error)

	// TransitionStatus переводит покупку из одного из from в to и снимает токен.
	TransitionStatus(ctx context.Context, paymentID string, from []string, to string) (bool, error)
}

type purchaseRepo struct {
	db *gorm.DB
}

// NewPurchaseRepository создаёт реализацию репозитория покупок.
func NewPurchaseRepository(db *gorm.DB) PurchaseRepository {
	return &purchaseRepo{db: db}
}

func (r *purchaseRepo) Finalize(ctx context.Context, p *model.Purchase) (*model.Purchase, bool, error) {
	var (
		out     *model.Purchase
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// повторный callback: платёж уже превращён в покупку
			existing, err := findExisting(tx, p.PaymentID, p.OrderID)
			if err != nil {
				return err
			}
			out = existing
			return nil
		}

		upd := tx.Model(&model.Preset{}).
			Where("id = ?", p.PresetID).
			UpdateColumn("downloads", gorm.Expr("downloads + 1"))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("preset %d: %w", p.PresetID, gorm.ErrRecordNotFound)
		}

		var preset model.Preset
		if err := tx.First(&preset, "id = ?", p.PresetID).Error; err != nil {
			return err
		}
		p.Preset = &preset
		out = p
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func findExisting(tx *gorm.DB, paymentID, orderID *string) (*model.Purchase, error) {
	var p model.Purchase
	if paymentID != nil {
		err := tx.Preload("Preset").Where("payment_id = ?", *paymentID).First(&p).Error
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if orderID != nil {
		if err := tx.Preload("Preset").Where("order_id = ?", *orderID).First(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *purchaseRepo) FindByToken(ctx context.Context, token string) (*model.Purchase, error) {
	var p model.Purchase
	err := r.db.WithContext(ctx).Preload("Preset").
		Where("download_token = ?", token).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepo) FindByPaymentID(ctx context.Context, paymentID string) (*model.Purchase, error) {
	var p model.Purchase
	err := r.db.WithContext(ctx).Preload("Preset").
		Where("payment_id = ?", paymentID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepo) IncrementDownload(ctx context.Context, id int64) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("id = ? AND status = ? AND download_count < max_downloads", id, model.StatusCompleted).
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// identityCondition собирает "(user_id = ? OR guest_email = ? OR guest_phone = ?)"
// только из непустых каналов.
func identityCondition(id Identity) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if id.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *id.UserID)
	}
	if id.Email != "" {
		conds = append(conds, "guest_email = ?")
		args = append(args, id.Email)
	}
	if id.Phone != "" {
		conds = append(conds, "guest_phone = ?")
		args = append(args, id.Phone)
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}

func (r *purchaseRepo) newestFirst(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Preset").
		Order("created_at DESC").Order("id DESC")
}

func (r *purchaseRepo) ListForIdentity(ctx context.Context, id Identity) ([]model.Purchase, error) {
	if id.IsEmpty() {
		return []model.Purchase{}, nil
	}
	cond, args := identityCondition(id)
	var out []model.Purchase
	err := r.newestFirst(ctx).Where(cond, args...).Find(&out).Error
	return out, err
}

func (r *purchaseRepo) ListByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	var out []model.Purchase
	err := r.newestFirst(ctx).Where("user_id = ?", userID).Find(&out).Error
	return out, err
}

func (r *purchaseRepo) LookupGuest(ctx context.Context, email, phone string) ([]model.Purchase, error) {
	id := Identity{Email: email, Phone: phone}
	if id.IsEmpty() {
		return []model.Purchase{}, nil
	}
	cond, args := identityCondition(id)
	var out []model.Purchase
	err := r.newestFirst(ctx).
		Where(cond, args...).
		Where("status = ?", model.StatusCompleted).
		Find(&out).Error
	return out, err
}

func (r *purchaseRepo) FindOwned(ctx context.Context, id Identity, presetID int64) (*model.Purchase, error) {
	if id.IsEmpty() {
		return nil, gorm.ErrRecordNotFound
	}
	cond, args := identityCondition(id)
	var p model.Purchase
	err := r.newestFirst(ctx).
		Where(cond, args...).
		Where("preset_id = ? AND status = ?", presetID, model.StatusCompleted).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *purchaseRepo) TransitionStatus(ctx context.Context, paymentID string, from []string, to string) (bool, error) {
	if to == model.StatusCompleted || len(from) == 0 {
		return false, ErrInvalidTransition
	}
	tx := r.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("payment_id = ? AND status IN ?", paymentID, from).
		Updates(map[string]any{"status": to, "download_token": nil})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
