package repo

import (
	"PresetHub/internal/model"
	"context"

	"gorm.io/gorm"
)

// PresetRepository — чтение каталога и начальное заполнение.
type PresetRepository interface {
	ListActive(ctx context.Context) ([]model.Preset, error)
	ListActiveByCategory(ctx context.Context, category string) ([]model.Preset, error)
	// GetByID возвращает пресет независимо от is_active; gorm.ErrRecordNotFound если нет.
	GetByID(ctx context.Context, id int64) (*model.Preset, error)
	Create(ctx context.Context, p *model.Preset) error
	Count(ctx context.Context) (int64, error)
}

type presetRepo struct {
	db *gorm.DB
}

// NewPresetRepository создаёт реализацию репозитория каталога.
func NewPresetRepository(db *gorm.DB) PresetRepository {
	return &presetRepo{db: db}
}

func (r *presetRepo) ListActive(ctx context.Context) ([]model.Preset, error) {
	var out []model.Preset
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	return out, err
}

func (r *presetRepo) ListActiveByCategory(ctx context.Context, category string) ([]model.Preset, error) {
	var out []model.Preset
	err := r.db.WithContext(ctx).
		Where("category = ? AND is_active = ?", category, true).
		Order("created_at DESC").Order("id DESC").
		Find(&out).Error
	return out, err
}

func (r *presetRepo) GetByID(ctx context.Context, id int64) (*model.Preset, error) {
	var p model.Preset
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *presetRepo) Create(ctx context.Context, p *model.Preset) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *presetRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Preset{}).Count(&n).Error
	return n, err
}
