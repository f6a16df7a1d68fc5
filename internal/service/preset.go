package service

import (
	"PresetHub/internal/model"
	"PresetHub/internal/repo"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PresetService — каталог, только чтение.
type PresetService struct {
	repo repo.PresetRepository
}

func NewPresetService(r repo.PresetRepository) *PresetService {
	return &PresetService{repo: r}
}

// List — активные пресеты, новые первыми.
func (s *PresetService) List(ctx context.Context) ([]model.Preset, error) {
	list, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return list, nil
}

// Get — пресет по id.
func (s *PresetService) Get(ctx context.Context, id int64) (*model.Preset, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPresetNotFound
		}
		return nil, fmt.Errorf("get preset: %w", err)
	}
	return p, nil
}

// ListByCategory — активные пресеты одной категории.
func (s *PresetService) ListByCategory(ctx context.Context, category string) ([]model.Preset, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	if !model.IsValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	list, err := s.repo.ListActiveByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list presets by category: %w", err)
	}
	return list, nil
}

// SamplePresets — демонстрационный каталог для пустой базы.
func SamplePresets() []model.Preset {
	sample := func(title, desc, category string, price, original int64, image, file, size string) model.Preset {
		return model.Preset{
			Title:         title,
			Description:   desc,
			Category:      category,
			Price:         decimal.NewFromInt(price),
			OriginalPrice: decimal.NewNullDecimal(decimal.NewFromInt(original)),
			PreviewImage:  image,
			FilePath:      file,
			FileSize:      size,
			Thumbnail:     image,
			IsActive:      true,
		}
	}
	return []model.Preset{
		sample("Cinematic LUT Pack Pro", "Professional color grading LUTs for filmmakers.", model.CategoryVideo, 499, 999,
			"https://images.unsplash.com/photo-1536240478700-b869070f9279?w=400", "/assets/presets/cinematic-luts.zip", "25 MB"),
		sample("Portrait Lightroom Bundle", "Beautiful presets for portrait photography.", model.CategoryPhoto, 299, 599,
			"https://images.unsplash.com/photo-1494790108377-be9c29b29330?w=400", "/assets/presets/portrait-presets.zip", "15 MB"),
		sample("Lo-Fi Music Producer Kit", "Chill beats and ambient sounds.", model.CategoryAudio, 199, 399,
			"https://images.unsplash.com/photo-1493225457124-a3eb161ffa5f?w=400", "/assets/presets/lofi-pack.zip", "120 MB"),
	}
}

// Seed заполняет каталог образцами, если он пуст. Возвращает число добавленных.
func (s *PresetService) Seed(ctx context.Context, presets []model.Preset) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count presets: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i := range presets {
		if err := s.repo.Create(ctx, &presets[i]); err != nil {
			return i, fmt.Errorf("seed preset %q: %w", presets[i].Title, err)
		}
	}
	return len(presets), nil
}
