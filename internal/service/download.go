package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AssetResolver превращает адрес файла в URL для редиректа.
type AssetResolver interface {
	Resolve(ctx context.Context, location string) (string, error)
}

// DownloadInfo — состояние ссылки без расхода скачивания.
type DownloadInfo struct {
	Title              string
	Thumbnail          string
	FileSize           string
	DownloadsUsed      int
	MaxDownloads       int
	DownloadsRemaining int
	ExpiresAt          time.Time
	IsExpired          bool
	PurchasedAt        time.Time
}

// DownloadService — шлюз скачивания по токену.
type DownloadService struct {
	store    *EntitlementStore
	resolver AssetResolver
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewDownloadService(store *EntitlementStore, resolver AssetResolver, logger *zap.SugaredLogger) *DownloadService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DownloadService{
		store:    store,
		resolver: resolver,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve расходует одно скачивание и возвращает адрес файла.
// Порядок проверок: токен, срок, квота. Истёкшая ссылка не тратит квоту.
func (s *DownloadService) Resolve(ctx context.Context, token string) (string, error) {
	p, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return "", err
	}
	if p.IsExpired(s.now()) {
		return "", ErrLinkExpired
	}
	if p.Preset == nil {
		return "", ErrPresetNotFound
	}

	// адрес получаем до списания, чтобы сбой хранилища не сжигал попытку
	location, err := s.resolver.Resolve(ctx, p.Preset.FilePath)
	if err != nil {
		s.logger.Errorw("asset location not resolved", "purchase_id", p.ID, "error", err)
		return "", upstreamError("Download failed", err)
	}

	applied, err := s.store.IncrementDownload(ctx, p.ID)
	if err != nil {
		return "", err
	}
	if !applied {
		return "", ErrDownloadsLimit
	}
	s.logger.Infow("download granted", "purchase_id", p.ID, "used", p.DownloadCount+1, "max", p.MaxDownloads)
	return location, nil
}

// Info — только чтение, счётчик не меняется.
func (s *DownloadService) Info(ctx context.Context, token string) (*DownloadInfo, error) {
	p, err := s.store.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	info := &DownloadInfo{
		DownloadsUsed:      p.DownloadCount,
		MaxDownloads:       p.MaxDownloads,
		DownloadsRemaining: p.DownloadsRemaining(),
		ExpiresAt:          p.ExpiresAt,
		IsExpired:          p.IsExpired(s.now()),
		PurchasedAt:        p.CreatedAt,
	}
	if p.Preset != nil {
		info.Title = p.Preset.Title
		info.Thumbnail = p.Preset.Thumbnail
		info.FileSize = p.Preset.FileSize
	}
	return info, nil
}
