package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MemoryRevocationList — deny-list в памяти процесса.
// Не разделяется между экземплярами: logout на одном инстансе не виден другому.
type MemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, token string, until time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[tokenKey(token)] = until
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.entries[tokenKey(token)]
	if !ok {
		return false, nil
	}
	return l.now().Before(until), nil
}

// Purge удаляет записи, у которых истёк срок. Возвращает число удалённых.
func (l *MemoryRevocationList) Purge() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, until := range l.entries {
		if !now.Before(until) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

// Len — размер списка.
func (l *MemoryRevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Run периодически чистит список, пока жив ctx.
func (l *MemoryRevocationList) Run(ctx context.Context, interval time.Duration, logger *zap.SugaredLogger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Purge(); n > 0 && logger != nil {
				logger.Debugw("revocation list purged", "removed", n)
			}
		}
	}
}

const revokedPrefix = "auth:revoked:"

// RedisRevocationList — общий для всех инстансов deny-list с TTL-ключами.
type RedisRevocationList struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client, now: time.Now}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, token string, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, revokedPrefix+tokenKey(token), "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, revokedPrefix+tokenKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Connect открывает клиент Redis по URL (redis://...) или адресу host:port и проверяет связь.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
