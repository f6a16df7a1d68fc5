package repo

import (
	"PresetHub/internal/model"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// newTestDB инициализирует отдельную in-memory SQLite (modernc.org/sqlite) на каждый тест
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	dial := gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	db, err := gorm.Open(dial, &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	if err != nil {
		t.Fatalf("failed to open sqlite (modernc): %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("failed to automigrate: %v", err)
	}
	return db
}

// mkPreset создаёт активный пресет с указанной ценой
func mkPreset(t *testing.T, db *gorm.DB, title string, price int64) *model.Preset {
	t.Helper()
	p := &model.Preset{
		Title:    title,
		Category: model.CategoryPhoto,
		Price:    decimal.NewFromInt(price),
		FilePath: "https://drive.example.com/" + title,
		IsActive: true,
	}
	if err := NewPresetRepository(db).Create(context.Background(), p); err != nil {
		t.Fatalf("create preset: %v", err)
	}
	return p
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }
