package service

import (
	"PresetHub/internal/gateway"
	"PresetHub/internal/mailer"
	"PresetHub/internal/model"
	"PresetHub/internal/repo"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

func init() {
	// полный cost 12 делает тесты заметно медленнее
	bcryptCost = bcrypt.MinCost
}

const testKeySecret = "test_key_secret"

// newTestDB — отдельная in-memory SQLite на тест
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.Migrate(db))
	return db
}

// seedPreset создаёт пресет с заданным id и ценой
func seedPreset(t *testing.T, db *gorm.DB, id int64, price int64, active bool) *model.Preset {
	t.Helper()
	p := &model.Preset{
		ID:        id,
		Title:     fmt.Sprintf("Preset %d", id),
		Category:  model.CategoryPhoto,
		Price:     decimal.NewFromInt(price),
		FilePath:  fmt.Sprintf("https://drive.example.com/preset-%d.zip", id),
		FileSize:  "15 MB",
		Thumbnail: "https://img.example.com/t.jpg",
		IsActive:  active,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func countPurchases(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Purchase{}).Count(&n).Error)
	return n
}

// fakeGateway — шлюз в памяти с настоящей HMAC-проверкой.
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	orders    map[string]*gateway.Order
	createErr error
	fetchErr  error
	requests  []gateway.OrderRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: make(map[string]*gateway.Order)}
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.requests = append(g.requests, req)
	g.seq++
	o := &gateway.Order{
		ID:       fmt.Sprintf("order_%d", g.seq),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
		Notes:    gateway.Notes(req.Notes),
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderID string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	o, ok := g.orders[orderID]
	if !ok {
		return nil, &gateway.APIError{StatusCode: 400, Code: "BAD_REQUEST_ERROR"}
	}
	return o, nil
}

func (g *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return gateway.Verify(testKeySecret, []byte(orderID+"|"+paymentID), signature)
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return gateway.Verify("whsec", body, signature)
}

func (g *fakeGateway) KeyID() string { return "rzp_test" }

func sign(orderID, paymentID string) string {
	return gateway.Sign(testKeySecret, []byte(orderID+"|"+paymentID))
}

// mockMailer — testify-мок доставки писем
type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendPurchaseEmail(ctx context.Context, to string, msg mailer.PurchaseEmail) error {
	return m.Called(ctx, to, msg).Error(0)
}

// passthroughResolver отдаёт адрес без изменений
type passthroughResolver struct{}

func (passthroughResolver) Resolve(_ context.Context, location string) (string, error) {
	return location, nil
}

type fixture struct {
	db       *gorm.DB
	store    *EntitlementStore
	gw       *fakeGateway
	mail     *mockMailer
	payments *PaymentService
	download *DownloadService
	users    repo.UserRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	users := repo.NewUserRepository(db)
	store := NewEntitlementStore(repo.NewPresetRepository(db), repo.NewPurchaseRepository(db), Policy{})
	gw := newFakeGateway()
	mail := new(mockMailer)
	return &fixture{
		db:       db,
		store:    store,
		gw:       gw,
		mail:     mail,
		users:    users,
		payments: NewPaymentService(store, users, gw, mail, PaymentOptions{PublicURL: "http://localhost:8081/", MailTimeout: 200 * time.Millisecond}, nil),
		download: NewDownloadService(store, passthroughResolver{}, nil),
	}
}

func int64Ptr(v int64) *int64 { return &v }
