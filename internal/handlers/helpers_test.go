package handlers_test

import (
	"PresetHub/internal/auth"
	"PresetHub/internal/config"
	"PresetHub/internal/gateway"
	"PresetHub/internal/handlers"
	"PresetHub/internal/mailer"
	"PresetHub/internal/model"
	"PresetHub/internal/repo"
	"PresetHub/internal/service"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec"
)

// fakeRazorpay — минимальная эмуляция Orders API шлюза.
type fakeRazorpay struct {
	mu     sync.Mutex
	seq    int
	orders map[string]gateway.Order
	down   bool
}

func (f *fakeRazorpay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":"SERVER_ERROR","description":"maintenance"}}`))
		return
	}
	if _, secret, ok := r.BasicAuth(); !ok || secret != testKeySecret {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/orders":
		var req gateway.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.seq++
		o := gateway.Order{
			ID:       fmt.Sprintf("order_%d", f.seq),
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
			Notes:    req.Notes,
		}
		f.orders[o.ID] = o
		_ = json.NewEncoder(w).Encode(o)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/orders/"):
		o, ok := f.orders[strings.TrimPrefix(r.URL.Path, "/v1/orders/")]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"order not found"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(o)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRazorpay) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

// recordingMailer запоминает адресатов писем
type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) SendPurchaseEmail(_ context.Context, to string, _ mailer.PurchaseEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *recordingMailer) recipients() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type passthroughResolver struct{}

func (passthroughResolver) Resolve(_ context.Context, location string) (string, error) {
	return location, nil
}

// flakyRevocations — список в памяти, который по команде отказывает как упавший Redis.
type flakyRevocations struct {
	*auth.MemoryRevocationList
	mu   sync.Mutex
	down bool
}

func (f *flakyRevocations) setDown(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = v
}

func (f *flakyRevocations) Revoke(ctx context.Context, token string, until time.Time) error {
	f.mu.Lock()
	down := f.down
	f.mu.Unlock()
	if down {
		return errors.New("dial tcp: connection refused")
	}
	return f.MemoryRevocationList.Revoke(ctx, token, until)
}

type testEnv struct {
	db      *gorm.DB
	router  http.Handler
	gateway *fakeRazorpay
	mail    *recordingMailer
	revoked *flakyRevocations
	cfg     *config.Config
}

func defaultConfig() *config.Config {
	return &config.Config{
		AppEnv:            "development",
		ServerURL:         "http://localhost:8081",
		RateLimitAPI:      1000,
		RateLimitPayment:  100,
		RateLimitDownload: 100,
	}
}

func newEnv(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := defaultConfig()
	for _, fn := range tweak {
		fn(cfg)
	}

	db, err := repo.InitDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	rzp := &fakeRazorpay{orders: map[string]gateway.Order{}}
	srv := httptest.NewServer(rzp)
	t.Cleanup(srv.Close)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:       srv.URL,
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Timeout:       2 * time.Second,
	})
	mail := &recordingMailer{}

	users := repo.NewUserRepository(db)
	presets := repo.NewPresetRepository(db)
	store := service.NewEntitlementStore(presets, repo.NewPurchaseRepository(db), service.Policy{})

	svc := handlers.Services{
		Users:     service.NewUserService(users),
		Presets:   service.NewPresetService(presets),
		Payments:  service.NewPaymentService(store, users, gw, mail, service.PaymentOptions{PublicURL: cfg.ServerURL, MailTimeout: 2 * time.Second}, nil),
		Purchases: service.NewPurchaseService(store, users),
		Downloads: service.NewDownloadService(store, passthroughResolver{}, nil),
	}
	revoked := &flakyRevocations{MemoryRevocationList: auth.NewMemoryRevocationList()}
	tokens := auth.NewManager("test-secret", time.Hour, revoked)
	h := handlers.NewHandler(svc, tokens, nil, cfg)

	return &testEnv{db: db, router: h.Router, gateway: rzp, mail: mail, revoked: revoked, cfg: cfg}
}

func (e *testEnv) seedPreset(t *testing.T, id, price int64, category string) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.Preset{
		ID:        id,
		Title:     fmt.Sprintf("Preset %d", id),
		Category:  category,
		Price:     decimal.NewFromInt(price),
		FilePath:  fmt.Sprintf("https://drive.example.com/preset-%d.zip", id),
		FileSize:  "15 MB",
		Thumbnail: "https://img.example.com/t.jpg",
		IsActive:  true,
	}).Error)
}

// do выполняет запрос к роутеру; body сериализуется в JSON, если это не []byte.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func message(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rr)["message"].(string)
}

func sign(orderID, paymentID string) string {
	return gateway.Sign(testKeySecret, []byte(orderID+"|"+paymentID))
}

// register регистрирует пользователя и возвращает токен
func (e *testEnv) register(t *testing.T, username, email string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "email": email, "password": "secret1",
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[map[string]any](t, rr)["token"].(string)
}

type orderResp struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

type verifyResp struct {
	Success    bool    `json:"success"`
	Message    string  `json:"message"`
	EmailSent  bool    `json:"emailSent"`
	EmailError *string `json:"emailError"`
	Purchase   struct {
		ID            int64     `json:"id"`
		DownloadToken string    `json:"download_token"`
		DownloadURL   string    `json:"download_url"`
		ExpiresAt     time.Time `json:"expires_at"`
		PresetTitle   string    `json:"preset_title"`
	} `json:"purchase"`
}

// buy проходит checkout целиком и возвращает ответ verify
func (e *testEnv) buy(t *testing.T, presetID int64, guestEmail, token, paymentID string) verifyResp {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/payment/create-order", map[string]any{
		"presetId": presetID, "guestEmail": guestEmail,
	}, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	order := decode[orderResp](t, rr)

	rr = e.do(t, http.MethodPost, "/api/payment/verify", map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": paymentID,
		"razorpay_signature":  sign(order.OrderID, paymentID),
	}, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[verifyResp](t, rr)
}
