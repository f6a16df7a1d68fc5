package handlers_test

import (
	"PresetHub/internal/config"
	"PresetHub/internal/gateway"
	"PresetHub/internal/model"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countPurchases(t *testing.T, e *testEnv) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Purchase{}).Count(&n).Error)
	return n
}

// Гость покупает пресет 7 за 299 и скачивает его по ссылке из ответа.
func TestGuestCheckoutScenario(t *testing.T) {
	e := newEnv(t)
	e.seedPreset(t, 7, 299, model.CategoryVideo)

	// цена от клиента игнорируется
	rr := e.do(t, http.MethodPost, "/api/payment/create-order", map[string]any{
		"presetId": "7", "guestEmail": "b@y.com", "amount": 1,
	}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	order := decode[orderResp](t, rr)
	assert.Equal(t, int64(29900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "rzp_test_key", order.KeyID)

	// подделанная подпись: 400 и ни одной записи
	rr = e.do(t, http.MethodPost, "/api/payment/verify", map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_123",
		"razorpay_signature":  sign(order.OrderID, "pay_124"),
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid payment signature", message(t, rr))
	assert.Equal(t, int64(0), countPurchases(t, e))

	body := map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_123",
		"razorpay_signature":  sign(order.OrderID, "pay_123"),
	}
	rr = e.do(t, http.MethodPost, "/api/payment/verify", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[verifyResp](t, rr)
	assert.True(t, first.Success)
	assert.True(t, first.EmailSent)
	assert.Nil(t, first.EmailError)
	assert.Equal(t, "Payment successful! Check your email for download link.", first.Message)
	assert.Equal(t, "Preset 7", first.Purchase.PresetTitle)
	assert.Len(t, first.Purchase.DownloadToken, 64)
	assert.Equal(t, "http://localhost:8081/api/download/"+first.Purchase.DownloadToken, first.Purchase.DownloadURL)
	assert.Equal(t, []string{"b@y.com"}, e.mail.recipients())

	// повторная проверка того же платежа: та же покупка, письмо не дублируется
	rr = e.do(t, http.MethodPost, "/api/payment/verify", body, "")
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[verifyResp](t, rr)
	assert.Equal(t, first.Purchase.ID, second.Purchase.ID)
	assert.Equal(t, first.Purchase.DownloadToken, second.Purchase.DownloadToken)
	assert.Equal(t, "Payment already verified. Use the download link below.", second.Message)
	assert.Equal(t, int64(1), countPurchases(t, e))
	assert.Len(t, e.mail.recipients(), 1)

	// пять скачиваний, шестое отклоняется
	path := "/api/download/" + first.Purchase.DownloadToken
	for i := 0; i < 5; i++ {
		rr = e.do(t, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusFound, rr.Code, "download %d: %s", i+1, rr.Body.String())
		assert.Equal(t, "https://drive.example.com/preset-7.zip", rr.Header().Get("Location"))
	}
	rr = e.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusGone, rr.Code)
	assert.Equal(t, "Maximum downloads reached. Please contact support.", message(t, rr))

	rr = e.do(t, http.MethodGet, path+"/info", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	info := decode[map[string]any](t, rr)
	assert.Equal(t, float64(5), info["downloadsUsed"])
	assert.Equal(t, float64(0), info["downloadsRemaining"])
	assert.Equal(t, false, info["isExpired"])
	assert.Equal(t, "15 MB", info["fileSize"])

	// гостевой поиск по email
	rr = e.do(t, http.MethodGet, "/api/user/lookup?email=B@Y.com", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rows := decode[[]map[string]any](t, rr)
	require.Len(t, rows, 1)
	assert.Equal(t, "pay_123", rows[0]["payment_id"])
	assert.Equal(t, "Preset 7", rows[0]["preset_title"])

	rr = e.do(t, http.MethodGet, "/api/user/lookup", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email or phone required", message(t, rr))
}

func TestCreateOrder_Validation(t *testing.T) {
	e := newEnv(t)
	e.seedPreset(t, 7, 299, model.CategoryVideo)

	cases := []struct {
		name   string
		body   map[string]any
		status int
		msg    string
	}{
		{"no preset", map[string]any{"guestEmail": "b@y.com"}, http.StatusBadRequest, "Preset id is required"},
		{"bad email", map[string]any{"presetId": 7, "guestEmail": "nope"}, http.StatusBadRequest, "Invalid email format"},
		{"no identity", map[string]any{"presetId": 7}, http.StatusBadRequest, "Email or phone required for guest checkout"},
		{"unknown preset", map[string]any{"presetId": 99, "guestEmail": "b@y.com"}, http.StatusNotFound, "Preset not found or unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, "/api/payment/create-order", tc.body, "")
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Equal(t, tc.msg, message(t, rr))
		})
	}

	rr := e.do(t, http.MethodPost, "/api/payment/verify", map[string]string{"razorpay_order_id": "order_1"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateOrder_GatewayUnavailable(t *testing.T) {
	e := newEnv(t)
	e.seedPreset(t, 7, 299, model.CategoryVideo)
	e.gateway.setDown(true)

	rr := e.do(t, http.MethodPost, "/api/payment/create-order", map[string]any{"presetId": 7, "guestEmail": "b@y.com"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))
	assert.Equal(t, "Failed to create order", message(t, rr))
}

func TestVerify_EmailFailureIsWarning(t *testing.T) {
	e := newEnv(t)
	e.seedPreset(t, 7, 299, model.CategoryVideo)
	e.mail.err = errors.New("smtp down")

	res := e.buy(t, 7, "b@y.com", "", "pay_1")
	assert.True(t, res.Success)
	assert.False(t, res.EmailSent)
	require.NotNil(t, res.EmailError)
	assert.Equal(t, "Failed to send email. Please contact support.", *res.EmailError)
	assert.Equal(t, "Payment successful! But email delivery failed. Use the download link below.", res.Message)
	assert.NotEmpty(t, res.Purchase.DownloadToken)
}

func TestWebhook_Refund(t *testing.T) {
	e := newEnv(t)
	e.seedPreset(t, 7, 299, model.CategoryVideo)
	res := e.buy(t, 7, "b@y.com", "", "pay_9")

	body := []byte(fmt.Sprintf(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":%q}}}}`, "pay_9"))

	rr := e.do(t, http.MethodPost, "/api/payment/webhook", body, "", "X-Razorpay-Signature", "bad")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/payment/webhook", body, "", "X-Razorpay-Signature", gateway.Sign(testWebhookSecret, body))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode[map[string]any](t, rr)
	assert.Equal(t, "refund.processed", out["event"])
	assert.Equal(t, true, out["applied"])

	// токен возвращённой покупки больше не действует
	rr = e.do(t, http.MethodGet, "/api/download/"+res.Purchase.DownloadToken, nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// неизвестные события подтверждаются
	ping := []byte(`{"event":"order.paid","payload":{}}`)
	rr = e.do(t, http.MethodPost, "/api/payment/webhook", ping, "", "X-Razorpay-Signature", gateway.Sign(testWebhookSecret, ping))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode[map[string]any](t, rr)["applied"])
}

func TestPaymentRateLimit(t *testing.T) {
	e := newEnv(t, func(c *config.Config) { c.RateLimitPayment = 2 })
	e.seedPreset(t, 7, 299, model.CategoryVideo)

	body := map[string]any{"presetId": 7, "guestEmail": "b@y.com"}
	for i := 0; i < 2; i++ {
		rr := e.do(t, http.MethodPost, "/api/payment/create-order", body, "")
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := e.do(t, http.MethodPost, "/api/payment/create-order", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "Too many payment attempts, please try again later", message(t, rr))

	// общий лимит не затронут
	rr = e.do(t, http.MethodGet, "/api/presets", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDownload_UnknownToken(t *testing.T) {
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/api/download/deadbeef", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Invalid download token", message(t, rr))

	rr = e.do(t, http.MethodGet, "/api/download/deadbeef/info", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// Владелец покупки определяется заказом, а не токеном того, кто прислал callback.
func TestVerify_OwnerFromOrder(t *testing.T) {
	e := newEnv(t)
	e.seedPreset(t, 7, 299, model.CategoryVideo)
	alice := e.register(t, "alice", "alice@x.com")
	bob := e.register(t, "bob", "bob@x.com")

	rr := e.do(t, http.MethodPost, "/api/payment/create-order", map[string]any{"presetId": 7}, alice)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	order := decode[orderResp](t, rr)

	rr = e.do(t, http.MethodPost, "/api/payment/verify", map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_a",
		"razorpay_signature":  sign(order.OrderID, "pay_a"),
	}, bob)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"alice@x.com"}, e.mail.recipients())

	rr = e.do(t, http.MethodGet, "/api/user/owns/7", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode[map[string]any](t, rr)["owns"])

	rr = e.do(t, http.MethodGet, "/api/user/owns/7", nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode[map[string]any](t, rr)["owns"])
}

func TestVerify_ReplayAfterRefund(t *testing.T) {
	e := newEnv(t)
	e.seedPreset(t, 7, 299, model.CategoryVideo)

	rr := e.do(t, http.MethodPost, "/api/payment/create-order", map[string]any{"presetId": 7, "guestEmail": "b@y.com"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	order := decode[orderResp](t, rr)
	callback := map[string]string{
		"razorpay_order_id":   order.OrderID,
		"razorpay_payment_id": "pay_r",
		"razorpay_signature":  sign(order.OrderID, "pay_r"),
	}
	rr = e.do(t, http.MethodPost, "/api/payment/verify", callback, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	refund := []byte(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":"pay_r"}}}}`)
	rr = e.do(t, http.MethodPost, "/api/payment/webhook", refund, "", "X-Razorpay-Signature", gateway.Sign(testWebhookSecret, refund))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodPost, "/api/payment/verify", callback, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	out := decode[map[string]any](t, rr)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Payment was refunded. The download link is no longer available.", out["message"])
	purchase := out["purchase"].(map[string]any)
	assert.NotContains(t, purchase, "download_token")
	assert.NotContains(t, purchase, "download_url")
}
