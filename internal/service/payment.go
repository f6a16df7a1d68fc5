package service

import (
	"PresetHub/internal/gateway"
	"PresetHub/internal/mailer"
	"PresetHub/internal/model"
	"PresetHub/internal/repo"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Ключи notes заказа, через которые личность покупателя переживает редирект в checkout.
const (
	noteGuestPhone = "guestPhone"
	notePresetID   = "presetId"
	noteUserID     = "userId"
	noteGuestEmail = "guestEmail"
)

// Вебхук-события, меняющие статус покупки.
const (
	EventRefundProcessed = "refund.processed"
	EventPaymentFailed   = "payment.failed"
)

const defaultMailTimeout = 15 * time.Second

// EmailFailedMessage — предупреждение, если письмо не ушло.
const EmailFailedMessage = "Failed to send email. Please contact support."

// PaymentGateway — то, что движку нужно от платёжного шлюза.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*gateway.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	KeyID() string
}

// OrderResult — ответ на create-order.
type OrderResult struct {
	OrderID     string
	AmountMinor int64
	Amount      string
	Currency    string
	KeyID       string
	PresetID    int64
	PresetTitle string
}

// Callback — поля, которые checkout возвращает после оплаты.
type Callback struct {
	OrderID   string
	PaymentID string
	Signature string
}

// VerifyResult — итог проверки платежа.
type VerifyResult struct {
	Purchase  *model.Purchase
	Created   bool
	EmailSent bool
	// EmailError — предупреждение; сама выдача прав при этом успешна.
	EmailError string
}

// PaymentOptions — настройки движка платежей.
type PaymentOptions struct {
	// PublicURL — внешний адрес API, из него строится ссылка в письме.
	PublicURL   string
	MailTimeout time.Duration
}

// PaymentService — движок проверки платежей.
type PaymentService struct {
	store  *EntitlementStore
	users  repo.UserRepository
	gw     PaymentGateway
	mail   mailer.Mailer
	opts   PaymentOptions
	logger *zap.SugaredLogger
}

// NewPaymentService собирает движок. При mail == nil доставка писем отключена.
func NewPaymentService(store *EntitlementStore, users repo.UserRepository, gw PaymentGateway, mail mailer.Mailer, opts PaymentOptions, logger *zap.SugaredLogger) *PaymentService {
	if mail == nil {
		mail = mailer.Disabled{}
	}
	if opts.MailTimeout <= 0 {
		opts.MailTimeout = defaultMailTimeout
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PaymentService{store: store, users: users, gw: gw, mail: mail, opts: opts, logger: logger}
}

// CreateOrder открывает заказ на сумму из каталога. Цена клиента не участвует вовсе.
func (s *PaymentService) CreateOrder(ctx context.Context, presetID int64, buyer BuyerIdentity) (*OrderResult, error) {
	buyer = buyer.Normalize()
	quote, err := s.store.CreatePendingOrder(ctx, presetID, buyer)
	if err != nil {
		return nil, err
	}

	notes := map[string]string{notePresetID: strconv.FormatInt(quote.PresetID, 10)}
	if buyer.UserID != nil {
		notes[noteUserID] = strconv.FormatInt(*buyer.UserID, 10)
	}
	if buyer.Email != "" {
		notes[noteGuestEmail] = buyer.Email
	}
	if buyer.Phone != "" {
		notes[noteGuestPhone] = buyer.Phone
	}

	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   quote.AmountMinor,
		Currency: quote.Currency,
		Receipt:  quote.Receipt,
		Notes:    notes,
	})
	if err != nil {
		s.logger.Errorw("gateway create order failed", "preset_id", presetID, "error", err)
		e := upstreamError("Failed to create order", err)
		e.Retryable = gateway.IsRetryable(err)
		return nil, e
	}

	currency := order.Currency
	if currency == "" {
		currency = quote.Currency
	}
	return &OrderResult{
		OrderID:     order.ID,
		AmountMinor: order.Amount,
		Amount:      quote.Amount.StringFixed(2),
		Currency:    currency,
		KeyID:       s.gw.KeyID(),
		PresetID:    quote.PresetID,
		PresetTitle: quote.Title,
	}, nil
}

// VerifyCallback проверяет подпись callback'а и выдаёт право на скачивание.
// При неверной подписи ничего не пишется. Повтор того же платежа возвращает ту же покупку.
// Покупатель берётся только из notes заказа на стороне шлюза, не из запроса.
func (s *PaymentService) VerifyCallback(ctx context.Context, cb Callback) (*VerifyResult, error) {
	if cb.OrderID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return nil, ErrMissingCallback
	}
	if !s.gw.VerifyPaymentSignature(cb.OrderID, cb.PaymentID, cb.Signature) {
		s.logger.Warnw("payment signature mismatch", "order_id", cb.OrderID, "payment_id", cb.PaymentID)
		return nil, ErrInvalidSignature
	}

	order, err := s.gw.FetchOrder(ctx, cb.OrderID)
	if err != nil {
		s.logger.Errorw("gateway fetch order failed", "order_id", cb.OrderID, "error", err)
		e := upstreamError("Payment verification failed", err)
		e.Retryable = gateway.IsRetryable(err)
		return nil, e
	}

	presetID, err := strconv.ParseInt(order.Notes[notePresetID], 10, 64)
	if err != nil {
		return nil, newError(ErrValidation, "Order is not linked to a preset")
	}

	buyer := buyerFromNotes(order.Notes)

	purchase, created, err := s.store.FinalizeEntitlement(ctx, OrderRef{
		OrderID:  order.ID,
		PresetID: presetID,
		Amount:   FromMinorUnits(order.Amount),
	}, cb.PaymentID, buyer)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{Purchase: purchase, Created: created}
	if !created {
		s.logger.Infow("payment already finalized", "payment_id", cb.PaymentID, "purchase_id", purchase.ID)
		return res, nil
	}
	s.logger.Infow("entitlement granted", "payment_id", cb.PaymentID, "purchase_id", purchase.ID, "preset_id", presetID)

	to, name := s.recipient(ctx, purchase)
	if to == "" {
		return res, nil
	}
	if err := s.notify(ctx, to, s.purchaseEmail(purchase, name)); err != nil {
		s.logger.Warnw("purchase email not delivered", "purchase_id", purchase.ID, "error", err)
		res.EmailError = EmailFailedMessage
		return res, nil
	}
	res.EmailSent = true
	return res, nil
}

func buyerFromNotes(notes gateway.Notes) BuyerIdentity {
	buyer := BuyerIdentity{
		Email: notes[noteGuestEmail],
		Phone: notes[noteGuestPhone],
	}
	if uid, err := strconv.ParseInt(notes[noteUserID], 10, 64); err == nil && uid > 0 {
		buyer.UserID = &uid
	}
	return buyer
}

// DownloadURL — публичная ссылка на скачивание по токену.
func (s *PaymentService) DownloadURL(token string) string {
	return s.opts.PublicURL + "/api/download/" + token
}

// recipient — email зарегистрированного пользователя, иначе гостевой.
func (s *PaymentService) recipient(ctx context.Context, p *model.Purchase) (email, name string) {
	if p.UserID != nil && s.users != nil {
		u, err := s.users.GetUserByID(ctx, *p.UserID)
		if err == nil && u.Email != "" {
			return u.Email, u.Username
		}
	}
	if p.GuestEmail != nil {
		return *p.GuestEmail, ""
	}
	return "", ""
}

func (s *PaymentService) purchaseEmail(p *model.Purchase, name string) mailer.PurchaseEmail {
	msg := mailer.PurchaseEmail{
		CustomerName: name,
		Amount:       p.Amount,
		Currency:     Currency,
		DownloadURL:  s.DownloadURL(p.TokenValue()),
		MaxDownloads: p.MaxDownloads,
		PurchasedAt:  p.CreatedAt,
		ExpiresAt:    p.ExpiresAt,
	}
	if p.PaymentID != nil {
		msg.PaymentID = *p.PaymentID
	}
	if p.OrderID != nil {
		msg.OrderID = *p.OrderID
	}
	if p.Preset != nil {
		msg.PresetTitle = p.Preset.Title
	}
	return msg
}

// notify отправляет письмо в отдельной горутине. Отмена запроса её не прерывает,
// ограничение только по MailTimeout.
func (s *PaymentService) notify(ctx context.Context, to string, msg mailer.PurchaseEmail) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.MailTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.mail.SendPurchaseEmail(ctx, to, msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("send purchase email: %w", ctx.Err())
	}
}

// History — покупки, привязанные к аккаунту.
func (s *PaymentService) History(ctx context.Context, userID int64) ([]model.Purchase, error) {
	return s.store.ListByUser(ctx, userID)
}

// WebhookResult — что сделал вебхук.
type WebhookResult struct {
	Event     string
	PaymentID string
	Applied   bool
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// HandleWebhook применяет асинхронные события шлюза: возврат и неуспешный платёж.
// Неизвестные события подтверждаются и игнорируются.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !s.gw.VerifyWebhookSignature(body, signature) {
		s.logger.Warnw("webhook signature mismatch")
		return nil, newError(ErrSignatureInvalid, "Invalid webhook signature")
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, newError(ErrValidation, "Malformed webhook payload")
	}

	res := &WebhookResult{Event: env.Event}
	var (
		from []string
		to   string
	)
	switch env.Event {
	case EventRefundProcessed:
		res.PaymentID = env.Payload.Refund.Entity.PaymentID
		if res.PaymentID == "" {
			res.PaymentID = env.Payload.Payment.Entity.ID
		}
		from, to = []string{model.StatusCompleted}, model.StatusRefunded
	case EventPaymentFailed:
		res.PaymentID = env.Payload.Payment.Entity.ID
		from, to = []string{model.StatusPending, model.StatusCompleted}, model.StatusFailed
	default:
		s.logger.Debugw("webhook event ignored", "event", env.Event)
		return res, nil
	}
	if res.PaymentID == "" {
		return nil, newError(ErrValidation, "Webhook payload has no payment id")
	}

	applied, err := s.store.Transition(ctx, res.PaymentID, from, to)
	if err != nil {
		if errors.Is(err, repo.ErrInvalidTransition) {
			return nil, newError(ErrValidation, "Invalid status transition")
		}
		return nil, err
	}
	res.Applied = applied
	s.logger.Infow("webhook applied", "event", env.Event, "payment_id", res.PaymentID, "applied", applied)
	return res, nil
}
