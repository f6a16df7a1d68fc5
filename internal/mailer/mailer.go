// Package mailer отправляет покупателю письмо о покупке с PDF-квитанцией.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/shopspring/decimal"
)

// ErrDisabled — транспорт не настроен (нет RESEND_API_KEY).
var ErrDisabled = errors.New("email delivery is not configured")

// PurchaseEmail — данные для письма и квитанции.
type PurchaseEmail struct {
	CustomerName string
	PresetTitle  string
	Amount       decimal.Decimal
	Currency     string
	PaymentID    string
	OrderID      string
	DownloadURL  string
	MaxDownloads int
	PurchasedAt  time.Time
	ExpiresAt    time.Time
}

// Mailer — доставка письма о покупке.
type Mailer interface {
	SendPurchaseEmail(ctx context.Context, to string, msg PurchaseEmail) error
}

// Disabled — заглушка, когда доставка выключена.
type Disabled struct{}

func (Disabled) SendPurchaseEmail(context.Context, string, PurchaseEmail) error {
	return ErrDisabled
}

// sender — та часть resend.EmailsSvc, которая нам нужна.
type sender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendMailer отправляет письма через Resend API.
type ResendMailer struct {
	emails sender
	from   string
}

// NewResend создаёт отправителя. Без apiKey возвращает Disabled.
func NewResend(apiKey, from string) Mailer {
	if apiKey == "" {
		return Disabled{}
	}
	return &ResendMailer{emails: resend.NewClient(apiKey).Emails, from: from}
}

func (m *ResendMailer) SendPurchaseEmail(ctx context.Context, to string, msg PurchaseEmail) error {
	if to == "" {
		return errors.New("no recipient")
	}

	html, err := RenderPurchaseHTML(msg)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}
	receipt, err := RenderReceipt(msg)
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	_, err = m.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: fmt.Sprintf("Your purchase: %s", msg.PresetTitle),
		Html:    html,
		Attachments: []*resend.Attachment{{
			Content:  receipt,
			Filename: fmt.Sprintf("receipt-%s.pdf", msg.PaymentID),
		}},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
