package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/go-pdf/fpdf"
)

var purchaseTmpl = template.Must(template.New("purchase").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Thank you for your purchase{{if .CustomerName}}, {{.CustomerName}}{{end}}!</h2>
  <p>You bought <strong>{{.PresetTitle}}</strong> for {{.Currency}} {{.Amount}}.</p>
  <p>
    <a href="{{.DownloadURL}}" style="background:#6c5ce7;color:#fff;padding:10px 18px;border-radius:6px;text-decoration:none;">Download</a>
  </p>
  <p>The link allows {{.MaxDownloads}} downloads and expires on {{.ExpiresAt}}.</p>
  <p style="font-size:12px;color:#888;">Payment ID: {{.PaymentID}}<br>Order ID: {{.OrderID}}</p>
</body>
</html>`))

type purchaseView struct {
	CustomerName string
	PresetTitle  string
	Currency     string
	Amount       string
	DownloadURL  string
	MaxDownloads int
	ExpiresAt    string
	PaymentID    string
	OrderID      string
}

// RenderPurchaseHTML собирает HTML-тело письма. Пользовательские строки экранируются.
func RenderPurchaseHTML(msg PurchaseEmail) (string, error) {
	var buf bytes.Buffer
	err := purchaseTmpl.Execute(&buf, purchaseView{
		CustomerName: msg.CustomerName,
		PresetTitle:  msg.PresetTitle,
		Currency:     currency(msg.Currency),
		Amount:       msg.Amount.StringFixed(2),
		DownloadURL:  msg.DownloadURL,
		MaxDownloads: msg.MaxDownloads,
		ExpiresAt:    msg.ExpiresAt.UTC().Format("02 Jan 2006"),
		PaymentID:    msg.PaymentID,
		OrderID:      msg.OrderID,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderReceipt рисует одностраничную PDF-квитанцию.
func RenderReceipt(msg PurchaseEmail) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	if !msg.PurchasedAt.IsZero() {
		pdf.SetCreationDate(msg.PurchasedAt)
	}
	pdf.SetTitle("Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "PresetHub - Receipt", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	rows := [][2]string{
		{"Item", msg.PresetTitle},
		{"Amount", fmt.Sprintf("%s %s", currency(msg.Currency), msg.Amount.StringFixed(2))},
		{"Payment ID", msg.PaymentID},
		{"Order ID", msg.OrderID},
		{"Purchased", formatTime(msg.PurchasedAt)},
		{"Link expires", formatTime(msg.ExpiresAt)},
		{"Downloads allowed", fmt.Sprintf("%d", msg.MaxDownloads)},
	}
	for _, r := range rows {
		pdf.CellFormat(50, 8, r[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 8, r[1], "1", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func currency(c string) string {
	if c == "" {
		return "INR"
	}
	return c
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02 Jan 2006 15:04 UTC")
}
