// Package mailer delivers invoice emails through Mailjet. Outside of
// production mode it only logs what would have been sent.
package mailer

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/mailjet/mailjet-apiv3-go"

	"github.com/fakturnik/fakturnik/model"
)

// Mailer implements model.EmailSender.
type Mailer struct {
	Config *model.Config
	Logger *slog.Logger
}

func New(cfg *model.Config, logger *slog.Logger) *Mailer {
	return &Mailer{Config: cfg, Logger: logger}
}

func invoiceSubject(inv *model.Invoice) string {
	return fmt.Sprintf("Faktura %s", inv.Number)
}

func invoiceBody(inv *model.Invoice) string {
	return fmt.Sprintf(
		"Dzień dobry,\n\nw załączeniu przesyłamy fakturę %s na kwotę %s %s.\nTermin płatności: %s.\n\nPozdrawiamy,\n%s\n",
		inv.Number,
		inv.TotalGross.StringFixed(2),
		inv.Currency,
		inv.DueDate.Format("02.01.2006"),
		inv.SellerCompanyName,
	)
}

// Send emails the invoice with its rendered document attached. The
// attachment is skipped when no document has been generated yet.
func (m *Mailer) Send(inv *model.Invoice, recipient string) error {
	subject := invoiceSubject(inv)
	body := invoiceBody(inv)

	if m.Config.Mode != "production" {
		m.Logger.Info("development mode, not sending email",
			"to", recipient, "subject", subject, "document", inv.DocumentPath)
		return nil
	}

	msg := mailjet.InfoMessagesV31{
		From: &mailjet.RecipientV31{
			Email: m.Config.MailFrom,
			Name:  inv.SellerCompanyName,
		},
		To: &mailjet.RecipientsV31{
			mailjet.RecipientV31{
				Email: recipient,
			},
		},
		Subject:  subject,
		TextPart: body,
	}

	if inv.DocumentPath != "" {
		att, err := attachmentFor(inv)
		if err != nil {
			return err
		}
		msg.Attachments = &mailjet.AttachmentsV31{*att}
	}

	mj := mailjet.NewMailjetClient(m.Config.MailAPIKey, m.Config.MailSecret)
	messages := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{msg}}
	if _, err := mj.SendMailV31(&messages); err != nil {
		return fmt.Errorf("mailjet send: %w", err)
	}
	return nil
}

func attachmentFor(inv *model.Invoice) (*mailjet.AttachmentV31, error) {
	data, err := os.ReadFile(inv.DocumentPath)
	if err != nil {
		return nil, fmt.Errorf("read invoice document: %w", err)
	}
	ext := filepath.Ext(inv.DocumentPath)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &mailjet.AttachmentV31{
		ContentType:   contentType,
		Filename:      "faktura-" + strings.ReplaceAll(inv.Number, "/", "-") + ext,
		Base64Content: base64.StdEncoding.EncodeToString(data),
	}, nil
}
