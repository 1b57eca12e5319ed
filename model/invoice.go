package model

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceStatus string

const (
	InvoiceStatusIssued InvoiceStatus = "issued" // created, not yet mailed
	InvoiceStatusSent   InvoiceStatus = "sent"   // delivered to the recipient
	InvoiceStatusFailed InvoiceStatus = "failed" // delivery attempted and failed
)

// Invoice is an immutable snapshot produced by materializing a template (or
// issued manually). Once created, only the status and the generated document
// path ever change.
type Invoice struct {
	gorm.Model
	OwnerID    uint  `gorm:"index"`
	TemplateID *uint `gorm:"index"` // nil for manually issued invoices

	Number       string `gorm:"not null"`
	InvoiceMonth int    `gorm:"not null"`
	InvoiceYear  int    `gorm:"not null;index"`

	IssueDate     time.Time
	SaleDate      time.Time
	DueDate       time.Time
	IssuePlace    string
	PaymentMethod string

	// Seller snapshot, resolved from the template overrides and the seller
	// profile at issuance time. Immune to later profile edits.
	SellerCompanyName string
	SellerOwnerName   string
	SellerAddress     string
	SellerNIP         string
	SellerBankAccount string
	SellerBankName    string
	SellerSwift       string

	// Buyer snapshot, copied from the client at issuance time.
	BuyerName    string
	BuyerAddress string
	BuyerCountry string
	BuyerNIP     string

	LineItems []InvoiceLineItem

	TotalNet      decimal.Decimal `sql:"type:decimal(20,8);"`
	TotalVAT      decimal.Decimal `sql:"type:decimal(20,8);"`
	TotalGross    decimal.Decimal `sql:"type:decimal(20,8);"`
	AmountInWords string
	Currency      string `gorm:"not null;default:PLN"`

	Status       InvoiceStatus `gorm:"type:text;not null;default:issued;check:status IN ('issued','sent','failed');index;index:idx_invoices_owner_status"`
	DocumentPath string
	EmailLogs    []EmailLog
}

// InvoiceLineItem is one computed line of an issued invoice.
type InvoiceLineItem struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	OwnerID    uint
	InvoiceID  uint `gorm:"index"`
	SortOrder  int
	Name       string
	Quantity   decimal.Decimal `sql:"type:decimal(20,8);"`
	UnitPrice  decimal.Decimal `sql:"type:decimal(20,8);"`
	VATRate    int
	ValueNet   decimal.Decimal `sql:"type:decimal(20,8);"`
	ValueVAT   decimal.Decimal `sql:"type:decimal(20,8);"`
	ValueGross decimal.Decimal `sql:"type:decimal(20,8);"`
}

type EmailStatus string

const (
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
	EmailStatusFailed  EmailStatus = "failed"
)

// EmailLog records one delivery attempt for an invoice.
type EmailLog struct {
	ID           uint `gorm:"primarykey"`
	CreatedAt    time.Time
	OwnerID      uint
	InvoiceID    uint `gorm:"index"`
	Recipient    string
	Status       EmailStatus `gorm:"type:text;not null;default:pending"`
	ErrorMessage string
	SentAt       *time.Time
}

// LoadInvoice loads an invoice with its ordered line items and email log.
func (s *Store) LoadInvoice(id any, ownerID uint) (*Invoice, error) {
	var inv Invoice
	err := s.db.Where("owner_id = ?", ownerID).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("invoice_line_items.sort_order ASC")
		}).
		Preload("EmailLogs", func(db *gorm.DB) *gorm.DB {
			return db.Order("email_logs.created_at DESC")
		}).
		First(&inv, id).Error
	if err != nil {
		return nil, fmt.Errorf("load invoice %v: %w", id, err)
	}
	return &inv, nil
}

// FindInvoiceByTemplatePeriod returns the invoice issued for the template in
// the given period, or gorm.ErrRecordNotFound.
func (s *Store) FindInvoiceByTemplatePeriod(templateID uint, p Period) (*Invoice, error) {
	var inv Invoice
	err := s.db.
		Where("template_id = ? AND invoice_month = ? AND invoice_year = ?",
			templateID, int(p.Month), p.Year).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateInvoiceDocumentPath stores the reference to the rendered document.
// The invoice itself stays untouched.
func (s *Store) UpdateInvoiceDocumentPath(inv *Invoice, path string) error {
	inv.DocumentPath = path
	return s.db.Model(&Invoice{}).
		Where("id = ? AND owner_id = ?", inv.ID, inv.OwnerID).
		Update("document_path", path).Error
}

// --- Status transitions ------------------------------------------------------
//
// Allowed transitions:
//   issued -> sent | failed
//   sent   -> sent | failed   (re-send attempts)
//   failed -> sent | failed
//
// Nothing ever goes back to issued; a retried send re-attempts delivery and
// records the outcome again.

func (s *Store) changeInvoiceStatus(id uint, ownerID uint, to InvoiceStatus) error {
	if to != InvoiceStatusSent && to != InvoiceStatusFailed {
		return fmt.Errorf("invalid target status %q", to)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var inv Invoice
		// Lock the row (Postgres: FOR UPDATE; SQLite: no-op)
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			First(&inv).Error; err != nil {
			return err
		}
		return tx.Model(&Invoice{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Update("status", to).Error
	})
}

// EmailSender delivers an invoice to a recipient. Implemented by the mailer
// package; tests plug in fakes.
type EmailSender interface {
	Send(inv *Invoice, recipient string) error
}

// DeliverInvoiceEmail sends the invoice through the given sender and records
// the attempt: an EmailLog row is written either way, and the invoice status
// advances to sent or failed. A delivery failure never rolls back the
// invoice; it returns ErrEmailDelivery so callers can surface it.
func (s *Store) DeliverInvoiceEmail(inv *Invoice, recipient string, sender EmailSender, logger *slog.Logger) error {
	entry := &EmailLog{
		OwnerID:   inv.OwnerID,
		InvoiceID: inv.ID,
		Recipient: recipient,
		Status:    EmailStatusPending,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("record email attempt: %w", err)
	}

	if err := sender.Send(inv, recipient); err != nil {
		logger.Error("invoice email failed", "invoice", inv.Number, "recipient", recipient, "error", err)
		_ = s.db.Model(entry).Updates(map[string]any{
			"status":        EmailStatusFailed,
			"error_message": err.Error(),
		}).Error
		if serr := s.changeInvoiceStatus(inv.ID, inv.OwnerID, InvoiceStatusFailed); serr != nil {
			logger.Error("cannot mark invoice failed", "invoice", inv.Number, "error", serr)
		}
		inv.Status = InvoiceStatusFailed
		return fmt.Errorf("%w: %s to %s: %v", ErrEmailDelivery, inv.Number, recipient, err)
	}

	now := time.Now().UTC()
	_ = s.db.Model(entry).Updates(map[string]any{
		"status":  EmailStatusSent,
		"sent_at": now,
	}).Error
	if err := s.changeInvoiceStatus(inv.ID, inv.OwnerID, InvoiceStatusSent); err != nil {
		return err
	}
	inv.Status = InvoiceStatusSent
	logger.Info("invoice email sent", "invoice", inv.Number, "recipient", recipient)
	return nil
}
