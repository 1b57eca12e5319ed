package model

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateInvoice means an invoice already exists for the template
	// and period. The scheduler treats it as "already handled"; a manual
	// re-issue surfaces it as a conflict.
	ErrDuplicateInvoice = errors.New("invoice already exists for this template and period")

	// ErrSellerProfileMissing means neither the seller profile nor the
	// template overrides cover all required seller fields.
	ErrSellerProfileMissing = errors.New("seller profile missing or incomplete")

	// ErrRenderFailed wraps document generation failures. Never fatal to
	// issuance; the document is regenerated on first retrieval.
	ErrRenderFailed = errors.New("document rendering failed")

	// ErrEmailDelivery wraps delivery failures. The invoice stays issued;
	// the attempt is recorded and can be retried.
	ErrEmailDelivery = errors.New("email delivery failed")
)

// DocumentRenderer turns a persisted invoice into a document artifact and
// returns its path. The default implementation lives in docgen.go.
type DocumentRenderer interface {
	RenderInvoice(inv *Invoice) (string, error)
}

// sellerSnapshot is the resolved seller data frozen onto an invoice.
type sellerSnapshot struct {
	CompanyName string
	OwnerName   string
	Address     string
	NIP         string
	BankAccount string
	BankName    string
	Swift       string
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// resolveSellerSnapshot applies the template's per-field overrides on top of
// the owner's seller profile. Swift is the only optional field; every other
// blank resolved field aborts materialization.
func resolveSellerSnapshot(tx *gorm.DB, tpl *InvoiceTemplate) (*sellerSnapshot, error) {
	profile, err := findSellerProfile(tx, tpl.OwnerID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &SellerProfile{}
	}
	snap := &sellerSnapshot{
		CompanyName: pick(tpl.SellerCompanyName, profile.CompanyName),
		OwnerName:   pick(tpl.SellerOwnerName, profile.OwnerName),
		Address:     pick(tpl.SellerAddress, profile.Address),
		NIP:         pick(tpl.SellerNIP, profile.NIP),
		BankAccount: pick(tpl.SellerBankAccount, profile.BankAccount),
		BankName:    pick(tpl.SellerBankName, profile.BankName),
		Swift:       pick(tpl.SellerSwift, profile.Swift),
	}
	for field, v := range map[string]string{
		"company name": snap.CompanyName,
		"owner name":   snap.OwnerName,
		"address":      snap.Address,
		"NIP":          snap.NIP,
		"bank account": snap.BankAccount,
		"bank name":    snap.BankName,
	} {
		if v == "" {
			return nil, fmt.Errorf("%w: no %s for owner %d", ErrSellerProfileMissing, field, tpl.OwnerID)
		}
	}
	return snap, nil
}

// MaterializeInvoice turns a template into the concrete, numbered invoice
// for the given period. The whole of it - duplicate check, seller/buyer
// snapshot, number allocation, line computation and insert - runs in one
// transaction, so a crash can never leave an allocated number without its
// invoice. now supplies issue/sale dates and is passed in explicitly; the
// engine never reads the ambient clock.
//
// Callers that race on the same (template, period) are resolved by the
// unique index: exactly one wins, the rest get ErrDuplicateInvoice.
// Document rendering happens after commit and is best effort.
func (s *Store) MaterializeInvoice(tpl *InvoiceTemplate, p Period, now time.Time, renderer DocumentRenderer, logger *slog.Logger) (*Invoice, error) {
	unlock := lockOwner(tpl.OwnerID)
	defer unlock()

	inv := &Invoice{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Invoice{}).
			Where("template_id = ? AND invoice_month = ? AND invoice_year = ?",
				tpl.ID, int(p.Month), p.Year).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateInvoice
		}

		seller, err := resolveSellerSnapshot(tx, tpl)
		if err != nil {
			return err
		}

		client := tpl.Client
		if client.ID == 0 {
			if err := tx.First(&client, "owner_id = ? AND id = ?", tpl.OwnerID, tpl.ClientID).Error; err != nil {
				return fmt.Errorf("load client %d: %w", tpl.ClientID, err)
			}
		}

		number, err := nextInvoiceNumber(tx, tpl.OwnerID, p)
		if err != nil {
			return err
		}

		templateID := tpl.ID
		*inv = Invoice{
			OwnerID:      tpl.OwnerID,
			TemplateID:   &templateID,
			Number:       number,
			InvoiceMonth: int(p.Month),
			InvoiceYear:  p.Year,

			IssueDate:     now,
			SaleDate:      now,
			DueDate:       now.AddDate(0, 0, tpl.PaymentDays),
			IssuePlace:    tpl.IssuePlace,
			PaymentMethod: "przelew",

			SellerCompanyName: seller.CompanyName,
			SellerOwnerName:   seller.OwnerName,
			SellerAddress:     seller.Address,
			SellerNIP:         seller.NIP,
			SellerBankAccount: seller.BankAccount,
			SellerBankName:    seller.BankName,
			SellerSwift:       seller.Swift,

			BuyerName:    client.Name,
			BuyerAddress: client.Address,
			BuyerCountry: client.Country,
			BuyerNIP:     client.NIP,

			Currency: "PLN",
			Status:   InvoiceStatusIssued,
		}

		totalNet, totalVAT, totalGross := decimal.Zero, decimal.Zero, decimal.Zero
		for i, item := range tpl.Items {
			if !ValidVATRate(item.VATRate) {
				return fmt.Errorf("template item %q: VAT rate %d out of range", item.Name, item.VATRate)
			}
			net, vat, gross := ComputeLine(item.Quantity, item.UnitPrice, item.VATRate)
			inv.LineItems = append(inv.LineItems, InvoiceLineItem{
				OwnerID:    tpl.OwnerID,
				SortOrder:  i,
				Name:       item.Name,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				VATRate:    item.VATRate,
				ValueNet:   net,
				ValueVAT:   vat,
				ValueGross: gross,
			})
			totalNet = totalNet.Add(net)
			totalVAT = totalVAT.Add(vat)
			totalGross = totalGross.Add(gross)
		}
		inv.TotalNet = totalNet
		inv.TotalVAT = totalVAT
		inv.TotalGross = totalGross

		words, err := AmountInWordsPLN(totalGross)
		if err != nil {
			return err
		}
		inv.AmountInWords = words

		return tx.Create(inv).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Two unique indexes can reject the insert. Only the
		// (template, period) one means "this month's invoice already
		// exists"; a hit on (owner, number) is a cross-process numbering
		// race that must surface as a real failure, or the scheduler
		// would skip the template for the month.
		existing, ferr := s.FindInvoiceByTemplatePeriod(tpl.ID, p)
		if ferr == nil && existing != nil {
			return nil, ErrDuplicateInvoice
		}
		return nil, fmt.Errorf("invoice number %q already taken: %w", inv.Number, err)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("invoice materialized",
		"invoice", inv.Number, "template", tpl.Name, "period", p.String(),
		"gross", inv.TotalGross.StringFixed(2))

	if renderer != nil {
		if path, err := renderer.RenderInvoice(inv); err != nil {
			logger.Error("document rendering failed", "invoice", inv.Number, "error", err)
		} else if err := s.UpdateInvoiceDocumentPath(inv, path); err != nil {
			logger.Error("cannot store document path", "invoice", inv.Number, "error", err)
		}
	}
	return inv, nil
}
