package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceTemplate is the user-configured blueprint for a recurring invoice:
// a client, a set of line items and the issuance preferences. The scheduler
// reads templates but never mutates them.
type InvoiceTemplate struct {
	gorm.Model
	OwnerID        uint `gorm:"index"`
	ClientID       uint `gorm:"index"`
	Client         Client
	Name           string
	IsActive       bool `gorm:"not null;index"`
	PaymentDays    int  `gorm:"not null;default:14"`
	IssuePlace     string
	AutoSendEmail  bool
	RecipientEmail string

	// Per-field seller overrides; empty means "use the seller profile".
	SellerCompanyName string
	SellerOwnerName   string
	SellerAddress     string
	SellerNIP         string
	SellerBankAccount string
	SellerBankName    string
	SellerSwift       string

	Items []TemplateLineItem `gorm:"foreignKey:TemplateID"`
}

// TemplateLineItem is one line of the blueprint. Quantity and unit price are
// exact decimals; the VAT rate is a whole percentage.
type TemplateLineItem struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	OwnerID    uint
	TemplateID uint `gorm:"index"`
	SortOrder  int
	Name       string
	Quantity   decimal.Decimal `sql:"type:decimal(20,8);"`
	UnitPrice  decimal.Decimal `sql:"type:decimal(20,8);"`
	VATRate    int             `gorm:"not null;default:23"`
}

func validateTemplate(tpl *InvoiceTemplate) error {
	if tpl.Name == "" {
		return fmt.Errorf("template: name is empty")
	}
	if tpl.ClientID == 0 {
		return fmt.Errorf("template: no client")
	}
	if tpl.PaymentDays <= 0 {
		return fmt.Errorf("template: payment term must be positive, got %d", tpl.PaymentDays)
	}
	if len(tpl.Items) == 0 {
		return fmt.Errorf("template: at least one line item required")
	}
	for i, it := range tpl.Items {
		if it.Name == "" {
			return fmt.Errorf("template item %d: name is empty", i+1)
		}
		if !it.Quantity.IsPositive() {
			return fmt.Errorf("template item %d: %w: quantity %s", i+1, ErrInvalidAmount, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("template item %d: %w: unit price %s", i+1, ErrInvalidAmount, it.UnitPrice)
		}
		if !ValidVATRate(it.VATRate) {
			return fmt.Errorf("template item %d: VAT rate %d out of range", i+1, it.VATRate)
		}
	}
	return nil
}

// SaveTemplate creates or updates a template and replaces its whole item
// set. Replace, not merge: the incoming items become the item list, old rows
// are hard-deleted, and sort order is renumbered from the slice order. This
// keeps item updates free of orphaned rows.
func (s *Store) SaveTemplate(tpl *InvoiceTemplate, ownerID uint) error {
	if tpl.OwnerID != ownerID {
		return ErrNotAllowed
	}
	if err := validateTemplate(tpl); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		items := tpl.Items
		tpl.Items = nil
		if err := tx.Omit("Client").Save(tpl).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ? AND owner_id = ?", tpl.ID, ownerID).
			Delete(&TemplateLineItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = 0
			items[i].TemplateID = tpl.ID
			items[i].OwnerID = ownerID
			items[i].SortOrder = i
		}
		if err := tx.Omit("ID").Create(&items).Error; err != nil {
			return err
		}
		tpl.Items = items
		return nil
	})
}

// LoadTemplate loads a template with its client and ordered items.
func (s *Store) LoadTemplate(id any, ownerID uint) (*InvoiceTemplate, error) {
	tpl := &InvoiceTemplate{}
	err := s.db.
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("template_line_items.sort_order ASC")
		}).
		First(tpl, "owner_id = ? AND id = ?", ownerID, id).Error
	if err != nil {
		return nil, fmt.Errorf("load template %v: %w", id, err)
	}
	return tpl, nil
}

// LoadAllTemplates returns the owner's templates sorted by name.
func (s *Store) LoadAllTemplates(ownerID uint) ([]*InvoiceTemplate, error) {
	tpls := make([]*InvoiceTemplate, 0)
	err := s.db.
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("template_line_items.sort_order ASC")
		}).
		Where("owner_id = ?", ownerID).
		Order("name asc").
		Find(&tpls).Error
	return tpls, err
}

// ListActiveTemplates returns every active template across all owners, the
// scheduler's work list for a generation run.
func (s *Store) ListActiveTemplates() ([]*InvoiceTemplate, error) {
	tpls := make([]*InvoiceTemplate, 0)
	err := s.db.
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("template_line_items.sort_order ASC")
		}).
		Where("is_active = ?", true).
		Find(&tpls).Error
	return tpls, err
}

// ToggleTemplate flips the active flag and returns the new state.
func (s *Store) ToggleTemplate(id uint, ownerID uint) (bool, error) {
	var active bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		tpl := &InvoiceTemplate{}
		if err := tx.First(tpl, "owner_id = ? AND id = ?", ownerID, id).Error; err != nil {
			return err
		}
		active = !tpl.IsActive
		return tx.Model(tpl).Update("is_active", active).Error
	})
	return active, err
}

// DeleteTemplate removes the template and its items. Invoices issued from
// it stay; they only keep a nullable back reference.
func (s *Store) DeleteTemplate(id uint, ownerID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ? AND owner_id = ?", id, ownerID).
			Delete(&TemplateLineItem{}).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerID).Delete(&InvoiceTemplate{}, id).Error
	})
}
