package model

import (
	"errors"
	"strconv"

	"gorm.io/gorm"
)

// InvoiceListQuery captures filter, paging, and sorting options for listing invoices.
type InvoiceListQuery struct {
	Status     string // optional: filter by status ("issued", "sent", "failed")
	TemplateID uint   // optional: restrict to one template
	Month      int    // optional: invoice period month (1-12)
	Year       int    // optional: invoice period year
	Limit      int    // page size (1-200); defaults to 50 when out of range
	Cursor     string // simple offset cursor encoded as a string: "0", "50", ...
}

// ListInvoices returns a page of invoices for the given owner along with the
// next cursor. Owner-scoped and safe to call repeatedly for pagination.
// Ordering is fixed: newest period first, then creation time descending,
// which matches how the invoice register reads.
func (s *Store) ListInvoices(ownerID uint, q InvoiceListQuery) (items []Invoice, nextCursor string, err error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	offset := 0
	if q.Cursor != "" {
		if n, e := strconv.Atoi(q.Cursor); e == nil && n >= 0 {
			offset = n
		}
	}

	db := s.db.Model(&Invoice{}).Where("owner_id = ?", ownerID)
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.TemplateID != 0 {
		db = db.Where("template_id = ?", q.TemplateID)
	}
	if q.Month != 0 {
		db = db.Where("invoice_month = ?", q.Month)
	}
	if q.Year != 0 {
		db = db.Where("invoice_year = ?", q.Year)
	}

	// Fetch limit+1 rows to learn whether there is a next page.
	var invs []Invoice
	if err = db.Order("invoice_year desc").
		Order("invoice_month desc").
		Order("created_at desc").
		Offset(offset).Limit(q.Limit + 1).Find(&invs).Error; err != nil {
		return nil, "", err
	}
	if len(invs) > q.Limit {
		invs = invs[:q.Limit]
		nextCursor = strconv.Itoa(offset + q.Limit)
	}
	return invs, nextCursor, nil
}

// GetInvoiceByOwner loads a single invoice by id without its associations,
// ensuring it belongs to the given owner.
func (s *Store) GetInvoiceByOwner(ownerID uint, id uint) (*Invoice, error) {
	var inv Invoice
	if err := s.db.Where("owner_id = ?", ownerID).First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListInvoicesForExport returns all invoices of the owner with line items,
// oldest first, for the spreadsheet export.
func (s *Store) ListInvoicesForExport(ownerID uint) ([]Invoice, error) {
	var invs []Invoice
	err := s.db.Where("owner_id = ?", ownerID).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("invoice_line_items.sort_order ASC")
		}).
		Order("invoice_year asc").
		Order("invoice_month asc").
		Order("created_at asc").
		Find(&invs).Error
	return invs, err
}

// RecentInvoices returns the newest invoices by creation time, for the
// dashboard.
func (s *Store) RecentInvoices(ownerID uint, limit int) ([]Invoice, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var invs []Invoice
	err := s.db.Where("owner_id = ?", ownerID).
		Order("created_at desc").Limit(limit).Find(&invs).Error
	return invs, err
}
