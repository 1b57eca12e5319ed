package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ownerLocks serializes invoice number allocation per owner. Two templates
// of the same owner materializing in parallel would otherwise read the same
// "last invoice" and compute the same sequence value. The unique index on
// (owner_id, number) backstops this across processes.
var ownerLocks sync.Map // map[uint]*sync.Mutex

func lockOwner(ownerID uint) func() {
	v, _ := ownerLocks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// FormatInvoiceNumber renders the canonical "{seq}/{MM}/{YYYY}" form.
func FormatInvoiceNumber(seq int, p Period) string {
	return fmt.Sprintf("%d/%02d/%d", seq, int(p.Month), p.Year)
}

// parseInvoiceSequence extracts the leading integer segment of a number such
// as "17/03/2025".
func parseInvoiceSequence(number string) (int, bool) {
	head, _, found := strings.Cut(number, "/")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}

// nextInvoiceNumber allocates the next number for the owner in the given
// period: one past the sequence of the owner's most recently created invoice
// of the same year, across all months and templates, or 1 for a fresh year.
// Must run inside the transaction that also inserts the invoice, so a failed
// insert cannot burn a number.
func nextInvoiceNumber(tx *gorm.DB, ownerID uint, p Period) (string, error) {
	var last Invoice
	// Lock the row (Postgres: FOR UPDATE; SQLite: no-op)
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND invoice_year = ?", ownerID, p.Year).
		Order("created_at DESC").
		Order("id DESC").
		First(&last).Error

	seq := 1
	switch {
	case err == nil:
		n, ok := parseInvoiceSequence(last.Number)
		if !ok {
			return "", fmt.Errorf("cannot parse sequence of invoice number %q", last.Number)
		}
		seq = n + 1
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first invoice of the year
	default:
		return "", err
	}
	return FormatInvoiceNumber(seq, p), nil
}
