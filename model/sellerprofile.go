package model

import (
	"errors"

	"gorm.io/gorm"
)

// SellerProfile holds the owner's default seller data. Templates may
// override each field independently; materialization resolves the effective
// value field by field.
type SellerProfile struct {
	gorm.Model
	OwnerID     uint `gorm:"uniqueIndex"`
	CompanyName string
	OwnerName   string
	Address     string
	NIP         string
	BankAccount string
	BankName    string
	Swift       string
}

// LoadSellerProfile loads the owner's seller profile, initializing an empty
// one if none was saved yet. Used by the settings form.
func (s *Store) LoadSellerProfile(ownerID uint) (*SellerProfile, error) {
	p := &SellerProfile{}
	result := s.db.Where("owner_id = ?", ownerID).FirstOrInit(p)
	p.OwnerID = ownerID
	return p, result.Error
}

// findSellerProfile returns the stored profile or nil if the owner never
// saved one. Materialization needs the distinction: template overrides may
// cover for a missing profile.
func findSellerProfile(tx *gorm.DB, ownerID uint) (*SellerProfile, error) {
	p := &SellerProfile{}
	err := tx.Where("owner_id = ?", ownerID).First(p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveSellerProfile creates or updates the owner's profile. There is at most
// one profile per owner, so a zero-ID save adopts the existing row instead of
// inserting a second one.
func (s *Store) SaveSellerProfile(p *SellerProfile, ownerID uint) error {
	if p.OwnerID != ownerID {
		return ErrNotAllowed
	}
	if p.ID == 0 {
		existing := &SellerProfile{}
		err := s.db.Select("id").Where("owner_id = ?", ownerID).First(existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First save for this owner.
		case err != nil:
			return err
		default:
			p.ID = existing.ID
		}
	}
	return s.db.Save(p).Error
}
