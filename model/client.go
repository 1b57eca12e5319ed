package model

import (
	"fmt"
	"strings"

	"github.com/biter777/countries"
	"gorm.io/gorm"
)

var ErrNotAllowed = fmt.Errorf("not allowed")

// Client is a buyer. Its fields get snapshotted onto every invoice issued
// for it, so later edits never change documents that already went out.
type Client struct {
	gorm.Model
	OwnerID     uint `gorm:"index"`
	Name        string
	Address     string
	Country     string
	CountryCode string // ISO 3166-1 alpha-2, derived from Country
	NIP         string
}

// BeforeSave normalizes the country to its canonical English name and keeps
// the alpha-2 code alongside. Unrecognized input is stored as typed.
func (c *Client) BeforeSave(tx *gorm.DB) error {
	c.Name = strings.TrimSpace(c.Name)
	c.NIP = strings.TrimSpace(c.NIP)
	if country := countries.ByName(strings.TrimSpace(c.Country)); country != countries.Unknown {
		c.Country = country.String()
		c.CountryCode = country.Alpha2()
	} else {
		c.CountryCode = ""
	}
	return nil
}

// SaveClient creates or updates a client.
func (s *Store) SaveClient(c *Client, ownerID uint) error {
	if c.OwnerID != ownerID {
		return ErrNotAllowed
	}
	if c.Name == "" {
		return fmt.Errorf("save client: name is empty")
	}
	return s.db.Save(c).Error
}

// LoadClient loads a single client within the owner scope.
func (s *Store) LoadClient(id any, ownerID uint) (*Client, error) {
	c := &Client{}
	if err := s.db.First(c, "owner_id = ? AND id = ?", ownerID, id).Error; err != nil {
		return nil, fmt.Errorf("load client %v: %w", id, err)
	}
	return c, nil
}

// LoadAllClients returns all clients of the owner, sorted by name.
func (s *Store) LoadAllClients(ownerID uint) ([]*Client, error) {
	clients := make([]*Client, 0)
	err := s.db.Where("owner_id = ?", ownerID).Order("name asc").Find(&clients).Error
	return clients, err
}

// DeleteClient removes a client. Clients referenced by a template cannot be
// deleted; the templates would issue invoices with an empty buyer.
func (s *Store) DeleteClient(id uint, ownerID uint) error {
	var n int64
	if err := s.db.Model(&InvoiceTemplate{}).
		Where("client_id = ? AND owner_id = ?", id, ownerID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: delete client %d: %d template(s) still reference it", ErrNotAllowed, id, n)
	}
	return s.db.Where("owner_id = ?", ownerID).Delete(&Client{}, id).Error
}
