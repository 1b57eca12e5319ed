package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NormalizeEmail lowercases and trims the email string
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var (
	ErrInvalidPassword = fmt.Errorf("invalid password")
	ErrTokenExpired    = fmt.Errorf("token expired")
	ErrTokenInvalid    = fmt.Errorf("token invalid")
	ErrTokenNotFound   = fmt.Errorf("token not found")
	ErrTokenDisabled   = fmt.Errorf("token disabled")
	ErrUnauthorized    = fmt.Errorf("unauthorized")
)

// User represents an application user. Every user owns their own set of
// clients, templates and invoices; OwnerID equals the user's ID and is
// what all other records are scoped by.
type User struct {
	gorm.Model
	Email       string `gorm:"uniqueIndex;not null"` // always stored lowercase
	FullName    string
	Password    string `gorm:"not null"`
	LastLoginAt *time.Time
	OwnerID     uint
}

// Normalize email before saving
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func (s *Store) TouchLastLogin(u *User) error {
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return s.db.Model(u).Update("last_login_at", now).Error
}

func (s *Store) AuthenticateUser(email, password string) (*User, error) {
	email = NormalizeEmail(email)
	user, err := s.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if !s.CheckPassword(user, password) {
		return nil, ErrInvalidPassword
	}
	return user, nil
}

func (s *Store) GetUserByID(id any) (*User, error) {
	var user User
	if id == nil {
		return nil, fmt.Errorf("user ID cannot be nil")
	}
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetUserByEmail(email string) (*User, error) {
	email = NormalizeEmail(email)
	var user User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) SetPassword(u *User, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (s *Store) CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// RegisterUser creates the user and makes them the owner of their own data
// set (OwnerID = own ID).
func (s *Store) RegisterUser(email, fullName, password string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email empty")
	}
	u := &User{Email: email, FullName: fullName}
	if err := s.SetPassword(u, password); err != nil {
		return nil, err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		u.OwnerID = u.ID
		return tx.Model(u).Update("owner_id", u.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UpdateUser(u *User) error {
	return s.db.Save(u).Error
}

// UserExists reports whether any user is registered at all. Used to allow
// the very first registration even when open registration is disabled.
func (s *Store) UserExists() (bool, error) {
	var count int64
	if err := s.db.Model(&User{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// IsDuplicateEmail reports whether err comes from the unique index on the
// email column.
func IsDuplicateEmail(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
