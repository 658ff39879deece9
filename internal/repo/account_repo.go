// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Account
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They hold no business rules.
//
// Error semantics:
//   - When an account is not found, functions return ErrNotFound.
//   - Inserting a second account with the same email returns ErrDuplicate.
//   - Any other DB error is propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-api-errors/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate is returned when an insert violates a unique index.
// It aliases gorm.ErrDuplicatedKey.
var ErrDuplicate = gorm.ErrDuplicatedKey

// CreateAccount inserts a new Account with a random UUID and UTC timestamps.
func CreateAccount(ctx context.Context, db *gorm.DB, email, name, role string) (*domain.Account, error) {
	now := time.Now().UTC()
	a := &domain.Account{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return a, nil
}

// GetAccount fetches an account by primary key.
func GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAccountByEmail fetches an account by its (lowercased) email.
func FindAccountByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	var a domain.Account
	if err := db.WithContext(ctx).Where("email = ?", email).Take(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// isUniqueViolation detects unique-index failures. gorm only translates them
// to gorm.ErrDuplicatedKey when TranslateError is on, so the driver message is
// checked as well.
func isUniqueViolation(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
