// Package services: AccountService
//
// This file implements the AccountService, which registers accounts and
// enforces who may read them. Emails are lowercased, display names are
// whitespace-collapsed and title-cased, and roles default to member.
//
// Predictable failures are returned as the sentinel errors from errors.go;
// anything else is a wrapped persistence error.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-api-errors/internal/domain"
)

// AccountRepo defines the repository contract required by AccountService.
type AccountRepo interface {
	// CreateAccount inserts a new account row. A duplicate email yields
	// gorm.ErrDuplicatedKey.
	CreateAccount(ctx context.Context, db *gorm.DB, email, name, role string) (*domain.Account, error)

	// GetAccount fetches an account by ID.
	GetAccount(ctx context.Context, db *gorm.DB, id string) (*domain.Account, error)

	// FindAccountByEmail fetches an account by its lowercased email.
	FindAccountByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error)
}

// AccountService registers accounts and resolves them for callers.
type AccountService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the account repository used by this service.
	Repo AccountRepo

	// NameMaxLen caps stored display names by rune length.
	NameMaxLen int
	// NameLocale drives title-casing of display names.
	NameLocale language.Tag
}

// NewAccountService constructs an AccountService with default name handling.
func NewAccountService(db *gorm.DB, r AccountRepo) *AccountService {
	return &AccountService{
		DB:         db,
		Repo:       r,
		NameMaxLen: 120,
		NameLocale: language.English,
	}
}

// Register creates an account. An empty role means member.
func (s *AccountService) Register(ctx context.Context, email, name, role string) (*domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = s.normalizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = domain.RoleMember
	}
	if !domain.ValidRole(role) {
		return nil, ErrInvalidRole
	}

	if _, err := s.Repo.FindAccountByEmail(ctx, s.DB, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup account by email: %w", err)
	}

	a, err := s.Repo.CreateAccount(ctx, s.DB, email, name, role)
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, ErrEmailTaken
	case err != nil:
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// Get returns account id as seen by callerID. Callers may read their own
// account; admins may read any account.
func (s *AccountService) Get(ctx context.Context, callerID, id string) (*domain.Account, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerID == a.ID {
		return a, nil
	}

	caller, err := s.find(ctx, callerID)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil, ErrForbidden
	case err != nil:
		return nil, err
	case caller.Role != domain.RoleAdmin:
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *AccountService) find(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.Repo.GetAccount(ctx, s.DB, id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrAccountNotFound
	case err != nil:
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeName collapses whitespace, title-cases and clips to NameMaxLen runes.
func (s *AccountService) normalizeName(name string) string {
	name = whitespaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" {
		return ""
	}
	tag := s.NameLocale
	if tag == language.Und {
		tag = language.English
	}
	name = cases.Title(tag).String(name)
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		r := []rune(name)
		name = strings.TrimSpace(string(r[:s.NameMaxLen]))
	}
	return name
}
