// Package services defines the business logic behind the account endpoints.
// This file centralizes service-level error values so that service methods
// return them consistently and handlers can map them to API errors.
package services

import "errors"

// Account-related errors.
var (
	// ErrAccountNotFound indicates that the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEmailTaken is returned when registering an email that already
	// belongs to an account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidID is returned when an account id is not a UUID.
	ErrInvalidID = errors.New("invalid account id")

	// ErrInvalidRole is returned when a role is outside the allowed set.
	ErrInvalidRole = errors.New("role must be member or admin")

	// ErrEmptyName is returned when a name is blank after normalization.
	ErrEmptyName = errors.New("name is empty")

	// ErrUnauthenticated is returned when no caller identity is present.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the caller may not access an account.
	ErrForbidden = errors.New("not allowed to access this account")
)
