// Package handlers defines the error codes the account endpoints attach to
// API errors, and the translation from service sentinels to the taxonomy.
//
// Codes are SCREAMING_SNAKE_CASE and land in error.code of the response
// envelope. Clients branch on them; messages are for humans.
package handlers

import (
	"errors"

	"github.com/tbourn/go-api-errors/internal/apierror"
	"github.com/tbourn/go-api-errors/internal/services"
)

const (
	CodeEmailTaken      = "EMAIL_TAKEN"
	CodeInvalidRole     = "INVALID_ROLE"
	CodeInvalidName     = "INVALID_NAME"
	CodeInvalidID       = "INVALID_ID"
	CodeAuthRequired    = "AUTH_REQUIRED"
	CodeForbidden       = "ACCOUNT_FORBIDDEN"
	CodeAccountNotFound = "ACCOUNT_NOT_FOUND"
)

// toAPIError maps a service error onto the taxonomy. Errors it does not know
// are returned unchanged so the error handler treats them as unclassified.
func toAPIError(err error) error {
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		return apierror.BadRequest("Email is already registered", apierror.WithCode(CodeEmailTaken), apierror.WithCause(err))
	case errors.Is(err, services.ErrInvalidRole):
		return apierror.BadRequest("Role must be member or admin", apierror.WithCode(CodeInvalidRole), apierror.WithCause(err))
	case errors.Is(err, services.ErrEmptyName):
		return apierror.BadRequest("Name must not be blank", apierror.WithCode(CodeInvalidName), apierror.WithCause(err))
	case errors.Is(err, services.ErrInvalidID):
		return apierror.BadRequest("Account id must be a UUID", apierror.WithCode(CodeInvalidID), apierror.WithCause(err))
	case errors.Is(err, services.ErrUnauthenticated):
		return apierror.Unauthorized("Missing X-User-ID header", apierror.WithCode(CodeAuthRequired), apierror.WithCause(err))
	case errors.Is(err, services.ErrForbidden):
		return apierror.Forbidden("Not allowed to access this account", apierror.WithCode(CodeForbidden), apierror.WithCause(err))
	case errors.Is(err, services.ErrAccountNotFound):
		return apierror.NotFound("Account not found", apierror.WithCode(CodeAccountNotFound), apierror.WithCause(err))
	}
	return err
}
