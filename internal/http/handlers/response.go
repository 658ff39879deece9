// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers never write error bodies themselves. They report a fault with
// fail, which records it on the gin context and aborts; the error handler
// middleware renders the envelope once the chain unwinds. Success bodies go
// through ok.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-api-errors/internal/apierror"
	"github.com/tbourn/go-api-errors/internal/http/middleware"
	"github.com/tbourn/go-api-errors/internal/validation"
)

// fail records err for the error handler and stops the chain.
func fail(c *gin.Context, err error) {
	mapped := toAPIError(err)

	// Server-side faults get a breadcrumb on the request-scoped logger
	// naming the handler that gave up.
	if e, ok := apierror.As(mapped); !ok || e.StatusCode() >= http.StatusInternalServerError {
		if _, invalid := validation.Detect(mapped); !invalid {
			middleware.LoggerFrom(c).Warn().
				Err(err).
				Str("handler", c.HandlerName()).
				Msg("service call failed")
		}
	}

	_ = c.Error(mapped)
	c.Abort()
}

// bindJSON decodes the request body into dst. Decode and validation
// failures are reported through fail and false is returned.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = validation.NewFailure(validation.Issue{
			Message: "Request body is empty or truncated JSON",
			Code:    "invalid_json",
		})
	}
	fail(c, err)
	return false
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
