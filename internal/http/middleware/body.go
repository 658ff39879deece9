package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-api-errors/internal/apierror"
)

const bodyKey = "requestBody"

// CaptureBody reads up to max bytes of the request body, keeps a copy in the
// gin context for the error log and replaces the body so binding still
// works. A body over max is reported as a BadRequest with code
// PAYLOAD_TOO_LARGE and the chain is aborted. max <= 0 disables the cap.
func CaptureBody(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		var r io.Reader = c.Request.Body
		if max > 0 {
			r = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		b, err := io.ReadAll(r)
		_ = c.Request.Body.Close()
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				_ = c.Error(apierror.BadRequest("Request body too large",
					apierror.WithCode("PAYLOAD_TOO_LARGE"),
					apierror.WithDetail("limit", tooBig.Limit),
				))
			} else {
				_ = c.Error(apierror.BadRequest("Unable to read request body",
					apierror.WithCode("BODY_UNREADABLE"),
					apierror.WithCause(err),
				))
			}
			c.Abort()
			return
		}

		c.Set(bodyKey, b)
		c.Request.Body = io.NopCloser(bytes.NewReader(b))
		c.Next()
	}
}

// BodyFrom returns the bytes captured by CaptureBody, or nil.
func BodyFrom(c *gin.Context) []byte {
	if v, ok := c.Get(bodyKey); ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}
