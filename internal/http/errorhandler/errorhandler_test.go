package errorhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tbourn/go-api-errors/internal/apierror"
	"github.com/tbourn/go-api-errors/internal/http/middleware"
	"github.com/tbourn/go-api-errors/internal/logging/logtest"
	"github.com/tbourn/go-api-errors/internal/validation"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validation.Register(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

type signupRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,min=2"`
}

var sharedNotFound = apierror.NotFound("account not found", apierror.WithCode("ACCOUNT_NOT_FOUND"))

func newEngine(rec *logtest.Recorder, opts ...Option) (*gin.Engine, *Handler) {
	h := New(rec, append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)...)

	r := gin.New()
	r.Use(middleware.RequestID(rec))
	r.Use(middleware.Recovery(h.Handle))
	r.Use(h.Middleware())
	r.Use(middleware.CaptureBody(1 << 10))
	r.NoRoute(h.NotFound())

	r.POST("/signup", func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusCreated)
	})
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })
	r.GET("/wrapped", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("load: %w", apierror.Forbidden("not yours", apierror.WithCode("FORBIDDEN"))))
	})
	r.GET("/pricing", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("load pricing config: %w", decodeErr()))
	})
	r.GET("/pricing-cache", func(c *gin.Context) {
		_ = c.Error(apierror.Internal("pricing cache corrupt",
			apierror.WithCode("CACHE_CORRUPT"), apierror.WithCause(decodeErr())))
	})
	r.GET("/raw", func(c *gin.Context) {
		_ = c.Error(apierror.BadRequest("bad input", apierror.WithRaw("sql", "SELECT 1")))
	})
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })
	r.GET("/shared", func(c *gin.Context) { _ = c.Error(sharedNotFound) })
	r.GET("/unrenderable", func(c *gin.Context) {
		_ = c.Error(apierror.BadRequest("bad", apierror.WithDetail("fn", func() {})))
	})
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
		_ = c.Error(errors.New("after write"))
	})
	return r, h
}

// decodeErr is a server-side JSON failure, unrelated to the request body.
func decodeErr() error {
	var v map[string]any
	return json.Unmarshal([]byte(`{"tiers":`), &v)
}

type response struct {
	Code   int
	Header http.Header
	Raw    string
	Env    map[string]any
}

func (r response) err() map[string]any { return r.Env["error"].(map[string]any) }

func do(t *testing.T, r http.Handler, req *http.Request) response {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := response{Code: w.Code, Header: w.Header(), Raw: w.Body.String()}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Env), w.Body.String())
	}
	return out
}

func get(path string) *http.Request { return httptest.NewRequest(http.MethodGet, path, nil) }

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGeneratedRequestIDAppearsInEnvelope(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, get("/boom"))
	rid, _ := res.Env["requestId"].(string)
	_, err := uuid.Parse(rid)
	require.NoError(t, err, "requestId %q", rid)
	assert.Equal(t, rid, res.Header.Get(middleware.RequestIDHeader))

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	assert.Equal(t, rid, errs[0].Fields["requestId"])
}

func TestSuppliedRequestIDEchoedFirstValue(t *testing.T) {
	r, _ := newEngine(&logtest.Recorder{})

	req := get("/boom")
	req.Header.Set(middleware.RequestIDHeader, "abc")
	assert.Equal(t, "abc", do(t, r, req).Env["requestId"])

	req = get("/boom")
	req.Header.Add(middleware.RequestIDHeader, "one")
	req.Header.Add(middleware.RequestIDHeader, "two")
	assert.Equal(t, "one", do(t, r, req).Env["requestId"])
}

func TestValidationIssuesMapOneToOne(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, postJSON("/signup", `{"email":"","name":""}`))
	require.Equal(t, http.StatusBadRequest, res.Code)

	e := res.err()
	assert.Equal(t, "BadRequestError", e["name"])
	assert.Equal(t, "Validation Error", e["message"])
	assert.EqualValues(t, 400, e["statusCode"])
	assert.Equal(t, "VALIDATION_ERROR", e["code"])
	assert.Equal(t, "/signup", e["source"])
	assert.Equal(t, "2025-03-04T05:06:07.890Z", e["timestamp"])
	assert.NotContains(t, e, "stack")

	got := e["details"].(map[string]any)["validationErrors"]
	want := []any{
		map[string]any{"field": "email", "message": "Required", "code": "invalid_type"},
		map[string]any{"field": "name", "message": "Required", "code": "invalid_type"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("validationErrors mismatch (-want +got):\n%s", diff)
	}

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "API Error", errs[0].Message)
}

func TestInvalidEmailIsInvalidString(t *testing.T) {
	r, _ := newEngine(&logtest.Recorder{})

	res := do(t, r, postJSON("/signup", `{"email":"nope","name":"Al"}`))
	require.Equal(t, http.StatusBadRequest, res.Code)
	got := res.err()["details"].(map[string]any)["validationErrors"]
	want := []any{map[string]any{"field": "email", "message": "Invalid email", "code": "invalid_string"}}
	assert.Equal(t, want, got)
}

func TestMalformedJSONIsValidationError(t *testing.T) {
	r, _ := newEngine(&logtest.Recorder{})

	res := do(t, r, postJSON("/signup", `{"email" "x"}`))
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "VALIDATION_ERROR", res.err()["code"])
}

func TestUnknownFault_ProductionRedacts(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, get("/boom"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	e := res.err()
	assert.Equal(t, "InternalServerError", e["name"])
	assert.Equal(t, "Internal Server Error", e["message"])
	assert.Equal(t, "INTERNAL_ERROR", e["code"])
	assert.NotContains(t, e, "stack")
	assert.NotContains(t, e, "details")
	assert.NotContains(t, res.Raw, "db down")

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "Unhandled Error", errs[0].Message)
	assert.Equal(t, "db down", errs[0].Fields["error"])
	assert.Equal(t, "*errors.errorString", errs[0].Fields["errorType"])
	assert.Equal(t, false, errs[0].Fields["operational"])
	assert.NotEmpty(t, errs[0].Fields["stack"])
}

func TestUnknownFault_DevelopmentExposes(t *testing.T) {
	r, _ := newEngine(&logtest.Recorder{}, WithMode(apierror.Development))

	res := do(t, r, get("/boom"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	e := res.err()
	assert.Equal(t, "db down", e["message"])
	assert.NotEmpty(t, e["stack"])
	raw := e["details"].(map[string]any)["error"].(map[string]any)
	assert.Equal(t, "db down", raw["message"])
}

func TestOperationalRawValues_RedactedInProduction(t *testing.T) {
	prod, _ := newEngine(&logtest.Recorder{})
	res := do(t, prod, get("/raw"))
	assert.Equal(t, "bad input", res.err()["message"])
	assert.NotContains(t, res.err(), "details")
	assert.NotContains(t, res.err(), "stack")

	dev, _ := newEngine(&logtest.Recorder{}, WithMode(apierror.Development))
	res = do(t, dev, get("/raw"))
	assert.Equal(t, "SELECT 1", res.err()["details"].(map[string]any)["sql"])
	assert.NotEmpty(t, res.err()["stack"])
}

func TestWrappedAPIErrorPassesThrough(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, get("/wrapped"))
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "ForbiddenError", res.err()["name"])
	assert.Equal(t, "not yours", res.err()["message"])
	assert.Equal(t, "FORBIDDEN", res.err()["code"])
	assert.Equal(t, true, rec.Level("error")[0].Fields["operational"])
}

func TestWrappedDecodeErrorIsInternal(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, get("/pricing"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "INTERNAL_ERROR", res.err()["code"])
	assert.NotContains(t, res.err(), "details")
	assert.NotContains(t, res.Raw, "offset")

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "Unhandled Error", errs[0].Message)
}

func TestAPIErrorCausedByDecodeErrorKeepsItsKind(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, get("/pricing-cache"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "InternalServerError", res.err()["name"])
	assert.Equal(t, "CACHE_CORRUPT", res.err()["code"])
	assert.NotContains(t, res.err(), "details")

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "API Error", errs[0].Message)
	assert.Equal(t, "CACHE_CORRUPT", errs[0].Fields["code"])
}

func TestPanicBecomesInternal(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec, WithMode(apierror.Development))

	res := do(t, r, get("/panic"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "panic: kaboom", res.err()["message"])

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	assert.Equal(t, "Unhandled Error", errs[0].Message)
	assert.Equal(t, "*apierror.Panic", errs[0].Fields["errorType"])
	assert.Contains(t, errs[0].Fields["errorStack"], "goroutine")
}

func TestNotFoundRoute(t *testing.T) {
	r, _ := newEngine(&logtest.Recorder{})

	res := do(t, r, get("/nope"))
	require.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "NotFoundError", res.err()["name"])
	assert.Equal(t, "Route /nope not found", res.err()["message"])
	assert.Equal(t, "/nope", res.Env["path"])

	res = do(t, r, get("/nope?x=1"))
	assert.Equal(t, "Route /nope?x=1 not found", res.err()["message"])
	assert.Equal(t, "/nope", res.Env["path"])
}

func TestSameAPIErrorTwiceRendersIdentically(t *testing.T) {
	r, _ := newEngine(&logtest.Recorder{})

	render := func() string {
		req := get("/shared")
		req.Header.Set(middleware.RequestIDHeader, "same")
		return do(t, r, req).Raw
	}
	first, second := render(), render()
	assert.Equal(t, first, second)
	assert.Contains(t, first, `"code":"ACCOUNT_NOT_FOUND"`)
}

func TestFallbackWhenLoggerFails(t *testing.T) {
	for name, arm := range map[string]func(*logtest.Recorder){
		"error": func(r *logtest.Recorder) { r.FailOn("error", errors.New("sink down")) },
		"panic": func(r *logtest.Recorder) { r.PanicOn("error", "sink exploded") },
	} {
		t.Run(name, func(t *testing.T) {
			rec := &logtest.Recorder{}
			arm(rec)
			reg := prometheus.NewRegistry()
			r, h := newEngine(rec, WithRegisterer(reg))

			res := do(t, r, get("/boom"))
			require.Equal(t, http.StatusInternalServerError, res.Code)
			e := res.err()
			assert.Equal(t, "ERROR_HANDLER_FAILED", e["code"])
			assert.Equal(t, "Internal Server Error", e["message"])
			assert.Equal(t, "InternalServerError", e["name"])
			assert.NotContains(t, e, "details")
			assert.Equal(t, "/boom", res.Env["path"])
			assert.NotEmpty(t, res.Env["requestId"])
			assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.failures))
		})
	}
}

func TestFallbackDevelopmentCarriesBothFaults(t *testing.T) {
	rec := &logtest.Recorder{}
	rec.FailOn("error", errors.New("sink down"))
	r, _ := newEngine(rec, WithMode(apierror.Development))

	res := do(t, r, get("/boom"))
	details := res.err()["details"].(map[string]any)
	orig := details["originalError"].(map[string]any)
	handling := details["handlingError"].(map[string]any)
	assert.Equal(t, "db down", orig["message"])
	assert.Contains(t, handling["message"], "sink down")
}

func TestFallbackWhenRenderFails(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, get("/unrenderable"))
	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "ERROR_HANDLER_FAILED", res.err()["code"])

	errs := rec.Level("error")
	require.Len(t, errs, 2)
	assert.Equal(t, "API Error", errs[0].Message)
	assert.Equal(t, "Error Handler Failed", errs[1].Message)
	assert.Contains(t, errs[1].Fields["handlingError"].(map[string]string)["message"], "render envelope")
}

func TestAlreadyWrittenResponseIsLeftAlone(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec)

	res := do(t, r, get("/late"))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Raw)

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	assert.Equal(t, true, errs[0].Fields["responseCommitted"])
}

func TestHandle_NilFaultIsNoop(t *testing.T) {
	rec := &logtest.Recorder{}
	h := New(rec)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = get("/")
	h.Handle(c, nil)
	assert.False(t, c.Writer.Written())
	assert.Empty(t, rec.Entries())
}

func TestErrorLogCarriesRequestContext(t *testing.T) {
	rec := &logtest.Recorder{}
	r, _ := newEngine(rec, WithMaskHeaders("X-Api-Key"))

	req := postJSON("/signup?ref=home", `{"email":"x"}`)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "k")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	res := do(t, r, req)
	assert.Equal(t, "203.0.113.9", res.Env["ip"])

	errs := rec.Level("error")
	require.Len(t, errs, 1)
	rc := errs[0].Fields["request"].(RequestContext)
	assert.Equal(t, http.MethodPost, rc.Method)
	assert.Equal(t, "/signup", rc.Path)
	assert.Equal(t, "203.0.113.9", rc.ClientIP)
	assert.Equal(t, []string{"home"}, rc.Query["ref"])
	assert.JSONEq(t, `{"email":"x"}`, string(rc.Body.(json.RawMessage)))
	assert.Equal(t, "[REDACTED]", rc.Headers["Authorization"])
	assert.Equal(t, "[REDACTED]", rc.Headers["X-Api-Key"])
	assert.Equal(t, "application/json", rc.Headers["Content-Type"])
}

func TestMetricsCountClassifiedErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, h := newEngine(&logtest.Recorder{}, WithRegisterer(reg))

	do(t, r, get("/nope"))
	do(t, r, get("/nope"))
	do(t, r, get("/boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.errors.WithLabelValues("NotFound", "")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.errors.WithLabelValues("Internal", CodeInternal)))
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.failures))
}

func TestSpanRecordsError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := &logtest.Recorder{}
	h := New(rec)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx, span := tp.Tracer("test").Start(c.Request.Context(), c.Request.URL.Path)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.End()
	})
	r.Use(middleware.RequestID(rec))
	r.Use(h.Middleware())
	r.NoRoute(h.NotFound())
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })

	do(t, r, get("/nope"))
	do(t, r, get("/boom"))

	spans := sr.Ended()
	require.Len(t, spans, 2)

	notFound, internal := spans[0], spans[1]
	require.Len(t, notFound.Events(), 1)
	assert.Equal(t, "exception", notFound.Events()[0].Name)
	assert.NotEqual(t, codes.Error, notFound.Status().Code)
	assert.Equal(t, codes.Error, internal.Status().Code)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		xff    []string
		remote string
		want   string
	}{
		{"single forwarded", []string{"203.0.113.5"}, "192.0.2.1:1234", "203.0.113.5"},
		{"comma list", []string{" 203.0.113.5 , 10.0.0.1"}, "192.0.2.1:1234", "203.0.113.5"},
		{"several header lines", []string{"198.51.100.7", "10.0.0.1"}, "", "198.51.100.7"},
		{"blank forwarded", []string{"  "}, "192.0.2.1:1234", "192.0.2.1"},
		{"peer v4", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"peer v6", nil, "[::1]:8080", "::1"},
		{"peer unsplittable", nil, "pipe", "pipe"},
		{"nothing", nil, "", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := get("/")
			req.RemoteAddr = tc.remote
			for _, v := range tc.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}

func TestBuildEnvelopeShape(t *testing.T) {
	e := apierror.Unauthorized("login required",
		apierror.WithCode("AUTH_REQUIRED"),
		apierror.WithSource("/me"),
	)
	rc := RequestContext{Path: "/me", RequestID: "rid", ClientIP: "1.2.3.4"}

	got, err := json.Marshal(BuildEnvelope(e, apierror.Production, rc))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"error": {"name":"UnauthorizedError","message":"login required","statusCode":401,
		          "code":"AUTH_REQUIRED","source":"/me"},
		"path":"/me","requestId":"rid","ip":"1.2.3.4"}`, string(got))

	dev := BuildEnvelope(e, apierror.Development, rc)
	assert.NotEmpty(t, dev.Error.Stack)
}

func TestLoggableBody(t *testing.T) {
	assert.Nil(t, loggableBody(nil))
	assert.Equal(t, "a=b", loggableBody([]byte("a=b")))
	assert.Equal(t, json.RawMessage(`[1]`), loggableBody([]byte(`[1]`)))
}
