package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
)

const testCourseID = "3f1f9be2-6c1a-4c62-9ef1-0a9f6f3f8a11"

// fakeAuthenticator resolves every key to a fixed account, or fails.
type fakeAuthenticator struct {
	account shared.AccountID
	err     error
}

func (f fakeAuthenticator) Authenticate(_ context.Context, _ string) (shared.AccountID, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.account, nil
}

func newTestServer(t *testing.T, mutate func(*Config, *Dependencies)) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	deps := Dependencies{}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	return NewServer(cfg, deps)
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Payment rejection
// ─────────────────────────────────────────────────────────────────────────────

func TestPaymentHeader_Rejected(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Payment-Amount", "5")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "value_transfer_rejected", decodeEnvelope(t, rec).Error.Code)
}

func TestPaymentHeader_ZeroAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Payment-Amount", "0")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaymentBodyField_Rejected(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Authenticator = fakeAuthenticator{account: "acct:owner"}
	})

	body := strings.NewReader(`{"name":"Distributed Systems","term":"2026-spring","payment_amount":10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", body)
	req.Header.Set("Authorization", "Bearer some-valid-api-key")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "value_transfer_rejected", decodeEnvelope(t, rec).Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Identity
// ─────────────────────────────────────────────────────────────────────────────

func TestIdentity_MissingKeyOnGuardedRoute(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Authenticator = fakeAuthenticator{account: "acct:owner"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(`{}`))

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "identity_required", decodeEnvelope(t, rec).Error.Code)
}

func TestIdentity_NonBearerScheme(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Authenticator = fakeAuthenticator{account: "acct:owner"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_authorization", decodeEnvelope(t, rec).Error.Code)
}

func TestIdentity_RejectedKey(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Authenticator = fakeAuthenticator{err: ErrInvalidAPIKey}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer revoked-key")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_api_key", decodeEnvelope(t, rec).Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Request decoding
// ─────────────────────────────────────────────────────────────────────────────

func TestInvalidCourseID(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Authenticator = fakeAuthenticator{account: "acct:coordinator"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/not-a-uuid/close", nil)
	req.Header.Set("Authorization", "Bearer some-valid-api-key")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_course_id", decodeEnvelope(t, rec).Error.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.Authenticator = fakeAuthenticator{account: "acct:owner"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses", strings.NewReader(`{broken`))
	req.Header.Set("Authorization", "Bearer some-valid-api-key")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_body", decodeEnvelope(t, rec).Error.Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

func TestWriteDomainError_StatusMapping(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"payment", shared.ErrValueTransferRejected, http.StatusPaymentRequired, "value_transfer_rejected"},
		{"role rejection", shared.NewDomainError("course", "AddTeacher", shared.ErrPermissionDenied, "caller is not the coordinator"), http.StatusForbidden, "permission_denied"},
		{"closed course", shared.ErrCourseClosed, http.StatusConflict, "course_closed"},
		{"duplicate enrollment", shared.ErrAlreadyEnrolled, http.StatusConflict, "conflict"},
		{"duplicate document", shared.ErrDuplicateDocument, http.StatusConflict, "conflict"},
		{"not enrolled", shared.ErrNotEnrolled, http.StatusNotFound, "not_found"},
		{"missing entity", shared.ErrNotFound, http.StatusNotFound, "not_found"},
		{"bad index", shared.ErrInvalidEvaluationIndex, http.StatusUnprocessableEntity, "invalid_input"},
		{"score range", shared.ErrScoreOutOfRange, http.StatusUnprocessableEntity, "invalid_input"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/courses/"+testCourseID+"/counts", nil)

			s.writeDomainError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeEnvelope(t, rec).Error.Code)
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Plumbing
// ─────────────────────────────────────────────────────────────────────────────

func TestRequestID_Echoed(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "req-42")

	rec := doRequest(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", decodeEnvelope(t, rec).RequestID)
}

func TestRequestID_GeneratedWhenAbsent(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRoot_UnknownEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth_Degraded(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.HealthCheckers = map[string]HealthChecker{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}
	})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeEnvelope(t, rec)
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var health healthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "ok", health.Services["postgres"])
}

func TestHealth_AllHealthy(t *testing.T) {
	s := newTestServer(t, func(_ *Config, deps *Dependencies) {
		deps.HealthCheckers = map[string]HealthChecker{
			"postgres": func(context.Context) error { return nil },
		}
	})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_Exceeded(t *testing.T) {
	s := newTestServer(t, func(cfg *Config, _ *Dependencies) {
		cfg.RateLimitPerMinute = 2
	})

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/live", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		return r
	}

	assert.Equal(t, http.StatusOK, doRequest(s, req()).Code)
	assert.Equal(t, http.StatusOK, doRequest(s, req()).Code)

	rec := doRequest(s, req())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", getClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "203.0.113.9", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	assert.Equal(t, "198.51.100.4", getClientIP(req))
}
