package http

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/campus-hub/campus-course-hub/internal/domain/shared"
	"github.com/campus-hub/campus-course-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST ID / LOGGING / RECOVERY
// ══════════════════════════════════════════════════════════════════════════════

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		s.logger.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Int64("duration_ms", duration.Milliseconds()),
			logger.String("ip", getClientIP(r)),
			logger.String("request_id", getRequestID(r.Context())),
		)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", getRequestID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, o := range s.config.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware implements per-IP rate limiting.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)

		if !s.rateLimiter.Allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

// identityMiddleware resolves the Authorization bearer key to an account
// identity and stores it in the request context. A missing header leaves
// the request anonymous; only the unguarded queries accept that. An
// invalid or revoked key is rejected outright.
func (s *Server) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || s.deps.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "invalid_authorization", "Authorization header must use the Bearer scheme")
			return
		}

		account, err := s.deps.Authenticator.Authenticate(r.Context(), strings.TrimSpace(key))
		if err != nil {
			s.logger.Warn("api key rejected",
				logger.String("ip", getClientIP(r)),
				logger.String("request_id", getRequestID(r.Context())),
			)
			writeJSONError(w, http.StatusUnauthorized, "invalid_api_key", "API key is unknown or revoked")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyAccount, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerAccount returns the resolved identity of the request, if any.
func callerAccount(ctx context.Context) (shared.AccountID, bool) {
	account, ok := ctx.Value(contextKeyAccount).(shared.AccountID)
	return account, ok
}

// requireCaller returns the resolved identity or writes a 401 response.
func requireCaller(w http.ResponseWriter, r *http.Request) (shared.AccountID, bool) {
	account, ok := callerAccount(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "identity_required", "This operation requires an API key")
	}
	return account, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// VALUE-TRANSFER REJECTION
// ══════════════════════════════════════════════════════════════════════════════

// paymentRejectionMiddleware rejects any request that carries a payment
// indication. The record system accepts no value transfers on any
// operation; the check runs before any handler.
func (s *Server) paymentRejectionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if amount := r.Header.Get("X-Payment-Amount"); amount != "" && amount != "0" {
			writeJSONError(w, http.StatusPaymentRequired, "value_transfer_rejected", shared.ErrValueTransferRejected.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
