package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "GET, POST, OPTIONS"
)

// CORS lets the storefront call the API from any origin. Preflight requests
// are answered here with an empty 200.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger puts the chi request id into the context logger fields and
// logs one line per request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))

			next.ServeHTTP(ww, r.WithContext(ctx))

			log.InfoContext(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr)
		})
	}
}

// RecoverJSON turns a panic into the generic 500 JSON body.
func RecoverJSON(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.ErrorContext(r.Context(), "panic while handling request",
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()))
				respondJSON(w, r, http.StatusInternalServerError, ErrorResponse{
					Error:   msgUnexpected,
					Code:    "internal_error",
					Details: fmt.Sprint(rec),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity authenticates the bearer token and stores the identity in
// the request context.
func RequireIdentity(authn auth.Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(r, authn)
			if err != nil {
				respondAuthError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func authenticate(r *http.Request, authn auth.Authenticator) (*auth.Identity, error) {
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}
	return authn.Authenticate(r.Context(), token)
}
