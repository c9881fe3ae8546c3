package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"clubledger/identity"
	"clubledger/models"
	"clubledger/service"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const callerKey contextKey = "caller"

// CallerResolver turns a bearer token into the identity of the caller
type CallerResolver interface {
	Resolve(ctx context.Context, token string) (models.CallerIdentity, error)
}

// requestLogger logs every request once it has been served
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := log.Fields{
			"requestId": middleware.GetReqID(r.Context()),
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    status,
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start).String(),
		}

		entry := log.WithFields(fields)
		if status >= 500 {
			entry.Warn("HTTP request")
			return
		}
		entry.Info("HTTP request")
	})
}

// requireCaller rejects requests without a valid bearer token and stores the
// resolved caller in the request context
func requireCaller(resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := identity.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeErrorBody(w, http.StatusUnauthorized, errorBody{
					Code:    string(service.KindUnauthenticated),
					Message: "missing or malformed authorization header",
				})
				return
			}

			caller, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrExpiredToken):
					writeErrorBody(w, http.StatusUnauthorized, errorBody{Code: string(service.KindUnauthenticated), Message: "token expired"})
				case errors.Is(err, identity.ErrInvalidToken):
					writeErrorBody(w, http.StatusUnauthorized, errorBody{Code: string(service.KindUnauthenticated), Message: "invalid token"})
				default:
					writeError(w, r, err)
				}
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func callerFrom(ctx context.Context) (models.CallerIdentity, bool) {
	caller, ok := ctx.Value(callerKey).(models.CallerIdentity)
	return caller, ok
}

// caller returns the identity stored by requireCaller; unauthenticated otherwise
func caller(r *http.Request) models.CallerIdentity {
	c, _ := callerFrom(r.Context())
	return c
}
