package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"clubledger/infrastructure"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxIdempotencyKey = 128
)

// IdempotencyStore remembers the outcome of requests carrying an Idempotency-Key
type IdempotencyStore interface {
	Begin(ctx context.Context, key string) (*infrastructure.StoredResponse, error)
	Complete(ctx context.Context, key string, response infrastructure.StoredResponse) error
	Release(ctx context.Context, key string) error
}

// capturingWriter passes a response through while keeping a copy of it
type capturingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *capturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *capturingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

// idempotent replays the stored response of a repeated submission instead of
// running next again. Keys are scoped to the caller and route. Requests
// without a key, or served without a store, run normally.
func (h *Handler) idempotent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if h.idempotency == nil || key == "" {
			next(w, r)
			return
		}
		if len(key) > maxIdempotencyKey {
			writeBadRequest(w, "idempotency key is too long")
			return
		}

		scoped := caller(r).AccountID + ":" + r.Method + ":" + r.URL.Path + ":" + key
		logger := log.WithFields(log.Fields{
			"requestId": middleware.GetReqID(r.Context()),
			"key":       key,
		})

		stored, err := h.idempotency.Begin(r.Context(), scoped)
		switch {
		case errors.Is(err, infrastructure.ErrIdempotencyInFlight):
			writeErrorBody(w, http.StatusConflict, errorBody{
				Code:    "request_in_progress",
				Message: "a request with this idempotency key is still in progress",
			})
			return
		case err != nil:
			// Without the store the request still runs, just without replay protection
			logger.WithError(err).Warn("Idempotency store unavailable")
			next(w, r)
			return
		case stored != nil:
			logger.Debug("Replaying stored response")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(replayedHeader, "true")
			w.WriteHeader(stored.Status)
			_, _ = w.Write(stored.Body)
			return
		}

		// A panicking handler never reaches Complete; the key must not stay in flight
		finished := false
		defer func() {
			if finished {
				return
			}
			if err := h.idempotency.Release(context.WithoutCancel(r.Context()), scoped); err != nil {
				logger.WithError(err).Warn("Failed to release idempotency key")
			}
		}()

		cw := &capturingWriter{ResponseWriter: w}
		next(cw, r)
		finished = true

		// Failures the client may retry are forgotten, everything else is remembered
		if cw.status >= http.StatusInternalServerError {
			if err := h.idempotency.Release(context.WithoutCancel(r.Context()), scoped); err != nil {
				logger.WithError(err).Warn("Failed to release idempotency key")
			}
			return
		}
		body := bytes.TrimSpace(cw.body.Bytes())
		if len(body) == 0 {
			body = []byte("null")
		}
		response := infrastructure.StoredResponse{Status: cw.status, Body: body}
		if err := h.idempotency.Complete(context.WithoutCancel(r.Context()), scoped, response); err != nil {
			logger.WithError(err).Warn("Failed to store idempotent response")
		}
	}
}
