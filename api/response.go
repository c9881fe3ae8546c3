package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"clubledger/service"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// envelope is the body of every JSON response
type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

var kindStatus = map[service.ErrorKind]int{
	service.KindUnauthenticated:              http.StatusUnauthorized,
	service.KindPermissionDenied:             http.StatusForbidden,
	service.KindInvalidArgument:              http.StatusBadRequest,
	service.KindNotFound:                     http.StatusNotFound,
	service.KindChargeNotPending:             http.StatusConflict,
	service.KindTransactionNotPending:        http.StatusConflict,
	service.KindInsufficientAvailableBalance: http.StatusUnprocessableEntity,
	service.KindInsufficientFunds:            http.StatusUnprocessableEntity,
	service.KindInternal:                     http.StatusServiceUnavailable,
}

// statusForKind maps a service error kind to an HTTP status
func statusForKind(kind service.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: &body}); err != nil {
		log.WithError(err).Warn("Failed to encode error response")
	}
}

// writeError reports a service error. Internal failures keep their detail in
// the log and show a generic message to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)

	message := err.Error()
	var svcErr *service.Error
	if errors.As(err, &svcErr) && svcErr.Message != "" && kind != service.KindInternal {
		message = svcErr.Message
	}

	if kind == service.KindInternal {
		log.WithFields(log.Fields{
			"requestId": middleware.GetReqID(r.Context()),
			"method":    r.Method,
			"path":      r.URL.Path,
		}).WithError(err).Error("Request failed")
		message = "the ledger is temporarily unavailable, please retry"
	}

	writeErrorBody(w, status, errorBody{Code: string(kind), Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeErrorBody(w, http.StatusBadRequest, errorBody{Code: string(service.KindInvalidArgument), Message: message})
}

func writeValidationError(w http.ResponseWriter, details map[string]string) {
	writeErrorBody(w, http.StatusUnprocessableEntity, errorBody{
		Code:    "validation_failed",
		Message: "request validation failed",
		Details: details,
	})
}
