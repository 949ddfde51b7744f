package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/validator"
)

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Data: data})
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, response{Error: &errorResponse{Code: code, Message: message}})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeError переводит доменную ошибку в HTTP-статус и код.
func writeError(w http.ResponseWriter, logger *log.Entry, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, response{Error: &errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}})
		return
	}

	var remoteErr *domain.RemoteError
	status, code, message := http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	switch {
	case domain.IsNotFound(err), errors.Is(err, domain.ErrDeviceNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrProductExists):
		status, code, message = http.StatusConflict, "ALREADY_EXISTS", err.Error()
	case errors.Is(err, domain.ErrEmptyCart):
		status, code, message = http.StatusUnprocessableEntity, "EMPTY_CART", err.Error()
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrQuantityInvalid),
		errors.Is(err, domain.ErrShopNameRequired),
		errors.Is(err, domain.ErrCatalogIDRequired):
		status, code, message = http.StatusBadRequest, "INVALID_INPUT", err.Error()
	case errors.Is(err, domain.ErrInvalidPassword):
		status, code, message = http.StatusUnauthorized, "UNAUTHORIZED", err.Error()
	case errors.Is(err, domain.ErrBusy):
		status, code, message = http.StatusConflict, "PRINTER_BUSY", err.Error()
	case errors.Is(err, domain.ErrNotConnected):
		status, code, message = http.StatusConflict, "PRINTER_NOT_CONNECTED", err.Error()
	case errors.Is(err, domain.ErrNotSupported):
		status, code, message = http.StatusNotImplemented, "NOT_SUPPORTED", err.Error()
	case errors.Is(err, domain.ErrNoWritableChannel), errors.Is(err, domain.ErrWriteFailed):
		status, code, message = http.StatusBadGateway, "PRINTER_ERROR", err.Error()
	case errors.Is(err, domain.ErrRemoteNotConfigured):
		status, code, message = http.StatusConflict, "REMOTE_NOT_CONFIGURED", err.Error()
	case errors.Is(err, domain.ErrRemoteUnreachable):
		status, code, message = http.StatusServiceUnavailable, "REMOTE_UNREACHABLE", err.Error()
	case errors.As(err, &remoteErr), errors.Is(err, domain.ErrRemoteNotFound), errors.Is(err, domain.ErrRemoteServer):
		status, code, message = http.StatusBadGateway, "REMOTE_ERROR", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "TIMEOUT", err.Error()
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.WithError(err).Error("request failed")
	}
	writeErrorCode(w, status, code, message)
}
