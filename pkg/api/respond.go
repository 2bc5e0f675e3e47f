package api

import (
	"net/http"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"

	"github.com/goccy/go-json"
)

// Response is the envelope of every API reply.
type Response struct {
	Status    string    `json:"status"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, logger logging.Logger, status int, response *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logger.Errorf("Failed to marshal JSON response, error: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.Errorf("Failed to write JSON response, error: %v", err)
	}
}

func respondData(w http.ResponseWriter, logger logging.Logger, status int, data any) {
	respondJSON(w, logger, status, &Response{
		Status:    "ok",
		Data:      data,
		Timestamp: time.Now(),
	})
}

// respondError maps a domain error onto an HTTP status and error code.
func respondError(w http.ResponseWriter, logger logging.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("API error, code: %s, error: %v", code, err)
	} else {
		logger.Debugf("API request rejected, code: %s, error: %v", code, err)
	}

	respondJSON(w, logger, status, &Response{
		Status: "error",
		Error: &APIError{
			Code:    code,
			Message: err.Error(),
		},
		Timestamp: time.Now(),
	})
}

func errorStatus(err error) (int, string) {
	errorType := errors.TypeOf(err)
	if errorType == "" {
		errorType = errors.ErrorTypeInternal
	}

	switch errorType {
	case errors.ErrorTypeInvalidConfig, errors.ErrorTypeValidation:
		return http.StatusBadRequest, string(errorType)
	case errors.ErrorTypeUnknownTarget:
		return http.StatusNotFound, string(errorType)
	case errors.ErrorTypeConflict:
		return http.StatusConflict, string(errorType)
	case errors.ErrorTypeUnsupported:
		return http.StatusNotImplemented, string(errorType)
	case errors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, string(errorType)
	case errors.ErrorTypeDriverUnavailable, errors.ErrorTypeRestartFailed:
		return http.StatusBadGateway, string(errorType)
	case errors.ErrorTypeCancelled:
		return http.StatusServiceUnavailable, string(errorType)
	default:
		return http.StatusInternalServerError, string(errorType)
	}
}
