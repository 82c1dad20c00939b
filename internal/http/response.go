package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/fjod/go_cart/fulfillment-service/pkg/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts an operation error into an HTTP status. Business
// errors carry their message to the caller; faults do not.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var httpStatus int
	var code string

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		httpStatus, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrOutOfStock):
		httpStatus, code = http.StatusConflict, "out_of_stock"
	case errors.Is(err, domain.ErrInvalidTransition):
		httpStatus, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrPermissionDenied):
		httpStatus, code = http.StatusForbidden, "permission_denied"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, domain.ErrUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	default:
		httpStatus, code = http.StatusInternalServerError, "internal_error"
	}

	if domain.IsBusiness(err) {
		respondJSON(w, httpStatus, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.FromContext(r.Context(), zap.L()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	message := "internal server error"
	if httpStatus != http.StatusInternalServerError {
		message = "service temporarily unavailable, try again"
	}
	respondError(w, httpStatus, code, message)
}
