package handlers

import (
	"net/http"

	"github.com/upb/auth-service/services"
	"github.com/upb/auth-service/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. The body carries
// the domain code so clients can tell a revoked token from a replayed one,
// while credential failures share one message and never echo the cause.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	status, message := http.StatusInternalServerError, "An internal error occurred"
	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err):
		status, message = http.StatusNotFound, err.Error()
	case services.IsValidationError(err):
		status, message = http.StatusBadRequest, err.Error()
	case services.IsUnauthorizedError(err):
		status, message = http.StatusUnauthorized, "Could not validate credentials"
		if services.GetErrorCode(err) == services.CodeInvalidCredentials {
			message = "Incorrect username or password"
		}
		details = nil
	case services.IsForbiddenError(err):
		status, message = http.StatusForbidden, "Insufficient permissions"
	case services.IsRateLimitError(err):
		status, message = http.StatusTooManyRequests, err.Error()
	case services.IsConflictError(err):
		status, message = http.StatusConflict, err.Error()
	case services.IsUnavailableError(err):
		logger.Error("dependency unavailable", zap.Error(err))
		status, message, details = http.StatusServiceUnavailable, "Service temporarily unavailable", nil
	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		details = nil
	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		message, details = "An unexpected error occurred", nil
	}

	if err := utils.WriteError(w, status, errorCode(err), message, details); err != nil {
		logger.Error("failed to write error response", zap.Int("status", status), zap.Error(err))
	}
}

// errorCode is the domain code of err, or its type when the error carries
// no code of its own
func errorCode(err error) string {
	if code := services.GetErrorCode(err); code != "" {
		return string(code)
	}
	if t := services.GetErrorType(err); t != "" {
		return string(t)
	}
	return "internal"
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
