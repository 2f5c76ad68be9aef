// Package response provides JSON response formatting for handlers that
// sit outside the OpenAPI surface. Errors use the GraphQL response
// shape, an "errors" array with machine-readable codes under extensions,
// so GraphQL clients parse transport-level failures with the same code
// path as field errors.
package response

import (
	"encoding/json/v2"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// GraphQLError is one entry in the errors array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Envelope mirrors the GraphQL response body structure.
type Envelope struct {
	Data   any            `json:"data,omitempty"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// JSON writes an envelope with the given status code using json/v2.
func JSON(w http.ResponseWriter, status int, envelope Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	// json/v2 MarshalWrite doesn't add a newline, but that's fine for HTTP responses.
	if err := json.MarshalWrite(w, envelope); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Error writes a single-error envelope with a machine-readable code.
func Error(w http.ResponseWriter, status int, message, code string, logger *slog.Logger) {
	JSON(w, status, Envelope{
		Errors: []GraphQLError{{
			Message:    message,
			Extensions: map[string]any{"code": code},
		}},
	}, logger)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, message, string(apperrors.CodeUnauthenticated), logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, message, string(apperrors.CodeNotFound), logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, message, string(apperrors.CodeInternal), logger)
}

// HandleError writes a response based on the error type. Domain errors
// carry their own status and extensions, store errors map through their
// HTTP code, unknown errors become 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		JSON(w, appErr.HTTPStatus(), Envelope{
			Errors: []GraphQLError{{
				Message:    appErr.Message,
				Extensions: appErr.Extensions(),
			}},
		}, logger)
		return
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		Error(w, storeErr.HTTPCode(), storeErr.Message, codeForStatus(storeErr.HTTPCode()), logger)
		return
	}

	// Unknown error = 500
	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	InternalError(w, "internal server error", logger)
}

// codeForStatus maps store HTTP codes to domain error codes.
func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(apperrors.CodeNotFound)
	case http.StatusConflict:
		return string(apperrors.CodeAlreadyExists)
	case http.StatusBadRequest:
		return string(apperrors.CodeInvalidInput)
	default:
		return string(apperrors.CodeInternal)
	}
}
