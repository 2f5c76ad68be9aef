package response

import (
	"encoding/json/v2"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

func TestJSON_WritesEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	JSON(w, http.StatusOK, Envelope{Data: map[string]string{"key": "value"}}, logger)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Errors)
}

func TestJSON_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, Envelope{Data: "test"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "test", result.Data)
}

func TestError_CarriesCodeInExtensions(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	Error(w, http.StatusTeapot, "something went wrong", "SOME_CODE", logger)

	assert.Equal(t, http.StatusTeapot, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "something went wrong", result.Errors[0].Message)
	assert.Equal(t, "SOME_CODE", result.Errors[0].Extensions["code"])
	assert.Nil(t, result.Data)
}

func TestUnauthorized(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	Unauthorized(w, "authentication required", logger)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "authentication required", result.Errors[0].Message)
	assert.Equal(t, string(apperrors.CodeUnauthenticated), result.Errors[0].Extensions["code"])
}

func TestNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	NotFound(w, "resource not found", logger)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, string(apperrors.CodeNotFound), result.Errors[0].Extensions["code"])
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appErr := apperrors.TokenExpired("token expired")
	HandleError(w, appErr, logger)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "token expired", result.Errors[0].Message)
	assert.Equal(t, string(apperrors.CodeTokenExpired), result.Errors[0].Extensions["code"])
}

func TestHandleError_DomainErrorDetails(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appErr := apperrors.InvalidInputWithDetails("validation failed", map[string]string{
		"title": "must be at least 4 characters",
	})
	HandleError(w, appErr, logger)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, string(apperrors.CodeInvalidInput), result.Errors[0].Extensions["code"])

	details, ok := result.Errors[0].Extensions["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "must be at least 4 characters", details["title"])
}

func TestHandleError_StoreError(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	HandleError(w, store.ErrNotFound.WithMessage("book not found"), logger)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "book not found", result.Errors[0].Message)
	assert.Equal(t, string(apperrors.CodeNotFound), result.Errors[0].Extensions["code"])
}

func TestHandleError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	HandleError(w, errors.New("wat"), logger)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var result Envelope
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "internal server error", result.Errors[0].Message)
	assert.Equal(t, string(apperrors.CodeInternal), result.Errors[0].Extensions["code"])
}

func TestEnvelope_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(Envelope{Data: "test"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"data\":\"test\"")
	assert.NotContains(t, string(data), "\"errors\":")

	data, err = json.Marshal(Envelope{Errors: []GraphQLError{{Message: "failed"}}})
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"errors\":")
	assert.NotContains(t, string(data), "\"data\":")
}
