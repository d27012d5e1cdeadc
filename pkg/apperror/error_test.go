package apperror

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"log/slog"
)

func TestErrorString(t *testing.T) {
	err := ErrCostLimit.WithMessage("per-job budget of $2.00 exhausted")
	assert.Equal(t, "cost_limit: per-job budget of $2.00 exhausted", err.Error())

	inner := errors.New("redis: connection refused")
	wrapped := ErrInternal.WithInternal(inner)
	assert.Contains(t, wrapped.Error(), "connection refused")
	assert.Equal(t, inner, errors.Unwrap(wrapped))
}

func TestWithCopiesDoNotMutate(t *testing.T) {
	base := ErrBadRequest
	custom := base.WithMessage("invalid job ID")
	assert.Equal(t, "Invalid request", base.Message)
	assert.Equal(t, "invalid job ID", custom.Message)
	assert.Equal(t, base.Code, custom.Code)

	detailed := custom.WithDetails(map[string]any{"field": "job_id"})
	assert.Nil(t, custom.Details)
	assert.Equal(t, "job_id", detailed.Details["field"])
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"app error", ErrImportInProgress, http.StatusConflict, "import_in_progress"},
		{"cost limit", ErrCostLimit, http.StatusPaymentRequired, "cost_limit"},
		{"echo error", echo.NewHTTPError(http.StatusNotFound, "no such route"), http.StatusNotFound, "not_found"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			c := e.NewContext(req, rec)

			handler := HTTPErrorHandler(slog.Default())
			handler(tt.err, c)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}
