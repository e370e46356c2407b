package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_KeepsAppErrorAndHidesStorageErrors(t *testing.T) {
	notFound := fmt.Errorf("lookup: %w", NewNotFound("stock item", "p1"))
	assert.Equal(t, notFound, Wrap(notFound))

	raw := errors.New("pq: relation does not exist")
	wrapped := Wrap(raw)
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.Equal(t, "Internal server error", appErr.Message)
	assert.ErrorIs(t, wrapped, raw)

	assert.NoError(t, Wrap(nil))
}

func TestInsufficientStockDetails(t *testing.T) {
	err := NewInsufficientStock("p1", decimal.NewFromInt(80), decimal.NewFromInt(70))

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, "80", err.Details["requested"])
	assert.Equal(t, "70", err.Details["available"])
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("cancel: %w", NewInvalidState("reservation is not active"))

	assert.True(t, HasCode(err, CodeInvalidState))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInvalidState))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestPermissionDenied(t *testing.T) {
	err := NewPermissionDenied("stock", "adjust")

	assert.Equal(t, CodePermissionDenied, err.Code)
	assert.Equal(t, http.StatusForbidden, err.HTTPStatus)
	assert.Equal(t, "PERMISSION_DENIED: permission denied: stock:adjust", err.Error())
}
