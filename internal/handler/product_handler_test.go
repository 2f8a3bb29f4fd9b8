package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ecorder/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestWriteError_AppErrorKeepsStatusAndProductID(t *testing.T) {
	c, rec := newTestContext("/orders")

	err := &usecase.AppError{
		Status:    http.StatusConflict,
		Code:      usecase.CodeInsufficientStock,
		Message:   "Not enough stock for Lamp",
		ProductID: 12,
	}
	require.NoError(t, writeError(c, fmt.Errorf("place order: %w", err)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
	assert.Equal(t, "Not enough stock for Lamp", body.Error)
	assert.Equal(t, int64(12), body.ProductID)
}

// 想定外のエラーは中身を出さない
func TestWriteError_UnknownErrorIsInternal(t *testing.T) {
	c, rec := newTestContext("/orders")

	require.NoError(t, writeError(c, errors.New("pq: relation does not exist")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, string(usecase.CodeInternal), body.Code)
	assert.Equal(t, "internal error", body.Error)
	assert.Zero(t, body.ProductID)
}

func TestQueryHelpers(t *testing.T) {
	c, _ := newTestContext("/products?page=2&limit=x&category_id=5&min_price=1.50&max_price=abc")

	page, ok := queryInt(c, "page", 1)
	assert.True(t, ok)
	assert.Equal(t, 2, page)

	_, ok = queryInt(c, "limit", 20)
	assert.False(t, ok)

	def, ok := queryInt(c, "missing", 20)
	assert.True(t, ok)
	assert.Equal(t, 20, def)

	cat, ok := queryInt64Ptr(c, "category_id")
	require.True(t, ok)
	require.NotNil(t, cat)
	assert.Equal(t, int64(5), *cat)

	minPrice, ok := queryDecimalPtr(c, "min_price")
	require.True(t, ok)
	assert.Equal(t, "1.5", minPrice.String())

	_, ok = queryDecimalPtr(c, "max_price")
	assert.False(t, ok)
}

func TestPathID(t *testing.T) {
	c, _ := newTestContext("/orders/7")
	c.SetParamNames("id")
	c.SetParamValues("7")
	id, ok := pathID(c, "id")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	c.SetParamValues("-1")
	_, ok = pathID(c, "id")
	assert.False(t, ok)

	c.SetParamValues("abc")
	_, ok = pathID(c, "id")
	assert.False(t, ok)
}
