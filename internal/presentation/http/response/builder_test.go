package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/parcel/internal/dto"
	"github.com/Additional-Code/parcel/internal/presentation/http/response"
	"github.com/Additional-Code/parcel/pkg/errorbank"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return echo.New().NewContext(req, rec), rec
}

func TestBuilder_Success(t *testing.T) {
	c, rec := newContext()

	err := response.New(c).WithData([]int{1, 2}).WithPage(dto.Page{Number: 2, Size: 2}, 5).Build()

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool           `json:"success"`
		Data    []int          `json:"data"`
		Meta    map[string]int `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, []int{1, 2}, body.Data)
	assert.Equal(t, map[string]int{"page": 2, "limit": 2, "total": 5, "pages": 3}, body.Meta)
}

func TestBuilder_Error(t *testing.T) {
	c, rec := newContext()

	err := response.New(c).WithError(errorbank.QuotaExceeded("daily pickup limit reached", errorbank.WithDetail("limit", 5))).Build()

	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":{"kind":"quota_exceeded","message":"daily pickup limit reached","details":{"limit":5}}}`, rec.Body.String())
}
