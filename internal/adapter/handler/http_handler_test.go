package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, f *fixture, checks ...HealthCheck) http.Handler {
	t.Helper()
	return NewHTTPHandler(f.orders, f.catalog, zap.NewNop(), checks...).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_Created(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestServer(t, f)

	rec := do(t, h, http.MethodPost, "/orders", CreateOrderRequest{
		CustomerEmail: "test@example.com",
		Items: []OrderItemRequest{
			{ProductID: f.products["Laptop"].ID, Quantity: 2},
			{ProductID: f.products["Monitor"].ID, Quantity: 3},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got OrderDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.NotEmpty(t, got.ID)
	assert.True(t, decimal.NewFromInt(800).Equal(got.Total), "total %s", got.Total)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Laptop", got.Items[0].ProductName)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Len(t, f.publisher.events, 1)
}

func TestCreateOrder_BadRequests(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestServer(t, f)
	laptop := f.products["Laptop"].ID

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"malformed json", `{"customerEmail":`, ""},
		{"invalid email", CreateOrderRequest{CustomerEmail: "not-an-email", Items: []OrderItemRequest{{ProductID: laptop, Quantity: 1}}}, "customer_email"},
		{"no items", CreateOrderRequest{CustomerEmail: "test@example.com"}, "items"},
		{"zero quantity", CreateOrderRequest{CustomerEmail: "test@example.com", Items: []OrderItemRequest{{ProductID: laptop, Quantity: 0}}}, "items[0].quantity"},
		{"unknown product", CreateOrderRequest{CustomerEmail: "test@example.com", Items: []OrderItemRequest{{ProductID: "nope", Quantity: 1}}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/orders", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.field, resp.Field)
		})
	}
	assert.Empty(t, f.publisher.events)
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	f := newFixture(t, brokenOrders{})
	h := newTestServer(t, f)

	rec := do(t, h, http.MethodPost, "/orders", CreateOrderRequest{
		CustomerEmail: "test@example.com",
		Items:         []OrderItemRequest{{ProductID: f.products["Laptop"].ID, Quantity: 1}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), errDatabaseDown.Error())
	assert.Empty(t, f.publisher.events)
}

func TestOrderQueries(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestServer(t, f)

	for _, email := range []string{"a@example.com", "b@example.com", "a@example.com"} {
		rec := do(t, h, http.MethodPost, "/orders", CreateOrderRequest{
			CustomerEmail: email,
			Items:         []OrderItemRequest{{ProductID: f.products["Laptop"].ID, Quantity: 1}},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var all []OrderDTO
	rec := do(t, h, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all, 3)

	var byEmail []OrderDTO
	rec = do(t, h, http.MethodGet, "/orders?email=a@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&byEmail))
	assert.Len(t, byEmail, 2)

	rec = do(t, h, http.MethodGet, "/orders/"+all[0].ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/orders/"+all[0].ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/orders/"+all[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductCRUD(t *testing.T) {
	f := newFixture(t, nil)
	h := newTestServer(t, f)

	rec := do(t, h, http.MethodPost, "/products", `{"name":"Mouse","price":25.5,"stock":40}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created ProductDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotEmpty(t, created.ID)
	assert.True(t, decimal.RequireFromString("25.5").Equal(created.Price))

	rec = do(t, h, http.MethodGet, "/products/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPut, "/products/"+created.ID, `{"name":"Wireless Mouse","price":"30","stock":35}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated ProductDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "Wireless Mouse", updated.Name)
	assert.Equal(t, created.Version+1, updated.Version)

	rec = do(t, h, http.MethodPut, "/products/missing", `{"name":"X","price":1,"stock":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/products", `{"name":"","price":1,"stock":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var list []ProductDTO
	rec = do(t, h, http.MethodGet, "/products", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 3)

	rec = do(t, h, http.MethodDelete, "/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/products/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t, nil)

	rec := do(t, newTestServer(t, f), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"status":"ok"`))

	failing := HealthCheck{Name: "database", Check: func(ctx context.Context) error { return errors.New("unreachable") }}
	rec = do(t, newTestServer(t, f, failing), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)
	rec := do(t, newTestServer(t, f), http.MethodPatch, "/orders", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
