package v1_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/costing"
	"stockledger/internal/domain/inventory"
	"stockledger/internal/domain/units"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/pkg/logger"
)

type testAPI struct {
	t      *testing.T
	router http.Handler
	store  *memory.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := memory.New()
	converter := units.NewConverter(nil)
	calculator := costing.NewCalculator()

	products := product.NewService(store.Products(), store, converter)
	ledger := inventory.NewService(inventory.Deps{
		TxManager:   store,
		Products:    store.Products(),
		Inventories: store.Inventories(),
		Movements:   store.Movements(),
		Alerts:      store.Alerts(),
		Converter:   converter,
		Calculator:  calculator,
	}, inventory.DefaultConfig())

	router := v1.NewRouter(v1.RouterConfig{
		Logger:      logger.NewNop(),
		Inventory:   ledger,
		Products:    products,
		Converter:   converter,
		Calculator:  calculator,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		Health: handlers.HealthConfig{
			App:   "stockledger",
			Store: "memory",
			DB:    store,
		},
	})
	return &testAPI{t: t, router: router, store: store}
}

func (a *testAPI) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "clerk-1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testAPI) createFlour() string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/products", map[string]any{
		"sku":  "FLR-001",
		"name": "Flour",
		"units": map[string]any{
			"base": "kg",
			"alternatives": []map[string]any{
				{"code": "sack", "conversionFactor": 25},
			},
		},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[product.Product](a.t, w)
	return p.ID.String()
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdjustAndList(t *testing.T) {
	api := newTestAPI(t)
	productID := api.createFlour()
	locationID := id.New().String()

	w := api.do(http.MethodPost, "/api/v1/inventory/adjust", map[string]any{
		"productId":  productID,
		"locationId": locationID,
		"quantity":   2,
		"unit":       "sack",
		"reason":     "delivery",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[inventory.Result](t, w)
	require.NotNil(t, res.Inventory)
	assert.Equal(t, "50", res.Inventory.Totals.Available.String())
	require.NotNil(t, res.Movement)
	assert.Equal(t, "clerk-1", res.Movement.PerformedBy)

	w = api.do(http.MethodGet, "/api/v1/inventory?locationId="+locationID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[inventory.Page[inventory.View]](t, w)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, productID, page.Items[0].ProductID.String())

	w = api.do(http.MethodGet, "/api/v1/movements?productId="+productID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[inventory.Page[map[string]any]](t, w).Total)
}

func TestErrorResponses(t *testing.T) {
	api := newTestAPI(t)
	productID := api.createFlour()

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "malformed id",
			body:   map[string]any{"productId": "nope", "locationId": id.New().String(), "quantity": 1},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown product",
			body:   map[string]any{"productId": id.New().String(), "locationId": id.New().String(), "quantity": 1},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "exit without stock",
			body:   map[string]any{"productId": productID, "locationId": id.New().String(), "quantity": -5},
			status: http.StatusUnprocessableEntity,
			code:   "INSUFFICIENT_STOCK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(http.MethodPost, "/api/v1/inventory/adjust", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode[map[string]any](t, w)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestIdempotentReplay(t *testing.T) {
	api := newTestAPI(t)
	productID := api.createFlour()
	locationID := id.New().String()

	body := map[string]any{
		"productId":  productID,
		"locationId": locationID,
		"quantity":   10,
	}

	first := api.do(http.MethodPost, "/api/v1/inventory/adjust", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := api.do(http.MethodPost, "/api/v1/inventory/adjust", body, "X-Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// Only one entry was applied.
	w := api.do(http.MethodGet, "/api/v1/movements?productId="+productID, nil)
	assert.Equal(t, 1, decode[inventory.Page[map[string]any]](t, w).Total)

	body["quantity"] = 11
	reused := api.do(http.MethodPost, "/api/v1/inventory/adjust", body, "X-Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSED", decode[map[string]any](t, reused)["code"])
}

func TestExportMovements(t *testing.T) {
	api := newTestAPI(t)
	productID := api.createFlour()
	locationID := id.New().String()

	for i := 0; i < 3; i++ {
		w := api.do(http.MethodPost, "/api/v1/inventory/adjust", map[string]any{
			"productId":  productID,
			"locationId": locationID,
			"quantity":   i + 1,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := api.do(http.MethodGet, "/api/v1/movements/export?productId="+productID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zstd", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	dec, err := zstd.NewReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer dec.Close()

	lines := 0
	scanner := bufio.NewScanner(dec)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		assert.Equal(t, productID, m["productId"])
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 3, lines)
}

func TestExportMovements_InvalidFilter(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/movements/export?productId=bad", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestUnitsConvert(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/units/convert", map[string]any{
		"input": "2.5 kg",
		"to":    "g",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.EqualValues(t, 2500, body["value"])
}
