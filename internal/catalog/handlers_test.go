package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/catalog"
)

type productResponse struct {
	Data catalog.Product `json:"data"`
}

type productsResponse struct {
	Data []catalog.Product `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Details struct {
			Fields []catalog.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:  catalog.NewMemoryStore(catalog.DemoProducts()),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	handler := catalog.NewHandler(catalog.HandlerConfig{Service: svc})
	r := chi.NewRouter()
	r.Route("/api/v1/products", handler.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCatalogHandlers(t *testing.T) {
	router := newRouter(t)

	t.Run("search by name", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products?q=charger", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		require.Equal(t, "ELC-3003", body.Data[0].Code)
	})

	t.Run("empty query lists all", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products", "")
		var body productsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 3)
	})

	t.Run("lookup by code ignores case", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products/code/elc-2002", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var body productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "Extension Board 4 Socket", body.Data.Name)
		require.Equal(t, "320", body.Data.SellPrice.String())
	})

	t.Run("unknown code", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products/code/zzz-9999", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "PRODUCT_NOT_FOUND", body.Error.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/api/v1/products/abc", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create applies defaults", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/v1/products",
			`{"code":" ELC-4004 ","name":"Ceiling Fan","sellPrice":"1450.50","purchasePrice":1100,"openingStock":5}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		var body productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "ELC-4004", body.Data.Code)
		require.Equal(t, int64(4), body.Data.ID)
		require.Equal(t, "18", body.Data.GSTRate.String())
		require.Equal(t, 10, body.Data.ReorderLevel)
		require.True(t, body.Data.LowStock())
	})

	t.Run("duplicate code conflicts", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/v1/products", `{"code":"elc-1001","name":"Dup","sellPrice":1}`)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("validation reports fields", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/api/v1/products", `{"code":"","name":"X","sellPrice":-1,"gstRate":101}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		fields := map[string]string{}
		for _, f := range body.Error.Details.Fields {
			fields[f.Field] = f.Rule
		}
		require.Equal(t, "required", fields["code"])
		require.Equal(t, "gte", fields["sellPrice"])
		require.Equal(t, "lte", fields["gstRate"])
	})

	t.Run("update", func(t *testing.T) {
		rec := do(t, router, http.MethodPut, "/api/v1/products/1",
			`{"code":"ELC-1001","name":"LED Bulb 12W Warm","sellPrice":85,"purchasePrice":45,"openingStock":100,"reorderLevel":40}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var body productResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "85", body.Data.SellPrice.String())

		missing := do(t, router, http.MethodPut, "/api/v1/products/99", `{"code":"NEW-1","name":"x"}`)
		require.Equal(t, http.StatusNotFound, missing.Code)
	})
}

func TestServiceLookupBlankCode(t *testing.T) {
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: catalog.NewMemoryStore(catalog.DemoProducts())})
	require.NoError(t, err)
	_, err = svc.Lookup(context.Background(), "   ")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := catalog.NewService(catalog.ServiceConfig{})
	require.Error(t, err)
}
