package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cafenet/internal/backup"
	"github.com/MrJamesThe3rd/cafenet/internal/export"
	cafehttp "github.com/MrJamesThe3rd/cafenet/internal/http"
	"github.com/MrJamesThe3rd/cafenet/internal/http/auth"
	backupHandler "github.com/MrJamesThe3rd/cafenet/internal/http/backup"
	exportHandler "github.com/MrJamesThe3rd/cafenet/internal/http/export"
	"github.com/MrJamesThe3rd/cafenet/internal/http/importcsv"
	"github.com/MrJamesThe3rd/cafenet/internal/http/product"
	"github.com/MrJamesThe3rd/cafenet/internal/http/report"
	"github.com/MrJamesThe3rd/cafenet/internal/http/sales"
	"github.com/MrJamesThe3rd/cafenet/internal/http/undo"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger"
	"github.com/MrJamesThe3rd/cafenet/internal/ledger/memstore"
	"github.com/MrJamesThe3rd/cafenet/internal/stockimport"
)

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newServer(t *testing.T, opts cafehttp.Options) *testServer {
	t.Helper()

	store := memstore.New()
	svc := ledger.NewService(store, ledger.Options{LowStockThreshold: 3})
	coord := backup.NewCoordinator(store, backup.Config{Dir: t.TempDir()})

	router := cafehttp.New(opts, cafehttp.Handlers{
		Products: product.NewHandler(svc),
		Undo:     undo.NewHandler(svc),
		Sales:    sales.NewHandler(svc),
		Report:   report.NewHandler(svc),
		Import:   importcsv.NewHandler(stockimport.NewService(svc)),
		Export:   exportHandler.NewHandler(export.NewService(svc)),
		Backups:  backupHandler.NewHandler(coord),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, t: t}
}

func (s *testServer) do(method, path, body string) (*http.Response, map[string]any) {
	s.t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(s.t, err)

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.send(req)
}

func (s *testServer) send(req *http.Request) (*http.Response, map[string]any) {
	s.t.Helper()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)

	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(s.t, json.Unmarshal(raw, &out))
	}

	return resp, out
}

func TestRouter_SellAndUndo(t *testing.T) {
	srv := newServer(t, cafehttp.Options{AllowedOrigins: []string{"*"}})

	resp, body := srv.do(http.MethodPost, "/api/v1/products",
		`{"name":"Coffee","quantity":10,"buy_price":"1,000","sell_price":1500}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(1000), body["buy_price"])

	resp, body = srv.do(http.MethodPost, "/api/v1/products/1/sell", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(7), body["product"].(map[string]any)["quantity"])
	assert.Equal(t, float64(1500), body["sale"].(map[string]any)["profit"])

	resp, body = srv.do(http.MethodGet, "/api/v1/report", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1500), body["total_profit"])
	assert.Equal(t, float64(2), body["undo_depth"])

	resp, body = srv.do(http.MethodPost, "/api/v1/undo", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SELL", body["kind"])
	assert.Equal(t, float64(1), body["remaining"])

	resp, body = srv.do(http.MethodGet, "/api/v1/products/1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), body["quantity"])
	assert.Equal(t, float64(0), body["sold_quantity"])
}

func TestRouter_Errors(t *testing.T) {
	srv := newServer(t, cafehttp.Options{})

	resp, _ := srv.do(http.MethodPost, "/api/v1/products", `{"name":"Tea","quantity":2,"buy_price":500,"sell_price":800}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "validation",
			method:     http.MethodPost,
			path:       "/api/v1/products",
			body:       `{"name":"  ","quantity":1,"buy_price":1,"sell_price":1}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
		},
		{
			name:       "not found",
			method:     http.MethodGet,
			path:       "/api/v1/products/99",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "insufficient stock",
			method:     http.MethodPost,
			path:       "/api/v1/products/1/sell",
			body:       `{"quantity":5}`,
			wantStatus: http.StatusConflict,
			wantCode:   "INSUFFICIENT_STOCK",
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, float64(2), body["available"])
				assert.NotEmpty(t, body["request_id"])
			},
		},
		{
			name:       "unknown view",
			method:     http.MethodGet,
			path:       "/api/v1/products?view=cheapest",
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
		},
		{
			name:       "missing sale",
			method:     http.MethodDelete,
			path:       "/api/v1/sales/42",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := srv.do(tt.method, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, body["code"])

			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}

	// A confirmed partial sale caps at the stock on hand.
	resp, body := srv.do(http.MethodPost, "/api/v1/products/1/sell", `{"quantity":5,"allow_partial":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["capped"])
	assert.Equal(t, float64(0), body["product"].(map[string]any)["quantity"])

	resp, body = srv.do(http.MethodPost, "/api/v1/products/1/sell", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "OUT_OF_STOCK", body["code"])

	resp, body = srv.do(http.MethodPost, "/api/v1/maintenance/purge-empty", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["removed"])
}

func TestRouter_ImportAndExport(t *testing.T) {
	srv := newServer(t, cafehttp.Options{})

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "stock.csv")
	require.NoError(t, err)

	_, err = fw.Write([]byte("name;quantity;buy;sell\nCoffee;10;1000;1500\nTea;oops;1;1\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/import", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, body := srv.send(req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(1), body["imported"])
	assert.Len(t, body["skipped"], 1)

	resp, _ = srv.do(http.MethodPost, "/api/v1/products/1/sell", `{"quantity":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	httpResp, err := http.Get(srv.URL + "/api/v1/export/sales?limit=10")
	require.NoError(t, err)
	defer httpResp.Body.Close()

	csvBody, err := io.ReadAll(httpResp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, httpResp.StatusCode)
	assert.Contains(t, httpResp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, string(csvBody), "Coffee,2,1000,1500,1000")

	resp, body = srv.do(http.MethodPost, "/api/v1/backups", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body["name"].(string), "inventory_backup_"))
}

func TestRouter_Auth(t *testing.T) {
	a := auth.New("secret", time.Hour)
	srv := newServer(t, cafehttp.Options{Auth: a})

	resp, body := srv.do(http.MethodGet, "/api/v1/report", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	token, err := a.GenerateToken("till-1", "cashier")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/report", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, _ = srv.send(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
