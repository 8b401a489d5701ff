package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fioeflor/backend/internal/cache"
	"fioeflor/backend/internal/domain"
	"fioeflor/backend/internal/service"
	"fioeflor/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopStatsCache{}, time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, "admin", "florada-123")

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"usuario": "admin",
		"senha":   "florada-123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["token"] == "" || body["token"] == nil {
		t.Fatalf("expected token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"usuario": "admin",
		"senha":   "senha-errada",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSupplies_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/insumos", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleSupplies_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/insumos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var supplies []domain.Supply
	if err := json.NewDecoder(rec.Body).Decode(&supplies); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(supplies) != 4 {
		t.Fatalf("expected 4 seeded supplies, got %d", len(supplies))
	}
}

func TestHandleCreateSale_DecrementsStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload := `{"controlarEstoque":true,"produtos":[{"produtoId":"prod-buque","quantidade":3}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/vendas", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var sale domain.Sale
	if err := json.NewDecoder(rec.Body).Decode(&sale); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if sale.Total.String() != "360" {
		t.Fatalf("expected total 360, got %s", sale.Total.String())
	}

	supplyReq := httptest.NewRequest(http.MethodGet, "/api/insumos/ins-arame", nil)
	supplyReq.Header.Set("Authorization", "Bearer "+token)
	supplyRec := httptest.NewRecorder()
	handler.ServeHTTP(supplyRec, supplyReq)

	var supply domain.Supply
	if err := json.NewDecoder(supplyRec.Body).Decode(&supply); err != nil {
		t.Fatalf("decode supply: %v", err)
	}
	if supply.Stock.String() != "2.5" {
		t.Fatalf("expected wire stock 2.5 after sale, got %s", supply.Stock.String())
	}
}

func TestHandleCreateSale_InsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload := `{"controlarEstoque":true,"produtos":[{"produtoId":"prod-buque","quantidade":5}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/vendas", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Estoque insuficiente do insumo Arame Floral") {
		t.Fatalf("expected stock error naming the supply, got %s", rec.Body.String())
	}
}

func TestHandleCreateSale_UnknownProduct(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload := `{"produtos":[{"produtoId":"prod-fantasma","quantidade":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/vendas", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Produto prod-fantasma não encontrado") {
		t.Fatalf("unexpected error body %s", rec.Body.String())
	}
}

func TestHandleStockAdjustEndpoints(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	addReq := httptest.NewRequest(http.MethodPatch, "/api/insumos/ins-arame/adicionar-estoque",
		strings.NewReader(`{"quantidade":5,"motivo":"reposição"}`))
	addReq.Header.Set("Content-Type", "application/json")
	addReq.Header.Set("Authorization", "Bearer "+token)
	addReq.Header.Set("X-CSRF-Token", csrf)
	addRec := httptest.NewRecorder()
	handler.ServeHTTP(addRec, addReq)

	if addRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", addRec.Code, addRec.Body.String())
	}
	var adjusted domain.StockAdjustResponse
	if err := json.NewDecoder(addRec.Body).Decode(&adjusted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if adjusted.Supply.Stock.String() != "15" {
		t.Fatalf("expected stock 15, got %s", adjusted.Supply.Stock.String())
	}
	if adjusted.Movement.Type != domain.MovementTypeIn {
		t.Fatalf("expected entrada movement, got %s", adjusted.Movement.Type)
	}

	removeReq := httptest.NewRequest(http.MethodPatch, "/api/insumos/ins-arame/remover-estoque",
		strings.NewReader(`{"quantidade":100}`))
	removeReq.Header.Set("Content-Type", "application/json")
	removeReq.Header.Set("Authorization", "Bearer "+token)
	removeReq.Header.Set("X-CSRF-Token", csrf)
	removeRec := httptest.NewRecorder()
	handler.ServeHTTP(removeRec, removeReq)

	if removeRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when removing more than available, got %d", removeRec.Code)
	}
	if !strings.Contains(removeRec.Body.String(), "Estoque insuficiente") {
		t.Fatalf("unexpected error body %s", removeRec.Body.String())
	}
}

func TestHandleDeleteSupplyInUse(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	req := httptest.NewRequest(http.MethodDelete, "/api/insumos/ins-arame", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for supply in use, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Insumo em uso") {
		t.Fatalf("unexpected error body %s", rec.Body.String())
	}
}

func TestHandleDashboardStats(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/vendas/estatisticas", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var stats domain.DashboardStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalProducts != 2 {
		t.Fatalf("expected 2 products, got %d", stats.TotalProducts)
	}
}

func TestHandleSalesReportInvalidDate(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/vendas/relatorio?dataInicio=01-01-2024", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid date, got %d", rec.Code)
	}
}
