package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogapp "github.com/dmehra2102/checkout-service/internal/catalog/application"
	catalog "github.com/dmehra2102/checkout-service/internal/catalog/domain"
	cataloghttp "github.com/dmehra2102/checkout-service/internal/catalog/infrastructure/http"
	"github.com/dmehra2102/checkout-service/internal/memstore"
	orderapp "github.com/dmehra2102/checkout-service/internal/order/application"
	orderhttp "github.com/dmehra2102/checkout-service/internal/order/infrastructure/http"
	paymentapp "github.com/dmehra2102/checkout-service/internal/payment/application"
	"github.com/dmehra2102/checkout-service/internal/payment/infrastructure/gateway"
	paymenthttp "github.com/dmehra2102/checkout-service/internal/payment/infrastructure/http"
	reportingapp "github.com/dmehra2102/checkout-service/internal/reporting/application"
	reportinghttp "github.com/dmehra2102/checkout-service/internal/reporting/infrastructure/http"
	"github.com/dmehra2102/checkout-service/internal/server"
	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/idempotency"
)

type emptyReports struct{}

func (emptyReports) Stats(context.Context) (reportingapp.Stats, error) {
	return reportingapp.Stats{}, nil
}
func (emptyReports) OrdersByStatus(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}
func (emptyReports) SalesByDay(context.Context, time.Time) (map[string]decimal.Decimal, error) {
	return nil, nil
}
func (emptyReports) RecentOrders(context.Context, int) ([]reportingapp.OrderRow, error) {
	return nil, nil
}
func (emptyReports) ListOrders(context.Context, reportingapp.Filter, int, int) ([]reportingapp.OrderRow, int, error) {
	return nil, 0, nil
}
func (emptyReports) EachOrder(context.Context, reportingapp.Filter, func(reportingapp.OrderRow) error) error {
	return nil
}

type env struct {
	handler  http.Handler
	store    *memstore.Store
	customer string
	admin    string
}

func setup(t *testing.T) env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	store.AddItem(catalog.Item{ID: 1, Name: "Laptop", Price: decimal.RequireFromString("999.99"), IsActive: true})
	store.AddItem(catalog.Item{ID: 2, Name: "Mouse", Price: decimal.RequireFromString("19.99"), IsActive: true})

	catalogSvc := catalogapp.NewService(log, store.Items())
	pricer := orderapp.NewPricer(catalogSvc, decimal.NewFromInt(10), decimal.NewFromInt(50))
	orders := orderapp.NewService(log, store, pricer, store.Orders(), store.Payments(), store.Outbox())
	payments := paymentapp.NewService(log, store, store.Orders(), store.Payments(), gateway.NewStub(log), store.Outbox())
	reports := reportingapp.NewService(log, emptyReports{}, 7)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	authn := auth.NewAuthenticator(log, "test-secret")
	customer, err := authn.Issue(42, "user", time.Hour)
	require.NoError(t, err)
	admin, err := authn.Issue(1, auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	h := server.NewRouter(log, authn, server.Handlers{
		Catalog:   cataloghttp.NewHandler(log, catalogSvc),
		Orders:    orderhttp.NewHandler(log, orders),
		Payments:  paymenthttp.NewHandler(log, payments),
		Reporting: reportinghttp.NewHandler(log, reports),
	}, idempotency.Middleware(log, idempotency.NewStore(rdb, time.Hour)))

	return env{handler: h, store: store, customer: customer, admin: admin}
}

func (e env) do(t *testing.T, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

const checkoutBody = `{
	"items": [{"item_id": 1, "quantity": 1}, {"item_id": 2, "quantity": 2}],
	"payment_method": "cod",
	"shipping_name": "Ana Silva",
	"shipping_address": "12 Rua Augusta",
	"shipping_phone": "912345678",
	"shipping_email": "ana@example.com"
}`

func TestCheckoutAndPayFlow(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/api/checkout", e.customer, checkoutBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "Order created successfully", body.Message)

	var order struct {
		ID          int64  `json:"id"`
		Status      string `json:"status"`
		TotalAmount string `json:"total_amount"`
		Items       []any  `json:"items"`
		Payment     struct {
			Status string `json:"status"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &order))
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "1193.97", order.TotalAmount)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "pending", order.Payment.Status)

	rec = e.do(t, http.MethodPost, "/api/payment/1", e.customer, `{"transaction_id":"TXN123456"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
		PaymentStatus string `json:"payment_status"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &paid))
	assert.Equal(t, "completed", paid.PaymentStatus)
	assert.Equal(t, "completed", paid.Order.Status)

	rec = e.do(t, http.MethodGet, "/api/payment/1", e.customer, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutValidationErrors(t *testing.T) {
	e := setup(t)
	rec := e.do(t, http.MethodPost, "/api/checkout", e.customer, `{"items":[{"item_id":99,"quantity":1}],"payment_method":"cod","shipping_name":"A","shipping_address":"B","shipping_phone":"1","shipping_email":"a@b.co"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.False(t, body.Success)
	assert.Contains(t, body.Errors, "items.0.item_id")
	assert.Zero(t, e.store.OrderCount())
}

func TestCheckoutRequiresToken(t *testing.T) {
	e := setup(t)
	rec := e.do(t, http.MethodPost, "/api/checkout", "", checkoutBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/checkout", "garbage", checkoutBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutIdempotencyKeyReplays(t *testing.T) {
	e := setup(t)
	first := e.do(t, http.MethodPost, "/api/checkout", e.customer, checkoutBody, "Idempotency-Key", "k-1")
	second := e.do(t, http.MethodPost, "/api/checkout", e.customer, checkoutBody, "Idempotency-Key", "k-1")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, e.store.OrderCount())
}

func TestPaymentOfAnotherUsersOrderIsNotFound(t *testing.T) {
	e := setup(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/checkout", e.customer, checkoutBody).Code)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	other, err := auth.NewAuthenticator(log, "test-secret").Issue(7, "user", time.Hour)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/payment/1", other, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/payment/abc", e.customer, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	e := setup(t)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/checkout", e.customer, checkoutBody).Code)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/admin/dashboard", e.customer, "").Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPut, "/api/payment/1", e.customer, `{"status":"completed"}`).Code)

	rec := e.do(t, http.MethodGet, "/admin/dashboard", e.admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dash struct {
		TotalSales string `json:"total_sales"`
		SalesByDay []any  `json:"sales_by_day"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &dash))
	assert.Equal(t, "0.00", dash.TotalSales)
	assert.Len(t, dash.SalesByDay, 7)

	rec = e.do(t, http.MethodPut, "/admin/orders/1/payment-status", e.admin, `{"payment_status":"bogus"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec).Errors, "payment_status")

	rec = e.do(t, http.MethodPut, "/admin/orders/1/payment-status", e.admin, `{"payment_status":"completed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/admin/orders/1", e.admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var shown struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &shown))
	assert.Equal(t, "completed", shown.Status)

	rec = e.do(t, http.MethodPut, "/admin/orders/1/status", e.admin, `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/admin/orders-export", e.admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "orders_export_")
	assert.Equal(t, "Order ID,Order Number,User,Email,Status,Payment Method,Payment Status,Total Amount,Created At\n", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/admin/orders?status=bogus", e.admin, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCatalogListingIsPublic(t *testing.T) {
	e := setup(t)
	rec := e.do(t, http.MethodGet, "/api/items?search=mou", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Status     bool `json:"status"`
		Count      int  `json:"count"`
		TotalCount int  `json:"total_count"`
		Limit      int  `json:"limit"`
		Offset     int  `json:"offset"`
		Data       []struct {
			Name  string `json:"name"`
			Price string `json:"price"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.True(t, list.Status)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, 20, list.Limit)
	assert.Equal(t, "Mouse", list.Data[0].Name)
	assert.Equal(t, "19.99", list.Data[0].Price)
}
