package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradedesk/tradedesk-api/middleware"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/services"
	"github.com/tradedesk/tradedesk-api/tests/testutil"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	os.Exit(m.Run())
}

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type harness struct {
	world   *testutil.World
	orders  *services.OrderService
	storage *services.MockArchiveStorage
}

func newHarness(t *testing.T) *harness {
	w := testutil.NewWorld(t)
	orders := services.NewOrderService(w.DB, services.WithClock(func() time.Time { return fixedNow }))
	return &harness{world: w, orders: orders, storage: services.NewMockArchiveStorage()}
}

// router mounts the order, report and user endpoints for user, skipping token checks
func (h *harness) router(user models.User) *gin.Engine {
	oc := NewOrderController(h.orders, services.NewExportService(h.orders, h.storage, nil))
	uc := NewUserController(h.world.DB)
	rc := NewReportController(services.NewReportService(h.world.DB, nil))

	r := gin.New()
	api := r.Group("/api/v1", testutil.AsUser(user))
	api.GET("/me", uc.GetMe)
	api.GET("/roles", uc.ListRoles)
	api.GET("/departments", uc.ListDepartments)
	api.GET("/orders", oc.ListOrders)
	api.POST("/orders", oc.CreateOrder)
	api.GET("/orders/merged-by-month", oc.MergedByMonth)
	api.PATCH("/orders/merge", oc.MergeOrders)
	api.POST("/orders/export", oc.ExportOrders)
	api.GET("/orders/:id", oc.GetOrder)
	api.PUT("/orders/:id", oc.ReplaceOrder)
	api.PATCH("/orders/:id", oc.PatchOrder)
	api.DELETE("/orders/:id", oc.DeleteOrder)
	api.GET("/reports", rc.ListReports)
	api.POST("/reports", rc.CreateReport)
	api.GET("/reports/:id", rc.GetReport)
	api.PUT("/reports/:id", rc.UpdateReport)
	api.PATCH("/reports/:id", rc.UpdateReport)
	api.DELETE("/reports/:id", rc.DeleteReport)
	return r
}

func (h *harness) do(t *testing.T, user models.User, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router(user).ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, env envelope, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, code, env.Error.Code)
	assert.NotEmpty(t, env.Error.Message)
}

func decodeOrder(t *testing.T, env envelope) models.Order {
	t.Helper()
	require.True(t, env.Success)
	var o models.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	return o
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func orderBody(items ...map[string]any) map[string]any {
	return map[string]any{
		"supplier_name":      "Acme Paper",
		"shipping_address":   "12 Harbour Road",
		"payment_method":     "bank_transfer",
		"shipping":           "10.00",
		"order_date":         "2026-03-15T09:00:00Z",
		"estimated_delivery": "2026-03-20T09:00:00Z",
		"items":              items,
	}
}

func line(code string, qty int) map[string]any {
	return map[string]any{"product_code": code, "quantity": qty}
}
