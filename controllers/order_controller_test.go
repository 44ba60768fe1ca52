package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/services"
	"github.com/tradedesk/tradedesk-api/tests/testutil"
	"github.com/xuri/excelize/v2"
)

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)
	w, env := h.do(t, h.world.SalesEmployee, http.MethodPost, "/api/v1/orders", orderBody(line("A1", 2), line("A2", 1)))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	o := decodeOrder(t, env)
	assert.Equal(t, models.StatusDraft, o.Status)
	assert.Equal(t, models.PaymentPending, o.PaymentStatus)
	assert.Equal(t, h.world.SalesEmployee.ID, o.CreatorID)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "AA-260315093000-"), o.OrderNumber)
	assertDecimal(t, "225.50", o.Subtotal)
	assertDecimal(t, "18.04", o.Tax)
	assertDecimal(t, "10.00", o.Shipping)
	assertDecimal(t, "253.54", o.TotalAmount)
	require.Len(t, o.Items, 2)
}

func TestCreateOrderRejections(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name       string
		user       func() models.User
		body       any
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{
			name:       "malformed json",
			user:       func() models.User { return h.world.SalesEmployee },
			body:       `{"items": [`,
			wantStatus: http.StatusBadRequest,
			wantCode:   services.CodeValidation,
		},
		{
			name: "missing shipping",
			user: func() models.User { return h.world.SalesEmployee },
			body: func() map[string]any {
				b := orderBody(line("A1", 1))
				delete(b, "shipping")
				return b
			}(),
			wantStatus: http.StatusBadRequest,
			wantCode:   services.CodeValidation,
			wantField:  "shipping",
		},
		{
			name: "negative shipping",
			user: func() models.User { return h.world.SalesEmployee },
			body: func() map[string]any {
				b := orderBody(line("A1", 1))
				b["shipping"] = "-1"
				return b
			}(),
			wantStatus: http.StatusBadRequest,
			wantCode:   services.CodeValidation,
			wantField:  "shipping",
		},
		{
			name:       "no items",
			user:       func() models.User { return h.world.SalesEmployee },
			body:       orderBody(),
			wantStatus: http.StatusBadRequest,
			wantCode:   services.CodeValidation,
			wantField:  "items",
		},
		{
			name:       "zero quantity",
			user:       func() models.User { return h.world.SalesEmployee },
			body:       orderBody(line("A1", 0)),
			wantStatus: http.StatusBadRequest,
			wantCode:   services.CodeValidation,
			wantField:  "items[0].quantity",
		},
		{
			name: "unknown payment method",
			user: func() models.User { return h.world.SalesEmployee },
			body: func() map[string]any {
				b := orderBody(line("A1", 1))
				b["payment_method"] = "barter"
				return b
			}(),
			wantStatus: http.StatusBadRequest,
			wantCode:   services.CodeValidation,
			wantField:  "payment_method",
		},
		{
			name: "delivery before order date",
			user: func() models.User { return h.world.SalesEmployee },
			body: func() map[string]any {
				b := orderBody(line("A1", 1))
				b["estimated_delivery"] = "2026-03-01T09:00:00Z"
				return b
			}(),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   services.CodeValidation,
			wantField:  "estimated_delivery",
		},
		{
			name:       "unknown product",
			user:       func() models.User { return h.world.SalesEmployee },
			body:       orderBody(line("ZZ9", 1)),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   services.CodeProductNotFound,
		},
		{
			name:       "mixed categories",
			user:       func() models.User { return h.world.SalesHead },
			body:       orderBody(line("A1", 1), line("B1", 1)),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   services.CodeMixedCategory,
		},
		{
			name:       "category not assigned",
			user:       func() models.User { return h.world.SalesEmployee },
			body:       orderBody(line("B1", 1)),
			wantStatus: http.StatusForbidden,
			wantCode:   services.CodeForbidden,
		},
		{
			name:       "procurement cannot create",
			user:       func() models.User { return h.world.ProcurementHead },
			body:       orderBody(line("A1", 1)),
			wantStatus: http.StatusForbidden,
			wantCode:   services.CodeForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := h.do(t, tt.user(), http.MethodPost, "/api/v1/orders", tt.body)
			requireError(t, w, env, tt.wantStatus, tt.wantCode)
			if tt.wantField != "" {
				var details map[string]string
				require.NoError(t, json.Unmarshal(env.Error.Details, &details), string(env.Error.Details))
				assert.Contains(t, details, tt.wantField)
			}
		})
	}

	var count int64
	h.world.DB.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
}

func TestGetOrder(t *testing.T) {
	h := newHarness(t)
	mine := h.world.CreateOrder(t, testutil.OrderSpec{
		Creator: h.world.SalesEmployee,
		Lines:   []testutil.Line{{Product: h.world.ProductA1, Quantity: 1}},
	})
	other := h.world.CreateOrder(t, testutil.OrderSpec{
		Creator: h.world.SalesHead,
		Lines:   []testutil.Line{{Product: h.world.ProductB1, Quantity: 1}},
	})

	w, env := h.do(t, h.world.SalesEmployee, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", mine.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeOrder(t, env)
	assert.Equal(t, mine.OrderNumber, got.OrderNumber)
	require.NotNil(t, got.Creator)
	assert.Equal(t, h.world.SalesEmployee.Email, got.Creator.Email)

	w, env = h.do(t, h.world.SalesEmployee, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", other.ID), nil)
	requireError(t, w, env, http.StatusForbidden, services.CodeForbidden)

	w, env = h.do(t, h.world.SalesEmployee, http.MethodGet, "/api/v1/orders/9999", nil)
	requireError(t, w, env, http.StatusNotFound, services.CodeOrderNotFound)

	w, env = h.do(t, h.world.SalesEmployee, http.MethodGet, "/api/v1/orders/abc", nil)
	requireError(t, w, env, http.StatusBadRequest, services.CodeValidation)
}

func TestPatchOrderWorkflow(t *testing.T) {
	h := newHarness(t)
	w, env := h.do(t, h.world.SalesEmployee, http.MethodPost, "/api/v1/orders", orderBody(line("A1", 1)))
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeOrder(t, env)
	path := fmt.Sprintf("/api/v1/orders/%d", created.ID)

	w, env = h.do(t, h.world.SalesEmployee, http.MethodPatch, path, map[string]any{"status": "approved"})
	requireError(t, w, env, http.StatusForbidden, services.CodeInvalidTransition)
	var details struct {
		Allowed []string `json:"allowed_transitions"`
	}
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.Equal(t, []string{"draft → pending"}, details.Allowed)

	w, env = h.do(t, h.world.SalesEmployee, http.MethodPatch, path, map[string]any{"status": "pending"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPending, decodeOrder(t, env).Status)

	w, env = h.do(t, h.world.SalesEmployee, http.MethodPatch, path, map[string]any{"notes": "too late"})
	requireError(t, w, env, http.StatusForbidden, services.CodeForbidden)

	w, env = h.do(t, h.world.ProcurementHead, http.MethodPatch, path, map[string]any{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusApproved, decodeOrder(t, env).Status)

	w, env = h.do(t, h.world.Director, http.MethodPatch, path, map[string]any{"status": "fulfilled", "payment_status": "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decodeOrder(t, env)
	assert.Equal(t, models.StatusFulfilled, done.Status)
	assert.Equal(t, models.PaymentPaid, done.PaymentStatus)

	w, env = h.do(t, h.world.SalesEmployee, http.MethodPatch, path, map[string]any{"status": "shipped"})
	requireError(t, w, env, http.StatusBadRequest, services.CodeValidation)
}

func TestPatchOrderItemsIsIdempotent(t *testing.T) {
	h := newHarness(t)
	_, env := h.do(t, h.world.SalesEmployee, http.MethodPost, "/api/v1/orders", orderBody(line("A1", 1)))
	created := decodeOrder(t, env)
	path := fmt.Sprintf("/api/v1/orders/%d", created.ID)
	patch := map[string]any{"items": []map[string]any{line("A1", 3), line("A2", 2)}}

	_, first := h.do(t, h.world.SalesEmployee, http.MethodPatch, path, patch)
	w, second := h.do(t, h.world.SalesEmployee, http.MethodPatch, path, patch)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	a, b := decodeOrder(t, first), decodeOrder(t, second)
	assertDecimal(t, "351.00", b.Subtotal)
	assertDecimal(t, "28.08", b.Tax)
	assertDecimal(t, "389.08", b.TotalAmount)
	assert.True(t, a.TotalAmount.Equal(b.TotalAmount))
	require.Len(t, b.Items, 2)
	for i := range a.Items {
		assert.Equal(t, a.Items[i].ID, b.Items[i].ID)
	}
}

func TestReplaceOrder(t *testing.T) {
	h := newHarness(t)
	_, env := h.do(t, h.world.SalesEmployee, http.MethodPost, "/api/v1/orders", orderBody(line("A1", 1), line("A2", 4)))
	created := decodeOrder(t, env)
	path := fmt.Sprintf("/api/v1/orders/%d", created.ID)

	w, env := h.do(t, h.world.SalesEmployee, http.MethodPut, path, orderBody(line("A2", 2)))
	requireError(t, w, env, http.StatusBadRequest, services.CodeValidation)

	body := orderBody(line("A2", 2))
	body["status"] = "draft"
	body["payment_status"] = "pending"
	body["shipping"] = "0"
	body["supplier_name"] = "New Supplier"
	w, env = h.do(t, h.world.SalesEmployee, http.MethodPut, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	o := decodeOrder(t, env)
	assert.Equal(t, "New Supplier", o.SupplierName)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "A2", o.Items[0].ProductCode)
	assertDecimal(t, "51.00", o.Subtotal)
	assertDecimal(t, "4.08", o.Tax)
	assertDecimal(t, "55.08", o.TotalAmount)
}

func TestDeleteOrder(t *testing.T) {
	h := newHarness(t)
	draft := h.world.CreateOrder(t, testutil.OrderSpec{
		Creator: h.world.SalesEmployee,
		Lines:   []testutil.Line{{Product: h.world.ProductA1, Quantity: 1}},
	})
	pending := h.world.CreateOrder(t, testutil.OrderSpec{
		Creator: h.world.SalesEmployee,
		Status:  models.StatusPending,
		Lines:   []testutil.Line{{Product: h.world.ProductA1, Quantity: 1}},
	})

	w, env := h.do(t, h.world.SalesHead, http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d", pending.ID), nil)
	requireError(t, w, env, http.StatusForbidden, services.CodeForbidden)

	w, _ = h.do(t, h.world.SalesHead, http.MethodDelete, fmt.Sprintf("/api/v1/orders/%d", draft.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = h.do(t, h.world.SalesHead, http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", draft.ID), nil)
	requireError(t, w, env, http.StatusNotFound, services.CodeOrderNotFound)
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 12; i++ {
		h.world.CreateOrder(t, testutil.OrderSpec{
			Creator: h.world.SalesHead,
			Lines:   []testutil.Line{{Product: h.world.ProductA1, Quantity: 1}},
		})
	}
	h.world.CreateOrder(t, testutil.OrderSpec{
		Creator: h.world.SalesHead,
		Status:  models.StatusApproved,
		Lines:   []testutil.Line{{Product: h.world.ProductA1, Quantity: 1}},
	})

	w, env := h.do(t, h.world.SalesHead, http.MethodGet, "/api/v1/orders?page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page services.OrderPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Orders, 2)

	w, env = h.do(t, h.world.SalesHead, http.MethodGet, "/api/v1/orders?page=0", nil)
	requireError(t, w, env, http.StatusBadRequest, services.CodeValidation)

	w, env = h.do(t, h.world.HRHead, http.MethodGet, "/api/v1/orders", nil)
	requireError(t, w, env, http.StatusForbidden, services.CodeForbidden)
}

func TestListOrdersPageQuery(t *testing.T) {
	h := newHarness(t)
	h.world.CreateOrder(t, testutil.OrderSpec{
		Creator: h.world.SalesHead,
		Lines:   []testutil.Line{{Product: h.world.ProductA1, Quantity: 1}},
	})

	for _, query := range []string{"?page=0", "?page=-3", "?page=first"} {
		t.Run(query, func(t *testing.T) {
			w, env := h.do(t, h.world.SalesHead, http.MethodGet, "/api/v1/orders"+query, nil)
			requireError(t, w, env, http.StatusBadRequest, services.CodeValidation)
		})
	}

	w, env := h.do(t, h.world.SalesHead, http.MethodGet, "/api/v1/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page services.OrderPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Orders, 1)
}

func fulfilledPaid(t *testing.T, h *harness, date time.Time, lines ...testutil.Line) models.Order {
	return h.world.CreateOrder(t, testutil.OrderSpec{
		Creator:       h.world.SalesHead,
		Status:        models.StatusFulfilled,
		PaymentStatus: models.PaymentPaid,
		OrderDate:     date,
		Lines:         lines,
	})
}

func TestMergeOrders(t *testing.T) {
	h := newHarness(t)
	date := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	a := fulfilledPaid(t, h, date, testutil.Line{Product: h.world.ProductA1, Quantity: 2})
	b := fulfilledPaid(t, h, date, testutil.Line{Product: h.world.ProductA1, Quantity: 3})
	draft := h.world.CreateOrder(t, testutil.OrderSpec{
		Creator: h.world.SalesHead,
		Lines:   []testutil.Line{{Product: h.world.ProductA2, Quantity: 1}},
	})

	w, env := h.do(t, h.world.SalesHead, http.MethodPatch, "/api/v1/orders/merge", map[string]any{"order_ids": []uint{a.ID}})
	requireError(t, w, env, http.StatusForbidden, services.CodeForbidden)

	w, env = h.do(t, h.world.ProcurementHead, http.MethodPatch, "/api/v1/orders/merge", map[string]any{"order_ids": []uint{}})
	requireError(t, w, env, http.StatusBadRequest, services.CodeValidation)

	w, env = h.do(t, h.world.ProcurementHead, http.MethodPatch, "/api/v1/orders/merge", map[string]any{"order_ids": []uint{draft.ID}})
	requireError(t, w, env, http.StatusUnprocessableEntity, services.CodeNoQualifyingOrders)

	w, env = h.do(t, h.world.ProcurementHead, http.MethodPatch, "/api/v1/orders/merge", map[string]any{"order_ids": []uint{a.ID, b.ID}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	merged := decodeOrder(t, env)
	assert.True(t, strings.HasPrefix(merged.OrderNumber, models.MergedOrderPrefix+"-"))
	assert.Equal(t, models.StatusDraft, merged.Status)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 5, merged.Items[0].Quantity)
	assertDecimal(t, "540.00", merged.TotalAmount)
	assert.Equal(t, 15, h.world.ReloadProduct(t, h.world.ProductA1.ID).Quantity)
}

func TestMergedByMonth(t *testing.T) {
	h := newHarness(t)
	jan := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	a := fulfilledPaid(t, h, jan, testutil.Line{Product: h.world.ProductA1, Quantity: 2})
	b := fulfilledPaid(t, h, feb, testutil.Line{Product: h.world.ProductB1, Quantity: 1})
	require.NoError(t, h.world.DB.Model(&models.Order{}).Where("id IN ?", []uint{a.ID, b.ID}).Update("merged", true).Error)

	w, env := h.do(t, h.world.Director, http.MethodGet, "/api/v1/orders/merged-by-month", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []services.MonthRollup
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 2)
	assert.Equal(t, "01/2026", all[0].Month)
	assert.Equal(t, "02/2026", all[1].Month)

	w, env = h.do(t, h.world.Director, http.MethodGet, "/api/v1/orders/merged-by-month?months=02/2026,bogus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var filtered []services.MonthRollup
	require.NoError(t, json.Unmarshal(env.Data, &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "B1", filtered[0].Items[0].ProductCode)
	assert.Equal(t, 1, filtered[0].Items[0].TotalQuantity)

	w, env = h.do(t, h.world.SalesIntern, http.MethodGet, "/api/v1/orders/merged-by-month", nil)
	requireError(t, w, env, http.StatusForbidden, services.CodeForbidden)
}

func TestExportOrders(t *testing.T) {
	h := newHarness(t)
	jan := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	o := fulfilledPaid(t, h, jan, testutil.Line{Product: h.world.ProductA2, Quantity: 4})
	require.NoError(t, h.world.DB.Model(&o).Update("merged", true).Error)

	t.Run("download", func(t *testing.T) {
		w, _ := h.do(t, h.world.SalesHead, http.MethodPost, "/api/v1/orders/export", map[string]any{"months": []string{"01/2026"}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, services.XLSXContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "merged-orders-20260315-093000.xlsx")

		f, err := excelize.OpenReader(w.Body)
		require.NoError(t, err)
		defer f.Close()
		title, err := f.GetCellValue("Merged orders", "A1")
		require.NoError(t, err)
		assert.Equal(t, "Month 01/2026", title)
		code, err := f.GetCellValue("Merged orders", "A3")
		require.NoError(t, err)
		assert.Equal(t, "A2", code)
	})

	t.Run("archive", func(t *testing.T) {
		w, env := h.do(t, h.world.Director, http.MethodPost, "/api/v1/orders/export", map[string]any{"months": []string{"1/2026"}, "archive": true})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var result services.ExportResult
		require.NoError(t, json.Unmarshal(env.Data, &result))
		assert.Equal(t, "exports/merged-orders-20260315-093000.xlsx", result.Key)
		assert.NotEmpty(t, result.URL)
		_, stored := h.storage.File(result.Key)
		assert.True(t, stored)
	})

	t.Run("no rows", func(t *testing.T) {
		w, env := h.do(t, h.world.SalesHead, http.MethodPost, "/api/v1/orders/export", map[string]any{"months": []string{"06/2025"}})
		requireError(t, w, env, http.StatusNotFound, services.CodeNoOrders)
	})

	t.Run("no valid month", func(t *testing.T) {
		w, env := h.do(t, h.world.SalesHead, http.MethodPost, "/api/v1/orders/export", map[string]any{"months": []string{"2026-01"}})
		requireError(t, w, env, http.StatusUnprocessableEntity, services.CodeValidation)
	})

	t.Run("procurement cannot export", func(t *testing.T) {
		w, env := h.do(t, h.world.ProcurementHead, http.MethodPost, "/api/v1/orders/export", map[string]any{"months": []string{"01/2026"}})
		requireError(t, w, env, http.StatusForbidden, services.CodeForbidden)
	})
}
