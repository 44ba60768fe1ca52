package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tradedesk/tradedesk-api/metrics"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/services"
)

// OrderItemRequest is one requested line
type OrderItemRequest struct {
	ProductCode string `json:"product_code" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	SupplierName      string             `json:"supplier_name" binding:"required"`
	ShippingAddress   string             `json:"shipping_address" binding:"required"`
	PaymentMethod     string             `json:"payment_method" binding:"omitempty,payment_method"`
	PaymentStatus     string             `json:"payment_status" binding:"omitempty,payment_status"`
	Shipping          *decimal.Decimal   `json:"shipping" binding:"required,gte=0"`
	OrderDate         *time.Time         `json:"order_date" binding:"required"`
	EstimatedDelivery *time.Time         `json:"estimated_delivery" binding:"required"`
	Notes             *string            `json:"notes"`
	Items             []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ReplaceOrderRequest is the PUT body; every field must be present
type ReplaceOrderRequest struct {
	Status            string             `json:"status" binding:"required,order_status"`
	PaymentStatus     string             `json:"payment_status" binding:"required,payment_status"`
	PaymentMethod     string             `json:"payment_method" binding:"required,payment_method"`
	SupplierName      string             `json:"supplier_name" binding:"required"`
	ShippingAddress   string             `json:"shipping_address" binding:"required"`
	Shipping          *decimal.Decimal   `json:"shipping" binding:"required,gte=0"`
	OrderDate         *time.Time         `json:"order_date" binding:"required"`
	EstimatedDelivery *time.Time         `json:"estimated_delivery" binding:"required"`
	Notes             *string            `json:"notes"`
	Items             []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// PatchOrderRequest is the PATCH body; absent fields are left unchanged
type PatchOrderRequest struct {
	Status            *string             `json:"status" binding:"omitempty,order_status"`
	PaymentStatus     *string             `json:"payment_status" binding:"omitempty,payment_status"`
	PaymentMethod     *string             `json:"payment_method" binding:"omitempty,payment_method"`
	SupplierName      *string             `json:"supplier_name" binding:"omitempty,min=1"`
	ShippingAddress   *string             `json:"shipping_address" binding:"omitempty,min=1"`
	Shipping          *decimal.Decimal    `json:"shipping" binding:"omitempty,gte=0"`
	OrderDate         *time.Time          `json:"order_date"`
	EstimatedDelivery *time.Time          `json:"estimated_delivery"`
	Notes             *string             `json:"notes"`
	Items             *[]OrderItemRequest `json:"items" binding:"omitempty,min=1,dive"`
}

// MergeOrdersRequest lists the orders to consolidate
type MergeOrdersRequest struct {
	OrderIDs []uint `json:"order_ids" binding:"required,min=1"`
}

// ExportOrdersRequest selects the months of the spreadsheet
type ExportOrdersRequest struct {
	Months  []string `json:"months" binding:"required,min=1"`
	Archive bool     `json:"archive"`
}

type listQuery struct {
	Page *int `form:"page" binding:"omitempty,min=1"`
}

// OrderController serves the /orders endpoints
type OrderController struct {
	orders  *services.OrderService
	exports *services.ExportService
}

// NewOrderController creates the controller
func NewOrderController(orders *services.OrderService, exports *services.ExportService) *OrderController {
	return &OrderController{orders: orders, exports: exports}
}

func itemInputs(items []OrderItemRequest) []services.ItemInput {
	out := make([]services.ItemInput, len(items))
	for i, item := range items {
		out[i] = services.ItemInput{ProductCode: item.ProductCode, Quantity: item.Quantity}
	}
	return out
}

func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, services.CodeValidation, "Invalid order ID", nil)
		return 0, false
	}
	return uint(id), true
}

// ListOrders handles GET /api/v1/orders
func (oc *OrderController) ListOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, services.CodeValidation, "Invalid page number", err.Error())
		return
	}

	pageNumber := 1
	if q.Page != nil {
		pageNumber = *q.Page
	}
	page, err := oc.orders.List(c.Request.Context(), actor, pageNumber)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

// CreateOrder handles POST /api/v1/orders
func (oc *OrderController) CreateOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := oc.orders.Create(c.Request.Context(), actor, services.CreateOrderInput{
		SupplierName:      req.SupplierName,
		ShippingAddress:   req.ShippingAddress,
		PaymentMethod:     req.PaymentMethod,
		PaymentStatus:     models.PaymentStatus(req.PaymentStatus),
		Shipping:          *req.Shipping,
		OrderDate:         *req.OrderDate,
		EstimatedDelivery: *req.EstimatedDelivery,
		Notes:             req.Notes,
		Items:             itemInputs(req.Items),
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	metrics.OrdersCreatedTotal.Inc()
	respond(c, http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := oc.orders.Get(c.Request.Context(), actor, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

// ReplaceOrder handles PUT /api/v1/orders/:id
func (oc *OrderController) ReplaceOrder(c *gin.Context) {
	var req ReplaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	status := models.OrderStatus(req.Status)
	payment := models.PaymentStatus(req.PaymentStatus)
	items := itemInputs(req.Items)
	oc.update(c, services.UpdateOrderInput{
		Status:            &status,
		PaymentStatus:     &payment,
		PaymentMethod:     &req.PaymentMethod,
		SupplierName:      &req.SupplierName,
		ShippingAddress:   &req.ShippingAddress,
		Shipping:          req.Shipping,
		OrderDate:         req.OrderDate,
		EstimatedDelivery: req.EstimatedDelivery,
		Notes:             req.Notes,
		Items:             &items,
	})
}

// PatchOrder handles PATCH /api/v1/orders/:id
func (oc *OrderController) PatchOrder(c *gin.Context) {
	var req PatchOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	in := services.UpdateOrderInput{
		PaymentMethod:     req.PaymentMethod,
		SupplierName:      req.SupplierName,
		ShippingAddress:   req.ShippingAddress,
		Shipping:          req.Shipping,
		OrderDate:         req.OrderDate,
		EstimatedDelivery: req.EstimatedDelivery,
		Notes:             req.Notes,
	}
	if req.Status != nil {
		status := models.OrderStatus(*req.Status)
		in.Status = &status
	}
	if req.PaymentStatus != nil {
		payment := models.PaymentStatus(*req.PaymentStatus)
		in.PaymentStatus = &payment
	}
	if req.Items != nil {
		items := itemInputs(*req.Items)
		in.Items = &items
	}
	oc.update(c, in)
}

func (oc *OrderController) update(c *gin.Context, in services.UpdateOrderInput) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	order, err := oc.orders.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if in.Status != nil {
		metrics.OrderTransitionsTotal.WithLabelValues(string(order.Status)).Inc()
	}
	respond(c, http.StatusOK, order)
}

// DeleteOrder handles DELETE /api/v1/orders/:id
func (oc *OrderController) DeleteOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := orderID(c)
	if !ok {
		return
	}

	if err := oc.orders.Delete(c.Request.Context(), actor, id); err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}

// MergeOrders handles PATCH /api/v1/orders/merge
func (oc *OrderController) MergeOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req MergeOrdersRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := oc.orders.Merge(c.Request.Context(), actor, req.OrderIDs)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	metrics.OrdersMergedTotal.Inc()
	respond(c, http.StatusCreated, order)
}

// MergedByMonth handles GET /api/v1/orders/merged-by-month?months=01/2026,02/2026
func (oc *OrderController) MergedByMonth(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	months := services.SplitMonths(c.QueryArray("months"))
	rollup, err := oc.orders.MonthlyRollup(c.Request.Context(), actor, months)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, rollup)
}

// ExportOrders handles POST /api/v1/orders/export. The workbook is streamed
// unless archiving was requested.
func (oc *OrderController) ExportOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ExportOrdersRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := oc.exports.Export(c.Request.Context(), actor, services.SplitMonths(req.Months), req.Archive)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if req.Archive {
		metrics.ExportsTotal.WithLabelValues("archive").Inc()
		respond(c, http.StatusCreated, result)
		return
	}
	metrics.ExportsTotal.WithLabelValues("download").Inc()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
