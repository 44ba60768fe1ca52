package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageSize is the number of orders returned per list page
const PageSize = 10

// OrderService runs the order workflow. Every mutating operation executes in
// a single database transaction; events are published only after commit.
type OrderService struct {
	db       *gorm.DB
	events   EventPublisher
	cache    RollupCache
	log      *zap.Logger
	now      func() time.Time
	location *time.Location
	taxRate  decimal.Decimal
}

// Option configures an OrderService
type Option func(*OrderService)

// WithEvents sets the event publisher
func WithEvents(p EventPublisher) Option {
	return func(s *OrderService) { s.events = p }
}

// WithRollupCache enables caching of monthly rollups
func WithRollupCache(c RollupCache) Option {
	return func(s *OrderService) { s.cache = c }
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *OrderService) { s.log = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

// WithLocation sets the business time zone used for order numbers and months
func WithLocation(loc *time.Location) Option {
	return func(s *OrderService) { s.location = loc }
}

// WithTaxRate overrides the tax rate
func WithTaxRate(rate decimal.Decimal) Option {
	return func(s *OrderService) { s.taxRate = rate }
}

// NewOrderService creates the workflow service
func NewOrderService(db *gorm.DB, opts ...Option) *OrderService {
	s := &OrderService{
		db:       db,
		events:   NoopPublisher{},
		log:      zap.NewNop(),
		now:      time.Now,
		location: time.UTC,
		taxRate:  DefaultTaxRate,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemInput is a requested order line
type ItemInput struct {
	ProductCode string
	Quantity    int
}

// CreateOrderInput carries the fields accepted on order creation
type CreateOrderInput struct {
	SupplierName      string
	ShippingAddress   string
	PaymentMethod     string
	PaymentStatus     models.PaymentStatus
	Shipping          decimal.Decimal
	OrderDate         time.Time
	EstimatedDelivery time.Time
	Notes             *string
	Items             []ItemInput
}

// UpdateOrderInput carries an update; nil fields are left unchanged.
// Items is nil when the request did not mention items at all.
type UpdateOrderInput struct {
	Status            *models.OrderStatus
	PaymentStatus     *models.PaymentStatus
	PaymentMethod     *string
	SupplierName      *string
	ShippingAddress   *string
	Shipping          *decimal.Decimal
	OrderDate         *time.Time
	EstimatedDelivery *time.Time
	Notes             *string
	Items             *[]ItemInput
}

// OrderPage is one page of the order list
type OrderPage struct {
	Orders   []models.Order `json:"orders"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
}

type fieldErrors map[string]string

func (f fieldErrors) err() *Error {
	if len(f) == 0 {
		return nil
	}
	return validationError("Invalid order data", map[string]string(f))
}

func validateItems(items []ItemInput, f fieldErrors) {
	if len(items) == 0 {
		f["items"] = "at least one item is required"
		return
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductCode) == "" {
			f[fmt.Sprintf("items[%d].product_code", i)] = "product code is required"
		}
		if item.Quantity < 1 {
			f[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be at least 1"
		}
	}
}

func validPaymentMethod(m string) bool {
	return slices.Contains(models.PaymentMethods, m)
}

func (in CreateOrderInput) validate() *Error {
	f := fieldErrors{}
	validateItems(in.Items, f)
	if strings.TrimSpace(in.SupplierName) == "" {
		f["supplier_name"] = "supplier name is required"
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		f["shipping_address"] = "shipping address is required"
	}
	if in.Shipping.IsNegative() {
		f["shipping"] = "shipping must not be negative"
	}
	if in.PaymentMethod != "" && !validPaymentMethod(in.PaymentMethod) {
		f["payment_method"] = "unknown payment method"
	}
	if in.PaymentStatus != "" && !in.PaymentStatus.Valid() {
		f["payment_status"] = "unknown payment status"
	}
	if in.OrderDate.IsZero() {
		f["order_date"] = "order date is required"
	}
	if in.EstimatedDelivery.IsZero() {
		f["estimated_delivery"] = "estimated delivery is required"
	} else if in.EstimatedDelivery.Before(in.OrderDate) {
		f["estimated_delivery"] = "estimated delivery must not be before the order date"
	}
	return f.err()
}

func (in UpdateOrderInput) validate(current *models.Order) *Error {
	f := fieldErrors{}
	if in.Items != nil {
		validateItems(*in.Items, f)
	}
	if in.Status != nil && !in.Status.Valid() {
		f["status"] = "unknown status"
	}
	if in.PaymentStatus != nil && !in.PaymentStatus.Valid() {
		f["payment_status"] = "unknown payment status"
	}
	if in.PaymentMethod != nil && !validPaymentMethod(*in.PaymentMethod) {
		f["payment_method"] = "unknown payment method"
	}
	if in.SupplierName != nil && strings.TrimSpace(*in.SupplierName) == "" {
		f["supplier_name"] = "supplier name must not be empty"
	}
	if in.ShippingAddress != nil && strings.TrimSpace(*in.ShippingAddress) == "" {
		f["shipping_address"] = "shipping address must not be empty"
	}
	if in.Shipping != nil && in.Shipping.IsNegative() {
		f["shipping"] = "shipping must not be negative"
	}

	orderDate, delivery := current.OrderDate, current.EstimatedDelivery
	if in.OrderDate != nil {
		orderDate = *in.OrderDate
	}
	if in.EstimatedDelivery != nil {
		delivery = *in.EstimatedDelivery
	}
	if delivery.Before(orderDate) {
		f["estimated_delivery"] = "estimated delivery must not be before the order date"
	}
	return f.err()
}

// orderView is what the gate needs to know about a stored order
func orderView(o *models.Order) *policy.OrderView {
	return &policy.OrderView{Status: o.Status, CategoryIDs: o.CategoryIDs()}
}

// Create places a new draft order for actor
func (s *OrderService) Create(ctx context.Context, actor policy.Actor, in CreateOrderInput) (*models.Order, error) {
	if d := policy.Authorize(actor, policy.ActionCreate, nil); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	items, serr := s.resolveItems(db, in.Items)
	if serr != nil {
		return nil, serr
	}
	categoryID, err := policy.ResolveCategory(linesOf(items), actor)
	if err != nil {
		return nil, fromPolicy(err)
	}
	prefix, serr := s.categoryPrefix(db, categoryID)
	if serr != nil {
		return nil, serr
	}

	order := models.Order{
		Status:            models.StatusDraft,
		PaymentStatus:     models.PaymentPending,
		PaymentMethod:     "cash",
		SupplierName:      strings.TrimSpace(in.SupplierName),
		ShippingAddress:   strings.TrimSpace(in.ShippingAddress),
		CreatorID:         actor.UserID,
		OrderDate:         in.OrderDate,
		EstimatedDelivery: in.EstimatedDelivery,
		Notes:             in.Notes,
	}
	if in.PaymentMethod != "" {
		order.PaymentMethod = in.PaymentMethod
	}
	if in.PaymentStatus != "" {
		order.PaymentStatus = in.PaymentStatus
	}
	ComputeTotals(items, in.Shipping, s.taxRate).apply(&order)

	err = db.Transaction(func(tx *gorm.DB) error {
		number, err := s.uniqueOrderNumber(tx, prefix)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return fmt.Errorf("create order header: %w", err)
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, persistence("Failed to create order", err)
	}

	created, serr := s.find(db, order.ID)
	if serr != nil {
		return nil, serr
	}
	s.publish(ctx, newOrderEvent(EventOrderCreated, created, actor.UserID, s.now()))
	s.log.Info("Order created",
		zap.Uint("order_id", created.ID),
		zap.String("order_number", created.OrderNumber),
		zap.Uint("actor_user_id", actor.UserID),
	)
	return created, nil
}

// Update applies in to the order. Items, when present, are reconciled by
// product code; applying the same input twice leaves the order unchanged.
func (s *OrderService) Update(ctx context.Context, actor policy.Actor, id uint, in UpdateOrderInput) (*models.Order, error) {
	db := s.db.WithContext(ctx)
	order, serr := s.find(db, id)
	if serr != nil {
		return nil, serr
	}
	if d := policy.Authorize(actor, policy.ActionUpdate, orderView(order)); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	if err := in.validate(order); err != nil {
		return nil, err
	}

	previous := order.Status
	if in.Status != nil {
		if err := policy.CheckTransition(actor, order.Status, *in.Status); err != nil {
			return nil, fromPolicy(err)
		}
	}

	var diff ItemDiff
	if in.Items != nil {
		items, serr := s.resolveItems(db, *in.Items)
		if serr != nil {
			return nil, serr
		}
		if _, err := policy.ResolveCategory(linesOf(items), actor); err != nil {
			return nil, fromPolicy(err)
		}
		shipping := order.Shipping
		if in.Shipping != nil {
			shipping = *in.Shipping
		}
		ComputeTotals(items, shipping, s.taxRate).apply(order)
		diff = DiffItems(order.Items, items)
	} else if in.Shipping != nil {
		order.Shipping = *in.Shipping
		order.TotalAmount = order.Subtotal.Add(order.Tax).Add(order.Shipping)
	}
	in.applyHeader(order)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(order).Error; err != nil {
			return fmt.Errorf("save order header: %w", err)
		}
		return applyDiff(tx, order.ID, diff)
	})
	if err != nil {
		return nil, persistence("Failed to update order", err)
	}

	updated, serr := s.find(db, id)
	if serr != nil {
		return nil, serr
	}
	if updated.Merged {
		s.invalidateRollup(ctx)
	}
	s.publish(ctx, newOrderEvent(EventOrderUpdated, updated, actor.UserID, s.now()))
	if updated.Status != previous {
		ev := newOrderEvent(EventOrderStatusChanged, updated, actor.UserID, s.now())
		ev.PreviousStatus = previous
		s.publish(ctx, ev)
		s.log.Info("Order status changed",
			zap.Uint("order_id", updated.ID),
			zap.String("from", string(previous)),
			zap.String("to", string(updated.Status)),
			zap.Uint("actor_user_id", actor.UserID),
		)
	}
	return updated, nil
}

func (in UpdateOrderInput) applyHeader(o *models.Order) {
	if in.Status != nil {
		o.Status = *in.Status
	}
	if in.PaymentStatus != nil {
		o.PaymentStatus = *in.PaymentStatus
	}
	if in.PaymentMethod != nil {
		o.PaymentMethod = *in.PaymentMethod
	}
	if in.SupplierName != nil {
		o.SupplierName = strings.TrimSpace(*in.SupplierName)
	}
	if in.ShippingAddress != nil {
		o.ShippingAddress = strings.TrimSpace(*in.ShippingAddress)
	}
	if in.OrderDate != nil {
		o.OrderDate = *in.OrderDate
	}
	if in.EstimatedDelivery != nil {
		o.EstimatedDelivery = *in.EstimatedDelivery
	}
	if in.Notes != nil {
		o.Notes = in.Notes
	}
}

// applyDiff writes an item diff: deletions first so a replaced line never
// collides with the (order, product) unique index
func applyDiff(tx *gorm.DB, orderID uint, diff ItemDiff) error {
	if diff.Empty() {
		return nil
	}
	if len(diff.Delete) > 0 {
		ids := make([]uint, len(diff.Delete))
		for i, item := range diff.Delete {
			ids[i] = item.ID
		}
		if err := tx.Where("order_id = ? AND id IN ?", orderID, ids).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
	}
	for i := range diff.Update {
		item := diff.Update[i]
		if err := tx.Omit(clause.Associations).Save(&item).Error; err != nil {
			return fmt.Errorf("update order item %s: %w", item.ProductCode, err)
		}
	}
	if len(diff.Insert) > 0 {
		inserts := make([]models.OrderItem, len(diff.Insert))
		copy(inserts, diff.Insert)
		for i := range inserts {
			inserts[i].OrderID = orderID
		}
		if err := tx.Omit(clause.Associations).Create(&inserts).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
	}
	return nil
}

// Delete removes a draft order. The header is soft deleted, its items are not kept.
func (s *OrderService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	db := s.db.WithContext(ctx)
	order, serr := s.find(db, id)
	if serr != nil {
		return serr
	}
	if d := policy.Authorize(actor, policy.ActionDelete, orderView(order)); !d.Allowed {
		return forbidden(d.Reason)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("delete order items: %w", err)
		}
		if err := tx.Delete(&models.Order{}, order.ID).Error; err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		return persistence("Failed to delete order", err)
	}

	if order.Merged {
		s.invalidateRollup(ctx)
	}
	s.publish(ctx, newOrderEvent(EventOrderDeleted, order, actor.UserID, s.now()))
	return nil
}

// Get returns one order with its creator and items
func (s *OrderService) Get(ctx context.Context, actor policy.Actor, id uint) (*models.Order, error) {
	order, serr := s.find(s.db.WithContext(ctx), id)
	if serr != nil {
		return nil, serr
	}
	if d := policy.Authorize(actor, policy.ActionView, orderView(order)); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	return order, nil
}

// List returns the orders actor may see: the status window of their
// department, merged orders excluded, newest first
func (s *OrderService) List(ctx context.Context, actor policy.Actor, page int) (*OrderPage, error) {
	if d := policy.Authorize(actor, policy.ActionViewAny, nil); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	statuses := policy.ListableStatuses(actor)
	if len(statuses) == 0 {
		return nil, forbidden("you have no order list")
	}
	if page < 1 {
		page = 1
	}

	result := &OrderPage{Orders: []models.Order{}, Page: page, PageSize: PageSize}
	q := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ?", statuses).
		Where("merged = ?", false)

	if actor.Role == models.RoleEmployee {
		categories := make([]uint, 0, len(actor.Categories))
		for id := range actor.Categories {
			categories = append(categories, id)
		}
		if len(categories) == 0 {
			return result, nil
		}
		q = q.Where("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id)").
			Where("NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.category_id NOT IN ?)", categories)
	}

	q = q.Session(&gorm.Session{})
	if err := q.Count(&result.Total).Error; err != nil {
		return nil, persistence("Failed to count orders", err)
	}
	err := q.Preload("Creator.Role").Preload("Creator.Department").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Order("created_at DESC").Order("id DESC").
		Limit(PageSize).Offset((page - 1) * PageSize).
		Find(&result.Orders).Error
	if err != nil {
		return nil, persistence("Failed to list orders", err)
	}
	return result, nil
}

func (s *OrderService) find(db *gorm.DB, id uint) (*models.Order, *Error) {
	var order models.Order
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Preload("Creator.Role").
		Preload("Creator.Department").
		First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(CodeOrderNotFound, fmt.Sprintf("Order %d not found", id))
	}
	if err != nil {
		return nil, persistence("Failed to load order", err)
	}
	return &order, nil
}

// resolveItems looks up every product code, collapsing repeated codes into
// one line with the summed quantity
func (s *OrderService) resolveItems(db *gorm.DB, in []ItemInput) ([]models.OrderItem, *Error) {
	var codes []string
	quantities := make(map[string]int, len(in))
	for _, item := range in {
		code := strings.TrimSpace(item.ProductCode)
		if _, seen := quantities[code]; !seen {
			codes = append(codes, code)
		}
		quantities[code] += item.Quantity
	}

	var products []models.Product
	if err := db.Where("code IN ?", codes).Find(&products).Error; err != nil {
		return nil, persistence("Failed to load products", err)
	}
	byCode := make(map[string]models.Product, len(products))
	for _, p := range products {
		byCode[p.Code] = p
	}

	items := make([]models.OrderItem, 0, len(codes))
	var missing []string
	for _, code := range codes {
		p, ok := byCode[code]
		if !ok {
			missing = append(missing, code)
			continue
		}
		items = append(items, snapshotItem(p, quantities[code]))
	}
	if len(missing) > 0 {
		return nil, &Error{
			Kind:    KindValidation,
			Code:    CodeProductNotFound,
			Message: fmt.Sprintf("Unknown product code: %s", strings.Join(missing, ", ")),
			Details: map[string]any{"missing": missing},
		}
	}
	return items, nil
}

func linesOf(items []models.OrderItem) []policy.Line {
	lines := make([]policy.Line, len(items))
	for i, item := range items {
		lines[i] = policy.Line{ProductCode: item.ProductCode, CategoryID: item.CategoryID}
	}
	return lines
}

func (s *OrderService) categoryPrefix(db *gorm.DB, categoryID uint) (string, *Error) {
	var category models.Category
	err := db.Select("id", "prefix").First(&category, categoryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", persistence("Failed to load category", err)
	}
	return category.Prefix, nil
}

const maxOrderNumberAttempts = 10

func (s *OrderService) uniqueOrderNumber(tx *gorm.DB, prefix string) (string, error) {
	for range maxOrderNumberAttempts {
		number := models.NewOrderNumber(prefix, s.now().In(s.location))
		var count int64
		if err := tx.Unscoped().Model(&models.Order{}).Where("order_number = ?", number).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check order number: %w", err)
		}
		if count == 0 {
			return number, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique order number after %d attempts", maxOrderNumberAttempts)
}

func (s *OrderService) publish(ctx context.Context, event OrderEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("Failed to publish order event",
			zap.String("event_type", string(event.Type)),
			zap.Uint("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
