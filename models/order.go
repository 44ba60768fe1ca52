package models

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is a state of the approval workflow
type OrderStatus string

const (
	StatusDraft     OrderStatus = "draft"
	StatusPending   OrderStatus = "pending"
	StatusApproved  OrderStatus = "approved"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusRejected  OrderStatus = "rejected"
)

// OrderStatuses lists the workflow states in order
var OrderStatuses = []OrderStatus{StatusDraft, StatusPending, StatusApproved, StatusFulfilled, StatusRejected}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentStatus tracks settlement of an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentStatuses lists every payment status
var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	for _, known := range PaymentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentMethods accepted on an order
var PaymentMethods = []string{"cash", "bank_transfer", "card", "e_wallet"}

// MergedOrderPrefix is the order-number prefix of consolidated orders
const MergedOrderPrefix = fallbackPrefix

var orderNumberPattern = regexp.MustCompile(`^[A-Z0-9]{2}-\d{12}-[A-Z0-9]{4}$`)

// NewOrderNumber builds {prefix}-{YYMMDDHHMMSS}-{4 random characters}
func NewOrderNumber(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = fallbackPrefix
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("060102150405"), RandomUpperAlnum(4))
}

// IsOrderNumber reports whether s has the order-number shape
func IsOrderNumber(s string) bool {
	return orderNumberPattern.MatchString(s)
}

// Order is a purchase/sales order moving through the approval workflow
type Order struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OrderNumber       string          `gorm:"uniqueIndex;not null;size:32" json:"order_number"`
	Status            OrderStatus     `gorm:"not null;default:'draft';index" json:"status"`
	PaymentStatus     PaymentStatus   `gorm:"not null;default:'pending'" json:"payment_status"`
	PaymentMethod     string          `gorm:"not null;default:'cash'" json:"payment_method"`
	SupplierName      string          `json:"supplier_name"`
	ShippingAddress   string          `json:"shipping_address"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"subtotal"`
	Tax               decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"tax"`
	Shipping          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"shipping"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	Merged            bool            `gorm:"not null;default:false;index" json:"merged"`
	CreatorID         uint            `gorm:"not null;index" json:"creator_id"`
	Creator           *User           `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	OrderDate         time.Time       `gorm:"not null" json:"order_date"`
	EstimatedDelivery time.Time       `gorm:"not null" json:"estimated_delivery"`
	Notes             *string         `json:"notes,omitempty"`
	Items             []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// CategoryIDs returns the category of every item whose product is loaded
func (o *Order) CategoryIDs() []uint {
	ids := make([]uint, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.CategoryID)
	}
	return ids
}

// OrderItem is one line of an order. Product fields are snapshotted when the
// line is written so later catalog edits do not rewrite history.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"not null;uniqueIndex:idx_order_items_order_product" json:"order_id"`
	ProductID   uint            `gorm:"not null;uniqueIndex:idx_order_items_order_product" json:"product_id"`
	Product     *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CategoryID  uint            `gorm:"not null;index" json:"category_id"`
	Quantity    int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	ProductCode string          `gorm:"not null" json:"product_code"`
	ProductName string          `gorm:"not null" json:"product_name"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	Barcode     *string         `json:"barcode,omitempty"`
	Color       *string         `json:"color,omitempty"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"line_total"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}
