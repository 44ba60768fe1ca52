package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product statuses
const (
	ProductActive     = "active"
	ProductInactive   = "inactive"
	ProductOutOfStock = "out_of_stock"
)

// fallbackPrefix is used when a category has no prefix and for merged orders
const fallbackPrefix = "XX"

// Product is a catalog entry; its price is the source of order line prices
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Code        string          `gorm:"uniqueIndex;not null;size:32" json:"code"`
	Name        string          `gorm:"not null" json:"name"`
	Price       decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price"`
	Quantity    int             `gorm:"not null;default:0" json:"quantity"`
	MinStock    int             `gorm:"not null;default:0" json:"min_stock"`
	Barcode     *string         `json:"barcode,omitempty"`
	Color       *string         `json:"color,omitempty"`
	Description *string         `json:"description,omitempty"`
	CategoryID  uint            `gorm:"not null;index" json:"category_id"`
	Category    *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Status      string          `gorm:"not null;default:'active'" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// LowStock reports whether on-hand quantity is below the configured minimum
func (p *Product) LowStock() bool {
	return p.Quantity < p.MinStock
}

// BeforeCreate generates a unique product code when none was given.
// Format: {ddmmyy}{category prefix}{5 random characters}.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.Code != "" {
		return nil
	}

	prefix := fallbackPrefix
	var category Category
	if err := tx.Session(&gorm.Session{NewDB: true}).Select("prefix").First(&category, p.CategoryID).Error; err == nil && category.Prefix != "" {
		prefix = category.Prefix
	}

	date := time.Now().Format("020106")
	for {
		code := date + prefix + RandomUpperAlnum(5)
		var count int64
		if err := tx.Session(&gorm.Session{NewDB: true}).Unscoped().Model(&Product{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return fmt.Errorf("check product code: %w", err)
		}
		if count == 0 {
			p.Code = code
			return nil
		}
	}
}

// BeforeSave derives the stock status from the quantity
func (p *Product) BeforeSave(*gorm.DB) error {
	switch {
	case p.Quantity == 0:
		p.Status = ProductOutOfStock
	case p.Status == ProductOutOfStock || p.Status == "":
		p.Status = ProductActive
	}
	return nil
}
