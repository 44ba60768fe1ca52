package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Category statuses
const (
	CategoryActive   = "active"
	CategoryInactive = "inactive"
)

// Category groups products; employees may only transact in categories they are assigned to
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Prefix      string    `gorm:"not null;size:2" json:"prefix"` // two-letter code used in order numbers
	Status      string    `gorm:"not null;default:'active'" json:"status"`
	Description *string   `json:"description,omitempty"`
	Users       []User    `gorm:"many2many:category_users;" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// BeforeSave upper-cases the prefix
func (c *Category) BeforeSave(*gorm.DB) error {
	c.Prefix = strings.ToUpper(strings.TrimSpace(c.Prefix))
	return nil
}
