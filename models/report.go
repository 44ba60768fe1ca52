package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is a sales figure filed by a staff member
type Report struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProductName string          `gorm:"not null;size:255" json:"product_name"`
	Quantity    int             `gorm:"not null;check:chk_reports_quantity,quantity > 0" json:"quantity"`
	Color       string          `gorm:"not null;size:50" json:"color"`
	Revenue     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"revenue"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	User        *User           `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Report model
func (Report) TableName() string {
	return "reports"
}

// OwnerDepartment is the department of the filing user, empty for the
// director or when User was not loaded
func (r *Report) OwnerDepartment() DepartmentName {
	if r.User == nil || r.User.Department == nil {
		return ""
	}
	return r.User.Department.Name
}
