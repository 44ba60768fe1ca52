package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrDirectorExists is returned when a second director would be saved
var ErrDirectorExists = errors.New("a director already exists")

// ErrHeadExists is returned when a department would get a second head
var ErrHeadExists = errors.New("the department already has a head")

// ErrDepartmentRequired is returned when a non-director has no department
var ErrDepartmentRequired = errors.New("department is required for this role")

// User represents an authenticated actor of the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Subject      string         `gorm:"uniqueIndex;not null" json:"subject"` // token 'sub' claim
	Name         string         `gorm:"not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	RoleID       uint           `gorm:"not null;index" json:"role_id"`
	Role         Role           `gorm:"foreignKey:RoleID" json:"role"`
	DepartmentID *uint          `gorm:"index" json:"department_id"` // nil for the director
	Department   *Department    `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Categories   []Category     `gorm:"many2many:category_users;" json:"categories,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// CategoryIDs returns the ids of the categories the user may transact in
func (u *User) CategoryIDs() []uint {
	ids := make([]uint, 0, len(u.Categories))
	for _, c := range u.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// BeforeSave enforces the single-director and single-head-per-department rules
func (u *User) BeforeSave(tx *gorm.DB) error {
	var role Role
	if err := tx.Session(&gorm.Session{NewDB: true}).First(&role, u.RoleID).Error; err != nil {
		return fmt.Errorf("load role %d: %w", u.RoleID, err)
	}

	switch role.Name {
	case RoleDirector:
		taken, err := roleHolderExists(tx, u.ID, role.ID, nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrDirectorExists
		}
	case RoleHead:
		if u.DepartmentID == nil {
			return ErrDepartmentRequired
		}
		taken, err := roleHolderExists(tx, u.ID, role.ID, u.DepartmentID)
		if err != nil {
			return err
		}
		if taken {
			return ErrHeadExists
		}
	default:
		if u.DepartmentID == nil {
			return ErrDepartmentRequired
		}
	}
	return nil
}

func roleHolderExists(tx *gorm.DB, selfID, roleID uint, departmentID *uint) (bool, error) {
	q := tx.Session(&gorm.Session{NewDB: true}).Model(&User{}).Where("role_id = ?", roleID)
	if departmentID != nil {
		q = q.Where("department_id = ?", *departmentID)
	}
	if selfID != 0 {
		q = q.Where("id <> ?", selfID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("count role holders: %w", err)
	}
	return count > 0, nil
}
