package models

import (
	"fmt"

	"gorm.io/gorm"
)

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&Role{}, &Department{}, &Category{}, &User{}, &Product{}, &Order{}, &OrderItem{}, &Report{},
	}
}

// Migrate creates or updates the schema for every model
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// SeedReferenceData inserts the fixed roles and departments if missing
func SeedReferenceData(db *gorm.DB) error {
	for _, name := range AllRoles {
		if err := db.Where(Role{Name: name}).FirstOrCreate(&Role{Name: name}).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	for _, name := range AllDepartments {
		if err := db.Where(Department{Name: name}).FirstOrCreate(&Department{Name: name}).Error; err != nil {
			return fmt.Errorf("seed department %s: %w", name, err)
		}
	}
	return nil
}

// FindRole loads a seeded role by name
func FindRole(db *gorm.DB, name RoleName) (Role, error) {
	var role Role
	err := db.Where("name = ?", name).First(&role).Error
	return role, err
}

// FindDepartment loads a seeded department by name
func FindDepartment(db *gorm.DB, name DepartmentName) (Department, error) {
	var dept Department
	err := db.Where("name = ?", name).First(&dept).Error
	return dept, err
}
