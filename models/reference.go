package models

import (
	"fmt"
	"strings"
)

// RoleName is the closed set of roles that drive authorization
type RoleName string

const (
	RoleDirector RoleName = "director"
	RoleHead     RoleName = "head"
	RoleDeputy   RoleName = "deputy"
	RoleEmployee RoleName = "employee"
	RoleIntern   RoleName = "intern"
)

// AllRoles lists every role in seniority order
var AllRoles = []RoleName{RoleDirector, RoleHead, RoleDeputy, RoleEmployee, RoleIntern}

// ParseRoleName normalizes and validates a role name
func ParseRoleName(raw string) (RoleName, error) {
	r := RoleName(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllRoles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// IsManager reports whether the role manages a department
func (r RoleName) IsManager() bool {
	return r == RoleHead || r == RoleDeputy
}

// DepartmentName is the closed set of departments
type DepartmentName string

const (
	DepartmentSales       DepartmentName = "SALES"
	DepartmentProcurement DepartmentName = "PROCUREMENT"
	DepartmentHR          DepartmentName = "HR"
	DepartmentIT          DepartmentName = "IT"
	DepartmentAccounting  DepartmentName = "ACCOUNTING"
)

// AllDepartments lists every department
var AllDepartments = []DepartmentName{
	DepartmentSales, DepartmentProcurement, DepartmentHR, DepartmentIT, DepartmentAccounting,
}

// ParseDepartmentName normalizes and validates a department name
func ParseDepartmentName(raw string) (DepartmentName, error) {
	d := DepartmentName(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AllDepartments {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown department %q", raw)
}

// Role is a row of the roles reference table
type Role struct {
	ID   uint     `gorm:"primaryKey" json:"id"`
	Name RoleName `gorm:"uniqueIndex;not null;size:32" json:"name"`
}

// TableName specifies the table name for the Role model
func (Role) TableName() string {
	return "roles"
}

// Department is a row of the departments reference table
type Department struct {
	ID   uint           `gorm:"primaryKey" json:"id"`
	Name DepartmentName `gorm:"uniqueIndex;not null;size:32" json:"name"`
}

// TableName specifies the table name for the Department model
func (Department) TableName() string {
	return "departments"
}
