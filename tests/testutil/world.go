package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/policy"
	"gorm.io/gorm"
)

// World is a seeded catalog and staff used across test packages.
//
// Category A (prefix "AA") holds products A1 (100.00) and A2 (25.50);
// category B (prefix "BB") holds B1 (40.00). Employees are assigned to A only.
type World struct {
	DB *gorm.DB

	CategoryA models.Category
	CategoryB models.Category

	ProductA1 models.Product
	ProductA2 models.Product
	ProductB1 models.Product

	Director            models.User
	SalesHead           models.User
	SalesDeputy         models.User
	SalesEmployee       models.User
	SalesIntern         models.User
	ProcurementHead     models.User
	ProcurementEmployee models.User
	HRHead              models.User
}

// NewWorld builds a World on a fresh test database
func NewWorld(t *testing.T) *World {
	t.Helper()
	w := &World{DB: NewTestDB(t)}

	w.CategoryA = w.createCategory(t, "Stationery", "aa")
	w.CategoryB = w.createCategory(t, "Electronics", "bb")

	w.ProductA1 = w.CreateProduct(t, "A1", "Notebook", "100.00", w.CategoryA.ID, 10)
	w.ProductA2 = w.CreateProduct(t, "A2", "Pen", "25.50", w.CategoryA.ID, 50)
	w.ProductB1 = w.CreateProduct(t, "B1", "Mouse", "40.00", w.CategoryB.ID, 5)

	w.Director = w.CreateUser(t, "director", models.RoleDirector, "")
	w.SalesHead = w.CreateUser(t, "sales-head", models.RoleHead, models.DepartmentSales)
	w.SalesDeputy = w.CreateUser(t, "sales-deputy", models.RoleDeputy, models.DepartmentSales)
	w.SalesEmployee = w.CreateUser(t, "sales-employee", models.RoleEmployee, models.DepartmentSales, w.CategoryA)
	w.SalesIntern = w.CreateUser(t, "sales-intern", models.RoleIntern, models.DepartmentSales, w.CategoryA)
	w.ProcurementHead = w.CreateUser(t, "procurement-head", models.RoleHead, models.DepartmentProcurement)
	w.ProcurementEmployee = w.CreateUser(t, "procurement-employee", models.RoleEmployee, models.DepartmentProcurement, w.CategoryA)
	w.HRHead = w.CreateUser(t, "hr-head", models.RoleHead, models.DepartmentHR)
	return w
}

func (w *World) createCategory(t *testing.T, name, prefix string) models.Category {
	t.Helper()
	c := models.Category{Name: name, Prefix: prefix, Status: models.CategoryActive}
	require.NoError(t, w.DB.Create(&c).Error)
	return c
}

// CreateProduct inserts a catalog product
func (w *World) CreateProduct(t *testing.T, code, name, price string, categoryID uint, quantity int) models.Product {
	t.Helper()
	p := models.Product{
		Code:       code,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
		CategoryID: categoryID,
	}
	require.NoError(t, w.DB.Create(&p).Error)
	return p
}

// CreateUser inserts a staff member. subject doubles as the token subject.
func (w *World) CreateUser(t *testing.T, subject string, role models.RoleName, dept models.DepartmentName, categories ...models.Category) models.User {
	t.Helper()

	r, err := models.FindRole(w.DB, role)
	require.NoError(t, err)

	u := models.User{
		Subject:    subject,
		Name:       subject,
		Email:      subject + "@tradedesk.test",
		RoleID:     r.ID,
		Categories: categories,
	}
	if dept != "" {
		d, err := models.FindDepartment(w.DB, dept)
		require.NoError(t, err)
		u.DepartmentID = &d.ID
	}
	require.NoError(t, w.DB.Create(&u).Error)
	return w.reloadUser(t, u.ID)
}

func (w *World) reloadUser(t *testing.T, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, w.DB.Preload("Role").Preload("Department").Preload("Categories").First(&u, id).Error)
	return u
}

// Actor returns the gate's view of u
func (w *World) Actor(u models.User) policy.Actor {
	return policy.NewActor(&u)
}

// Line is a product and quantity for an order fixture
type Line struct {
	Product  models.Product
	Quantity int
}

// OrderSpec describes an order inserted directly, bypassing the workflow
type OrderSpec struct {
	Creator       models.User
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	Merged        bool
	OrderDate     time.Time
	Shipping      string
	Lines         []Line
}

// CreateOrder inserts an order in any state with consistent totals
func (w *World) CreateOrder(t *testing.T, spec OrderSpec) models.Order {
	t.Helper()

	if spec.Status == "" {
		spec.Status = models.StatusDraft
	}
	if spec.PaymentStatus == "" {
		spec.PaymentStatus = models.PaymentPending
	}
	if spec.OrderDate.IsZero() {
		spec.OrderDate = time.Now()
	}
	shipping := decimal.Zero
	if spec.Shipping != "" {
		shipping = decimal.RequireFromString(spec.Shipping)
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, len(spec.Lines))
	for i, l := range spec.Lines {
		lineTotal := l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items[i] = models.OrderItem{
			ProductID:   l.Product.ID,
			CategoryID:  l.Product.CategoryID,
			Quantity:    l.Quantity,
			ProductCode: l.Product.Code,
			ProductName: l.Product.Name,
			UnitPrice:   l.Product.Price,
			LineTotal:   lineTotal,
		}
	}
	tax := subtotal.Mul(decimal.RequireFromString("0.08")).Round(2)

	o := models.Order{
		OrderNumber:       models.NewOrderNumber("TT", spec.OrderDate),
		Status:            spec.Status,
		PaymentStatus:     spec.PaymentStatus,
		PaymentMethod:     "cash",
		SupplierName:      "Fixture Supplier",
		ShippingAddress:   "1 Fixture Street",
		Subtotal:          subtotal,
		Tax:               tax,
		Shipping:          shipping,
		TotalAmount:       subtotal.Add(tax).Add(shipping),
		Merged:            spec.Merged,
		CreatorID:         spec.Creator.ID,
		OrderDate:         spec.OrderDate,
		EstimatedDelivery: spec.OrderDate.Add(72 * time.Hour),
		Items:             items,
	}
	require.NoError(t, w.DB.Create(&o).Error, fmt.Sprintf("create %s order", spec.Status))
	return o
}

// ReloadProduct reads the current state of a product
func (w *World) ReloadProduct(t *testing.T, id uint) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, w.DB.First(&p, id).Error)
	return p
}
