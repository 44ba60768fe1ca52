package policy

import (
	"errors"
	"fmt"

	"github.com/tradedesk/tradedesk-api/models"
)

// ErrNoLines is returned when an order has no lines to resolve a category from
var ErrNoLines = errors.New("order must contain at least one item")

// MixedCategoryError reports a line whose category differs from the order's
type MixedCategoryError struct {
	Expected    uint
	Found       uint
	ProductCode string
}

func (e *MixedCategoryError) Error() string {
	return fmt.Sprintf("all items must belong to the same category: product %s is in category %d, order is in category %d",
		e.ProductCode, e.Found, e.Expected)
}

// CategoryDeniedError reports an employee acting outside their categories
type CategoryDeniedError struct {
	CategoryID uint
}

func (e *CategoryDeniedError) Error() string {
	return fmt.Sprintf("you are not assigned to category %d", e.CategoryID)
}

// Line is a resolved order line as far as category checks are concerned
type Line struct {
	ProductCode string
	CategoryID  uint
}

// ResolveCategory returns the single category of lines. The first line decides
// the category; every other line must match it, and employees must be assigned to it.
func ResolveCategory(lines []Line, actor Actor) (uint, error) {
	if len(lines) == 0 {
		return 0, ErrNoLines
	}

	category := lines[0].CategoryID
	for _, l := range lines[1:] {
		if l.CategoryID != category {
			return 0, &MixedCategoryError{Expected: category, Found: l.CategoryID, ProductCode: l.ProductCode}
		}
	}

	if actor.Role == models.RoleEmployee && !actor.CanUseCategory(category) {
		return 0, &CategoryDeniedError{CategoryID: category}
	}
	return category, nil
}
