package services

import "github.com/tradedesk/tradedesk-api/models"

// ItemDiff is the set of writes that turns an order's stored items into the
// requested ones
type ItemDiff struct {
	Insert []models.OrderItem
	Update []models.OrderItem
	Delete []models.OrderItem
}

// Empty reports whether the diff has nothing to write
func (d ItemDiff) Empty() bool {
	return len(d.Insert) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// DiffItems compares stored items with the desired ones by product code.
// Desired items missing from existing are inserted, changed ones are updated
// in place (keeping the stored ID), and stored items no longer desired are
// deleted. Identical lines produce no write.
func DiffItems(existing, desired []models.OrderItem) ItemDiff {
	var diff ItemDiff

	byCode := make(map[string]models.OrderItem, len(existing))
	for _, item := range existing {
		byCode[item.ProductCode] = item
	}

	wanted := make(map[string]struct{}, len(desired))
	for _, want := range desired {
		wanted[want.ProductCode] = struct{}{}

		have, ok := byCode[want.ProductCode]
		if !ok {
			diff.Insert = append(diff.Insert, want)
			continue
		}
		if sameLine(have, want) {
			continue
		}
		want.ID = have.ID
		want.OrderID = have.OrderID
		diff.Update = append(diff.Update, want)
	}

	for _, item := range existing {
		if _, ok := wanted[item.ProductCode]; !ok {
			diff.Delete = append(diff.Delete, item)
		}
	}
	return diff
}

func sameLine(a, b models.OrderItem) bool {
	return a.ProductID == b.ProductID &&
		a.CategoryID == b.CategoryID &&
		a.Quantity == b.Quantity &&
		a.ProductName == b.ProductName &&
		a.UnitPrice.Equal(b.UnitPrice) &&
		a.LineTotal.Equal(b.LineTotal) &&
		equalPtr(a.Barcode, b.Barcode) &&
		equalPtr(a.Color, b.Color)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// snapshotItem captures the product fields an order line keeps
func snapshotItem(p models.Product, quantity int) models.OrderItem {
	return models.OrderItem{
		ProductID:   p.ID,
		CategoryID:  p.CategoryID,
		Quantity:    quantity,
		ProductCode: p.Code,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Barcode:     p.Barcode,
		Color:       p.Color,
		LineTotal:   LineTotal(p.Price, quantity),
	}
}
