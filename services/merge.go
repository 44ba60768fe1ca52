package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	mergedSupplierName    = "N/A"
	mergedShippingAddress = "Merged from multiple orders"
	mergedDeliveryLead    = 7 * 24 * time.Hour
)

// Merge consolidates the fulfilled and paid orders among ids into one new
// draft order and adds the merged quantities back to product stock. Every
// given order is flagged merged in the same transaction, so a merge with no
// qualifying order leaves nothing behind.
func (s *OrderService) Merge(ctx context.Context, actor policy.Actor, ids []uint) (*models.Order, error) {
	if d := policy.Authorize(actor, policy.ActionMerge, nil); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, validationError("No orders selected", map[string]string{"order_ids": "at least one order id is required"})
	}

	db := s.db.WithContext(ctx)
	var merged models.Order
	var sources []models.Order
	var products []models.Product
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).Where("id IN ?", ids).Update("merged", true).Error; err != nil {
			return fmt.Errorf("flag merged orders: %w", err)
		}

		err := tx.Preload("Items").
			Where("id IN ?", ids).
			Where("status = ? AND payment_status = ?", models.StatusFulfilled, models.PaymentPaid).
			Order("id").
			Find(&sources).Error
		if err != nil {
			return fmt.Errorf("load orders to merge: %w", err)
		}
		if len(sources) == 0 {
			return businessRule(CodeNoQualifyingOrders, "None of the selected orders is fulfilled and paid", nil)
		}

		quantities := make(map[uint]int)
		for _, o := range sources {
			for _, item := range o.Items {
				quantities[item.ProductID] += item.Quantity
			}
		}
		productIDs := make([]uint, 0, len(quantities))
		for id := range quantities {
			productIDs = append(productIDs, id)
		}
		slices.Sort(productIDs)

		if err := tx.Unscoped().Where("id IN ?", productIDs).Order("id").Find(&products).Error; err != nil {
			return fmt.Errorf("load merged products: %w", err)
		}
		if len(products) != len(productIDs) {
			return fmt.Errorf("merged orders reference %d products, found %d", len(productIDs), len(products))
		}

		items := make([]models.OrderItem, len(products))
		for i, p := range products {
			items[i] = snapshotItem(p, quantities[p.ID])
		}

		now := s.now()
		merged = models.Order{
			Status:            models.StatusDraft,
			PaymentStatus:     models.PaymentPending,
			PaymentMethod:     "cash",
			SupplierName:      mergedSupplierName,
			ShippingAddress:   mergedShippingAddress,
			CreatorID:         actor.UserID,
			OrderDate:         now,
			EstimatedDelivery: now.Add(mergedDeliveryLead),
			Notes:             mergedNotes(sources),
		}
		ComputeTotals(items, decimal.Zero, s.taxRate).apply(&merged)

		number, err := s.uniqueOrderNumber(tx, models.MergedOrderPrefix)
		if err != nil {
			return err
		}
		merged.OrderNumber = number
		if err := tx.Omit(clause.Associations).Create(&merged).Error; err != nil {
			return fmt.Errorf("create merged order: %w", err)
		}
		for i := range items {
			items[i].OrderID = merged.ID
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return fmt.Errorf("create merged order items: %w", err)
		}

		for i := range products {
			products[i].Quantity += quantities[products[i].ID]
			if err := tx.Unscoped().Omit(clause.Associations).Save(&products[i]).Error; err != nil {
				return fmt.Errorf("restock product %s: %w", products[i].Code, err)
			}
		}
		return nil
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, persistence("Failed to merge orders", err)
	}

	for i := range products {
		if products[i].LowStock() {
			s.log.Warn("Product still below minimum stock after merge",
				zap.String("product_code", products[i].Code),
				zap.Int("quantity", products[i].Quantity),
				zap.Int("min_stock", products[i].MinStock))
		}
	}
	s.invalidateRollup(ctx)

	result, serr := s.find(db, merged.ID)
	if serr != nil {
		return nil, serr
	}
	ev := newOrderEvent(EventOrdersMerged, result, actor.UserID, s.now())
	for _, o := range sources {
		ev.SourceOrderIDs = append(ev.SourceOrderIDs, o.ID)
	}
	s.publish(ctx, ev)
	s.log.Info("Orders merged",
		zap.Uint("order_id", result.ID),
		zap.Uints("source_order_ids", ev.SourceOrderIDs),
		zap.Uint("actor_user_id", actor.UserID),
	)
	return result, nil
}

func mergedNotes(sources []models.Order) *string {
	numbers := make([]string, len(sources))
	for i, o := range sources {
		numbers[i] = o.OrderNumber
	}
	notes := "Merged from orders: " + strings.Join(numbers, ", ")
	return &notes
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RollupLine is the merged quantity of one product within a month
type RollupLine struct {
	ProductID     uint            `json:"product_id"`
	ProductCode   string          `json:"product_code"`
	ProductName   string          `json:"product_name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalQuantity int             `json:"total_quantity"`
}

// MonthRollup groups rollup lines under a MM/YYYY month
type MonthRollup struct {
	Month string       `json:"month"`
	Items []RollupLine `json:"items"`
}

var monthPattern = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)

// ParseMonths normalizes MM/YYYY entries, dropping malformed ones and duplicates
func ParseMonths(raw []string) []string {
	var months []string
	for _, r := range raw {
		m := monthPattern.FindStringSubmatch(strings.TrimSpace(r))
		if m == nil {
			continue
		}
		t, err := time.Parse("1/2006", m[1]+"/"+m[2])
		if err != nil {
			continue
		}
		month := t.Format("01/2006")
		if !slices.Contains(months, month) {
			months = append(months, month)
		}
	}
	return months
}

// MonthlyRollup aggregates merged, fulfilled and paid orders by month of
// order date and product. months optionally restricts the result.
func (s *OrderService) MonthlyRollup(ctx context.Context, actor policy.Actor, months []string) ([]MonthRollup, error) {
	if d := policy.Authorize(actor, policy.ActionViewAny, nil); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	return s.rollup(ctx, ParseMonths(months))
}

func (s *OrderService) rollup(ctx context.Context, months []string) ([]MonthRollup, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, months)
		if err != nil {
			s.log.Warn("Rollup cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") }).
		Where("status = ? AND payment_status = ? AND merged = ?", models.StatusFulfilled, models.PaymentPaid, true).
		Order("order_date").Order("id").
		Find(&orders).Error
	if err != nil {
		return nil, persistence("Failed to load merged orders", err)
	}

	result := s.groupByMonth(orders, months)

	if s.cache != nil {
		if err := s.cache.Set(ctx, months, result); err != nil {
			s.log.Warn("Rollup cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (s *OrderService) groupByMonth(orders []models.Order, months []string) []MonthRollup {
	result := []MonthRollup{}
	monthIndex := map[string]int{}
	lineIndex := map[string]map[uint]int{}

	for _, o := range orders {
		month := o.OrderDate.In(s.location).Format("01/2006")
		if len(months) > 0 && !slices.Contains(months, month) {
			continue
		}
		mi, ok := monthIndex[month]
		if !ok {
			mi = len(result)
			monthIndex[month] = mi
			lineIndex[month] = map[uint]int{}
			result = append(result, MonthRollup{Month: month, Items: []RollupLine{}})
		}
		for _, item := range o.Items {
			li, ok := lineIndex[month][item.ProductID]
			if !ok {
				li = len(result[mi].Items)
				lineIndex[month][item.ProductID] = li
				result[mi].Items = append(result[mi].Items, RollupLine{
					ProductID:   item.ProductID,
					ProductCode: item.ProductCode,
					ProductName: item.ProductName,
					UnitPrice:   item.UnitPrice,
				})
			}
			result[mi].Items[li].TotalQuantity += item.Quantity
		}
	}
	return result
}

func (s *OrderService) invalidateRollup(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("Failed to invalidate rollup cache", zap.Error(err))
	}
}
