package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportInput is a new sales report
type ReportInput struct {
	ProductName string
	Quantity    int
	Color       string
	Revenue     decimal.Decimal
}

// ReportPatch changes the non-nil fields of a report
type ReportPatch struct {
	ProductName *string
	Quantity    *int
	Color       *string
	Revenue     *decimal.Decimal
}

// ReportService files and reads the sales reports of the staff
type ReportService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewReportService creates the report service
func NewReportService(db *gorm.DB, log *zap.Logger) *ReportService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportService{db: db, log: log}
}

// List returns the reports actor may see, oldest first
func (s *ReportService) List(ctx context.Context, actor policy.Actor) ([]models.Report, error) {
	if d := policy.AuthorizeReport(actor, policy.ActionViewAny, nil); !d.Allowed {
		return nil, forbidden(d.Reason)
	}

	db := s.db.WithContext(ctx)
	q := db.Model(&models.Report{})
	scope := policy.ListableReports(actor)
	if scope.OwnerID != 0 {
		q = q.Where("user_id = ?", scope.OwnerID)
	}
	if scope.Department != "" {
		owners := db.Model(&models.User{}).
			Select("users.id").
			Joins("JOIN departments ON departments.id = users.department_id").
			Where("departments.name = ?", scope.Department)
		q = q.Where("user_id IN (?)", owners)
	}

	reports := []models.Report{}
	if err := q.Order("id").Find(&reports).Error; err != nil {
		return nil, persistence("Failed to list reports", err)
	}
	return reports, nil
}

// Get returns one report
func (s *ReportService) Get(ctx context.Context, actor policy.Actor, id uint) (*models.Report, error) {
	report, serr := s.find(s.db.WithContext(ctx), id)
	if serr != nil {
		return nil, serr
	}
	if d := policy.AuthorizeReport(actor, policy.ActionView, reportView(report)); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	return report, nil
}

// Create files a report owned by actor
func (s *ReportService) Create(ctx context.Context, actor policy.Actor, in ReportInput) (*models.Report, error) {
	if d := policy.AuthorizeReport(actor, policy.ActionCreate, nil); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	if serr := validateReport(in.Quantity, in.Revenue); serr != nil {
		return nil, serr
	}

	report := models.Report{
		ProductName: in.ProductName,
		Quantity:    in.Quantity,
		Color:       in.Color,
		Revenue:     in.Revenue,
		UserID:      actor.UserID,
	}
	db := s.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(&report).Error; err != nil {
		return nil, persistence("Failed to save report", err)
	}
	s.log.Info("Report filed", zap.Uint("report_id", report.ID), zap.Uint("user_id", actor.UserID))
	return &report, nil
}

// Update applies patch to a report
func (s *ReportService) Update(ctx context.Context, actor policy.Actor, id uint, patch ReportPatch) (*models.Report, error) {
	db := s.db.WithContext(ctx)
	report, serr := s.find(db, id)
	if serr != nil {
		return nil, serr
	}
	if d := policy.AuthorizeReport(actor, policy.ActionUpdate, reportView(report)); !d.Allowed {
		return nil, forbidden(d.Reason)
	}

	if patch.ProductName != nil {
		report.ProductName = *patch.ProductName
	}
	if patch.Quantity != nil {
		report.Quantity = *patch.Quantity
	}
	if patch.Color != nil {
		report.Color = *patch.Color
	}
	if patch.Revenue != nil {
		report.Revenue = *patch.Revenue
	}
	if serr := validateReport(report.Quantity, report.Revenue); serr != nil {
		return nil, serr
	}

	if err := db.Omit(clause.Associations).Save(report).Error; err != nil {
		return nil, persistence("Failed to update report", err)
	}
	return report, nil
}

// Delete removes a report
func (s *ReportService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	db := s.db.WithContext(ctx)
	report, serr := s.find(db, id)
	if serr != nil {
		return serr
	}
	if d := policy.AuthorizeReport(actor, policy.ActionDelete, reportView(report)); !d.Allowed {
		return forbidden(d.Reason)
	}

	if err := db.Delete(&models.Report{}, report.ID).Error; err != nil {
		return persistence("Failed to delete report", err)
	}
	s.log.Info("Report deleted", zap.Uint("report_id", report.ID), zap.Uint("user_id", actor.UserID))
	return nil
}

func (s *ReportService) find(db *gorm.DB, id uint) (*models.Report, *Error) {
	var report models.Report
	err := db.Preload("User.Role").Preload("User.Department").First(&report, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(CodeReportNotFound, fmt.Sprintf("Report %d not found", id))
	}
	if err != nil {
		return nil, persistence("Failed to load report", err)
	}
	return &report, nil
}

func reportView(r *models.Report) *policy.ReportView {
	return &policy.ReportView{OwnerID: r.UserID, OwnerDepartment: r.OwnerDepartment()}
}

func validateReport(quantity int, revenue decimal.Decimal) *Error {
	details := map[string]string{}
	if quantity < 1 {
		details["quantity"] = "Must be at least 1"
	}
	if revenue.IsNegative() {
		details["revenue"] = "Must be greater than or equal to 0"
	}
	if len(details) > 0 {
		return validationError("Invalid report", details)
	}
	return nil
}
