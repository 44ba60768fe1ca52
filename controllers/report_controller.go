package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tradedesk/tradedesk-api/services"
)

// CreateReportRequest is the body of POST /reports
type CreateReportRequest struct {
	ProductName string           `json:"product_name" binding:"required,max=255"`
	Quantity    int              `json:"quantity" binding:"required,min=1"`
	Color       string           `json:"color" binding:"required,max=50"`
	Revenue     *decimal.Decimal `json:"revenue" binding:"required,gte=0"`
}

// UpdateReportRequest is the body of PUT and PATCH /reports/:id; absent
// fields are left unchanged
type UpdateReportRequest struct {
	ProductName *string          `json:"product_name" binding:"omitempty,min=1,max=255"`
	Quantity    *int             `json:"quantity" binding:"omitempty,min=1"`
	Color       *string          `json:"color" binding:"omitempty,min=1,max=50"`
	Revenue     *decimal.Decimal `json:"revenue" binding:"omitempty,gte=0"`
}

// ReportController serves the /reports endpoints
type ReportController struct {
	reports *services.ReportService
}

// NewReportController creates the controller
func NewReportController(reports *services.ReportService) *ReportController {
	return &ReportController{reports: reports}
}

func reportID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, services.CodeValidation, "Invalid report ID", nil)
		return 0, false
	}
	return uint(id), true
}

// ListReports handles GET /api/v1/reports
func (rc *ReportController) ListReports(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reports, err := rc.reports.List(c.Request.Context(), actor)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, reports)
}

// CreateReport handles POST /api/v1/reports
func (rc *ReportController) CreateReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := rc.reports.Create(c.Request.Context(), actor, services.ReportInput{
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Color:       req.Color,
		Revenue:     *req.Revenue,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusCreated, report)
}

// GetReport handles GET /api/v1/reports/:id
func (rc *ReportController) GetReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := reportID(c)
	if !ok {
		return
	}

	report, err := rc.reports.Get(c.Request.Context(), actor, id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, report)
}

// UpdateReport handles PUT and PATCH /api/v1/reports/:id
func (rc *ReportController) UpdateReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := reportID(c)
	if !ok {
		return
	}
	var req UpdateReportRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := rc.reports.Update(c.Request.Context(), actor, id, services.ReportPatch{
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Color:       req.Color,
		Revenue:     req.Revenue,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, report)
}

// DeleteReport handles DELETE /api/v1/reports/:id
func (rc *ReportController) DeleteReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := reportID(c)
	if !ok {
		return
	}

	if err := rc.reports.Delete(c.Request.Context(), actor, id); err != nil {
		handleServiceError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}
