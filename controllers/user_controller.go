package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradedesk/tradedesk-api/logger"
	"github.com/tradedesk/tradedesk-api/middleware"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserController serves the profile and reference endpoints
type UserController struct {
	db *gorm.DB
}

// NewUserController creates the controller
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

// MeResponse is the authenticated profile and what it may do
type MeResponse struct {
	User             *models.User         `json:"user"`
	ListableStatuses []models.OrderStatus `json:"listable_statuses"`
	CanCreateOrders  bool                 `json:"can_create_orders"`
	CanMergeOrders   bool                 `json:"can_merge_orders"`
	CanExportOrders  bool                 `json:"can_export_orders"`
}

// GetMe handles GET /api/v1/me
func (uc *UserController) GetMe(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
		return
	}
	actor := policy.NewActor(user)

	statuses := policy.ListableStatuses(actor)
	if statuses == nil {
		statuses = []models.OrderStatus{}
	}
	respond(c, http.StatusOK, MeResponse{
		User:             user,
		ListableStatuses: statuses,
		CanCreateOrders:  policy.Authorize(actor, policy.ActionCreate, nil).Allowed,
		CanMergeOrders:   policy.Authorize(actor, policy.ActionMerge, nil).Allowed,
		CanExportOrders:  policy.Authorize(actor, policy.ActionExport, nil).Allowed,
	})
}

// ListRoles handles GET /api/v1/roles
func (uc *UserController) ListRoles(c *gin.Context) {
	var roles []models.Role
	if err := uc.db.WithContext(c.Request.Context()).Order("id").Find(&roles).Error; err != nil {
		logger.FromGin(c).Error("Failed to list roles", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list roles", nil)
		return
	}
	respond(c, http.StatusOK, roles)
}

// ListDepartments handles GET /api/v1/departments
func (uc *UserController) ListDepartments(c *gin.Context) {
	var departments []models.Department
	if err := uc.db.WithContext(c.Request.Context()).Order("id").Find(&departments).Error; err != nil {
		logger.FromGin(c).Error("Failed to list departments", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to list departments", nil)
		return
	}
	respond(c, http.StatusOK, departments)
}
