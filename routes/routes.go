// Package routes wires controllers to the HTTP router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tradedesk/tradedesk-api/controllers"
	"github.com/tradedesk/tradedesk-api/metrics"
	"github.com/tradedesk/tradedesk-api/middleware"
	"gorm.io/gorm"
)

// Handlers groups the controllers served by the router
type Handlers struct {
	Health  *controllers.HealthController
	Users   *controllers.UserController
	Orders  *controllers.OrderController
	Reports *controllers.ReportController
}

// NewHandlers builds every controller on top of db and the services
func NewHandlers(db *gorm.DB, orders *controllers.OrderController, reports *controllers.ReportController) Handlers {
	return Handlers{
		Health:  controllers.NewHealthController(db),
		Users:   controllers.NewUserController(db),
		Orders:  orders,
		Reports: reports,
	}
}

// Setup registers the API. auth authenticates the bearer token; the actor is
// then loaded from db for every protected route.
func Setup(router *gin.Engine, db *gorm.DB, auth gin.HandlerFunc, h Handlers) {
	middleware.SetupValidator()

	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health.HealthCheck)
		v1.GET("/database/status", h.Health.DatabaseStatus)
	}

	protected := v1.Group("", auth, middleware.LoadActor(db))
	{
		protected.GET("/me", h.Users.GetMe)
		protected.GET("/roles", h.Users.ListRoles)
		protected.GET("/departments", h.Users.ListDepartments)
	}

	orders := protected.Group("/orders")
	{
		orders.GET("", h.Orders.ListOrders)
		orders.POST("", h.Orders.CreateOrder)
		orders.GET("/merged-by-month", h.Orders.MergedByMonth)
		orders.PATCH("/merge", h.Orders.MergeOrders)
		orders.POST("/export", h.Orders.ExportOrders)
		orders.GET("/:id", h.Orders.GetOrder)
		orders.PUT("/:id", h.Orders.ReplaceOrder)
		orders.PATCH("/:id", h.Orders.PatchOrder)
		orders.DELETE("/:id", h.Orders.DeleteOrder)
	}

	reports := protected.Group("/reports")
	{
		reports.GET("", h.Reports.ListReports)
		reports.POST("", h.Reports.CreateReport)
		reports.GET("/:id", h.Reports.GetReport)
		reports.PUT("/:id", h.Reports.UpdateReport)
		reports.PATCH("/:id", h.Reports.UpdateReport)
		reports.DELETE("/:id", h.Reports.DeleteReport)
	}
}
