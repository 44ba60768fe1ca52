package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradedesk/tradedesk-api/logger"
	"github.com/tradedesk/tradedesk-api/metrics"
	"github.com/tradedesk/tradedesk-api/middleware"
	"github.com/tradedesk/tradedesk-api/policy"
	"github.com/tradedesk/tradedesk-api/services"
	"go.uber.org/zap"
)

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// statusOf maps a service error kind to its HTTP status
func statusOf(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation, services.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError writes the envelope for err. Persistence failures are
// logged with their cause.
func handleServiceError(c *gin.Context, err error) {
	var se *services.Error
	if !errors.As(err, &se) {
		logger.FromGin(c).Error("Unexpected error", zap.Error(err))
		metrics.OrderFailuresTotal.WithLabelValues("INTERNAL_ERROR").Inc()
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error", nil)
		return
	}

	status := statusOf(se.Kind)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error(se.Message, zap.String("code", se.Code), zap.Error(se.Err))
	}
	metrics.OrderFailuresTotal.WithLabelValues(se.Code).Inc()
	respondError(c, status, se.Code, se.Message, se.Details)
}

// bindJSON binds the body, answering 400 with per-field details on failure
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var details any = err.Error()
		if fields := middleware.ValidationDetails(err); fields != nil {
			details = fields
		}
		respondError(c, http.StatusBadRequest, services.CodeValidation, "Invalid request data", details)
		return false
	}
	return true
}

// currentActor returns the actor set by middleware.LoadActor
func currentActor(c *gin.Context) (policy.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information", nil)
	}
	return actor, ok
}
