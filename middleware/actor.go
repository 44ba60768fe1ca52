package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradedesk/tradedesk-api/logger"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	actorKey       = "actor"
	currentUserKey = "current_user"
)

// LoadActor resolves the authenticated subject to a user and stores the
// authorization actor on the context. Must run after EnsureValidToken.
func LoadActor(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := GetUserID(c)
		if err != nil {
			abortUnauthorized(c, "UNAUTHORIZED", "Could not extract user information")
			return
		}

		var user models.User
		err = db.WithContext(c.Request.Context()).
			Preload("Role").
			Preload("Department").
			Preload("Categories").
			Where("subject = ?", subject).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "No user profile exists for this account",
				},
			})
			return
		}
		if err != nil {
			logger.FromGin(c).Error("Failed to load user", zap.String("subject", subject), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to load user profile",
				},
			})
			return
		}

		SetActor(c, &user)
		c.Next()
	}
}

// SetActor stores user and its actor on the context
func SetActor(c *gin.Context, user *models.User) {
	c.Set(currentUserKey, user)
	c.Set(actorKey, policy.NewActor(user))
	c.Set("actor_user_id", user.ID)
}

// GetActor returns the actor stored by LoadActor
func GetActor(c *gin.Context) (policy.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return policy.Actor{}, false
	}
	actor, ok := v.(policy.Actor)
	return actor, ok
}

// GetCurrentUser returns the user stored by LoadActor
func GetCurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
