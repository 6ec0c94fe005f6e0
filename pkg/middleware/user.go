package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
)

const (
	// UserIDHeader is set by the admission layer after authentication
	UserIDHeader = "X-User-ID"
	// ContextKeyUserID is where the user id is stored on the gin context
	ContextKeyUserID = "user_id"
)

// ErrMissingUserID is returned when no upstream identity is present
var ErrMissingUserID = errors.New("missing user id")

// UserID copies the authenticated user id from the admission layer header into the context
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			response.Unauthorized(c, ErrMissingUserID.Error())
			return
		}
		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// GetUserID returns the user id set by UserID
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ContextKeyUserID)
	return userID, userID != ""
}
