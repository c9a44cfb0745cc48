package controller

import (
	"clubnet_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// actor returns the authenticated user id, writing 401 when there is none.
func actor(c *gin.Context) (uint, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return 0, false
	}
	return claims.UserID, true
}

// uintParam parses a positive path parameter, writing 400 when it is malformed.
func uintParam(c *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(c.Param(name))
	if id == 0 {
		util.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
