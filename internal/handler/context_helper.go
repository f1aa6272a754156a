package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/linkage-api/internal/middleware"
	"github.com/noah-isme/linkage-api/pkg/response"
)

func actorID(c *gin.Context) string {
	return middleware.Claims(c).Operator()
}

// respond writes data with the request's accumulated response metadata.
func respond(c *gin.Context, status int, data interface{}) {
	response.JSON(c, status, data, middleware.ExtractMeta(c))
}
