package http

import "github.com/gin-gonic/gin"

func RegisterVideoRoutes(router *gin.Engine, handler *VideoHandler) {
	videos := router.Group("/videos")
	{
		videos.GET("/:id", handler.GetVideo)
		videos.GET("/:id/history", handler.GetStatusHistory)
	}
}
