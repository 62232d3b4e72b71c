package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	videoApp "github.com/davicafu/vidflow/internal/video/application"
	videoDomain "github.com/davicafu/vidflow/internal/video/domain"
)

// VideoHandler expone la superficie operacional de solo lectura: estado
// actual e histórico de transiciones de un vídeo.
type VideoHandler struct {
	service *videoApp.VideoService
}

func NewVideoHandler(service *videoApp.VideoService) *VideoHandler {
	return &VideoHandler{service: service}
}

func (h *VideoHandler) GetVideo(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	video, err := h.service.GetVideo(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, videoDomain.ErrVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             video.ID,
		"title":          video.Title,
		"status":         video.Status,
		"status_message": video.StatusMessage,
		"processed_at":   video.ProcessedAt,
	})
}

func (h *VideoHandler) GetStatusHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	history, err := h.service.StatusHistory(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, videoDomain.ErrVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"video_id": id, "history": history})
}
