package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/vidflow/internal/index/domain"
)

// SearchHandler expone el índice de búsqueda.
type SearchHandler struct {
	search domain.SearchIndex
}

func NewSearchHandler(search domain.SearchIndex) *SearchHandler {
	return &SearchHandler{search: search}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	hits, err := h.search.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"query": query, "results": hits})
}

func RegisterSearchRoutes(router *gin.Engine, handler *SearchHandler) {
	router.GET("/search", handler.Search)
}
