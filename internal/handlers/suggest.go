package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/service"
)

type suggestRequest struct {
	Title string `json:"title" binding:"required"`
}

// SuggestTask guesses a category and priority for a title before the task is created.
func (h *TaskHandler) SuggestTask(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title is required")
		return
	}
	suggestion, err := service.SuggestTask(req.Title)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}
