package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/service"
)

type bulkUploadRequest struct {
	Tasks []service.ImportRow `json:"tasks"`
}

func (h *TaskHandler) BulkUpload(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req bulkUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	result, err := h.bulk.Import(c.Request.Context(), a, req.Tasks)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	status := http.StatusCreated
	if result.CreatedCount == 0 {
		status = http.StatusOK
	}
	c.JSON(status, result)
}
