package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/model"
)

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := h.trash.Delete(c.Request.Context(), a, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task moved to trash"})
}

func (h *TaskHandler) RestoreTask(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.trash.Restore(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) PurgeTask(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := h.trash.PurgeForever(c.Request.Context(), a, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task permanently deleted"})
}

func (h *TaskHandler) GetTrash(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	tasks, err := h.trash.ListTrash(c.Request.Context(), a)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}
