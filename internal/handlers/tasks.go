package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

type TaskHandler struct {
	tasks  *service.TaskService
	trash  *service.TrashService
	bulk   *service.ImportService
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, trash *service.TrashService, bulk *service.ImportService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, trash: trash, bulk: bulk, logger: logger}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var in service.CreateTaskInput
	if err := decodeStrict(c, &in); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), a, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	filter := repository.TaskFilter{
		Priority: model.Priority(c.Query("priority")),
		Category: c.Query("category"),
	}
	if raw := c.Query("completed"); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "completed must be true or false")
			return
		}
		filter.Completed = &completed
	}
	tasks, err := h.tasks.List(c.Request.Context(), a, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), a, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	var patch service.TaskPatch
	if err := decodeStrict(c, &patch); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := h.tasks.Update(c.Request.Context(), a, id, patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// decodeStrict decodes the JSON body into dst and rejects unknown keys.
func decodeStrict(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}
