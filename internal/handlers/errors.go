package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taskboard/internal/middleware"
	"taskboard/internal/service"
)

var kindStatus = map[string]int{
	"not_found":        http.StatusNotFound,
	"forbidden":        http.StatusForbidden,
	"conflict":         http.StatusConflict,
	"validation_error": http.StatusBadRequest,
	"unauthorized":     http.StatusUnauthorized,
}

// respondError writes err as {"error": kind, "message": msg}. Unclassified errors
// are logged and reported as internal_error without details.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	kind := service.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"err", err,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "internal server error",
		})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":   kind,
		"message": message(err),
	})
}

// message strips the kind prefix added by the service package.
func message(err error) string {
	msg := err.Error()
	for _, kind := range []error{service.ErrNotFound, service.ErrForbidden, service.ErrConflict, service.ErrValidation} {
		if errors.Is(err, kind) {
			return strings.TrimPrefix(msg, kind.Error()+": ")
		}
	}
	return msg
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "validation_error",
		"message": msg,
	})
}

func actor(c *gin.Context) (service.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "authentication required",
		})
	}
	return a, ok
}

func taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid task id")
		return 0, false
	}
	return uint(id), true
}
