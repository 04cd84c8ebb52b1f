package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"taskboard/internal/service"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		err    error
		status int
		body   string
	}{
		{fmt.Errorf("%w: task 4 not found", service.ErrNotFound), http.StatusNotFound, `{"error":"not_found","message":"task 4 not found"}`},
		{fmt.Errorf("%w: not authorized", service.ErrForbidden), http.StatusForbidden, `{"error":"forbidden","message":"not authorized"}`},
		{fmt.Errorf("%w: stale", service.ErrConflict), http.StatusConflict, `{"error":"conflict","message":"stale"}`},
		{fmt.Errorf("%w: title is required", service.ErrValidation), http.StatusBadRequest, `{"error":"validation_error","message":"title is required"}`},
		{errors.New("disk on fire"), http.StatusInternalServerError, `{"error":"internal_error","message":"internal server error"}`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

		respondError(c, logger, tt.err)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		assert.JSONEq(t, tt.body, rec.Body.String())
	}
}

func TestTaskIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for raw, valid := range map[string]bool{"12": true, "0": false, "-3": false, "x": false} {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Params = gin.Params{{Key: "id", Value: raw}}

		_, ok := taskID(c)
		assert.Equal(t, valid, ok, raw)
		if !valid {
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
	}
}
