package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fincoach/internal/middleware"
	"fincoach/internal/module/streak/service"
	"fincoach/internal/shared"
)

type StreakHandler struct {
	service service.StreakService
}

func NewStreakHandler(svc service.StreakService) *StreakHandler {
	return &StreakHandler{service: svc}
}

func (h *StreakHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/streaks", h.Info)
}

func (h *StreakHandler) Info(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	info, err := h.service.Info(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"streaks": info})
}

func respondError(c *gin.Context, err error) {
	var appErr *shared.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"error": appErr})
		return
	}
	c.JSON(shared.StatusOf(err), gin.H{"error": gin.H{
		"code":    "INTERNAL",
		"message": "internal error",
	}})
}
