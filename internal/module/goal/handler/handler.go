package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fincoach/internal/middleware"
	"fincoach/internal/module/goal/dto"
	"fincoach/internal/module/goal/service"
	"fincoach/internal/shared"
)

type GoalHandler struct {
	service service.GoalService
}

func NewGoalHandler(svc service.GoalService) *GoalHandler {
	return &GoalHandler{service: svc}
}

func (h *GoalHandler) Register(rg *gin.RouterGroup) {
	goals := rg.Group("/goals")
	goals.GET("", h.List)
	goals.POST("", h.Create)
	goals.GET("/:id", h.Get)
	goals.PATCH("/:id", h.Update)
	goals.DELETE("/:id", h.Delete)
}

func (h *GoalHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	goals, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.GoalResponse, 0, len(goals))
	for i := range goals {
		out = append(out, dto.ToGoalResponse(&goals[i]))
	}
	c.JSON(http.StatusOK, gin.H{"goals": out})
}

func (h *GoalHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	var req dto.CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, shared.ErrValidation.WithDetails("%v", err))
		return
	}
	goal, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToGoalResponse(goal))
}

func (h *GoalHandler) Get(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid goal id"))
		return
	}
	goal, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToGoalResponse(goal))
}

func (h *GoalHandler) Update(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid goal id"))
		return
	}
	var req dto.UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, shared.ErrValidation.WithDetails("%v", err))
		return
	}
	goal, err := h.service.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToGoalResponse(goal))
}

func (h *GoalHandler) Delete(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid goal id"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
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
