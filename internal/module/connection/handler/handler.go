package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fincoach/internal/middleware"
	allocservice "fincoach/internal/module/allocation/service"
	"fincoach/internal/module/connection/dto"
	"fincoach/internal/module/connection/service"
	"fincoach/internal/shared"
)

type ConnectionHandler struct {
	service      service.ConnectionService
	orchestrator allocservice.Orchestrator
}

func NewConnectionHandler(svc service.ConnectionService, orch allocservice.Orchestrator) *ConnectionHandler {
	return &ConnectionHandler{service: svc, orchestrator: orch}
}

func (h *ConnectionHandler) Register(rg *gin.RouterGroup) {
	conns := rg.Group("/connections")
	conns.GET("", h.List)
	conns.GET("/available", h.Available)
	conns.POST("", h.Create)
	conns.GET("/:id", h.Get)
	conns.PATCH("/:id", h.Update)
	conns.POST("/:id/sync", h.Sync)
	conns.DELETE("/:id", h.Disconnect)
}

func (h *ConnectionHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	var req dto.CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, shared.ErrValidation.WithDetails("%v", err))
		return
	}

	outcome, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	// income allocation and spending notifications run in the background
	h.orchestrator.OnConnectionEvent(userID, outcome)

	c.JSON(http.StatusCreated, dto.SyncResponse{
		Connection:    dto.ToConnectionResponse(outcome.Connection, true),
		NewIncome:     len(outcome.NewIncome),
		NewExpenses:   len(outcome.NewExpenses),
		SnapshotStale: outcome.SnapshotStale,
	})
}

func (h *ConnectionHandler) Sync(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid connection id"))
		return
	}

	outcome, err := h.service.Sync(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.orchestrator.OnConnectionEvent(userID, outcome)

	c.JSON(http.StatusOK, dto.SyncResponse{
		Connection:    dto.ToConnectionResponse(outcome.Connection, true),
		NewIncome:     len(outcome.NewIncome),
		NewExpenses:   len(outcome.NewExpenses),
		SnapshotStale: outcome.SnapshotStale,
	})
}

func (h *ConnectionHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	conns, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.ConnectionResponse, 0, len(conns))
	for i := range conns {
		out = append(out, dto.ToConnectionResponse(&conns[i], true))
	}
	c.JSON(http.StatusOK, gin.H{"connections": out})
}

func (h *ConnectionHandler) Available(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.service.AvailableSources()})
}

func (h *ConnectionHandler) Get(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid connection id"))
		return
	}
	conn, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToConnectionResponse(conn, true))
}

func (h *ConnectionHandler) Update(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid connection id"))
		return
	}
	var req dto.UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, shared.ErrValidation.WithDetails("%v", err))
		return
	}
	conn, err := h.service.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToConnectionResponse(conn, false))
}

func (h *ConnectionHandler) Disconnect(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid connection id"))
		return
	}
	conn, err := h.service.Disconnect(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToConnectionResponse(conn, false))
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
