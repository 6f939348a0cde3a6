package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fincoach/internal/middleware"
	allocservice "fincoach/internal/module/allocation/service"
	"fincoach/internal/module/transaction/dto"
	"fincoach/internal/module/transaction/service"
	"fincoach/internal/shared"
)

type TransactionHandler struct {
	service      service.TransactionService
	orchestrator allocservice.Orchestrator
}

func NewTransactionHandler(svc service.TransactionService, orch allocservice.Orchestrator) *TransactionHandler {
	return &TransactionHandler{service: svc, orchestrator: orch}
}

func (h *TransactionHandler) Register(rg *gin.RouterGroup) {
	txns := rg.Group("/transactions")
	txns.GET("", h.List)
	txns.POST("", h.Create)
	txns.DELETE("/:id", h.Delete)
}

func (h *TransactionHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	var req dto.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, shared.ErrValidation.WithDetails("%v", err))
		return
	}
	txn, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	// income gets allocated, spending gets budget-checked, both off-request
	h.orchestrator.OnManualTransaction(userID, *txn)

	c.JSON(http.StatusCreated, dto.ToTransactionResponse(txn))
}

func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := h.service.List(c.Request.Context(), userID, c.Query("type"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, dto.ToTransactionResponse(&txns[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, shared.ErrValidation.WithDetails("invalid transaction id"))
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
